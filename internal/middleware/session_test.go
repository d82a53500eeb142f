package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/helpdesk/internal/auth"
	"github.com/hitoshi/helpdesk/internal/identity"
	"github.com/hitoshi/helpdesk/internal/metrics"
	"github.com/hitoshi/helpdesk/internal/model"
)

// --- モック定義 ---

type mockResolver struct {
	resolveFn func(ctx context.Context, s model.Session) (*model.User, *model.Session, error)
	calls     int
}

func (m *mockResolver) Resolve(ctx context.Context, s model.Session) (*model.User, *model.Session, error) {
	m.calls++
	if m.resolveFn != nil {
		return m.resolveFn(ctx, s)
	}
	return nil, nil, identity.ErrInvalidSession
}

type recordingMetrics struct {
	metrics.Nop
	sessions []string
	statuses []int
}

func (m *recordingMetrics) RecordSessionResolution(outcome string) {
	m.sessions = append(m.sessions, outcome)
}

func (m *recordingMetrics) RecordHTTPStatus(code int) {
	m.statuses = append(m.statuses, code)
}

func newTestManager(resolver auth.SessionResolver) *auth.Manager {
	return auth.NewManager(resolver, auth.NewCookieStore(auth.CookieConfig{MaxAge: 3600}))
}

func addSessionCookies(r *http.Request, access, refresh string) {
	r.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: access})
	r.AddCookie(&http.Cookie{Name: auth.RefreshTokenCookie, Value: refresh})
}

func responseCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- テスト ---

func TestSessionMiddleware_ValidSession_InjectsUser(t *testing.T) {
	resolver := &mockResolver{
		resolveFn: func(_ context.Context, s model.Session) (*model.User, *model.Session, error) {
			if s.AccessToken != "good-access" {
				t.Errorf("access token = %q, want %q", s.AccessToken, "good-access")
			}
			return &model.User{ID: "u-1", Email: "alice@example.com"}, nil, nil
		},
	}
	mc := &recordingMetrics{}
	mw := NewSessionMiddleware(newTestManager(resolver), mc)

	var got *model.User
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.UserFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/tickets", nil)
	addSessionCookies(req, "good-access", "good-refresh")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got == nil || got.Email != "alice@example.com" {
		t.Fatalf("user = %+v, want alice@example.com", got)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Errorf("expected no Set-Cookie for a valid session, got %d", len(w.Result().Cookies()))
	}
	if len(mc.sessions) != 1 || mc.sessions[0] != metrics.SessionValid {
		t.Errorf("sessions = %v, want [%s]", mc.sessions, metrics.SessionValid)
	}
}

func TestSessionMiddleware_RotatedSession_VisibleToHandlerAndResponse(t *testing.T) {
	resolver := &mockResolver{
		resolveFn: func(_ context.Context, s model.Session) (*model.User, *model.Session, error) {
			return &model.User{ID: "u-1", Email: "alice@example.com"},
				&model.Session{AccessToken: "new-access", RefreshToken: "new-refresh"}, nil
		},
	}
	mc := &recordingMetrics{}
	mw := NewSessionMiddleware(newTestManager(resolver), mc)

	var seenAccess, seenRefresh, seenOther string
	var headerWritten bool
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(auth.AccessTokenCookie); err == nil {
			seenAccess = c.Value
		}
		if c, err := r.Cookie(auth.RefreshTokenCookie); err == nil {
			seenRefresh = c.Value
		}
		if c, err := r.Cookie("theme"); err == nil {
			seenOther = c.Value
		}
		headerWritten = len(w.Header().Values("Set-Cookie")) == 2
	}))

	req := httptest.NewRequest(http.MethodGet, "/tickets", nil)
	addSessionCookies(req, "expired-access", "old-refresh")
	req.AddCookie(&http.Cookie{Name: "theme", Value: "dark"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if seenAccess != "new-access" || seenRefresh != "new-refresh" {
		t.Errorf("handler saw (%q, %q), want rotated pair", seenAccess, seenRefresh)
	}
	if seenOther != "dark" {
		t.Errorf("unrelated cookie = %q, want %q", seenOther, "dark")
	}
	if !headerWritten {
		t.Error("expected Set-Cookie to be written before the handler ran")
	}

	resp := w.Result()
	if c := responseCookie(resp, auth.AccessTokenCookie); c == nil || c.Value != "new-access" {
		t.Errorf("response access cookie = %+v, want new-access", c)
	}
	if c := responseCookie(resp, auth.RefreshTokenCookie); c == nil || c.Value != "new-refresh" {
		t.Errorf("response refresh cookie = %+v, want new-refresh", c)
	}
	if len(mc.sessions) != 1 || mc.sessions[0] != metrics.SessionRotated {
		t.Errorf("sessions = %v, want [%s]", mc.sessions, metrics.SessionRotated)
	}
}

func TestSessionMiddleware_InvalidSession_ContinuesAnonymouslyAndClears(t *testing.T) {
	resolver := &mockResolver{}
	mw := NewSessionMiddleware(newTestManager(resolver), nil)

	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if u := auth.UserFromContext(r.Context()); u != nil {
			t.Errorf("expected anonymous request, got %+v", u)
		}
		if _, err := r.Cookie(auth.AccessTokenCookie); err == nil {
			t.Error("expected stale access cookie to be removed from the request")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	addSessionCookies(req, "bad-access", "bad-refresh")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Fatal("expected handler to be called")
	}
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	c := responseCookie(w.Result(), auth.AccessTokenCookie)
	if c == nil || c.MaxAge >= 0 {
		t.Errorf("expected access cookie to be cleared, got %+v", c)
	}
}

func TestSessionMiddleware_NoCookies_SkipsBackend(t *testing.T) {
	resolver := &mockResolver{}
	mc := &recordingMetrics{}
	mw := NewSessionMiddleware(newTestManager(resolver), mc)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if resolver.calls != 0 {
		t.Errorf("resolver calls = %d, want 0", resolver.calls)
	}
	if len(mc.sessions) != 1 || mc.sessions[0] != metrics.SessionAnonymous {
		t.Errorf("sessions = %v, want [%s]", mc.sessions, metrics.SessionAnonymous)
	}
}

func TestSessionMiddleware_SkipsPublicPaths(t *testing.T) {
	paths := []string{
		"/static/app.css",
		"/auth/callback",
		"/auth/auth-code-error",
		"/favicon.ico",
		"/logo.svg",
		"/images/banner.PNG",
		"/photo.jpeg",
		"/anim.gif",
		"/pic.webp",
	}

	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			resolver := &mockResolver{}
			mw := NewSessionMiddleware(newTestManager(resolver), nil)
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

			req := httptest.NewRequest(http.MethodGet, p, nil)
			addSessionCookies(req, "a", "r")
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if resolver.calls != 0 {
				t.Errorf("resolver called for %s", p)
			}
		})
	}
}

func TestSkipSession(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/", false},
		{"/tickets", false},
		{"/tickets/42/edit", false},
		{"/login", false},
		{"/static/app.css", true},
		{"/auth/callback", true},
		{"/favicon.ico", true},
		{"/a/b.jpg", true},
		{"/authority", false},
	}
	for _, tt := range tests {
		if got := SkipSession(tt.path); got != tt.want {
			t.Errorf("SkipSession(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
