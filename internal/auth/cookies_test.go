package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/helpdesk/internal/model"
)

func newTestCookieStore() *CookieStore {
	return NewCookieStore(CookieConfig{Secure: true, MaxAge: 3600})
}

func findSetCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("Set-Cookie %s not found", name)
	return nil
}

func TestCookieStore_WriteAndRead(t *testing.T) {
	store := newTestCookieStore()
	w := httptest.NewRecorder()

	store.Write(w, model.Session{AccessToken: "a1", RefreshToken: "r1"})

	access := findSetCookie(t, w, AccessTokenCookie)
	if access.Value != "a1" || !access.HttpOnly || !access.Secure || access.SameSite != http.SameSiteLaxMode {
		t.Errorf("access cookie attributes = %+v", access)
	}
	if access.MaxAge != 3600 || access.Path != "/" {
		t.Errorf("access cookie MaxAge=%d Path=%q", access.MaxAge, access.Path)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}
	got := store.Read(r)
	if got.AccessToken != "a1" || got.RefreshToken != "r1" {
		t.Errorf("Read() = %+v, want a1/r1", got)
	}
}

func TestCookieStore_Clear(t *testing.T) {
	store := newTestCookieStore()
	w := httptest.NewRecorder()

	store.Clear(w)

	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		if c := findSetCookie(t, w, name); c.MaxAge >= 0 {
			t.Errorf("%s MaxAge = %d, want negative", name, c.MaxAge)
		}
	}
}

func TestCookieStore_ApplyToRequest_ReplacesSessionKeepsOthers(t *testing.T) {
	store := newTestCookieStore()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "csrf_token", Value: "c1"})
	r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "a-old"})
	r.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: "r-old"})

	store.ApplyToRequest(r, model.Session{AccessToken: "a-new", RefreshToken: "r-new"})

	got := store.Read(r)
	if got.AccessToken != "a-new" || got.RefreshToken != "r-new" {
		t.Errorf("Read() after apply = %+v, want a-new/r-new", got)
	}
	if c, err := r.Cookie("csrf_token"); err != nil || c.Value != "c1" {
		t.Error("unrelated cookie should be preserved")
	}
	if n := len(r.Cookies()); n != 3 {
		t.Errorf("cookie count = %d, want 3 (no duplicates)", n)
	}
}

func TestCookieStore_ApplyToRequest_ZeroSessionRemovesTokens(t *testing.T) {
	store := newTestCookieStore()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "a-old"})

	store.ApplyToRequest(r, model.Session{})

	if !store.Read(r).IsZero() {
		t.Error("session cookies should be removed from request")
	}
	if r.Header.Get("Cookie") != "" {
		t.Errorf("Cookie header = %q, want empty", r.Header.Get("Cookie"))
	}
}

func TestCookieStore_CodeVerifier(t *testing.T) {
	store := newTestCookieStore()
	w := httptest.NewRecorder()

	store.WriteCodeVerifier(w, "v1")

	c := findSetCookie(t, w, CodeVerifierCookie)
	if c.MaxAge != 600 || !c.HttpOnly {
		t.Errorf("verifier cookie = %+v", c)
	}

	r := httptest.NewRequest(http.MethodGet, "/auth/callback", nil)
	r.AddCookie(c)
	if got := store.ReadCodeVerifier(r); got != "v1" {
		t.Errorf("ReadCodeVerifier() = %q, want v1", got)
	}
	if got := store.ReadCodeVerifier(httptest.NewRequest(http.MethodGet, "/", nil)); got != "" {
		t.Errorf("ReadCodeVerifier() without cookie = %q, want empty", got)
	}
}
