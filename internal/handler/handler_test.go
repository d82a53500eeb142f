package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/helpdesk/internal/auth"
	"github.com/hitoshi/helpdesk/internal/identity"
	"github.com/hitoshi/helpdesk/internal/model"
	"github.com/hitoshi/helpdesk/internal/ticket"
	"github.com/hitoshi/helpdesk/internal/view"
)

// --- モック定義 ---

type mockAuthService struct {
	signInFn   func(ctx context.Context, email, password string) (*identity.Grant, error)
	signUpFn   func(ctx context.Context, email, password, redirectTo string) (string, error)
	signOutFn  func(ctx context.Context, session model.Session) error
	exchangeFn func(ctx context.Context, code, verifier string) (*identity.Grant, error)
}

func (m *mockAuthService) SignIn(ctx context.Context, email, password string) (*identity.Grant, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthService) SignUp(ctx context.Context, email, password, redirectTo string) (string, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password, redirectTo)
	}
	return "", errors.New("not implemented")
}

func (m *mockAuthService) SignOut(ctx context.Context, session model.Session) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, session)
	}
	return nil
}

func (m *mockAuthService) ExchangeCode(ctx context.Context, code, verifier string) (*identity.Grant, error) {
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, code, verifier)
	}
	return nil, identity.ErrInvalidSession
}

type mockTicketService struct {
	listFn   func(ctx context.Context, viewer *model.User) ([]*model.Ticket, error)
	getFn    func(ctx context.Context, viewer *model.User, id string) (*model.Ticket, error)
	createFn func(ctx context.Context, user *model.User, in ticket.Input) (*model.Ticket, error)
	updateFn func(ctx context.Context, user *model.User, id string, in ticket.Input) error
	deleteFn func(ctx context.Context, user *model.User, id string) error
}

func (m *mockTicketService) List(ctx context.Context, viewer *model.User) ([]*model.Ticket, error) {
	if m.listFn != nil {
		return m.listFn(ctx, viewer)
	}
	return nil, nil
}

func (m *mockTicketService) Get(ctx context.Context, viewer *model.User, id string) (*model.Ticket, error) {
	if m.getFn != nil {
		return m.getFn(ctx, viewer, id)
	}
	return nil, nil
}

func (m *mockTicketService) Create(ctx context.Context, user *model.User, in ticket.Input) (*model.Ticket, error) {
	if m.createFn != nil {
		return m.createFn(ctx, user, in)
	}
	return &model.Ticket{}, nil
}

func (m *mockTicketService) Update(ctx context.Context, user *model.User, id string, in ticket.Input) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, user, id, in)
	}
	return nil
}

func (m *mockTicketService) Delete(ctx context.Context, user *model.User, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, user, id)
	}
	return nil
}

// fakeAuthenticator は固定のユーザーを返すAuthenticator。
type fakeAuthenticator struct {
	user    *model.User
	cookies *auth.CookieStore
	calls   int
}

func newFakeAuthenticator(user *model.User) *fakeAuthenticator {
	return &fakeAuthenticator{user: user, cookies: auth.NewCookieStore(auth.CookieConfig{MaxAge: 3600})}
}

func (f *fakeAuthenticator) Authenticate(http.ResponseWriter, *http.Request) *model.User {
	f.calls++
	return f.user
}

func (f *fakeAuthenticator) Cookies() *auth.CookieStore {
	return f.cookies
}

// --- ヘルパー ---

var (
	alice = &model.User{ID: "u-alice", Email: "alice@example.com"}
	bob   = &model.User{ID: "u-bob", Email: "bob@example.com"}
)

const ticketID = "0b7c1b9e-5d0f-4c63-9a55-2f7f3b8e6a11"

func newTestViews(t *testing.T) *view.Renderer {
	t.Helper()
	v, err := view.New()
	require.NoError(t, err)
	return v
}

func formRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func withUser(r *http.Request, u *model.User) *http.Request {
	if u == nil {
		return r
	}
	return r.WithContext(auth.ContextWithUser(r.Context(), u))
}

// withURLParam はchiのURLパラメータをリクエストに設定する。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
