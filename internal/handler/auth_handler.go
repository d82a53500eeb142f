package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/helpdesk/internal/auth"
	"github.com/hitoshi/helpdesk/internal/identity"
	"github.com/hitoshi/helpdesk/internal/model"
	"github.com/hitoshi/helpdesk/internal/security"
	"github.com/hitoshi/helpdesk/internal/view"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignIn(ctx context.Context, email, password string) (*identity.Grant, error)
	SignUp(ctx context.Context, email, password, redirectTo string) (string, error)
	SignOut(ctx context.Context, session model.Session) error
	ExchangeCode(ctx context.Context, code, verifier string) (*identity.Grant, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	// CallbackURL はメール確認リンクの遷移先（BASE_URL + /auth/callback）。
	CallbackURL string
}

// credentials はログイン・サインアップフォームの入力値。
type credentials struct {
	Email    string `validate:"required,email,max=320"`
	Password string `validate:"required,max=72"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// AuthHandler はログイン、サインアップ、ログアウト、メール確認コールバックのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	cookies *auth.CookieStore
	views   *view.Renderer
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, cookies *auth.CookieStore, views *view.Renderer, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		cookies: cookies,
		views:   views,
		config:  config,
	}
}

// LoginForm はログインフォームを表示する。ログイン済みの場合はダッシュボードへ遷移する。
// GET /login
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if auth.UserFromContext(r.Context()) != nil {
		seeOther(w, r, "/")
		return
	}
	h.views.Render(w, http.StatusOK, view.PageLogin, newPage(r, "Login", ""))
}

// Login はメールアドレスとパスワードでログインする。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	creds := readCredentials(r)
	if apiErr := creds.validate(); apiErr != nil {
		h.renderAuthForm(w, r, view.PageLogin, "Login", creds, apiErr)
		return
	}

	grant, err := h.service.SignIn(r.Context(), creds.Email, creds.Password)
	if err != nil {
		slog.Warn("sign in failed", slog.String("error", err.Error()))
		apiErr := model.NewInvalidCredentialsError(backendMessage(err, "Invalid login credentials"))
		if !errors.Is(err, identity.ErrInvalidCredentials) {
			apiErr = identityUnavailable(err, apiErr)
		}
		h.renderAuthForm(w, r, view.PageLogin, "Login", creds, apiErr)
		return
	}

	h.cookies.Write(w, grant.Session)
	seeOther(w, r, "/")
}

// SignupForm はサインアップフォームを表示する。
// GET /signup
func (h *AuthHandler) SignupForm(w http.ResponseWriter, r *http.Request) {
	if auth.UserFromContext(r.Context()) != nil {
		seeOther(w, r, "/")
		return
	}
	h.views.Render(w, http.StatusOK, view.PageSignup, newPage(r, "Sign Up", ""))
}

// Signup はユーザー登録を行い、確認メールの案内ページへ遷移する。
// PKCEのcode_verifierはHttpOnly Cookieに保存し、コールバックで使用する。
// POST /signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	creds := readCredentials(r)
	if apiErr := creds.validate(); apiErr != nil {
		h.renderAuthForm(w, r, view.PageSignup, "Sign Up", creds, apiErr)
		return
	}

	verifier, err := h.service.SignUp(r.Context(), creds.Email, creds.Password, h.config.CallbackURL)
	if err != nil {
		slog.Warn("sign up failed", slog.String("error", err.Error()))
		apiErr := identityUnavailable(err, model.NewSignUpFailedError(backendMessage(err, "Sign up failed")))
		h.renderAuthForm(w, r, view.PageSignup, "Sign Up", creds, apiErr)
		return
	}

	h.cookies.WriteCodeVerifier(w, verifier)
	seeOther(w, r, "/verify")
}

// Verify は確認メールの案内ページを表示する。
// GET /verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	h.views.Render(w, http.StatusOK, view.PageVerify, newPage(r, "Verify your email", ""))
}

// Logout はバックエンドのセッションを無効化し、Cookieを削除する。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SignOut(r.Context(), h.cookies.Read(r)); err != nil {
		// バックエンドの失敗に関わらずCookieは削除する
		slog.Error("failed to sign out", slog.String("error", err.Error()))
	}
	h.cookies.Clear(w)
	seeOther(w, r, "/login")
}

// Callback はメール確認リンクの認可コードをセッションに交換する。
// 成功時はnextパラメータ（同一オリジンのパスのみ、既定は "/"）へ、失敗時はエラーページへ遷移する。
// GET /auth/callback?code=xxx&next=/path
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	next := security.SafeRedirectPath(r.URL.Query().Get("next"))

	if code == "" {
		seeOther(w, r, "/auth/auth-code-error")
		return
	}

	grant, err := h.service.ExchangeCode(r.Context(), code, h.cookies.ReadCodeVerifier(r))
	if err != nil {
		slog.Warn("auth code exchange failed", slog.String("error", err.Error()))
		seeOther(w, r, "/auth/auth-code-error")
		return
	}

	h.cookies.ClearCodeVerifier(w)
	h.cookies.Write(w, grant.Session)
	seeOther(w, r, next)
}

// AuthCodeError は認可コード交換の失敗ページを表示する。
// GET /auth/auth-code-error
func (h *AuthHandler) AuthCodeError(w http.ResponseWriter, r *http.Request) {
	h.views.Render(w, http.StatusBadRequest, view.PageAuthCodeError, newPage(r, "Authentication failed", ""))
}

func (h *AuthHandler) renderAuthForm(w http.ResponseWriter, r *http.Request, page, title string, creds credentials, apiErr *model.APIError) {
	p := newPage(r, title, "")
	p.Data = view.AuthForm{Email: creds.Email}
	p.Error = apiErr
	h.views.Render(w, errorStatus(apiErr), page, p)
}

func readCredentials(r *http.Request) credentials {
	return credentials{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
}

func (c credentials) validate() *model.APIError {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "Email":
			return model.NewValidationError("Please enter a valid email address.")
		case "Password":
			return model.NewValidationError("Please enter your password.")
		}
	}
	return model.NewValidationError("Please enter your email and password.")
}

// backendMessage はバックエンドが返したメッセージを取り出す。取り出せない場合はfallbackを返す。
func backendMessage(err error, fallback string) string {
	var be *identity.BackendError
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return fallback
}

// identityUnavailable はバックエンドに到達できなかった場合のエラーに置き換える。
// バックエンドが応答した場合はapiErrをそのまま返す。
func identityUnavailable(err error, apiErr *model.APIError) *model.APIError {
	var be *identity.BackendError
	if errors.As(err, &be) {
		return apiErr
	}
	return model.NewIdentityUnavailableError()
}
