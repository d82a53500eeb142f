// Package identity は外部認証バックエンド（GoTrue互換HTTP API）のクライアントを提供する。
//
// トークンの検証は常にバックエンドに問い合わせて行う。
// このパッケージはトークンの署名を自前で検証しない。
package identity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"github.com/hitoshi/helpdesk/internal/metrics"
	"github.com/hitoshi/helpdesk/internal/model"
)

// 操作名。メトリクスのラベルとエラーメッセージに使用する。
const (
	opSignIn   = "sign_in"
	opSignUp   = "sign_up"
	opSignOut  = "sign_out"
	opGetUser  = "get_user"
	opRefresh  = "refresh"
	opExchange = "exchange_code"
)

const apiPrefix = "/auth/v1"

// Grant はバックエンドが発行したセッションと、その所有者を表す。
type Grant struct {
	Session model.Session
	User    model.User
}

// SignUpParams はサインアップ要求のパラメータ。
type SignUpParams struct {
	Email         string
	Password      string
	RedirectTo    string
	CodeChallenge string
}

// Backend は認証バックエンドの操作を定義する。
type Backend interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Grant, error)
	SignUp(ctx context.Context, params SignUpParams) error
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*model.User, error)
	RefreshSession(ctx context.Context, refreshToken string) (*Grant, error)
	ExchangeCodeForSession(ctx context.Context, authCode, codeVerifier string) (*Grant, error)
}

// ClientConfig はGoTrueClientの接続設定。
type ClientConfig struct {
	BaseURL string
	AnonKey string
	Timeout time.Duration
}

// GoTrueClient はGoTrue互換APIを呼び出すBackendの実装。
type GoTrueClient struct {
	http    *resty.Client
	metrics metrics.MetricsCollector
	now     func() time.Time
}

var _ Backend = (*GoTrueClient)(nil)

// NewGoTrueClient はGoTrueClientを生成する。
// mcがnilの場合はメトリクスを記録しない。
func NewGoTrueClient(cfg ClientConfig, mc metrics.MetricsCollector) *GoTrueClient {
	c := resty.New().
		SetBaseURL(cfg.BaseURL+apiPrefix).
		SetHeader("apikey", cfg.AnonKey).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}

	return &GoTrueClient{
		http:    c,
		metrics: metrics.OrNop(mc),
		now:     time.Now,
	}
}

// tokenResponse はトークン発行エンドポイントのレスポンス。
type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SignInWithPassword はメールアドレスとパスワードでセッションを発行する。
func (c *GoTrueClient) SignInWithPassword(ctx context.Context, email, password string) (*Grant, error) {
	return c.tokenGrant(ctx, opSignIn, "password", map[string]string{
		"email":    email,
		"password": password,
	})
}

// SignUp はユーザーを登録し、確認メールの送信をバックエンドに依頼する。
// 確認リンクはRedirectToに認可コードを付けて戻ってくる。
func (c *GoTrueClient) SignUp(ctx context.Context, p SignUpParams) error {
	body := map[string]string{
		"email":    p.Email,
		"password": p.Password,
	}
	if p.CodeChallenge != "" {
		body["code_challenge"] = p.CodeChallenge
		body["code_challenge_method"] = "s256"
	}

	req := c.http.R().SetContext(ctx).SetBody(body)
	if p.RedirectTo != "" {
		req.SetQueryParam("redirect_to", p.RedirectTo)
	}

	_, err := c.do(opSignUp, func() (*resty.Response, error) {
		return req.Post("/signup")
	})
	return err
}

// SignOut はアクセストークンに紐づくセッションを無効化する。
func (c *GoTrueClient) SignOut(ctx context.Context, accessToken string) error {
	_, err := c.do(opSignOut, func() (*resty.Response, error) {
		return c.http.R().SetContext(ctx).SetAuthToken(accessToken).Post("/logout")
	})
	return err
}

// GetUser はアクセストークンを検証し、その所有者を返す。
func (c *GoTrueClient) GetUser(ctx context.Context, accessToken string) (*model.User, error) {
	resp, err := c.do(opGetUser, func() (*resty.Response, error) {
		return c.http.R().SetContext(ctx).SetAuthToken(accessToken).Get("/user")
	})
	if err != nil {
		return nil, err
	}

	var u userResponse
	if err := json.Unmarshal(resp.Body(), &u); err != nil {
		return nil, fmt.Errorf("identity %s: decode response: %w", opGetUser, err)
	}
	if u.Email == "" {
		return nil, &BackendError{Op: opGetUser, Status: resp.StatusCode(), Message: "user has no email", kind: ErrInvalidSession}
	}
	return &model.User{ID: u.ID, Email: u.Email}, nil
}

// RefreshSession はリフレッシュトークンを使って新しいセッションを発行する。
// 成功時は古いリフレッシュトークンが無効になるため、返されたセッションを必ず保存すること。
func (c *GoTrueClient) RefreshSession(ctx context.Context, refreshToken string) (*Grant, error) {
	return c.tokenGrant(ctx, opRefresh, "refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
}

// ExchangeCodeForSession はメール確認で得た認可コードをセッションに交換する。
func (c *GoTrueClient) ExchangeCodeForSession(ctx context.Context, authCode, codeVerifier string) (*Grant, error) {
	return c.tokenGrant(ctx, opExchange, "pkce", map[string]string{
		"auth_code":     authCode,
		"code_verifier": codeVerifier,
	})
}

func (c *GoTrueClient) tokenGrant(ctx context.Context, op, grantType string, body map[string]string) (*Grant, error) {
	resp, err := c.do(op, func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetQueryParam("grant_type", grantType).
			SetBody(body).
			Post("/token")
	})
	if err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.Body(), &tr); err != nil {
		return nil, fmt.Errorf("identity %s: decode response: %w", op, err)
	}
	if tr.AccessToken == "" || tr.User.Email == "" {
		return nil, fmt.Errorf("identity %s: response has no session", op)
	}

	return &Grant{
		Session: model.Session{
			AccessToken:  tr.AccessToken,
			RefreshToken: tr.RefreshToken,
			ExpiresAt:    c.expiresAt(tr),
		},
		User: model.User{ID: tr.User.ID, Email: tr.User.Email},
	}, nil
}

func (c *GoTrueClient) expiresAt(tr tokenResponse) time.Time {
	if tr.ExpiresAt > 0 {
		return time.Unix(tr.ExpiresAt, 0)
	}
	if tr.ExpiresIn > 0 {
		return c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return time.Time{}
}

// do はリクエストを実行してレイテンシを記録し、2xx以外をBackendErrorに変換する。
func (c *GoTrueClient) do(op string, send func() (*resty.Response, error)) (*resty.Response, error) {
	start := time.Now()
	resp, err := send()
	c.metrics.RecordIdentityRequest(op, time.Since(start))

	if err != nil {
		return nil, fmt.Errorf("identity %s: %w", op, err)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, newBackendError(op, resp.StatusCode(), resp.Body())
	}
	return resp, nil
}
