// Package auth はセッションの解決、ローテーション、Cookieへの保存を提供する。
//
// ユーザーの識別は常に認証バックエンドへの問い合わせで行い、
// クライアントから送られた値を信用しない。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt"

	"github.com/hitoshi/helpdesk/internal/identity"
	"github.com/hitoshi/helpdesk/internal/model"
)

// ErrNoSession はリクエストにセッションCookieが存在しないことを示す。
var ErrNoSession = errors.New("auth: no session")

// expirySkew はアクセストークンの期限切れ判定に使う余裕時間。
const expirySkew = 10 * time.Second

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	backend identity.Backend
	now     func() time.Time
}

// NewService はServiceを生成する。
func NewService(backend identity.Backend) *Service {
	return &Service{
		backend: backend,
		now:     time.Now,
	}
}

// SignIn はメールアドレスとパスワードでログインする。
func (s *Service) SignIn(ctx context.Context, email, password string) (*identity.Grant, error) {
	grant, err := s.backend.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	slog.Info("user signed in", slog.String("user_email", grant.User.Email))
	return grant, nil
}

// SignUp はユーザー登録を行い、コールバックで使うPKCEのcode_verifierを返す。
// 呼び出し側はverifierをHttpOnly Cookieに保存する。
func (s *Service) SignUp(ctx context.Context, email, password, redirectTo string) (string, error) {
	verifier, err := identity.NewCodeVerifier()
	if err != nil {
		return "", err
	}

	err = s.backend.SignUp(ctx, identity.SignUpParams{
		Email:         email,
		Password:      password,
		RedirectTo:    redirectTo,
		CodeChallenge: identity.CodeChallenge(verifier),
	})
	if err != nil {
		return "", fmt.Errorf("sign up: %w", err)
	}
	slog.Info("user signed up", slog.String("user_email", email))
	return verifier, nil
}

// SignOut はバックエンド上のセッションを無効化する。
// トークンがすでに無効な場合は成功として扱う。
func (s *Service) SignOut(ctx context.Context, session model.Session) error {
	if session.AccessToken == "" {
		return nil
	}
	if err := s.backend.SignOut(ctx, session.AccessToken); err != nil && !errors.Is(err, identity.ErrInvalidSession) {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// ExchangeCode はメール確認リンクの認可コードをセッションに交換する。
func (s *Service) ExchangeCode(ctx context.Context, code, verifier string) (*identity.Grant, error) {
	grant, err := s.backend.ExchangeCodeForSession(ctx, code, verifier)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return grant, nil
}

// Resolve はセッションの所有者をバックエンドに問い合わせて返す。
//
// アクセストークンが期限切れ、またはバックエンドに拒否された場合は
// リフレッシュトークンでローテーションし、新しいセッションを2番目の戻り値で返す。
// ローテーションが発生しなかった場合、2番目の戻り値はnil。
//
// バックエンドがトークンを明示的に拒否した場合はidentity.ErrInvalidSessionを返す。
// 通信エラーなどそれ以外のエラーではセッションを破棄してはならない。
func (s *Service) Resolve(ctx context.Context, session model.Session) (*model.User, *model.Session, error) {
	if session.IsZero() {
		return nil, nil, ErrNoSession
	}

	if session.AccessToken != "" && !s.accessTokenExpired(session.AccessToken) {
		user, err := s.backend.GetUser(ctx, session.AccessToken)
		if err == nil {
			return user, nil, nil
		}
		if !errors.Is(err, identity.ErrInvalidSession) || session.RefreshToken == "" {
			return nil, nil, err
		}
	}

	if session.RefreshToken == "" {
		return nil, nil, identity.ErrInvalidSession
	}

	grant, err := s.backend.RefreshSession(ctx, session.RefreshToken)
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("session rotated", slog.String("user_email", grant.User.Email))
	return &grant.User, &grant.Session, nil
}

// accessTokenExpired はJWTのexpクレームを署名検証せずに読み、期限切れかを判定する。
// 判定はリフレッシュを先に行うかどうかの最適化にのみ使い、認可には使わない。
// 解析できないトークンは期限内として扱い、検証をバックエンドに任せる。
func (s *Service) accessTokenExpired(token string) bool {
	claims := &jwt.StandardClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == 0 {
		return false
	}
	return !s.now().Add(expirySkew).Before(time.Unix(claims.ExpiresAt, 0))
}
