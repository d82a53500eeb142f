package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/helpdesk/internal/identity"
	"github.com/hitoshi/helpdesk/internal/metrics"
	"github.com/hitoshi/helpdesk/internal/model"
)

// SessionResolver はセッションから所有者を解決する。
type SessionResolver interface {
	Resolve(ctx context.Context, session model.Session) (*model.User, *model.Session, error)
}

// Result はリクエストごとのセッション解決結果。
type Result struct {
	User    *model.User
	Outcome string // metrics.Session* のいずれか
}

// Manager はリクエストのCookieからユーザーを解決し、必要に応じてCookieを更新する。
//
// wを渡した場合（正規モード）はローテーションされたセッションを
// 転送中のリクエストとレスポンスの両方に書き込み、無効と確定したセッションは削除する。
// wがnilの場合（ベストエフォートモード）はCookieを一切変更しない。
type Manager struct {
	resolver SessionResolver
	cookies  *CookieStore
}

// NewManager はManagerを生成する。
func NewManager(resolver SessionResolver, cookies *CookieStore) *Manager {
	return &Manager{resolver: resolver, cookies: cookies}
}

// Cookies はManagerが使用するCookieStoreを返す。
func (m *Manager) Cookies() *CookieStore {
	return m.cookies
}

// Authenticate はリクエストのユーザーを解決して返す。未ログインの場合はnilを返す。
func (m *Manager) Authenticate(w http.ResponseWriter, r *http.Request) *model.User {
	return m.Resolve(w, r).User
}

// Resolve はリクエストのユーザーを解決し、結果の分類とともに返す。
// 解決の失敗は呼び出し側にエラーとして伝えず、匿名として扱う。
func (m *Manager) Resolve(w http.ResponseWriter, r *http.Request) Result {
	session := m.cookies.Read(r)
	if session.IsZero() {
		return Result{Outcome: metrics.SessionAnonymous}
	}

	user, rotated, err := m.resolver.Resolve(r.Context(), session)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidSession) {
			if w != nil {
				m.cookies.Clear(w)
				m.cookies.ApplyToRequest(r, model.Session{})
			}
			return Result{Outcome: metrics.SessionCleared}
		}
		slog.Warn("session resolution failed", slog.String("error", err.Error()))
		return Result{Outcome: metrics.SessionAnonymous}
	}

	if rotated != nil {
		if w != nil {
			m.cookies.ApplyToRequest(r, *rotated)
			m.cookies.Write(w, *rotated)
		}
		return Result{User: user, Outcome: metrics.SessionRotated}
	}
	return Result{User: user, Outcome: metrics.SessionValid}
}
