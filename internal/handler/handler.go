// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"errors"
	"net/http"

	"github.com/hitoshi/helpdesk/internal/auth"
	"github.com/hitoshi/helpdesk/internal/middleware"
	"github.com/hitoshi/helpdesk/internal/model"
	"github.com/hitoshi/helpdesk/internal/view"
)

// Authenticator は変更操作の直前に呼び出し元を再検証する。
// auth.Managerが実装する。
type Authenticator interface {
	// Authenticate はバックエンドに問い合わせてユーザーを解決する。
	// ローテーションしたセッションはwに書き込まれる。未ログインの場合はnilを返す。
	Authenticate(w http.ResponseWriter, r *http.Request) *model.User
	Cookies() *auth.CookieStore
}

// newPage はリクエストコンテキストのユーザーとCSRFトークンを設定したページデータを返す。
func newPage(r *http.Request, title, active string) view.Page {
	return view.Page{
		Title:     title,
		Active:    active,
		User:      auth.UserFromContext(r.Context()),
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
	}
}

// errorStatus はAPIErrorのカテゴリからフォーム再描画時のステータスコードを決める。
func errorStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthenticated, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeValidationFailed, model.ErrCodeSignUpFailed:
		return http.StatusUnprocessableEntity
	case model.ErrCodeCreateFailed, model.ErrCodeUpdateFailed, model.ErrCodeIdentityDown:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// asAPIError はerrが*model.APIErrorであれば取り出す。
func asAPIError(err error) (*model.APIError, bool) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// seeOther は303 See Otherでリダイレクトする。フォーム送信後の遷移に使う。
func seeOther(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}
