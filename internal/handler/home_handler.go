package handler

import (
	"net/http"

	"github.com/hitoshi/helpdesk/internal/auth"
	"github.com/hitoshi/helpdesk/internal/view"
)

// HomeHandler はダッシュボードとエラーページのHTTPハンドラー。
type HomeHandler struct {
	views *view.Renderer
}

// NewHomeHandler はHomeHandlerを生成する。
func NewHomeHandler(views *view.Renderer) *HomeHandler {
	return &HomeHandler{views: views}
}

// Dashboard はダッシュボードを表示する。未ログインの場合はログインページへリダイレクトする。
// GET /
func (h *HomeHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if auth.UserFromContext(r.Context()) == nil {
		seeOther(w, r, "/login")
		return
	}
	h.views.Render(w, http.StatusOK, view.PageDashboard, newPage(r, "Dashboard", view.NavDashboard))
}

// NotFound は404ページを表示する。
func (h *HomeHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.views.Render(w, http.StatusNotFound, view.PageNotFound, newPage(r, "Not Found", ""))
}

// InternalError は500ページを表示する。パニックからの復帰時にも使用する。
func (h *HomeHandler) InternalError(w http.ResponseWriter, r *http.Request) {
	h.views.Render(w, http.StatusInternalServerError, view.PageError, newPage(r, "Error", ""))
}
