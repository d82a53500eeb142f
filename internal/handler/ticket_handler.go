package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/helpdesk/internal/auth"
	"github.com/hitoshi/helpdesk/internal/model"
	"github.com/hitoshi/helpdesk/internal/ticket"
	"github.com/hitoshi/helpdesk/internal/view"
)

// TicketServiceInterface はチケットハンドラーが必要とするサービスインターフェース。
type TicketServiceInterface interface {
	List(ctx context.Context, viewer *model.User) ([]*model.Ticket, error)
	Get(ctx context.Context, viewer *model.User, id string) (*model.Ticket, error)
	Create(ctx context.Context, user *model.User, in ticket.Input) (*model.Ticket, error)
	Update(ctx context.Context, user *model.User, id string, in ticket.Input) error
	Delete(ctx context.Context, user *model.User, id string) error
}

var _ TicketServiceInterface = (*ticket.Service)(nil)

// TicketHandler はチケットの閲覧と変更のHTTPハンドラー。
//
// 閲覧はセッションミドルウェアが解決したユーザーを使い、
// 変更操作は実行直前にAuthenticatorで呼び出し元を再検証する。
type TicketHandler struct {
	service TicketServiceInterface
	authn   Authenticator
	views   *view.Renderer
}

// NewTicketHandler はTicketHandlerを生成する。
func NewTicketHandler(service TicketServiceInterface, authn Authenticator, views *view.Renderer) *TicketHandler {
	return &TicketHandler{
		service: service,
		authn:   authn,
		views:   views,
	}
}

// List はチケット一覧を表示する。
// GET /tickets
func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.service.List(r.Context(), auth.UserFromContext(r.Context()))
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	p := newPage(r, "Tickets", view.NavTickets)
	p.Data = tickets
	h.views.Render(w, http.StatusOK, view.PageTickets, p)
}

// Show はチケット詳細を表示する。削除・編集の操作は所有者にのみ表示する。
// GET /tickets/{id}
func (h *TicketHandler) Show(w http.ResponseWriter, r *http.Request) {
	viewer := auth.UserFromContext(r.Context())
	t, ok := h.find(w, r, viewer)
	if !ok {
		return
	}

	p := newPage(r, t.Title, view.NavTickets)
	p.Data = view.TicketDetail{Ticket: t, CanEdit: t.IsOwnedBy(viewer)}
	h.views.Render(w, http.StatusOK, view.PageTicket, p)
}

// CreateForm はチケット作成フォームを表示する。
// GET /tickets/create
func (h *TicketHandler) CreateForm(w http.ResponseWriter, r *http.Request) {
	p := newPage(r, "Create a Ticket", view.NavTickets)
	p.Data = view.TicketForm{Priority: string(model.PriorityLow)}
	h.views.Render(w, http.StatusOK, view.PageTicketCreate, p)
}

// Create はチケットを作成する。所有者はバックエンドで再検証したユーザーになり、
// フォームに含まれる所有者やメールアドレスのフィールドは参照しない。
// POST /tickets
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := h.authn.Authenticate(w, r)
	in := readTicketInput(r)

	if _, err := h.service.Create(r.Context(), user, in); err != nil {
		if errors.Is(err, ticket.ErrUnauthenticated) {
			err = model.NewUnauthenticatedError("create")
		}
		h.renderFormError(w, r, user, view.PageTicketCreate, "Create a Ticket", toForm("", in), err)
		return
	}

	seeOther(w, r, "/tickets")
}

// EditForm は現在の値を入力済みの編集フォームを表示する。
// 所有者以外には権限がない旨のページを表示する。
// GET /tickets/{id}/edit
func (h *TicketHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	viewer := auth.UserFromContext(r.Context())
	t, ok := h.find(w, r, viewer)
	if !ok {
		return
	}

	if !t.IsOwnedBy(viewer) {
		h.views.Render(w, http.StatusForbidden, view.PageUnauthorized, newPage(r, "Unauthorized", view.NavTickets))
		return
	}

	p := newPage(r, "Edit Ticket", view.NavTickets)
	p.Data = view.TicketForm{ID: t.ID, Title: t.Title, Body: t.Body, Priority: string(t.Priority)}
	h.views.Render(w, http.StatusOK, view.PageTicketEdit, p)
}

// Update はチケットを更新する。
// 対象が存在しない場合と所有者でない場合は、成功時と同じく一覧へ遷移する。
// POST /tickets/{id}/edit
func (h *TicketHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user := h.authn.Authenticate(w, r)
	in := readTicketInput(r)

	err := h.service.Update(r.Context(), user, id, in)
	switch {
	case err == nil, errors.Is(err, ticket.ErrNoMatchingTicket):
		seeOther(w, r, "/tickets")
	case errors.Is(err, ticket.ErrUnauthenticated):
		h.renderFormError(w, r, user, view.PageTicketEdit, "Edit Ticket", toForm(id, in), model.NewUnauthenticatedError("update"))
	default:
		h.renderFormError(w, r, user, view.PageTicketEdit, "Edit Ticket", toForm(id, in), err)
	}
}

// Delete はチケットを削除する。
// 未ログイン、対象なし、所有者でない場合はいずれも何もせず一覧へ遷移する。
// POST /tickets/{id}/delete
func (h *TicketHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user := h.authn.Authenticate(w, r)

	err := h.service.Delete(r.Context(), user, id)
	if err != nil && !errors.Is(err, ticket.ErrNoMatchingTicket) && !errors.Is(err, ticket.ErrUnauthenticated) {
		h.internalError(w, r, err)
		return
	}
	seeOther(w, r, "/tickets")
}

// find はURLのIDでチケットを取得する。見つからない場合は404ページを描画しfalseを返す。
func (h *TicketHandler) find(w http.ResponseWriter, r *http.Request, viewer *model.User) (*model.Ticket, bool) {
	t, err := h.service.Get(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		h.internalError(w, r, err)
		return nil, false
	}
	if t == nil {
		p := newPage(r, "Not Found", view.NavTickets)
		p.Error = model.NewTicketNotFoundError()
		h.views.Render(w, http.StatusNotFound, view.PageNotFound, p)
		return nil, false
	}
	return t, true
}

// renderFormError は入力値を保持したままフォームを再描画する。
// *model.APIError以外のエラーは500ページとして扱う。
func (h *TicketHandler) renderFormError(w http.ResponseWriter, r *http.Request, user *model.User, page, title string, form view.TicketForm, err error) {
	apiErr, ok := asAPIError(err)
	if !ok {
		h.internalError(w, r, err)
		return
	}

	p := newPage(r, title, view.NavTickets)
	// 再検証の結果をナビゲーションにも反映する
	p.User = user
	p.Data = form
	p.Error = apiErr
	h.views.Render(w, errorStatus(apiErr), page, p)
}

func (h *TicketHandler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("ticket request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	h.views.Render(w, http.StatusInternalServerError, view.PageError, newPage(r, "Error", ""))
}

// readTicketInput はフォームからチケットの入力値を読み取る。
// 所有者を表すフィールドは読み取らない。
func readTicketInput(r *http.Request) ticket.Input {
	return ticket.Input{
		Title:    r.PostFormValue("title"),
		Body:     r.PostFormValue("body"),
		Priority: r.PostFormValue("priority"),
	}
}

func toForm(id string, in ticket.Input) view.TicketForm {
	return view.TicketForm{ID: id, Title: in.Title, Body: in.Body, Priority: in.Priority}
}
