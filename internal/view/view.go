// Package view はHTMLテンプレートの描画と静的ファイルの配信を提供する。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/helpdesk/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// 描画可能なページ名
const (
	PageDashboard     = "dashboard"
	PageLogin         = "login"
	PageSignup        = "signup"
	PageVerify        = "verify"
	PageAuthCodeError = "auth_code_error"
	PageTickets       = "tickets"
	PageTicket        = "ticket"
	PageTicketCreate  = "ticket_create"
	PageTicketEdit    = "ticket_edit"
	PageUnauthorized  = "unauthorized"
	PageNotFound      = "not_found"
	PageError         = "error"
)

var pages = []string{
	PageDashboard,
	PageLogin,
	PageSignup,
	PageVerify,
	PageAuthCodeError,
	PageTickets,
	PageTicket,
	PageTicketCreate,
	PageTicketEdit,
	PageUnauthorized,
	PageNotFound,
	PageError,
}

// ナビゲーションのアクティブ表示に使うセクション名
const (
	NavDashboard = "dashboard"
	NavTickets   = "tickets"
)

// BodyPreviewLength は一覧で表示する本文の最大文字数（ルーン数）。
const BodyPreviewLength = 200

// Page はすべてのページに共通する描画データ。
type Page struct {
	Title     string
	Active    string
	User      *model.User
	CSRFToken string
	Error     *model.APIError
	Data      any
}

// TicketForm は作成・編集フォームの描画データ。
type TicketForm struct {
	ID       string
	Title    string
	Body     string
	Priority string
}

// AuthForm はログイン・サインアップフォームの描画データ。
type AuthForm struct {
	Email string
}

// TicketDetail は詳細ページの描画データ。
type TicketDetail struct {
	Ticket  *model.Ticket
	CanEdit bool
}

// Renderer はページごとにパース済みのテンプレートを保持する。
type Renderer struct {
	pages map[string]*template.Template
}

// New は埋め込みテンプレートをパースしてRendererを生成する。
func New() (*Renderer, error) {
	base, err := template.New("layout.html").Funcs(funcMap()).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("レイアウトテンプレートのパースに失敗しました: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("テンプレートの複製に失敗しました: %w", err)
		}
		if _, err := t.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("テンプレート %s のパースに失敗しました: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render はページをバッファに描画してからステータスコードとともに書き込む。
// 描画に失敗した場合は500を返す。
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data Page) {
	t, ok := r.pages[page]
	if !ok {
		slog.Error("unknown page", slog.String("page", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("failed to write response",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
	}
}

// StaticHandler は埋め込みの静的ファイルを配信するハンドラーを返す。
// /static/ 配下にマウントする。
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"truncate":   Truncate,
		"priorities": model.Priorities,
		"date": func(t time.Time) string {
			return t.Format("Jan 2, 2006 15:04")
		},
	}
}

// Truncate はsをn文字（ルーン数）に切り詰める。切り詰めた場合のみ末尾に "..." を付ける。
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
