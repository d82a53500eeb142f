// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"net/http"
	"path"
	"strings"

	"github.com/hitoshi/helpdesk/internal/auth"
	"github.com/hitoshi/helpdesk/internal/metrics"
)

// SessionResolver はリクエストのCookieからユーザーを解決する。
// auth.Managerが実装する。
type SessionResolver interface {
	Resolve(w http.ResponseWriter, r *http.Request) auth.Result
}

// publicPrefixes はセッション解決を行わないパスの接頭辞。
var publicPrefixes = []string{"/static/", "/auth/"}

// imageExts はセッション解決を行わない画像ファイルの拡張子。
var imageExts = map[string]bool{
	".svg":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// SkipSession はパスがセッション解決の対象外かどうかを返す。
func SkipSession(p string) bool {
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	if p == "/favicon.ico" {
		return true
	}
	return imageExts[strings.ToLower(path.Ext(p))]
}

// NewSessionMiddleware はリクエストごとにセッションを検証・更新するゲートウェイを返す。
//
// セッションがローテーションされた場合、新しいCookieは後続ハンドラーの呼び出し前に
// 転送中のリクエストとレスポンスの両方へ書き込まれる。
// 検証に失敗したリクエストは拒否せず、匿名として後続に渡す。
func NewSessionMiddleware(resolver SessionResolver, mc metrics.MetricsCollector) func(next http.Handler) http.Handler {
	mc = metrics.OrNop(mc)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if SkipSession(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			res := resolver.Resolve(w, r)
			mc.RecordSessionResolution(res.Outcome)

			if res.User != nil {
				setLogUser(r.Context(), res.User.Email)
				r = r.WithContext(auth.ContextWithUser(r.Context(), res.User))
			}
			next.ServeHTTP(w, r)
		})
	}
}
