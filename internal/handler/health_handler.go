package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// PingFunc はヘルスチェックで依存先の疎通を確認する関数。
type PingFunc func(ctx context.Context) error

// NewHealthHandler はデータベースの疎通を確認するヘルスチェックハンドラーを返す。
// pingがnilの場合は常に200を返す。
// GET /health
func NewHealthHandler(ping PingFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("unavailable"))
				return
			}
		}
		w.Write([]byte("ok"))
	}
}
