package auth

import (
	"context"

	"github.com/hitoshi/helpdesk/internal/model"
)

type contextKey string

const userKey contextKey = "user"

// ContextWithUser はコンテキストに解決済みユーザーを設定する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext はコンテキストから解決済みユーザーを取得する。
// 未ログインの場合はnilを返す。
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(userKey).(*model.User)
	return user
}
