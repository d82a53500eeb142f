// Package cache はチケット一覧・詳細ビューのキャッシュを提供する。
//
// キャッシュは認証済み閲覧者の間で共有される。行レベルセキュリティの閲覧ポリシーが
// 認証済みユーザー全員に同じ行集合を見せるため、閲覧者ごとに分ける必要はない。
// 匿名の閲覧者はキャッシュを経由しない。
package cache

import (
	"context"
	"strconv"

	"github.com/hitoshi/helpdesk/internal/model"
)

// ビュー名。メトリクスのラベルに使用する。
const (
	ViewList   = "list"
	ViewDetail = "detail"
)

const (
	generationKey   = "tickets:generation"
	keyPrefix       = "tickets:"
	listSuffix      = ":list"
	detailKeyMiddle = ":detail:"
)

// ListKey は指定世代のチケット一覧ビューのキャッシュキーを返す。
func ListKey(gen int64) string {
	return keyPrefix + strconv.FormatInt(gen, 10) + listSuffix
}

// DetailKey は指定世代のチケット詳細ビューのキャッシュキーを返す。
func DetailKey(gen int64, id string) string {
	return keyPrefix + strconv.FormatInt(gen, 10) + detailKeyMiddle + id
}

// ViewCache はチケットビューのキャッシュ操作を定義する。
//
// ビューは世代ごとに保存される。読み出し側はDBを参照する前にGenerationで世代を取得し、
// 同じ世代でGetとSetを行う。Setは保存時点の世代が一致する場合のみ書き込むため、
// 読み出し中に変更が確定した場合の古いスナップショットは保存されない。
// 読み出しの失敗はミスとして扱う。
type ViewCache interface {
	// Generation は現在の世代を返す。取得できない場合はfalseを返し、呼び出し側はキャッシュを使わない。
	Generation(ctx context.Context) (int64, bool)
	GetList(ctx context.Context, gen int64) ([]*model.Ticket, bool)
	SetList(ctx context.Context, gen int64, tickets []*model.Ticket)
	GetDetail(ctx context.Context, gen int64, id string) (*model.Ticket, bool)
	SetDetail(ctx context.Context, gen int64, ticket *model.Ticket)
	// Invalidate は世代を進め、それ以前に保存されたビューをすべて無効にする。
	Invalidate(ctx context.Context) error
}

// Nop はキャッシュを行わないViewCache。REDIS_ADDR未設定時に使用する。
type Nop struct{}

var _ ViewCache = Nop{}

func (Nop) Generation(context.Context) (int64, bool) { return 0, false }
func (Nop) GetList(context.Context, int64) ([]*model.Ticket, bool) { return nil, false }
func (Nop) SetList(context.Context, int64, []*model.Ticket) {}
func (Nop) GetDetail(context.Context, int64, string) (*model.Ticket, bool) { return nil, false }
func (Nop) SetDetail(context.Context, int64, *model.Ticket) {}
func (Nop) Invalidate(context.Context) error { return nil }
