// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/helpdesk/internal/model"
)

// OwnerScope は所有者確認済みの変更対象を表す。
// 更新と削除は常にIDと所有者メールアドレスの両方で絞り込む。
type OwnerScope struct {
	TicketID   string
	OwnerEmail string
}

// TicketChanges は更新可能なチケットのフィールド。
// owner_emailは含まない。
type TicketChanges struct {
	Title     string
	Body      string
	Priority  model.Priority
	UpdatedAt time.Time
}

// TicketRepository はチケットデータの永続化インターフェース。
// すべての操作は閲覧者のメールアドレスを行レベルセキュリティに渡したトランザクション内で実行される。
type TicketRepository interface {
	// List は閲覧者に見えるチケットを作成日時の降順で返す。
	List(ctx context.Context, viewerEmail string) ([]*model.Ticket, error)

	// FindByID は指定IDのチケットを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, viewerEmail, id string) (*model.Ticket, error)

	// Create はチケットを作成する。閲覧者はticket.OwnerEmailとして扱う。
	Create(ctx context.Context, ticket *model.Ticket) error

	// Update はscopeに一致する行を更新し、一致した行があったかを返す。
	Update(ctx context.Context, scope OwnerScope, changes TicketChanges) (bool, error)

	// Delete はscopeに一致する行を削除し、一致した行があったかを返す。
	Delete(ctx context.Context, scope OwnerScope) (bool, error)
}
