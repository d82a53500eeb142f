// Package model はドメインモデルを定義する。
package model

import "time"

// Priority はチケットの優先度を表す。
type Priority string

const (
	// PriorityLow は低優先度。
	PriorityLow Priority = "low"
	// PriorityMedium は中優先度。
	PriorityMedium Priority = "medium"
	// PriorityHigh は高優先度。
	PriorityHigh Priority = "high"
)

// Priorities はフォームの選択肢として表示する順序で優先度を返す。
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh}
}

// Valid は定義済みの優先度かどうかを返す。
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Ticket はサポートチケットを表す。
// OwnerEmailは作成時にサーバー側で解決したユーザーのメールアドレスで、以後変更されない。
type Ticket struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Priority   Priority  `json:"priority"`
	OwnerEmail string    `json:"owner_email"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsOwnedBy は指定ユーザーがチケットの所有者かどうかを返す。
// 表示制御用であり、変更操作の認可はリポジトリの複合条件で行う。
func (t *Ticket) IsOwnedBy(user *User) bool {
	if t == nil || user == nil || user.Email == "" {
		return false
	}
	return t.OwnerEmail == user.Email
}
