// Package ticket はチケットの閲覧と所有者限定の変更操作を提供する。
package ticket

import (
	"errors"

	"github.com/google/uuid"

	"github.com/hitoshi/helpdesk/internal/model"
	"github.com/hitoshi/helpdesk/internal/repository"
)

var (
	// ErrUnauthenticated は変更操作の呼び出し元が未ログインであることを示す。
	ErrUnauthenticated = errors.New("ticket: unauthenticated")

	// ErrNoMatchingTicket は変更対象が存在しないか、呼び出し元の所有でないことを示す。
	// 2つの状況は意図的に区別しない。
	ErrNoMatchingTicket = errors.New("ticket: no matching ticket")
)

// Guard は作成、更新、削除の認可チェックを行う。
// 呼び出し元の識別はサーバー側で解決したUserのみから行う。
type Guard struct{}

// AuthorizeCreate は作成するチケットの所有者メールアドレスを返す。
// 未ログインの場合はErrUnauthenticatedを返す。
func (Guard) AuthorizeCreate(user *model.User) (string, error) {
	if user == nil || user.Email == "" {
		return "", ErrUnauthenticated
	}
	return user.Email, nil
}

// Authorize は所有者で絞り込んだ変更スコープを返す。
// 未ログインの場合はErrUnauthenticated、IDの形式が不正な場合はErrNoMatchingTicketを返す。
// 所有者が一致するかの判定はスコープを使ったデータベース側の条件で行う。
func (Guard) Authorize(user *model.User, ticketID string) (repository.OwnerScope, error) {
	if user == nil || user.Email == "" {
		return repository.OwnerScope{}, ErrUnauthenticated
	}
	if !ValidID(ticketID) {
		return repository.OwnerScope{}, ErrNoMatchingTicket
	}
	return repository.OwnerScope{TicketID: ticketID, OwnerEmail: user.Email}, nil
}

// ValidID はチケットIDがUUID形式であるかを返す。
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
