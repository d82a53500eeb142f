package ticket

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hitoshi/helpdesk/internal/model"
	"github.com/hitoshi/helpdesk/internal/repository"
)

const validTicketID = "0b7c1b9e-5d0f-4c63-9a55-2f7f3b8e6a11"

func TestGuard_Authorize(t *testing.T) {
	tests := []struct {
		name      string
		user      *model.User
		id        string
		wantScope repository.OwnerScope
		wantErr   error
	}{
		{
			name:    "未ログインの場合はErrUnauthenticated",
			user:    nil,
			id:      validTicketID,
			wantErr: ErrUnauthenticated,
		},
		{
			name:    "メールアドレスが空の場合はErrUnauthenticated",
			user:    &model.User{ID: "u-1"},
			id:      validTicketID,
			wantErr: ErrUnauthenticated,
		},
		{
			name:    "IDの形式が不正な場合はErrNoMatchingTicket",
			user:    &model.User{ID: "u-1", Email: "alice@example.com"},
			id:      "not-a-uuid",
			wantErr: ErrNoMatchingTicket,
		},
		{
			name:      "所有者メールアドレスで絞り込んだスコープを返す",
			user:      &model.User{ID: "u-1", Email: "alice@example.com"},
			id:        validTicketID,
			wantScope: repository.OwnerScope{TicketID: validTicketID, OwnerEmail: "alice@example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope, err := Guard{}.Authorize(tt.user, tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, repository.OwnerScope{}, scope)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantScope, scope)
		})
	}
}

func TestGuard_AuthorizeCreate(t *testing.T) {
	tests := []struct {
		name      string
		user      *model.User
		wantOwner string
		wantErr   error
	}{
		{name: "未ログインの場合はErrUnauthenticated", user: nil, wantErr: ErrUnauthenticated},
		{name: "メールアドレスが空の場合はErrUnauthenticated", user: &model.User{ID: "u-1"}, wantErr: ErrUnauthenticated},
		{name: "所有者はユーザーのメールアドレス", user: &model.User{ID: "u-1", Email: "alice@example.com"}, wantOwner: "alice@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, err := Guard{}.AuthorizeCreate(tt.user)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, owner)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantOwner, owner)
		})
	}
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID(validTicketID))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("123"))
	assert.False(t, ValidID("../etc/passwd"))
}
