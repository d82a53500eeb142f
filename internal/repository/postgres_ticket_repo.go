package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/helpdesk/internal/model"
)

// PostgresTicketRepo はPostgreSQLを使用したチケットリポジトリ。
type PostgresTicketRepo struct {
	db *sql.DB
}

// NewPostgresTicketRepo はPostgresTicketRepoを生成する。
func NewPostgresTicketRepo(db *sql.DB) *PostgresTicketRepo {
	return &PostgresTicketRepo{db: db}
}

var _ TicketRepository = (*PostgresTicketRepo)(nil)

const ticketColumns = `id, title, body, priority, owner_email, created_at, updated_at`

// List は閲覧者に見えるチケットを作成日時の降順で返す。
func (r *PostgresTicketRepo) List(ctx context.Context, viewerEmail string) ([]*model.Ticket, error) {
	var tickets []*model.Ticket
	err := withViewer(ctx, r.db, viewerEmail, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+ticketColumns+` FROM tickets ORDER BY created_at DESC`,
		)
		if err != nil {
			return fmt.Errorf("チケット一覧の取得に失敗しました: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			t := &model.Ticket{}
			if err := scanTicket(rows, t); err != nil {
				return fmt.Errorf("チケット行の読み取りに失敗しました: %w", err)
			}
			tickets = append(tickets, t)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("チケット一覧の走査に失敗しました: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// FindByID は指定IDのチケットを取得する。見つからない場合はnilを返す。
func (r *PostgresTicketRepo) FindByID(ctx context.Context, viewerEmail, id string) (*model.Ticket, error) {
	var ticket *model.Ticket
	err := withViewer(ctx, r.db, viewerEmail, func(tx *sql.Tx) error {
		t := &model.Ticket{}
		err := scanTicket(tx.QueryRowContext(ctx,
			`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`,
			id,
		), t)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("チケットの取得に失敗しました: %w", err)
		}
		ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// Create はチケットを作成する。
func (r *PostgresTicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	return withViewer(ctx, r.db, t.OwnerEmail, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tickets (`+ticketColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			t.ID, t.Title, t.Body, string(t.Priority), t.OwnerEmail, t.CreatedAt, t.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("チケットの作成に失敗しました: %w", err)
		}
		return nil
	})
}

// Update はscopeに一致する行のtitle、body、priorityを更新する。
// owner_emailは更新対象に含めない。
func (r *PostgresTicketRepo) Update(ctx context.Context, scope OwnerScope, c TicketChanges) (bool, error) {
	var matched bool
	err := withViewer(ctx, r.db, scope.OwnerEmail, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE tickets SET title = $1, body = $2, priority = $3, updated_at = $4
			 WHERE id = $5 AND owner_email = $6`,
			c.Title, c.Body, string(c.Priority), c.UpdatedAt, scope.TicketID, scope.OwnerEmail,
		)
		if err != nil {
			return fmt.Errorf("チケットの更新に失敗しました: %w", err)
		}
		matched, err = rowsMatched(result)
		return err
	})
	return matched, err
}

// Delete はscopeに一致する行を削除する。
func (r *PostgresTicketRepo) Delete(ctx context.Context, scope OwnerScope) (bool, error) {
	var matched bool
	err := withViewer(ctx, r.db, scope.OwnerEmail, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM tickets WHERE id = $1 AND owner_email = $2`,
			scope.TicketID, scope.OwnerEmail,
		)
		if err != nil {
			return fmt.Errorf("チケットの削除に失敗しました: %w", err)
		}
		matched, err = rowsMatched(result)
		return err
	})
	return matched, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(s rowScanner, t *model.Ticket) error {
	var priority string
	if err := s.Scan(&t.ID, &t.Title, &t.Body, &priority, &t.OwnerEmail, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return err
	}
	t.Priority = model.Priority(priority)
	return nil
}

func rowsMatched(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("影響行数の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}
