package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/helpdesk/internal/cache"
	"github.com/hitoshi/helpdesk/internal/metrics"
	"github.com/hitoshi/helpdesk/internal/model"
	"github.com/hitoshi/helpdesk/internal/repository"
	"github.com/hitoshi/helpdesk/internal/security"
)

// 操作名。メトリクスのラベルに使用する。
const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// Service はチケットのサービス層。
// 閲覧はビューキャッシュを経由し、変更は成功時にキャッシュの世代を進める。
type Service struct {
	repo      repository.TicketRepository
	views     cache.ViewCache
	sanitizer security.TextSanitizer
	guard     Guard
	metrics   metrics.MetricsCollector
	now       func() time.Time
	newID     func() string

	// pendingInvalidations は失敗したキャッシュ破棄の回数。
	// 0でない間はキャッシュを使わず、破棄をやり直して成功した時点で0に戻す。
	pendingInvalidations atomic.Int64
}

// NewService はServiceの新しいインスタンスを生成する。
// viewsとmcはnilを許容する。
func NewService(
	repo repository.TicketRepository,
	views cache.ViewCache,
	sanitizer security.TextSanitizer,
	mc metrics.MetricsCollector,
) *Service {
	if views == nil {
		views = cache.Nop{}
	}
	return &Service{
		repo:      repo,
		views:     views,
		sanitizer: sanitizer,
		metrics:   metrics.OrNop(mc),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// List は閲覧者に見えるチケットを新しい順に返す。
// 匿名の閲覧者はキャッシュを経由せず、行レベルセキュリティにより常に空になる。
func (s *Service) List(ctx context.Context, viewer *model.User) ([]*model.Ticket, error) {
	email := viewerEmail(viewer)
	gen, cached := s.cacheGeneration(ctx, email)
	if cached {
		if tickets, ok := s.views.GetList(ctx, gen); ok {
			return tickets, nil
		}
	}

	tickets, err := s.repo.List(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("チケット一覧の取得に失敗しました: %w", err)
	}

	if cached {
		s.views.SetList(ctx, gen, tickets)
	}
	return tickets, nil
}

// Get は指定IDのチケットを返す。見つからない場合、またはIDの形式が不正な場合はnilを返す。
func (s *Service) Get(ctx context.Context, viewer *model.User, id string) (*model.Ticket, error) {
	if !ValidID(id) {
		return nil, nil
	}

	email := viewerEmail(viewer)
	gen, cached := s.cacheGeneration(ctx, email)
	if cached {
		if t, ok := s.views.GetDetail(ctx, gen, id); ok {
			return t, nil
		}
	}

	t, err := s.repo.FindByID(ctx, email, id)
	if err != nil {
		return nil, fmt.Errorf("チケットの取得に失敗しました: %w", err)
	}

	if t != nil && cached {
		s.views.SetDetail(ctx, gen, t)
	}
	return t, nil
}

// Create はチケットを作成する。所有者は常にuserのメールアドレスになる。
func (s *Service) Create(ctx context.Context, user *model.User, in Input) (*model.Ticket, error) {
	owner, err := s.guard.AuthorizeCreate(user)
	if err != nil {
		s.recordGuardFailure(opCreate, err)
		return nil, err
	}

	in = in.normalize(s.sanitizer)
	if err := in.Validate(); err != nil {
		s.metrics.RecordTicketMutation(opCreate, metrics.OutcomeInvalid)
		return nil, err
	}

	now := s.now()
	t := &model.Ticket{
		ID:         s.newID(),
		Title:      in.Title,
		Body:       in.Body,
		Priority:   model.Priority(in.Priority),
		OwnerEmail: owner,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		slog.Error("ticket create rejected",
			slog.String("user_email", owner),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordTicketMutation(opCreate, metrics.OutcomeRejected)
		return nil, model.NewCreateFailedError(repository.RejectionReason(err))
	}

	s.invalidate(ctx)
	s.metrics.RecordTicketMutation(opCreate, metrics.OutcomeApplied)
	slog.Info("ticket created",
		slog.String("ticket_id", t.ID),
		slog.String("user_email", owner),
	)
	return t, nil
}

// Update はuserが所有するチケットのtitle、body、priorityを更新する。
// 対象が存在しない場合と所有者でない場合はともにErrNoMatchingTicketを返す。
func (s *Service) Update(ctx context.Context, user *model.User, id string, in Input) error {
	scope, err := s.guard.Authorize(user, id)
	if err != nil {
		s.recordGuardFailure(opUpdate, err)
		return err
	}

	in = in.normalize(s.sanitizer)
	if err := in.Validate(); err != nil {
		s.metrics.RecordTicketMutation(opUpdate, metrics.OutcomeInvalid)
		return err
	}

	matched, err := s.repo.Update(ctx, scope, repository.TicketChanges{
		Title:     in.Title,
		Body:      in.Body,
		Priority:  model.Priority(in.Priority),
		UpdatedAt: s.now(),
	})
	if err != nil {
		slog.Error("ticket update rejected",
			slog.String("ticket_id", id),
			slog.String("user_email", user.Email),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordTicketMutation(opUpdate, metrics.OutcomeRejected)
		return model.NewUpdateFailedError(repository.RejectionReason(err))
	}
	if !matched {
		s.metrics.RecordTicketMutation(opUpdate, metrics.OutcomeNoMatch)
		return ErrNoMatchingTicket
	}

	s.invalidate(ctx)
	s.metrics.RecordTicketMutation(opUpdate, metrics.OutcomeApplied)
	slog.Info("ticket updated",
		slog.String("ticket_id", id),
		slog.String("user_email", user.Email),
	)
	return nil
}

// Delete はuserが所有するチケットを削除する。
// 対象が存在しない場合と所有者でない場合はともにErrNoMatchingTicketを返す。
func (s *Service) Delete(ctx context.Context, user *model.User, id string) error {
	scope, err := s.guard.Authorize(user, id)
	if err != nil {
		s.recordGuardFailure(opDelete, err)
		return err
	}

	matched, err := s.repo.Delete(ctx, scope)
	if err != nil {
		s.metrics.RecordTicketMutation(opDelete, metrics.OutcomeBackendErr)
		return fmt.Errorf("チケットの削除に失敗しました: %w", err)
	}
	if !matched {
		s.metrics.RecordTicketMutation(opDelete, metrics.OutcomeNoMatch)
		return ErrNoMatchingTicket
	}

	s.invalidate(ctx)
	s.metrics.RecordTicketMutation(opDelete, metrics.OutcomeApplied)
	slog.Info("ticket deleted",
		slog.String("ticket_id", id),
		slog.String("user_email", user.Email),
	)
	return nil
}

func (s *Service) recordGuardFailure(op string, err error) {
	outcome := metrics.OutcomeNoMatch
	if errors.Is(err, ErrUnauthenticated) {
		outcome = metrics.OutcomeAnonymous
	}
	s.metrics.RecordTicketMutation(op, outcome)
}

// invalidate は変更成功後にビューキャッシュの世代を進める。
// 失敗した場合、以後の閲覧は破棄のやり直しが成功するまでキャッシュを使わない。
func (s *Service) invalidate(ctx context.Context) {
	if err := s.views.Invalidate(ctx); err != nil {
		s.pendingInvalidations.Add(1)
		slog.Warn("view cache invalidation failed, bypassing cache until it succeeds",
			slog.String("error", err.Error()),
		)
	}
}

// cacheGeneration は閲覧に使うキャッシュの世代を返す。キャッシュを使えない場合はfalseを返す。
// 匿名の閲覧者はキャッシュを使わない。
func (s *Service) cacheGeneration(ctx context.Context, email string) (int64, bool) {
	if email == "" {
		return 0, false
	}
	if pending := s.pendingInvalidations.Load(); pending != 0 {
		if err := s.views.Invalidate(ctx); err != nil {
			return 0, false
		}
		// 再試行中に新たな失敗が記録された場合は保留のままにする
		if !s.pendingInvalidations.CompareAndSwap(pending, 0) {
			return 0, false
		}
		slog.Info("view cache invalidation recovered")
	}
	return s.views.Generation(ctx)
}

func viewerEmail(u *model.User) string {
	if u == nil {
		return ""
	}
	return u.Email
}
