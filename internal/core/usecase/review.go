package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/asn-portal/internal/core/domain"
	"github.com/kirillkom/asn-portal/internal/core/ports"
)

const (
	defaultReviewLimit = 50
	maxReviewLimit     = 200
)

// ReviewQueueUseCase keeps every non-approved verification for manual review.
type ReviewQueueUseCase struct {
	repo ports.ReviewRepository
	now  func() time.Time
}

func NewReviewQueueUseCase(repo ports.ReviewRepository) *ReviewQueueUseCase {
	return &ReviewQueueUseCase{repo: repo, now: time.Now}
}

// Record stores the event when it needs a human decision and reports
// whether it was queued.
func (uc *ReviewQueueUseCase) Record(ctx context.Context, event domain.VerificationCompleted) (bool, error) {
	if event.Status == domain.VerdictApproved {
		return false, nil
	}
	if event.Status == "" {
		return false, domain.WrapError(domain.ErrInvalidInput, "record review", errors.New("event status is empty"))
	}

	id := event.ID
	if id == "" {
		id = uuid.NewString()
	}
	reasons := event.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	item := &domain.ReviewItem{
		ID:           id,
		RequestID:    event.RequestID,
		ApplicantID:  event.ApplicantID,
		DocumentType: event.DocumentType,
		Filename:     event.Filename,
		Status:       event.Status,
		Score:        event.Score,
		Reasons:      reasons,
		Degraded:     event.Degraded,
		VerifiedAt:   event.VerifiedAt,
		CreatedAt:    uc.now().UTC(),
	}
	if err := uc.repo.Insert(ctx, item); err != nil {
		return false, domain.WrapError(domain.ErrTemporary, "record review", err)
	}
	return true, nil
}

// List returns queued items, highest score first.
func (uc *ReviewQueueUseCase) List(ctx context.Context, limit int) ([]domain.ReviewItem, error) {
	switch {
	case limit <= 0:
		limit = defaultReviewLimit
	case limit > maxReviewLimit:
		limit = maxReviewLimit
	}
	items, err := uc.repo.ListByScore(ctx, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "list reviews", err)
	}
	return items, nil
}
