package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/asn-portal/internal/core/domain"
)

type reviewRepoFake struct {
	inserted  []domain.ReviewItem
	lastLimit int
	err       error
}

func (f *reviewRepoFake) Insert(_ context.Context, item *domain.ReviewItem) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, *item)
	return nil
}

func (f *reviewRepoFake) ListByScore(_ context.Context, limit int) ([]domain.ReviewItem, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.inserted, nil
}

func TestReviewQueueRecordSkipsApproved(t *testing.T) {
	repo := &reviewRepoFake{}
	uc := NewReviewQueueUseCase(repo)

	queued, err := uc.Record(context.Background(), domain.VerificationCompleted{ID: "e1", Status: domain.VerdictApproved})
	if err != nil || queued {
		t.Fatalf("approved event must be skipped, queued=%v err=%v", queued, err)
	}
	queued, err = uc.Record(context.Background(), domain.VerificationCompleted{ID: "e2", Status: domain.VerdictNeedReview, Score: 0.4})
	if err != nil || !queued {
		t.Fatalf("expected queued, queued=%v err=%v", queued, err)
	}
	if len(repo.inserted) != 1 || repo.inserted[0].ID != "e2" || repo.inserted[0].Reasons == nil {
		t.Fatalf("unexpected inserted items %+v", repo.inserted)
	}
	if repo.inserted[0].CreatedAt.IsZero() {
		t.Fatalf("expected created_at")
	}
}

func TestReviewQueueRecordErrors(t *testing.T) {
	uc := NewReviewQueueUseCase(&reviewRepoFake{err: errors.New("db down")})
	if _, err := uc.Record(context.Background(), domain.VerificationCompleted{Status: domain.VerdictRejected}); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if _, err := uc.Record(context.Background(), domain.VerificationCompleted{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestReviewQueueListClampsLimit(t *testing.T) {
	repo := &reviewRepoFake{}
	uc := NewReviewQueueUseCase(repo)
	for _, tc := range []struct{ in, want int }{{0, 50}, {-3, 50}, {20, 20}, {1000, 200}} {
		if _, err := uc.List(context.Background(), tc.in); err != nil {
			t.Fatalf("list: %v", err)
		}
		if repo.lastLimit != tc.want {
			t.Fatalf("limit %d: expected %d, got %d", tc.in, tc.want, repo.lastLimit)
		}
	}
}
