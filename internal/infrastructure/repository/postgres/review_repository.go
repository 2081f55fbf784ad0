package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/asn-portal/internal/core/domain"
)

type ReviewRepository struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Insert ignores duplicates so a redelivered event is stored once.
func (r *ReviewRepository) Insert(ctx context.Context, item *domain.ReviewItem) error {
	reasons := item.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return fmt.Errorf("marshal reasons: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO review_queue (
	id, request_id, applicant_id, document_type, filename, status, score, reasons, degraded, verified_at, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO NOTHING
`,
		item.ID, item.RequestID, item.ApplicantID, string(item.DocumentType), item.Filename,
		string(item.Status), item.Score, reasonsJSON, item.Degraded, item.VerifiedAt, item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert review item: %w", err)
	}
	return nil
}

// ListByScore returns the highest scoring items first; ties go to the
// oldest entry.
func (r *ReviewRepository) ListByScore(ctx context.Context, limit int) ([]domain.ReviewItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, request_id, applicant_id, document_type, filename, status, score, reasons, degraded, verified_at, created_at
FROM review_queue
ORDER BY score DESC, created_at ASC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query review queue: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ReviewItem, 0, limit)
	for rows.Next() {
		var (
			item        domain.ReviewItem
			requestID   sql.NullString
			applicantID sql.NullString
			docType     string
			status      string
			reasonsRaw  []byte
		)
		if err := rows.Scan(
			&item.ID, &requestID, &applicantID, &docType, &item.Filename, &status,
			&item.Score, &reasonsRaw, &item.Degraded, &item.VerifiedAt, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan review item: %w", err)
		}
		if err := unmarshalList(reasonsRaw, &item.Reasons); err != nil {
			return nil, fmt.Errorf("unmarshal reasons: %w", err)
		}
		item.RequestID = requestID.String
		item.ApplicantID = applicantID.String
		item.DocumentType = domain.DocumentType(docType)
		item.Status = domain.VerdictStatus(status)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review queue: %w", err)
	}
	return out, nil
}
