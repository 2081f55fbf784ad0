package ports

import (
	"context"
	"io"

	"github.com/kirillkom/asn-portal/internal/core/domain"
)

// VerifyRequest carries one upload through the verification pipeline.
type VerifyRequest struct {
	Document    domain.UploadedDocument
	Body        io.Reader
	RequestID   string
	ApplicantID string
	FormasiID   string
	// Applicant and Formasi are optional; when Applicant is set a checklist
	// is evaluated alongside the verdict.
	Applicant *domain.Applicant
	Formasi   *domain.Formasi
}

// DocumentVerifier is the inbound contract for the verification pipeline.
type DocumentVerifier interface {
	Verify(ctx context.Context, req VerifyRequest) (*domain.VerificationReport, error)
}

// ChecklistRequest is the input of a standalone checklist evaluation.
type ChecklistRequest struct {
	Applicant   *domain.Applicant        `json:"applicant,omitempty"`
	ApplicantID string                   `json:"applicantId,omitempty"`
	Formasi     *domain.Formasi          `json:"formasi,omitempty"`
	FormasiID   string                   `json:"formasiId,omitempty"`
	Documents   []domain.DocumentSummary `json:"documents,omitempty"`
}

// ChecklistReport is a checklist with the records it was evaluated for.
type ChecklistReport struct {
	Applicant *domain.Applicant `json:"applicant"`
	Formasi   *domain.Formasi   `json:"formasi,omitempty"`
	Checklist domain.Checklist  `json:"checklist"`
}

// ChecklistEvaluator is the inbound contract for requirement scoring.
type ChecklistEvaluator interface {
	Evaluate(ctx context.Context, req ChecklistRequest) (*domain.Checklist, error)
	EvaluateReport(ctx context.Context, req ChecklistRequest) (*ChecklistReport, error)
	Requirements() []domain.Requirement
}

// ReviewQueue is the inbound read/write model of the manual review queue.
type ReviewQueue interface {
	Record(ctx context.Context, event domain.VerificationCompleted) (bool, error)
	List(ctx context.Context, limit int) ([]domain.ReviewItem, error)
}
