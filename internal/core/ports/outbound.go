package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/asn-portal/internal/core/domain"
)

// OCRImage is one image handed to an OCR engine.
type OCRImage struct {
	Path      string
	MimeType  string
	Languages []string
}

// OCREngine extracts text from an image. Implementations return errors;
// the pipeline converts them into degraded results.
type OCREngine interface {
	Name() string
	Recognize(ctx context.Context, img OCRImage) (domain.OcrResult, error)
}

// ContentClassifier guesses a document type from OCR text.
type ContentClassifier interface {
	ClassifyDocument(ctx context.Context, text string, candidates []domain.DocumentType) (domain.ContentDetection, error)
}

// ImageInspector reads image dimensions and format.
type ImageInspector interface {
	Inspect(ctx context.Context, path string) (domain.ImageInfo, error)
}

// TempStorage holds request-scoped upload files.
type TempStorage interface {
	Save(ctx context.Context, name string, data io.Reader) (string, error)
	Remove(ctx context.Context, path string) error
}

// ApplicantRepository reads applicant and formasi records.
type ApplicantRepository interface {
	GetApplicant(ctx context.Context, id string) (*domain.Applicant, error)
	GetFormasi(ctx context.Context, id string) (*domain.Formasi, error)
	ListProvinces(ctx context.Context) ([]domain.Province, error)
}

// ReviewRepository persists the manual review queue.
type ReviewRepository interface {
	Insert(ctx context.Context, item *domain.ReviewItem) error
	ListByScore(ctx context.Context, limit int) ([]domain.ReviewItem, error)
}

// VerificationPublisher publishes and consumes verification events.
type VerificationPublisher interface {
	PublishVerificationCompleted(ctx context.Context, event domain.VerificationCompleted) error
}

type VerificationSubscriber interface {
	SubscribeVerificationCompleted(ctx context.Context, handler func(context.Context, domain.VerificationCompleted) error) error
}

// RequirementSource loads the active requirement set.
type RequirementSource interface {
	Load(ctx context.Context) ([]domain.Requirement, error)
}

// VerificationMetrics records pipeline observations.
type VerificationMetrics interface {
	RecordVerdict(documentType domain.DocumentType, verdict domain.Verdict)
	RecordDegraded(stage string)
	RecordChecklist(overall domain.CheckStatus)
	RecordDuration(documentType domain.DocumentType, elapsed time.Duration)
}
