package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/asn-portal/internal/core/domain"
	"github.com/kirillkom/asn-portal/internal/core/ports"
)

// DefaultMaxUploadBytes is the upload size bound (5 MiB).
const DefaultMaxUploadBytes int64 = 5 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

// Policy bundles the tunable thresholds of the pipeline.
type Policy struct {
	Verdict        VerdictPolicy
	Fraud          FraudPolicy
	Detection      DetectionPolicy
	MaxUploadBytes int64
	Languages      []string
}

func DefaultPolicy() Policy {
	return Policy{
		Verdict:        DefaultVerdictPolicy(),
		Fraud:          DefaultFraudPolicy(),
		Detection:      DefaultDetectionPolicy(),
		MaxUploadBytes: DefaultMaxUploadBytes,
		Languages:      []string{"ind", "eng"},
	}
}

// VerifyDeps lists the collaborators of the pipeline. Storage and OCR are
// required; the rest may be nil.
type VerifyDeps struct {
	Storage    ports.TempStorage
	OCR        ports.OCREngine
	Inspector  ports.ImageInspector
	Classifier ports.ContentClassifier
	Checklist  *ChecklistUseCase
	Publisher  ports.VerificationPublisher
	Metrics    ports.VerificationMetrics
}

type VerifyDocumentUseCase struct {
	deps   VerifyDeps
	policy Policy
	now    func() time.Time
}

func NewVerifyDocumentUseCase(deps VerifyDeps, policy Policy) *VerifyDocumentUseCase {
	if policy.MaxUploadBytes <= 0 {
		policy.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &VerifyDocumentUseCase{
		deps:   deps,
		policy: policy,
		now:    time.Now,
	}
}

func (uc *VerifyDocumentUseCase) MaxUploadBytes() int64 {
	return uc.policy.MaxUploadBytes
}

// ValidateUpload rejects uploads that must not reach storage.
func (uc *VerifyDocumentUseCase) ValidateUpload(doc domain.UploadedDocument) error {
	if doc.Size <= 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload", errors.New("file is empty"))
	}
	if doc.Size > uc.policy.MaxUploadBytes {
		return domain.WrapError(domain.ErrPayloadTooLarge, "validate upload",
			fmt.Errorf("file size %d exceeds the %s limit", doc.Size, humanBytes(uc.policy.MaxUploadBytes)))
	}
	mime := normalizeMime(doc.MimeType)
	if !allowedImageTypes[mime] {
		return domain.WrapError(domain.ErrUnsupportedMedia, "validate upload",
			fmt.Errorf("file type %q is not an accepted image type", doc.MimeType))
	}
	if _, ok := domain.Profile(doc.DocumentType); !ok {
		return domain.WrapError(domain.ErrInvalidInput, "validate upload",
			fmt.Errorf("unsupported documentType %q", doc.DocumentType))
	}
	return nil
}

// Verify runs upload -> OCR -> detection -> heuristics -> verdict
// (-> checklist). Provider failures degrade the result instead of failing
// the request; only validation and temp-file writes return errors.
func (uc *VerifyDocumentUseCase) Verify(ctx context.Context, req ports.VerifyRequest) (*domain.VerificationReport, error) {
	if err := uc.ValidateUpload(req.Document); err != nil {
		return nil, err
	}
	profile, _ := domain.Profile(req.Document.DocumentType)
	started := uc.now()

	path, err := uc.saveTemp(ctx, req.Document.Filename, req.Body)
	if err != nil {
		return nil, err
	}
	defer uc.removeTemp(path)

	ocr := uc.recognize(ctx, path, req.Document.MimeType)
	detection := uc.detect(ctx, ocr.Text)
	image := uc.inspect(ctx, path)
	analysis := AnalyzeText(ocr.Text, profile)
	fraud := DetectFraud(uc.policy.Fraud, FraudInput{
		DocumentType: req.Document.DocumentType,
		OCR:          ocr,
		Analysis:     analysis,
		Detection:    detection,
		Image:        image,
	})
	verdict := ComposeVerdict(uc.policy.Verdict, ocr, analysis, fraud, detection)

	report := &domain.VerificationReport{
		OCR:              ocr,
		Analysis:         analysis,
		Fraud:            fraud,
		Verdict:          verdict,
		ContentDetection: detection,
	}
	if uc.deps.Metrics != nil {
		uc.deps.Metrics.RecordVerdict(req.Document.DocumentType, verdict)
		uc.deps.Metrics.RecordDuration(req.Document.DocumentType, uc.now().Sub(started))
	}

	uc.attachChecklist(ctx, req, report)
	uc.publish(ctx, req, verdict)
	return report, nil
}

func (uc *VerifyDocumentUseCase) saveTemp(ctx context.Context, filename string, body io.Reader) (string, error) {
	if body == nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "save upload", errors.New("file body is missing"))
	}
	limited := &io.LimitedReader{R: body, N: uc.policy.MaxUploadBytes + 1}
	path, err := uc.deps.Storage.Save(ctx, tempName(uc.now(), filename), limited)
	if err != nil {
		return "", domain.WrapError(domain.ErrStorage, "save upload", err)
	}
	if limited.N <= 0 {
		uc.removeTemp(path)
		return "", UploadTooLarge("save upload", uc.policy.MaxUploadBytes)
	}
	return path, nil
}

// removeTemp is best effort; a failed removal is logged, never returned.
func (uc *VerifyDocumentUseCase) removeTemp(path string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := uc.deps.Storage.Remove(ctx, path); err != nil {
		slog.Warn("temp_file_cleanup_failed", "path", path, "error", err)
	}
}

func (uc *VerifyDocumentUseCase) recognize(ctx context.Context, path, mimeType string) domain.OcrResult {
	provider := uc.deps.OCR.Name()
	result, err := uc.deps.OCR.Recognize(ctx, ports.OCRImage{
		Path:      path,
		MimeType:  normalizeMime(mimeType),
		Languages: uc.policy.Languages,
	})
	if err != nil {
		slog.Warn("ocr_degraded", "provider", provider, "error", err)
		if uc.deps.Metrics != nil {
			uc.deps.Metrics.RecordDegraded("ocr")
		}
		return domain.OcrResult{
			Success:  true,
			Provider: provider,
			Degraded: true,
			Error:    err.Error(),
		}
	}
	result.Success = true
	result.Text = strings.TrimSpace(result.Text)
	result.Confidence = round(clamp01(result.Confidence), 4)
	if result.Provider == "" {
		result.Provider = provider
	}
	return result
}

func (uc *VerifyDocumentUseCase) detect(ctx context.Context, text string) domain.ContentDetection {
	detection := DetectContent(text, uc.policy.Detection)
	if detection.DetectedType != nil || uc.deps.Classifier == nil || strings.TrimSpace(text) == "" {
		return detection
	}

	refined, err := uc.deps.Classifier.ClassifyDocument(ctx, text, documentTypes())
	if err != nil {
		slog.Warn("content_classifier_degraded", "error", err)
		if uc.deps.Metrics != nil {
			uc.deps.Metrics.RecordDegraded("classifier")
		}
		detection.Degraded = true
		return detection
	}
	if refined.DetectedType == nil || refined.Confidence < uc.policy.Detection.MinConfidence {
		return detection
	}
	if _, ok := domain.Profile(*refined.DetectedType); !ok {
		return detection
	}
	refined.Confidence = round(clamp01(refined.Confidence), 4)
	return refined
}

func (uc *VerifyDocumentUseCase) inspect(ctx context.Context, path string) *domain.ImageInfo {
	if uc.deps.Inspector == nil {
		return nil
	}
	info, err := uc.deps.Inspector.Inspect(ctx, path)
	if err != nil {
		slog.Warn("image_inspection_failed", "path", path, "error", err)
		return nil
	}
	return &info
}

func (uc *VerifyDocumentUseCase) attachChecklist(ctx context.Context, req ports.VerifyRequest, report *domain.VerificationReport) {
	if uc.deps.Checklist == nil || (req.Applicant == nil && strings.TrimSpace(req.ApplicantID) == "") {
		return
	}
	summary := domain.SummarizeReport(req.Document.DocumentType, *report)
	checklist, err := uc.deps.Checklist.Evaluate(ctx, ports.ChecklistRequest{
		Applicant:   req.Applicant,
		ApplicantID: req.ApplicantID,
		Formasi:     req.Formasi,
		FormasiID:   req.FormasiID,
		Documents:   []domain.DocumentSummary{summary},
	})
	if err != nil {
		slog.Warn("checklist_skipped", "applicant_id", req.ApplicantID, "error", err)
		report.ChecklistError = err.Error()
		return
	}
	report.Checklist = checklist
}

func (uc *VerifyDocumentUseCase) publish(ctx context.Context, req ports.VerifyRequest, verdict domain.Verdict) {
	if uc.deps.Publisher == nil {
		return
	}
	event := domain.VerificationCompleted{
		ID:           uuid.NewString(),
		RequestID:    req.RequestID,
		ApplicantID:  req.ApplicantID,
		DocumentType: req.Document.DocumentType,
		Filename:     req.Document.Filename,
		Status:       verdict.Status,
		Score:        verdict.Score,
		Reasons:      verdict.Reasons,
		Degraded:     verdict.Degraded,
		VerifiedAt:   uc.now().UTC(),
	}
	if req.Applicant != nil && event.ApplicantID == "" {
		event.ApplicantID = req.Applicant.ID
	}
	if err := uc.deps.Publisher.PublishVerificationCompleted(ctx, event); err != nil {
		slog.Warn("verification_event_publish_failed", "event_id", event.ID, "error", err)
	}
}

// maxTempFilenameLen keeps temp paths well under the 255-byte name limit
// of common filesystems once the timestamp and id prefix are added.
const maxTempFilenameLen = 64

// tempName prefixes the sanitized filename with a timestamp and a random
// id so concurrent uploads never share a path.
func tempName(now time.Time, filename string) string {
	return fmt.Sprintf("%d_%s_%s", now.UnixNano(), uuid.NewString(), sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "_" {
		return "upload.bin"
	}
	if len(base) > maxTempFilenameLen {
		ext := filepath.Ext(base)
		if len(ext) > 10 {
			ext = ""
		}
		base = base[:maxTempFilenameLen-len(ext)] + ext
	}
	return base
}

func normalizeMime(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return mime
}

// UploadTooLarge is the error for a body that ran past limit bytes.
func UploadTooLarge(op string, limit int64) error {
	return domain.WrapError(domain.ErrPayloadTooLarge, op, fmt.Errorf("file exceeds the %s limit", humanBytes(limit)))
}

func humanBytes(n int64) string {
	if n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}
