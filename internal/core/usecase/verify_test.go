package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/asn-portal/internal/core/domain"
	"github.com/kirillkom/asn-portal/internal/core/ports"
)

type tempStorageFake struct {
	mu      sync.Mutex
	files   map[string][]byte
	removed []string
	saveErr error
}

func newTempStorageFake() *tempStorageFake {
	return &tempStorageFake{files: map[string][]byte{}}
}

func (f *tempStorageFake) Save(_ context.Context, name string, data io.Reader) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	path := "/tmp/uploads/" + name
	f.files[path] = raw
	return path, nil
}

func (f *tempStorageFake) Remove(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, path)
	f.removed = append(f.removed, path)
	return nil
}

func (f *tempStorageFake) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

type ocrFake struct {
	result domain.OcrResult
	err    error
	calls  int
	seen   ports.OCRImage
}

func (f *ocrFake) Name() string { return "fake" }

func (f *ocrFake) Recognize(_ context.Context, img ports.OCRImage) (domain.OcrResult, error) {
	f.calls++
	f.seen = img
	if f.err != nil {
		return domain.OcrResult{}, f.err
	}
	return f.result, nil
}

type inspectorFake struct {
	info domain.ImageInfo
}

func (f inspectorFake) Inspect(context.Context, string) (domain.ImageInfo, error) {
	return f.info, nil
}

type classifierFake struct {
	detected domain.DocumentType
	err      error
	calls    int
}

func (f *classifierFake) ClassifyDocument(context.Context, string, []domain.DocumentType) (domain.ContentDetection, error) {
	f.calls++
	if f.err != nil {
		return domain.ContentDetection{}, f.err
	}
	t := f.detected
	return domain.ContentDetection{DetectedType: &t, Confidence: 0.9, Source: "llm"}, nil
}

type publisherFake struct {
	events []domain.VerificationCompleted
	err    error
}

func (f *publisherFake) PublishVerificationCompleted(_ context.Context, event domain.VerificationCompleted) error {
	f.events = append(f.events, event)
	return f.err
}

func ktpUpload(size int) (domain.UploadedDocument, io.Reader) {
	return domain.UploadedDocument{
		Filename:     "ktp scan.jpg",
		MimeType:     "image/jpeg",
		DocumentType: domain.DocumentKTP,
		Size:         int64(size),
	}, bytes.NewReader(bytes.Repeat([]byte{0xFF}, size))
}

func TestVerifyApprovesCleanDocument(t *testing.T) {
	storage := newTempStorageFake()
	ocr := &ocrFake{result: domain.OcrResult{Text: sampleKTPText, Confidence: 0.95}}
	publisher := &publisherFake{}
	metrics := &metricsFake{}
	uc := NewVerifyDocumentUseCase(VerifyDeps{
		Storage:   storage,
		OCR:       ocr,
		Inspector: inspectorFake{info: domain.ImageInfo{Width: 1200, Height: 760, Format: "jpeg", Decoded: true}},
		Publisher: publisher,
		Metrics:   metrics,
	}, DefaultPolicy())

	doc, body := ktpUpload(1024)
	report, err := uc.Verify(context.Background(), ports.VerifyRequest{Document: doc, Body: body, RequestID: "req-1"})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.Verdict.Status != domain.VerdictApproved {
		t.Fatalf("expected APPROVED, got %s %v", report.Verdict.Status, report.Verdict.Reasons)
	}
	if !report.OCR.Success || report.OCR.Provider != "fake" {
		t.Fatalf("unexpected ocr %+v", report.OCR)
	}
	if report.ContentDetection.DetectedType == nil || *report.ContentDetection.DetectedType != domain.DocumentKTP {
		t.Fatalf("expected ktp detection, got %+v", report.ContentDetection)
	}
	if storage.live() != 0 || len(storage.removed) != 1 {
		t.Fatalf("temp file not cleaned up: live=%d removed=%v", storage.live(), storage.removed)
	}
	if !strings.HasSuffix(storage.removed[0], "_ktp_scan.jpg") {
		t.Fatalf("unexpected temp path %q", storage.removed[0])
	}
	if ocr.seen.MimeType != "image/jpeg" || len(ocr.seen.Languages) != 2 {
		t.Fatalf("unexpected ocr input %+v", ocr.seen)
	}
	if len(publisher.events) != 1 || publisher.events[0].Status != domain.VerdictApproved || publisher.events[0].RequestID != "req-1" {
		t.Fatalf("unexpected events %+v", publisher.events)
	}
	if len(metrics.verdicts) != 1 || metrics.durations != 1 {
		t.Fatalf("expected verdict and duration metrics, got %+v", metrics)
	}
}

func TestVerifyDegradesOnOCRFailure(t *testing.T) {
	storage := newTempStorageFake()
	metrics := &metricsFake{}
	uc := NewVerifyDocumentUseCase(VerifyDeps{
		Storage: storage,
		OCR:     &ocrFake{err: errors.New("vision api: 503")},
		Metrics: metrics,
	}, DefaultPolicy())

	doc, body := ktpUpload(2048)
	report, err := uc.Verify(context.Background(), ports.VerifyRequest{Document: doc, Body: body})
	if err != nil {
		t.Fatalf("verify must not fail on provider errors: %v", err)
	}
	if !report.OCR.Success || report.OCR.Confidence != 0 || !report.OCR.Degraded || report.OCR.Error == "" {
		t.Fatalf("unexpected degraded ocr %+v", report.OCR)
	}
	if report.Verdict.Status == domain.VerdictApproved {
		t.Fatalf("degraded result must not be approved")
	}
	if !report.Verdict.Degraded {
		t.Fatalf("expected degraded verdict")
	}
	if len(report.Fraud.FraudIndicators) != 0 || report.Fraud.IsSuspicious {
		t.Fatalf("expected no fraud indicators without text, got %+v", report.Fraud)
	}
	if storage.live() != 0 {
		t.Fatalf("temp file left behind")
	}
	if len(metrics.degraded) != 1 || metrics.degraded[0] != "ocr" {
		t.Fatalf("unexpected degraded metrics %v", metrics.degraded)
	}
}

func TestVerifyRejectsBeforeWriting(t *testing.T) {
	cases := []struct {
		name string
		doc  domain.UploadedDocument
		kind error
	}{
		{
			name: "too large",
			doc:  domain.UploadedDocument{Filename: "big.jpg", MimeType: "image/jpeg", DocumentType: domain.DocumentKTP, Size: 6 << 20},
			kind: domain.ErrPayloadTooLarge,
		},
		{
			name: "not an image",
			doc:  domain.UploadedDocument{Filename: "a.pdf", MimeType: "application/pdf", DocumentType: domain.DocumentKTP, Size: 10},
			kind: domain.ErrUnsupportedMedia,
		},
		{
			name: "unknown document type",
			doc:  domain.UploadedDocument{Filename: "a.jpg", MimeType: "image/jpeg", DocumentType: "passport", Size: 10},
			kind: domain.ErrInvalidInput,
		},
		{
			name: "empty file",
			doc:  domain.UploadedDocument{Filename: "a.jpg", MimeType: "image/jpeg", DocumentType: domain.DocumentKTP},
			kind: domain.ErrInvalidInput,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			storage := newTempStorageFake()
			ocr := &ocrFake{}
			uc := NewVerifyDocumentUseCase(VerifyDeps{Storage: storage, OCR: ocr}, DefaultPolicy())
			_, err := uc.Verify(context.Background(), ports.VerifyRequest{Document: tc.doc, Body: strings.NewReader("x")})
			if !domain.IsKind(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
			if len(storage.files) != 0 || len(storage.removed) != 0 || ocr.calls != 0 {
				t.Fatalf("pipeline touched storage or ocr")
			}
		})
	}
}

func TestVerifyBodyLongerThanDeclaredSize(t *testing.T) {
	storage := newTempStorageFake()
	policy := DefaultPolicy()
	policy.MaxUploadBytes = 100
	uc := NewVerifyDocumentUseCase(VerifyDeps{Storage: storage, OCR: &ocrFake{}}, policy)

	doc := domain.UploadedDocument{Filename: "a.png", MimeType: "image/png", DocumentType: domain.DocumentKTP, Size: 50}
	_, err := uc.Verify(context.Background(), ports.VerifyRequest{Document: doc, Body: bytes.NewReader(make([]byte, 500))})
	if !domain.IsKind(err, domain.ErrPayloadTooLarge) {
		t.Fatalf("expected payload too large, got %v", err)
	}
	if storage.live() != 0 {
		t.Fatalf("oversized temp file left behind")
	}
}

func TestVerifyStorageFailure(t *testing.T) {
	storage := newTempStorageFake()
	storage.saveErr = errors.New("disk full")
	uc := NewVerifyDocumentUseCase(VerifyDeps{Storage: storage, OCR: &ocrFake{}}, DefaultPolicy())

	doc, body := ktpUpload(10)
	_, err := uc.Verify(context.Background(), ports.VerifyRequest{Document: doc, Body: body})
	if !domain.IsKind(err, domain.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestVerifyClassifierRefinesUnknownContent(t *testing.T) {
	classifier := &classifierFake{detected: domain.DocumentIjazah}
	uc := NewVerifyDocumentUseCase(VerifyDeps{
		Storage:    newTempStorageFake(),
		OCR:        &ocrFake{result: domain.OcrResult{Text: "hello world", Confidence: 0.9}},
		Classifier: classifier,
	}, DefaultPolicy())

	doc, body := ktpUpload(10)
	report, err := uc.Verify(context.Background(), ports.VerifyRequest{Document: doc, Body: body})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if classifier.calls != 1 {
		t.Fatalf("expected classifier call")
	}
	if report.ContentDetection.DetectedType == nil || *report.ContentDetection.DetectedType != domain.DocumentIjazah {
		t.Fatalf("unexpected detection %+v", report.ContentDetection)
	}
	if _, ok := report.Fraud.FraudIndicators[IndicatorTypeMismatch]; !ok {
		t.Fatalf("expected type mismatch indicator, got %+v", report.Fraud.FraudIndicators)
	}
}

func TestVerifyClassifierFailureMarksDetectionDegraded(t *testing.T) {
	metrics := &metricsFake{}
	uc := NewVerifyDocumentUseCase(VerifyDeps{
		Storage:    newTempStorageFake(),
		OCR:        &ocrFake{result: domain.OcrResult{Text: "hello world", Confidence: 0.9}},
		Classifier: &classifierFake{err: errors.New("ollama down")},
		Metrics:    metrics,
	}, DefaultPolicy())

	doc, body := ktpUpload(10)
	report, err := uc.Verify(context.Background(), ports.VerifyRequest{Document: doc, Body: body})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.ContentDetection.Degraded || report.ContentDetection.DetectedType != nil {
		t.Fatalf("unexpected detection %+v", report.ContentDetection)
	}
	if len(metrics.degraded) != 1 || metrics.degraded[0] != "classifier" {
		t.Fatalf("unexpected degraded metrics %v", metrics.degraded)
	}
}

// sparseKTPText carries every KTP field but only one signature keyword,
// so keyword detection stays inconclusive and the classifier is consulted.
const sparseKTPText = `NIK : 3204014501900003
Nama : SITI AMINAH
Tempat/Tgl Lahir : BANDUNG, 05-01-1990
Jenis Kelamin : PEREMPUAN
Alamat : JL MERDEKA 1
Agama : ISLAM
Status Perkawinan : KAWIN
Pekerjaan : GURU
WNI
SEUMUR HIDUP`

func TestVerifyClassifierFailureBlocksApproval(t *testing.T) {
	classifier := &classifierFake{err: errors.New("ollama down")}
	publisher := &publisherFake{}
	uc := NewVerifyDocumentUseCase(VerifyDeps{
		Storage:    newTempStorageFake(),
		OCR:        &ocrFake{result: domain.OcrResult{Text: sparseKTPText, Confidence: 0.95}},
		Classifier: classifier,
		Publisher:  publisher,
	}, DefaultPolicy())

	doc, body := ktpUpload(10)
	report, err := uc.Verify(context.Background(), ports.VerifyRequest{Document: doc, Body: body})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if classifier.calls != 1 {
		t.Fatalf("expected classifier call, got %d", classifier.calls)
	}
	if report.Analysis.Analysis.Completeness != 1 || report.OCR.Degraded {
		t.Fatalf("expected complete non-degraded extraction, got %+v %+v", report.Analysis, report.OCR)
	}
	verdict := report.Verdict
	if verdict.Status != domain.VerdictNeedReview || !verdict.Degraded {
		t.Fatalf("expected degraded NEED_REVIEW, got %+v", verdict)
	}
	if !slices.Contains(verdict.Reasons, "content classifier unavailable") {
		t.Fatalf("expected classifier reason, got %v", verdict.Reasons)
	}
	if len(publisher.events) != 1 || !publisher.events[0].Degraded {
		t.Fatalf("expected degraded event, got %+v", publisher.events)
	}
}

func TestVerifyAttachesChecklist(t *testing.T) {
	checklist := NewChecklistUseCase(testRequirements(), nil, nil)
	checklist.now = fixedNow
	uc := NewVerifyDocumentUseCase(VerifyDeps{
		Storage:   newTempStorageFake(),
		OCR:       &ocrFake{result: domain.OcrResult{Text: sampleKTPText, Confidence: 0.95}},
		Checklist: checklist,
	}, DefaultPolicy())

	doc, body := ktpUpload(10)
	report, err := uc.Verify(context.Background(), ports.VerifyRequest{
		Document:  doc,
		Body:      body,
		Applicant: testApplicant(),
		Formasi:   testFormasi(),
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.Checklist == nil {
		t.Fatalf("expected checklist, error=%q", report.ChecklistError)
	}
	if report.Checklist.Overall != domain.CheckPassed {
		t.Fatalf("expected passed checklist, got %+v", report.Checklist.Checks)
	}
}

func TestVerifyChecklistFailureDoesNotFailRequest(t *testing.T) {
	checklist := NewChecklistUseCase(testRequirements(), &applicantRepoFake{}, nil)
	uc := NewVerifyDocumentUseCase(VerifyDeps{
		Storage:   newTempStorageFake(),
		OCR:       &ocrFake{result: domain.OcrResult{Text: sampleKTPText, Confidence: 0.95}},
		Checklist: checklist,
	}, DefaultPolicy())

	doc, body := ktpUpload(10)
	report, err := uc.Verify(context.Background(), ports.VerifyRequest{Document: doc, Body: body, ApplicantID: "ghost"})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.Checklist != nil || report.ChecklistError == "" {
		t.Fatalf("expected checklist error, got %+v", report)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"ktp scan.jpg":        "ktp_scan.jpg",
		"../../etc/passwd":    "passwd",
		"foto ijazah (1).png": "foto_ijazah__1_.png",
		"":                    "upload.bin",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeFilenameCapsLength(t *testing.T) {
	long := strings.Repeat("ijazah_", 60) + ".jpeg"
	got := sanitizeFilename(long)
	if len(got) != maxTempFilenameLen || !strings.HasSuffix(got, ".jpeg") {
		t.Fatalf("sanitizeFilename() = %q (%d bytes)", got, len(got))
	}

	noExt := sanitizeFilename(strings.Repeat("x", 300) + "." + strings.Repeat("y", 40))
	if len(noExt) != maxTempFilenameLen {
		t.Fatalf("expected %d bytes, got %d", maxTempFilenameLen, len(noExt))
	}

	name := tempName(time.Unix(1700000000, 0), strings.Repeat("a", 500)+".png")
	if len(name) > 255 {
		t.Fatalf("temp name too long: %d bytes", len(name))
	}
}
