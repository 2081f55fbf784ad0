package domain

import "time"

// OcrResult is the text extracted from one uploaded image.
// Degraded is set when the provider failed and the result is a fallback.
type OcrResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Success    bool    `json:"success"`
	Provider   string  `json:"provider,omitempty"`
	Degraded   bool    `json:"degraded"`
	Error      string  `json:"error,omitempty"`
}

type Analysis struct {
	Completeness  float64           `json:"completeness"`
	FieldsFound   []string          `json:"fieldsFound"`
	FieldsMissing []string          `json:"fieldsMissing"`
	Fields        map[string]string `json:"fields"`
}

type AnalysisResult struct {
	Success  bool     `json:"success"`
	Analysis Analysis `json:"analysis"`
}

type FraudIndicator struct {
	Category string  `json:"category"`
	Detail   string  `json:"detail"`
	Weight   float64 `json:"weight"`
}

type FraudResult struct {
	Success         bool                      `json:"success"`
	FraudIndicators map[string]FraudIndicator `json:"fraudIndicators"`
	IsSuspicious    bool                      `json:"isSuspicious"`
	Confidence      float64                   `json:"confidence"`
}

type VerdictStatus string

const (
	VerdictApproved   VerdictStatus = "APPROVED"
	VerdictRejected   VerdictStatus = "REJECTED"
	VerdictNeedReview VerdictStatus = "NEED_REVIEW"
)

type Verdict struct {
	Status   VerdictStatus `json:"status"`
	Reasons  []string      `json:"reasons"`
	Score    float64       `json:"score"`
	Degraded bool          `json:"degraded"`
}

// ContentDetection is an independent guess of what the document is.
// DetectedType is nil when no type could be recognized.
type ContentDetection struct {
	DetectedType *DocumentType `json:"detectedType"`
	Confidence   float64       `json:"confidence"`
	Source       string        `json:"source,omitempty"`
	Degraded     bool          `json:"degraded,omitempty"`
}

// Mismatch reports whether the detection confidently names another type.
func (d ContentDetection) Mismatch(declared DocumentType, minConfidence float64) bool {
	if d.DetectedType == nil {
		return false
	}
	return *d.DetectedType != declared && d.Confidence >= minConfidence
}

// ImageInfo is what could be learned from decoding the image header.
type ImageInfo struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Format  string `json:"format"`
	Decoded bool   `json:"decoded"`
}

type VerificationReport struct {
	OCR              OcrResult        `json:"ocr"`
	Analysis         AnalysisResult   `json:"analysis"`
	Fraud            FraudResult      `json:"fraud"`
	Verdict          Verdict          `json:"verdict"`
	ContentDetection ContentDetection `json:"contentDetection"`
	Checklist        *Checklist       `json:"checklist,omitempty"`
	ChecklistError   string           `json:"checklistError,omitempty"`
}

// VerificationCompleted is published after every verification.
type VerificationCompleted struct {
	ID           string        `json:"id"`
	RequestID    string        `json:"request_id,omitempty"`
	ApplicantID  string        `json:"applicant_id,omitempty"`
	DocumentType DocumentType  `json:"document_type"`
	Filename     string        `json:"filename"`
	Status       VerdictStatus `json:"status"`
	Score        float64       `json:"score"`
	Reasons      []string      `json:"reasons"`
	Degraded     bool          `json:"degraded"`
	VerifiedAt   time.Time     `json:"verified_at"`
}

// ReviewItem is one entry of the manual review queue.
type ReviewItem struct {
	ID           string        `json:"id"`
	RequestID    string        `json:"request_id,omitempty"`
	ApplicantID  string        `json:"applicant_id,omitempty"`
	DocumentType DocumentType  `json:"document_type"`
	Filename     string        `json:"filename"`
	Status       VerdictStatus `json:"status"`
	Score        float64       `json:"score"`
	Reasons      []string      `json:"reasons"`
	Degraded     bool          `json:"degraded"`
	VerifiedAt   time.Time     `json:"verified_at"`
	CreatedAt    time.Time     `json:"created_at"`
}
