package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/asn-portal/internal/config"
	"github.com/kirillkom/asn-portal/internal/core/domain"
	"github.com/kirillkom/asn-portal/internal/core/ports"
	"github.com/kirillkom/asn-portal/internal/core/usecase"
	"github.com/kirillkom/asn-portal/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/asn-portal/internal/observability/metrics"
)

type Router struct {
	verifier  ports.DocumentVerifier
	checklist ports.ChecklistEvaluator
	reviews   ports.ReviewQueue
	metrics   *metrics.HTTPServerMetrics
	contract  *contract

	maxUploadBytes   int64
	rateLimitRPS     float64
	rateLimitBurst   int
	maxInFlight      int
	backpressureWait time.Duration
	now              func() time.Time
}

// NewRouter wires the HTTP surface. httpMetrics may be nil.
func NewRouter(
	cfg config.Config,
	verifier ports.DocumentVerifier,
	checklist ports.ChecklistEvaluator,
	reviews ports.ReviewQueue,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	c, err := loadContract()
	if err != nil {
		panic(err)
	}
	maxUpload := cfg.UploadMaxBytes
	if maxUpload <= 0 {
		maxUpload = usecase.DefaultMaxUploadBytes
	}
	return &Router{
		verifier:         verifier,
		checklist:        checklist,
		reviews:          reviews,
		metrics:          httpMetrics,
		contract:         c,
		maxUploadBytes:   maxUpload,
		rateLimitRPS:     cfg.APIRateLimitRPS,
		rateLimitBurst:   cfg.APIRateLimitBurst,
		maxInFlight:      cfg.APIMaxInFlight,
		backpressureWait: time.Duration(cfg.APIBackpressureWaitMS) * time.Millisecond,
		now:              time.Now,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPI)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("POST /v1/documents/verify", rt.verifyDocument)
	mux.HandleFunc("POST /api/verify-document", rt.verifyDocument)
	mux.HandleFunc("POST /v1/checklist", rt.evaluateChecklist)
	mux.HandleFunc("POST /v1/checklist/export", rt.exportChecklist)
	mux.HandleFunc("GET /v1/requirements", rt.listRequirements)
	mux.HandleFunc("GET /v1/reviews", rt.listReviews)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.backpressureWait)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(routeLabel, handler)
	}
	handler = recoverMiddleware(handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPIDocument)
}

func (rt *Router) verifyDocument(w http.ResponseWriter, r *http.Request) {
	upload, err := rt.readUpload(w, r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	report, err := rt.verifier.Verify(r.Context(), ports.VerifyRequest{
		Document: domain.UploadedDocument{
			Filename:     upload.filename,
			MimeType:     upload.mimeType,
			DocumentType: upload.documentType,
			Size:         int64(len(upload.data)),
		},
		Body:        bytes.NewReader(upload.data),
		RequestID:   requestIDFromContext(r.Context()),
		ApplicantID: upload.applicantID,
		FormasiID:   upload.formasiID,
		Applicant:   upload.applicant,
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, report)
}

func (rt *Router) evaluateChecklist(w http.ResponseWriter, r *http.Request) {
	req, err := rt.decodeChecklistRequest(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	checklist, err := rt.checklist.Evaluate(r.Context(), req)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, checklist)
}

func (rt *Router) exportChecklist(w http.ResponseWriter, r *http.Request) {
	req, err := rt.decodeChecklistRequest(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	report, err := rt.checklist.EvaluateReport(r.Context(), req)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := xlsx.WriteChecklist(&buf, xlsx.Report{
		Applicant:   report.Applicant,
		Formasi:     report.Formasi,
		Checklist:   report.Checklist,
		GeneratedAt: rt.now().UTC(),
	}); err != nil {
		rt.writeError(w, r, fmt.Errorf("render checklist workbook: %w", err))
		return
	}

	w.Header().Set("Content-Type", xlsx.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(report.Applicant)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (rt *Router) listRequirements(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, rt.checklist.Requirements())
}

func (rt *Router) listReviews(w http.ResponseWriter, r *http.Request) {
	if err := rt.contract.validate(r); err != nil {
		rt.writeError(w, r, err)
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "parse limit", err))
			return
		}
		limit = parsed
	}

	items, err := rt.reviews.List(r.Context(), limit)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.ReviewItem{}
	}
	writeData(w, http.StatusOK, items)
}

func (rt *Router) decodeChecklistRequest(r *http.Request) (ports.ChecklistRequest, error) {
	var req ports.ChecklistRequest
	if err := rt.contract.validate(r); err != nil {
		return req, err
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, domain.WrapError(domain.ErrInvalidInput, "decode checklist request", errors.New("invalid json"))
	}
	return req, nil
}

func exportFilename(applicant *domain.Applicant) string {
	id := "applicant"
	if applicant != nil && strings.TrimSpace(applicant.ID) != "" {
		id = applicant.ID
	}
	return "checklist-" + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id) + ".xlsx"
}

func routeLabel(r *http.Request) string {
	switch r.URL.Path {
	case "/v1/documents/verify", "/api/verify-document":
		return "/v1/documents/verify"
	case "/v1/checklist", "/v1/checklist/export", "/v1/requirements", "/v1/reviews",
		"/healthz", "/metrics", "/openapi.yaml":
		return r.URL.Path
	default:
		return "other"
	}
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Error: message})
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeFailure(w, status, publicMessage(status, err))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
