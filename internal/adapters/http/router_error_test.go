package httpadapter

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/asn-portal/internal/config"
	"github.com/kirillkom/asn-portal/internal/core/domain"
)

func postJSON(handler http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestChecklistMapsNotFoundTo404(t *testing.T) {
	handler := NewRouter(
		config.Config{},
		nil,
		&checklistFake{err: domain.WrapError(domain.ErrNotFound, "get applicant", errors.New("id=missing"))},
		&reviewsFake{},
		nil,
	).Handler()

	res := postJSON(handler, "/v1/checklist", `{"applicantId":"missing"}`)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	env := decodeEnvelope(t, res.Body.Bytes())
	if env.Success || !strings.Contains(env.Error, "not found") {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestChecklistRejectsRequestsOutsideContract(t *testing.T) {
	checklist := &checklistFake{}
	handler := NewRouter(config.Config{}, nil, checklist, &reviewsFake{}, nil).Handler()

	cases := map[string]string{
		"empty name":   `{"applicant":{"fullName":""}}`,
		"bad nik":      `{"applicant":{"fullName":"Siti","nik":"12ab"}}`,
		"bad status":   `{"applicantId":"a","documents":[{"type":"ktp","status":"MAYBE"}]}`,
		"invalid json": `{"applicantId":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			res := postJSON(handler, "/v1/checklist", body)
			if res.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", res.Code, res.Body.String())
			}
			if env := decodeEnvelope(t, res.Body.Bytes()); env.Success || env.Error == "" {
				t.Fatalf("expected error envelope, got %+v", env)
			}
		})
	}
	if checklist.seen.ApplicantID != "" {
		t.Fatalf("evaluator must not run for invalid requests")
	}
}

func TestChecklistHidesInternalErrors(t *testing.T) {
	handler := NewRouter(
		config.Config{},
		nil,
		&checklistFake{err: errors.New("pq: relation applicants does not exist")},
		&reviewsFake{},
		nil,
	).Handler()

	res := postJSON(handler, "/v1/checklist", `{"applicantId":"app-1"}`)
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if env := decodeEnvelope(t, res.Body.Bytes()); env.Error != "internal server error" {
		t.Fatalf("internal details leaked: %q", env.Error)
	}
}

func TestReviewsMapsTemporaryTo503(t *testing.T) {
	reviews := &reviewsFake{err: domain.WrapError(domain.ErrTemporary, "list reviews", errors.New("connection refused"))}
	handler := NewRouter(config.Config{}, nil, &checklistFake{}, reviews, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/reviews?limit=5", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	if reviews.seenLimit != 5 {
		t.Fatalf("expected limit 5, got %d", reviews.seenLimit)
	}
}

func TestReviewsRejectsNonNumericLimit(t *testing.T) {
	reviews := &reviewsFake{}
	handler := NewRouter(config.Config{}, nil, &checklistFake{}, reviews, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/reviews?limit=abc", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestRecoverMiddlewareReturns500(t *testing.T) {
	handler := recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("nil map write")
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/requirements", nil))

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if env := decodeEnvelope(t, res.Body.Bytes()); env.Success || env.Error != "internal server error" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "op", errors.New("x")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrPayloadTooLarge, "op", errors.New("x")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrUnsupportedMedia, "op", errors.New("x")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrNotFound, "op", errors.New("x")), http.StatusNotFound},
		{domain.WrapError(domain.ErrTemporary, "op", errors.New("x")), http.StatusServiceUnavailable},
		{domain.WrapError(domain.ErrStorage, "op", errors.New("x")), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
