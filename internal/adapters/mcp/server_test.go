package mcpadapter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/asn-portal/internal/core/domain"
	"github.com/kirillkom/asn-portal/internal/core/ports"
)

type verifierFake struct {
	seen ports.VerifyRequest
	body []byte
	err  error
}

func (f *verifierFake) Verify(_ context.Context, req ports.VerifyRequest) (*domain.VerificationReport, error) {
	f.seen = req
	buf := make([]byte, req.Document.Size)
	n, _ := req.Body.Read(buf)
	f.body = buf[:n]
	if f.err != nil {
		return nil, f.err
	}
	return &domain.VerificationReport{Verdict: domain.Verdict{Status: domain.VerdictNeedReview, Reasons: []string{"low confidence"}}}, nil
}

type checklistFake struct {
	seen ports.ChecklistRequest
	err  error
}

func (f *checklistFake) Evaluate(_ context.Context, req ports.ChecklistRequest) (*domain.Checklist, error) {
	f.seen = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Checklist{Overall: domain.CheckWarning, Score: 80, TotalChecks: 5}, nil
}

func (f *checklistFake) EvaluateReport(context.Context, ports.ChecklistRequest) (*ports.ChecklistReport, error) {
	return nil, errors.New("not used")
}

func (f *checklistFake) Requirements() []domain.Requirement {
	return []domain.Requirement{{ID: "ktp_uploaded", Label: "KTP", Rule: domain.PresenceRule{Field: "document.ktp.present"}}}
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatalf("empty tool result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content %T", result.Content[0])
	}
	return text.Text
}

func TestVerifyDocumentToolReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ktp.png")
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nrest"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	verifier := &verifierFake{}
	tools := NewTools(verifier, &checklistFake{})

	result, err := tools.verifyDocument(context.Background(), callRequest("verify_document", map[string]any{
		"path":         path,
		"documentType": "IJAZAH",
	}))
	if err != nil {
		t.Fatalf("verifyDocument() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error %s", resultText(t, result))
	}
	if !strings.Contains(resultText(t, result), `"status": "NEED_REVIEW"`) {
		t.Fatalf("unexpected report %s", resultText(t, result))
	}
	doc := verifier.seen.Document
	if doc.MimeType != "image/png" || doc.DocumentType != domain.DocumentIjazah || doc.Filename != "ktp.png" || doc.Size != 12 {
		t.Fatalf("unexpected document %+v", doc)
	}
	if string(verifier.body) != "\x89PNG\r\n\x1a\nrest" {
		t.Fatalf("file body not passed through: %q", verifier.body)
	}
}

func TestVerifyDocumentToolErrors(t *testing.T) {
	tools := NewTools(&verifierFake{}, &checklistFake{})
	result, _ := tools.verifyDocument(context.Background(), callRequest("verify_document", map[string]any{}))
	if !result.IsError {
		t.Fatalf("expected error for missing path")
	}

	result, _ = tools.verifyDocument(context.Background(), callRequest("verify_document", map[string]any{"path": filepath.Join(t.TempDir(), "missing.jpg")}))
	if !result.IsError {
		t.Fatalf("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "scan.jpg")
	_ = os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF}, 0o600)
	tools = NewTools(&verifierFake{err: domain.WrapError(domain.ErrStorage, "save upload", errors.New("/tmp is read-only"))}, &checklistFake{})
	result, _ = tools.verifyDocument(context.Background(), callRequest("verify_document", map[string]any{"path": path}))
	if !result.IsError || resultText(t, result) != "internal error" {
		t.Fatalf("expected generic internal error, got %+v", result)
	}
}

func TestEvaluateChecklistTool(t *testing.T) {
	checklist := &checklistFake{}
	tools := NewTools(&verifierFake{}, checklist)

	result, err := tools.evaluateChecklist(context.Background(), callRequest("evaluate_checklist", map[string]any{
		"request": `{"applicantId":"app-1","formasiId":"f-1"}`,
	}))
	if err != nil || result.IsError {
		t.Fatalf("unexpected failure %v %+v", err, result)
	}
	if checklist.seen.ApplicantID != "app-1" || checklist.seen.FormasiID != "f-1" {
		t.Fatalf("request not decoded: %+v", checklist.seen)
	}
	if !strings.Contains(resultText(t, result), `"overall": "warning"`) {
		t.Fatalf("unexpected checklist %s", resultText(t, result))
	}

	result, _ = tools.evaluateChecklist(context.Background(), callRequest("evaluate_checklist", map[string]any{"request": "not json"}))
	if !result.IsError {
		t.Fatalf("expected error for malformed request")
	}

	checklist.err = domain.WrapError(domain.ErrNotFound, "get applicant", errors.New("id=app-9"))
	result, _ = tools.evaluateChecklist(context.Background(), callRequest("evaluate_checklist", map[string]any{"request": `{"applicantId":"app-9"}`}))
	if !result.IsError || !strings.Contains(resultText(t, result), "not found") {
		t.Fatalf("expected not found error, got %+v", result)
	}
}

func TestListRequirementsTool(t *testing.T) {
	tools := NewTools(&verifierFake{}, &checklistFake{})
	result, err := tools.listRequirements(context.Background(), callRequest("list_requirements", nil))
	if err != nil {
		t.Fatalf("listRequirements() error = %v", err)
	}
	if !strings.Contains(resultText(t, result), `"kind": "presence"`) {
		t.Fatalf("unexpected requirements %s", resultText(t, result))
	}
}

func TestServerRegistersTools(t *testing.T) {
	s := NewTools(&verifierFake{}, &checklistFake{}).Server()
	if s == nil {
		t.Fatal("expected server")
	}
}
