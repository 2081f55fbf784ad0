// Package mcpadapter exposes verification and checklist scoring as MCP
// tools over stdio, for reviewers working from an assistant client.
package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/asn-portal/internal/core/domain"
	"github.com/kirillkom/asn-portal/internal/core/ports"
)

const (
	serverName    = "asn-verifier"
	serverVersion = "1.0.0"
)

type Tools struct {
	verifier  ports.DocumentVerifier
	checklist ports.ChecklistEvaluator
}

func NewTools(verifier ports.DocumentVerifier, checklist ports.ChecklistEvaluator) *Tools {
	return &Tools{verifier: verifier, checklist: checklist}
}

// Server builds the MCP server with every tool registered.
func (t *Tools) Server() *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))

	documentTypes := make([]string, 0, 4)
	for _, p := range domain.Profiles() {
		documentTypes = append(documentTypes, string(p.Type))
	}

	s.AddTool(mcp.NewTool("verify_document",
		mcp.WithDescription("Run OCR and fraud heuristics on a local document image and return the verification report."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to a JPEG, PNG, WEBP, BMP or TIFF image.")),
		mcp.WithString("documentType", mcp.Description("Declared document type, defaults to ktp."), mcp.Enum(documentTypes...)),
	), t.verifyDocument)

	s.AddTool(mcp.NewTool("evaluate_checklist",
		mcp.WithDescription("Score an applicant against formasi requirements."),
		mcp.WithString("request", mcp.Required(),
			mcp.Description(`JSON object: {"applicant"|"applicantId", "formasi"|"formasiId", "documents"}.`)),
	), t.evaluateChecklist)

	s.AddTool(mcp.NewTool("list_requirements",
		mcp.WithDescription("List the active requirement set."),
	), t.listRequirements)

	return s
}

// ServeStdio blocks until stdin closes.
func (t *Tools) ServeStdio() error {
	return server.ServeStdio(t.Server())
}

func (t *Tools) verifyDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	docType := req.GetString("documentType", string(domain.DocumentKTP))

	report, err := VerifyFile(ctx, t.verifier, path, docType)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(report)
}

// VerifyFile runs a local image through the verifier. Also used by the
// operator CLI.
func VerifyFile(ctx context.Context, verifier ports.DocumentVerifier, path, documentType string) (*domain.VerificationReport, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open document", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "stat document", err)
	}
	mimeType, err := detectMime(file, path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read document", err)
	}

	docType := strings.ToLower(strings.TrimSpace(documentType))
	if docType == "" {
		docType = string(domain.DocumentKTP)
	}
	return verifier.Verify(ctx, ports.VerifyRequest{
		Document: domain.UploadedDocument{
			Filename:     filepath.Base(path),
			MimeType:     mimeType,
			DocumentType: domain.DocumentType(docType),
			Size:         info.Size(),
		},
		Body: file,
	})
}

func (t *Tools) evaluateChecklist(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("request")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var checklistReq ports.ChecklistRequest
	if err := json.Unmarshal([]byte(raw), &checklistReq); err != nil {
		return mcp.NewToolResultError("request must be a JSON object: " + err.Error()), nil
	}
	checklist, err := t.checklist.Evaluate(ctx, checklistReq)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(checklist)
}

func (t *Tools) listRequirements(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.checklist.Requirements())
}

// detectMime prefers the extension and falls back to sniffing. The file
// offset is restored afterwards.
func detectMime(file io.ReadSeeker, path string) (string, error) {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		mediaType, _, err := mime.ParseMediaType(byExt)
		if err == nil {
			return mediaType, nil
		}
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	mediaType, _, _ := mime.ParseMediaType(http.DetectContentType(head[:n]))
	return mediaType, nil
}

// toolError reports caller mistakes verbatim and hides everything else.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrPayloadTooLarge),
		domain.IsKind(err, domain.ErrUnsupportedMedia),
		domain.IsKind(err, domain.ErrNotFound):
		return mcp.NewToolResultError(err.Error())
	default:
		slog.Error("mcp_tool_failed", "error", err)
		return mcp.NewToolResultError("internal error")
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
