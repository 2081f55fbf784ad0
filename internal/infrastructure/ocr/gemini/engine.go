package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kirillkom/asn-portal/internal/core/domain"
	"github.com/kirillkom/asn-portal/internal/core/ports"
	"github.com/kirillkom/asn-portal/internal/infrastructure/resilience"
)

const transcribePrompt = `You are an OCR engine for Indonesian identity and education documents.
Transcribe every line of text visible in the image exactly as printed, keeping line breaks.
Return strict JSON object with keys:
text (string, the transcription), confidence (number from 0 to 1, how legible the document is).
No markdown, no extra keys.`

// generator is the part of *genai.GenerativeModel the engine uses.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Engine transcribes images with a Gemini model on Vertex AI.
type Engine struct {
	client   *genai.Client
	model    generator
	executor *resilience.Executor
}

type Config struct {
	ProjectID string
	Location  string
	Model     string
}

func New(ctx context.Context, cfg Config, executor *resilience.Executor) (*Engine, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, fmt.Errorf("gemini ocr: GOOGLE_CLOUD_PROJECT is not set")
	}
	if cfg.Location == "" {
		cfg.Location = "us-central1"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("create vertex ai client: %w", err)
	}
	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(0)
	model.SetMaxOutputTokens(4096)
	model.ResponseMIMEType = "application/json"

	engine := newEngine(model, executor)
	engine.client = client
	return engine, nil
}

func newEngine(model generator, executor *resilience.Executor) *Engine {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Engine{model: model, executor: executor}
}

func (e *Engine) Name() string { return "gemini" }

func (e *Engine) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

func (e *Engine) Recognize(ctx context.Context, img ports.OCRImage) (domain.OcrResult, error) {
	data, err := os.ReadFile(img.Path)
	if err != nil {
		return domain.OcrResult{}, fmt.Errorf("read image: %w", err)
	}
	format := imageFormat(img.MimeType)

	raw, err := resilience.Call(ctx, e.executor, "ocr.gemini", func(ctx context.Context) (string, error) {
		resp, err := e.model.GenerateContent(ctx, genai.ImageData(format, data), genai.Text(transcribePrompt))
		if err != nil {
			return "", err
		}
		return responseText(resp)
	}, classifyVertexError)
	if err != nil {
		if resilience.IsCircuitOpen(err) || classifyVertexError(err).Retryable {
			return domain.OcrResult{}, domain.WrapError(domain.ErrTemporary, "gemini ocr", err)
		}
		return domain.OcrResult{}, fmt.Errorf("gemini ocr: %w", err)
	}

	var parsed struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		return domain.OcrResult{}, fmt.Errorf("parse gemini ocr json: %w", err)
	}
	return domain.OcrResult{
		Text:       strings.TrimSpace(parsed.Text),
		Confidence: parsed.Confidence,
		Success:    true,
		Provider:   e.Name(),
	}, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no response candidates returned")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("response has no text parts")
	}
	return b.String(), nil
}

// imageFormat turns "image/jpeg" into the subtype genai.ImageData expects.
func imageFormat(mimeType string) string {
	format := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
	switch format {
	case "", "jpg":
		return "jpeg"
	default:
		return format
	}
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func classifyVertexError(err error) resilience.ErrorClassification {
	if err == nil || resilience.IsCanceled(err) {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Internal, codes.Aborted:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		case codes.InvalidArgument, codes.FailedPrecondition:
			return resilience.ErrorClassification{}
		}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
