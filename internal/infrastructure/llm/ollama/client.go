package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/asn-portal/internal/core/domain"
	"github.com/kirillkom/asn-portal/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

// DocumentClassifier asks a local model which document type OCR text
// belongs to. It only runs when keyword detection was inconclusive.
type DocumentClassifier struct {
	client *Client
}

func NewDocumentClassifier(client *Client) *DocumentClassifier {
	return &DocumentClassifier{client: client}
}

type classification struct {
	DocumentType string  `json:"documentType"`
	Confidence   float64 `json:"confidence"`
}

func (c *DocumentClassifier) ClassifyDocument(ctx context.Context, text string, candidates []domain.DocumentType) (domain.ContentDetection, error) {
	detection := domain.ContentDetection{Source: "ollama"}
	respText, err := c.client.generateJSON(ctx, buildClassificationPrompt(text, candidates))
	if err != nil {
		return detection, err
	}

	var result classification
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &result); err != nil {
		return detection, fmt.Errorf("parse classification json: %w", err)
	}

	detection.Confidence = result.Confidence
	guess := domain.DocumentType(strings.ToLower(strings.TrimSpace(result.DocumentType)))
	for _, candidate := range candidates {
		if guess == candidate {
			detection.DetectedType = &guess
			break
		}
	}
	return detection, nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":   c.genModel,
		"prompt":  prompt,
		"stream":  false,
		"format":  "json",
		"options": map[string]any{"temperature": 0},
	}

	var response struct {
		Response string `json:"response"`
	}
	err := c.executor.Execute(ctx, "ollama.generate", func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/generate", reqBody, &response, "generate")
	}, classifyOllamaError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama generate", err)
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
