//go:build cgo && !notesseract

package tesseract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/kirillkom/asn-portal/internal/core/domain"
	"github.com/kirillkom/asn-portal/internal/core/ports"
	"github.com/kirillkom/asn-portal/internal/infrastructure/resilience"
)

// Engine runs the local Tesseract library through gosseract. A fresh
// client is created per call because gosseract clients are not safe for
// concurrent use.
type Engine struct {
	executor *resilience.Executor
	newFn    func() *gosseract.Client
	// slots bounds concurrent Tesseract calls; each one pins a CPU.
	slots chan struct{}
}

func New(executor *resilience.Executor, maxConcurrent int) *Engine {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Engine{
		executor: executor,
		newFn:    gosseract.NewClient,
		slots:    make(chan struct{}, maxConcurrent),
	}
}

func (e *Engine) Name() string { return "tesseract" }

func (e *Engine) Recognize(ctx context.Context, img ports.OCRImage) (domain.OcrResult, error) {
	data, err := os.ReadFile(img.Path)
	if err != nil {
		return domain.OcrResult{}, fmt.Errorf("read image: %w", err)
	}

	select {
	case e.slots <- struct{}{}:
		defer func() { <-e.slots }()
	case <-ctx.Done():
		return domain.OcrResult{}, ctx.Err()
	}

	return resilience.Call(ctx, e.executor, "ocr.tesseract", func(ctx context.Context) (domain.OcrResult, error) {
		return e.recognize(ctx, data, img.Languages)
	}, nil)
}

func (e *Engine) recognize(ctx context.Context, data []byte, languages []string) (domain.OcrResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.OcrResult{}, err
	}
	c := e.newFn()
	defer c.Close()

	if err := c.SetImageFromBytes(data); err != nil {
		return domain.OcrResult{}, fmt.Errorf("set image: %w", err)
	}
	if len(languages) > 0 {
		if err := c.SetLanguage(languages...); err != nil {
			return domain.OcrResult{}, fmt.Errorf("set languages: %w", err)
		}
	}
	text, err := c.Text()
	if err != nil {
		return domain.OcrResult{}, fmt.Errorf("recognize text: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		boxes = nil
	}
	return domain.OcrResult{
		Text:       strings.TrimSpace(text),
		Confidence: meanConfidence(boxes),
		Success:    true,
		Provider:   e.Name(),
	}, nil
}

// meanConfidence averages word confidences, which gosseract reports on a
// 0-100 scale, into 0..1.
func meanConfidence(boxes []gosseract.BoundingBox) float64 {
	var (
		sum   float64
		count int
	)
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		sum += b.Confidence
		count++
	}
	if count == 0 {
		return 0
	}
	mean := sum / float64(count) / 100
	switch {
	case mean < 0:
		return 0
	case mean > 1:
		return 1
	default:
		return mean
	}
}
