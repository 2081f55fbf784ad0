//go:build cgo && !notesseract

package bootstrap

import (
	"github.com/kirillkom/asn-portal/internal/core/ports"
	"github.com/kirillkom/asn-portal/internal/infrastructure/ocr/tesseract"
	"github.com/kirillkom/asn-portal/internal/infrastructure/resilience"
)

func newTesseractOCR(exec *resilience.Executor, maxConcurrent int) (ports.OCREngine, error) {
	return tesseract.New(exec, maxConcurrent), nil
}
