//go:build !cgo || notesseract

package bootstrap

import (
	"errors"

	"github.com/kirillkom/asn-portal/internal/core/ports"
	"github.com/kirillkom/asn-portal/internal/infrastructure/resilience"
)

// errTesseractUnavailable is returned by builds without libtesseract, such
// as CGO_ENABLED=0 worker images.
var errTesseractUnavailable = errors.New("tesseract OCR is not compiled into this binary (needs cgo and libtesseract); set OCR_PROVIDER=gemini")

func newTesseractOCR(*resilience.Executor, int) (ports.OCREngine, error) {
	return nil, errTesseractUnavailable
}
