//go:build !cgo || notesseract

package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/asn-portal/internal/config"
)

func TestBuildOCRWithoutTesseractExplainsAlternative(t *testing.T) {
	app := &App{}
	_, err := app.buildOCR(context.Background(), config.Config{OCRProvider: "tesseract"}, nil)
	if !errors.Is(err, errTesseractUnavailable) {
		t.Fatalf("expected tesseract unavailable error, got %v", err)
	}
}
