package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"testing"

	"github.com/kirillkom/asn-portal/internal/config"
	"github.com/kirillkom/asn-portal/internal/core/domain"
	"github.com/kirillkom/asn-portal/internal/core/ports"
)

const ktpText = `PROVINSI JAWA BARAT
KABUPATEN BANDUNG
NIK : 3204014501900003
Nama : SITI AMINAH
Tempat/Tgl Lahir : BANDUNG, 05-01-1990
Jenis Kelamin : PEREMPUAN
Alamat : JL MERDEKA 1
Agama : ISLAM
Status Perkawinan : KAWIN
Pekerjaan : GURU
Kewarganegaraan : WNI
Berlaku Hingga : SEUMUR HIDUP`

type ocrFake struct {
	result domain.OcrResult
	err    error
	seen   ports.OCRImage
	calls  int
}

func (f *ocrFake) Name() string { return "fake" }

func (f *ocrFake) Recognize(_ context.Context, img ports.OCRImage) (domain.OcrResult, error) {
	f.calls++
	f.seen = img
	if _, err := os.Stat(img.Path); err != nil {
		return domain.OcrResult{}, err
	}
	if f.err != nil {
		return domain.OcrResult{}, f.err
	}
	return f.result, nil
}

type checklistFake struct {
	report       *ports.ChecklistReport
	err          error
	requirements []domain.Requirement
	seen         ports.ChecklistRequest
}

func (f *checklistFake) Evaluate(ctx context.Context, req ports.ChecklistRequest) (*domain.Checklist, error) {
	report, err := f.EvaluateReport(ctx, req)
	if err != nil {
		return nil, err
	}
	return &report.Checklist, nil
}

func (f *checklistFake) EvaluateReport(_ context.Context, req ports.ChecklistRequest) (*ports.ChecklistReport, error) {
	f.seen = req
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func (f *checklistFake) Requirements() []domain.Requirement { return f.requirements }

type reviewsFake struct {
	items     []domain.ReviewItem
	err       error
	seenLimit int
}

func (f *reviewsFake) Record(context.Context, domain.VerificationCompleted) (bool, error) {
	return false, errors.New("not used")
}

func (f *reviewsFake) List(_ context.Context, limit int) ([]domain.ReviewItem, error) {
	f.seenLimit = limit
	return f.items, f.err
}

type verifierFunc func(context.Context, ports.VerifyRequest) (*domain.VerificationReport, error)

func (f verifierFunc) Verify(ctx context.Context, req ports.VerifyRequest) (*domain.VerificationReport, error) {
	return f(ctx, req)
}

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(cfg, nil, &checklistFake{}, &reviewsFake{}, nil).Handler()
}

type responseEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decodeEnvelope(t *testing.T, body []byte) responseEnvelope {
	t.Helper()
	var env responseEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode envelope %q: %v", body, err)
	}
	return env
}

// pngImage encodes a width x height image and pads it to at least size
// bytes. Decoders only read the header, so the padding is harmless.
func pngImage(t *testing.T, width, height, size int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, x%height, color.White)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if buf.Len() < size {
		buf.Write(make([]byte, size-buf.Len()))
	}
	return buf.Bytes()
}

type formPart struct {
	name, filename, contentType string
	body                        []byte
}

func multipartBody(t *testing.T, parts ...formPart) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, p := range parts {
		header := make(textproto.MIMEHeader)
		disposition := `form-data; name="` + p.name + `"`
		if p.filename != "" {
			disposition += `; filename="` + p.filename + `"`
		}
		header.Set("Content-Disposition", disposition)
		if p.contentType != "" {
			header.Set("Content-Type", p.contentType)
		}
		w, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("CreatePart() error = %v", err)
		}
		if _, err := w.Write(p.body); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}
