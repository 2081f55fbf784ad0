package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/kirillkom/asn-portal/internal/core/domain"
	"github.com/kirillkom/asn-portal/internal/core/usecase"
)

const (
	maxFieldBytes     = 64 << 10
	multipartOverhead = 1 << 20
	sniffLen          = 512
)

type verifyUpload struct {
	filename     string
	mimeType     string
	data         []byte
	documentType domain.DocumentType
	applicant    *domain.Applicant
	applicantID  string
	formasiID    string
}

// readUpload streams the multipart form into memory. Nothing reaches the
// filesystem here; an oversized file is rejected while it is being read.
func (rt *Router) readUpload(w http.ResponseWriter, r *http.Request) (*verifyUpload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes+multipartOverhead)
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read upload", errors.New("multipart form data is required"))
	}

	upload := &verifyUpload{documentType: domain.DocumentKTP}
	seenFile := false
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, rt.readError(err)
		}

		switch part.FormName() {
		case "file":
			if seenFile {
				break
			}
			seenFile = true
			if err := rt.readFilePart(part, upload); err != nil {
				return nil, err
			}
		case "documentType":
			value, err := readField(part)
			if err != nil {
				return nil, rt.readError(err)
			}
			if value = strings.ToLower(strings.TrimSpace(value)); value != "" {
				upload.documentType = domain.DocumentType(value)
			}
		case "applicant":
			value, err := readField(part)
			if err != nil {
				return nil, rt.readError(err)
			}
			if strings.TrimSpace(value) != "" {
				var applicant domain.Applicant
				if err := json.Unmarshal([]byte(value), &applicant); err != nil {
					return nil, domain.WrapError(domain.ErrInvalidInput, "read upload", errors.New("field 'applicant' must be a JSON object"))
				}
				upload.applicant = &applicant
			}
		case "applicantId":
			value, err := readField(part)
			if err != nil {
				return nil, rt.readError(err)
			}
			upload.applicantID = strings.TrimSpace(value)
		case "formasiId":
			value, err := readField(part)
			if err != nil {
				return nil, rt.readError(err)
			}
			upload.formasiID = strings.TrimSpace(value)
		}
		_ = part.Close()
	}

	if !seenFile {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read upload", errors.New("multipart field 'file' is required"))
	}
	return upload, nil
}

func (rt *Router) readFilePart(part *multipart.Part, upload *verifyUpload) error {
	data, err := io.ReadAll(io.LimitReader(part, rt.maxUploadBytes+1))
	if err != nil {
		return rt.readError(err)
	}
	if int64(len(data)) > rt.maxUploadBytes {
		return usecase.UploadTooLarge("read upload", rt.maxUploadBytes)
	}
	upload.filename = part.FileName()
	upload.data = data
	upload.mimeType = partMimeType(part.Header.Get("Content-Type"), data)
	return nil
}

// partMimeType trusts the declared part type unless the client sent a
// generic one, in which case the content is sniffed.
func partMimeType(declared string, data []byte) string {
	mediaType, _, err := mime.ParseMediaType(declared)
	if err == nil && mediaType != "" && mediaType != "application/octet-stream" {
		return mediaType
	}
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(head))
	return sniffed
}

func (rt *Router) readError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return usecase.UploadTooLarge("read upload", rt.maxUploadBytes)
	}
	if domain.IsKind(err, domain.ErrInvalidInput) {
		return err
	}
	return domain.WrapError(domain.ErrInvalidInput, "read upload", fmt.Errorf("malformed multipart body: %w", err))
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxFieldBytes {
		return "", domain.WrapError(domain.ErrInvalidInput, "read field", fmt.Errorf("field %q is too long", part.FormName()))
	}
	return string(data), nil
}
