package httpadapter

import (
	"net/http"

	"github.com/kirillkom/asn-portal/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrPayloadTooLarge),
		domain.IsKind(err, domain.ErrUnsupportedMedia):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides internal error text from clients.
func publicMessage(status int, err error) string {
	switch status {
	case http.StatusInternalServerError:
		return "internal server error"
	case http.StatusServiceUnavailable:
		return "service temporarily unavailable, retry later"
	default:
		return err.Error()
	}
}
