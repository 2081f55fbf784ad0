package ollama

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/asn-portal/internal/core/domain"
	"github.com/kirillkom/asn-portal/internal/infrastructure/resilience"
)

// HTTPStatusError is a non-2xx answer from the Ollama API.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, body)
}

var (
	transientFailure = resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	permanentFailure = resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	callerFailure    = resilience.ErrorClassification{}
)

func classifyOllamaError(err error) resilience.ErrorClassification {
	var (
		statusErr *HTTPStatusError
		netErr    net.Error
	)
	switch {
	case err == nil, resilience.IsCanceled(err):
		return callerFailure
	case resilience.IsCircuitOpen(err):
		return transientFailure
	case errors.As(err, &statusErr):
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return transientFailure
		}
		// 4xx means a bad prompt or model name; the server itself is fine.
		return callerFailure
	case errors.As(err, &netErr):
		return transientFailure
	default:
		return permanentFailure
	}
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyOllamaError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
