package httpadapter

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"

	"github.com/kirillkom/asn-portal/internal/core/domain"
)

//go:embed openapi.yaml
var openAPIDocument []byte

// contract validates JSON requests against the embedded OpenAPI document.
type contract struct {
	router routers.Router
}

var loadContract = sync.OnceValues(func() (*contract, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPIDocument)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}
	return &contract{router: router}, nil
})

func (c *contract) validate(r *http.Request) error {
	route, pathParams, err := c.router.FindRoute(r)
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "match route", err)
	}
	input := &openapi3filter.RequestValidationInput{
		Request:    r,
		PathParams: pathParams,
		Route:      route,
		Options:    &openapi3filter.Options{MultiError: false},
	}
	if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "validate request", errors.New(validationReason(err)))
	}
	return nil
}

func validationReason(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		var schemaErr *openapi3.SchemaError
		if errors.As(reqErr.Err, &schemaErr) {
			if pointer := schemaErr.JSONPointer(); len(pointer) > 0 {
				return fmt.Sprintf("%s: %s", strings.Join(pointer, "."), schemaErr.Reason)
			}
			return schemaErr.Reason
		}
		if reqErr.Parameter != nil {
			return fmt.Sprintf("parameter %q: %s", reqErr.Parameter.Name, reqErr.Reason)
		}
		if reqErr.Reason != "" {
			return reqErr.Reason
		}
	}
	return err.Error()
}
