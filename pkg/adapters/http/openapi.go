package http

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

//go:embed openapi.yaml
var rawSpec []byte

var (
	specOnce sync.Once
	specDoc  *openapi3.T
	specErr  error
)

// Spec returns the OpenAPI document describing this API, parsed and validated.
func Spec() (*openapi3.T, error) {
	specOnce.Do(func() {
		doc, err := openapi3.NewLoader().LoadFromData(rawSpec)
		if err != nil {
			specErr = fmt.Errorf("failed to parse openapi document: %w", err)
			return
		}
		if err := doc.Validate(context.Background()); err != nil {
			specErr = fmt.Errorf("invalid openapi document: %w", err)
			return
		}
		specDoc = doc
	})
	return specDoc, specErr
}

// RawSpec returns the embedded OpenAPI document as YAML.
func RawSpec() []byte {
	return append([]byte(nil), rawSpec...)
}

func newRequestRouter() (routers.Router, error) {
	doc, err := Spec()
	if err != nil {
		return nil, err
	}
	return legacy.NewRouter(doc)
}

// validateRequests rejects requests to documented operations whose
// parameters or body do not satisfy the OpenAPI document.
// Undocumented routes (metrics, swagger) pass through untouched.
func (s *Server) validateRequests(router routers.Router) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, params, err := router.FindRoute(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: params,
				Route:      route,
				Options: &openapi3filter.Options{
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				},
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				s.logger.Warn("request rejected by schema", "path", r.URL.Path, "error", err)
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Reason: "invalid_request"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
