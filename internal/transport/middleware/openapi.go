package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"

	errors "github.com/bhs-school/fee-payments/internal"
	"github.com/bhs-school/fee-payments/internal/transport"
)

const maxValidatedBody = 64 << 10

// ValidateJSONBody checks the request body against a component schema of the
// API document before the handler decodes it. The body is restored for the handler.
func ValidateJSONBody(base *transport.BaseHandler, doc *openapi3.T, schemaName string) (func(http.Handler) http.Handler, error) {
	if doc == nil || doc.Components == nil {
		return nil, fmt.Errorf("api document has no components")
	}
	ref, ok := doc.Components.Schemas[schemaName]
	if !ok || ref == nil || ref.Value == nil {
		return nil, fmt.Errorf("schema %q not found in api document", schemaName)
	}
	schema := ref.Value

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxValidatedBody))
			if err != nil {
				base.HandleServiceError(w, errors.NewValidationError("unreadable request body", errors.ErrCodeInvalidPayload))
				return
			}

			var payload interface{}
			if err := json.Unmarshal(body, &payload); err != nil {
				base.HandleServiceError(w, errors.NewValidationError("invalid request body", errors.ErrCodeInvalidPayload).WithCause(err))
				return
			}

			if err := schema.VisitJSON(payload, openapi3.MultiErrors()); err != nil {
				base.HandleServiceError(w, schemaError(err))
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}, nil
}

func schemaError(err error) *errors.AppError {
	var details []errors.ValidationError

	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		for _, e := range multi {
			details = append(details, schemaFieldError(e))
		}
	} else {
		details = append(details, schemaFieldError(err))
	}

	return errors.NewValidationError("Validation failed", errors.ErrCodeValidationFailed).
		WithDetails(errors.ValidationErrors{Errors: details})
}

func schemaFieldError(err error) errors.ValidationError {
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		field := "body"
		if path := schemaErr.JSONPointer(); len(path) > 0 {
			field = path[len(path)-1]
		}
		return errors.ValidationError{
			Field:   field,
			Message: schemaErr.Reason,
			Code:    string(errors.ErrCodeValidationFailed),
		}
	}
	return errors.ValidationError{Field: "body", Message: err.Error(), Code: string(errors.ErrCodeValidationFailed)}
}
