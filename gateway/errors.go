package gateway

import (
	"context"
	"errors"
	"log/slog"

	"github.com/izavyalov-dev/recipebox/internal/observability"
	"github.com/izavyalov-dev/recipebox/recipes"
)

// Error codes reported in GraphQL error extensions and HTTP error bodies.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeInternal           = "INTERNAL"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
)

// resolverError carries a classified error to the GraphQL response. graphql-go
// copies Extensions into the formatted error.
type resolverError struct {
	code    string
	field   string
	message string
	cause   error
}

func (e *resolverError) Error() string {
	return e.message
}

func (e *resolverError) Unwrap() error {
	return e.cause
}

func (e *resolverError) Extensions() map[string]interface{} {
	ext := map[string]interface{}{"code": e.code}
	if e.field != "" {
		ext["field"] = e.field
	}
	return ext
}

// classify maps a store error onto the public error contract. Storage and
// internal failures are logged and their details withheld from the caller.
func classify(ctx context.Context, logger *slog.Logger, operation string, err error) error {
	if err == nil {
		return nil
	}

	var verr *recipes.ValidationError
	switch {
	case errors.As(err, &verr):
		return &resolverError{code: CodeValidation, field: verr.Field, message: verr.Error(), cause: err}
	case errors.Is(err, recipes.ErrNotFound):
		return &resolverError{code: CodeNotFound, message: "recipe not found", cause: err}
	case errors.Is(err, recipes.ErrStorageUnavailable):
		requestLogger(ctx, logger).Error("resolver failed", "event", "resolver_failed", "operation", operation, "error", err)
		return &resolverError{code: CodeStorageUnavailable, message: "storage unavailable", cause: err}
	default:
		requestLogger(ctx, logger).Error("resolver failed", "event", "resolver_failed", "operation", operation, "error", err)
		return &resolverError{code: CodeInternal, message: "internal error", cause: err}
	}
}

func requestLogger(ctx context.Context, logger *slog.Logger) *slog.Logger {
	return observability.WithRequest(logger, RequestIDFromContext(ctx))
}
