package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/sqlassist/sqlassist/internal/apperr"
	"github.com/sqlassist/sqlassist/internal/library"
	"github.com/sqlassist/sqlassist/internal/nl2sql"
)

// writeDomainError maps the conversion error kinds onto HTTP responses.
func writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		configErr     *apperr.ConfigError
		validationErr *apperr.ValidationError
		parseErr      *apperr.ParseError
		inferenceErr  *apperr.InferenceFailure
	)
	switch {
	case errors.Is(err, nl2sql.ErrBusy):
		writeError(ctx, w, http.StatusConflict, "CONVERSION_IN_PROGRESS", err.Error(), true, nil)
	case errors.As(err, &validationErr):
		writeError(ctx, w, http.StatusBadRequest, "VALIDATION_FAILED", validationErr.Message, false, map[string]any{"field": validationErr.Field})
	case errors.As(err, &parseErr):
		writeError(ctx, w, http.StatusBadRequest, "INVALID_SCHEMA", parseErr.Error(), false, nil)
	case errors.As(err, &configErr):
		writeError(ctx, w, http.StatusServiceUnavailable, "NOT_CONFIGURED", configErr.Error(), false, nil)
	case errors.As(err, &inferenceErr):
		extra := map[string]any{}
		if inferenceErr.StatusCode > 0 {
			extra["upstream_status"] = inferenceErr.StatusCode
		}
		writeError(ctx, w, http.StatusBadGateway, "INFERENCE_FAILED", inferenceErr.Error(), true, extra)
	case errors.Is(err, library.ErrNotFound):
		writeError(ctx, w, http.StatusNotFound, "SCHEMA_NOT_FOUND", err.Error(), false, nil)
	default:
		writeError(ctx, w, http.StatusInternalServerError, "INTERNAL", "internal error", true, map[string]any{"details": err.Error()})
	}
}
