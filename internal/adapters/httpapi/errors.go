package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"agroconsole/internal/core"
	"agroconsole/pkg/domain"
)

// writeServiceError maps service errors onto HTTP statuses. Rule violations
// carry the full violation list so forms can mark the offending fields.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var (
		violation domain.RuleViolationError
		notFound  domain.ErrNotFound
		catalog   core.ErrUnknownCatalog
		settings  core.ErrUnknownSettings
		duplicate domain.ErrDuplicateKey
	)
	switch {
	case errors.As(err, &violation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      err.Error(),
			"violations": violation.Result.Violations,
		})
	case errors.As(err, &notFound), errors.As(err, &catalog), errors.As(err, &settings):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrNotDeletable), errors.Is(err, core.ErrCodeImmutable), errors.As(err, &duplicate):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrInvalidSort):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
