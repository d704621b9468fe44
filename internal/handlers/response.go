package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"webtracker/internal/apperr"
	"webtracker/internal/contextutil"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	writeJSON(ctx, w, status, ErrorResponse{Error: message})
}

// statusForError maps pipeline and query errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case apperr.IsKind(err, apperr.KindValidation):
		return http.StatusBadRequest
	case apperr.IsKind(err, apperr.KindNormalization):
		return http.StatusUnprocessableEntity
	case apperr.IsKind(err, apperr.KindEmbedding):
		return http.StatusBadGateway
	case apperr.IsKind(err, apperr.KindStore) && apperr.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleError logs err and writes the mapped status. Validation and
// normalization messages are returned to the client; others are not.
func handleError(ctx context.Context, w http.ResponseWriter, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)
	status := statusForError(err)

	msg := defaultMsg
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		logger.WarnContext(ctx, "request rejected", "status", status, "error", err)
		msg = err.Error()
	default:
		logger.ErrorContext(ctx, "request failed", "status", status, "error", err)
	}
	writeJSON(ctx, w, status, ErrorResponse{Error: msg, Kind: string(apperr.KindOf(err))})
}

// parseTime accepts RFC3339 or epoch milliseconds. An empty value is the zero time.
func parseTime(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if ms < 0 {
			return time.Time{}, apperr.Validation(field, "must not be negative")
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperr.Validation(field, fmt.Sprintf("invalid time %q: want RFC3339 or epoch milliseconds", raw))
	}
	return t, nil
}

// parseInt parses an optional integer query parameter.
func parseInt(field, raw string) (int64, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, apperr.Validation(field, fmt.Sprintf("invalid integer %q", raw))
	}
	return n, true, nil
}
