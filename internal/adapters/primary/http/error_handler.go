package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	mw "github.com/lorrc/ticket-tally/internal/adapters/primary/http/middleware"
	apperrors "github.com/lorrc/ticket-tally/internal/core/errors"
)

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	return mw.GetRequestID(ctx)
}

// ErrorResponse is the standard JSON error response format
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ValidationErrorResponse includes field-level validation errors
type ValidationErrorResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// errorMapping ties a sentinel to its HTTP status. The first match wins.
type errorMapping struct {
	target  error
	status  int
	code    string
	message string // empty means use err.Error()
}

var errorMappings = []errorMapping{
	{apperrors.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials"},
	{apperrors.ErrStoreUnavailable, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "The tally store is unavailable. Please try again later."},
}

// ErrorHandler turns service errors into JSON responses and logs them.
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler with the given logger
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle writes the response for err. AppError carries its own status,
// ValidationErrors become 422 with per-field messages, known sentinels are
// mapped through errorMappings and anything else is a 500.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		h.logError(r, appErr.StatusCode, appErr.Err)
		WriteJSON(w, appErr.StatusCode, ErrorResponse{
			Error:   appErr.Message,
			Code:    appErr.Code,
			Details: appErr.Details,
		})
		return
	}

	var verrs *apperrors.ValidationErrors
	if errors.As(err, &verrs) {
		h.logError(r, http.StatusUnprocessableEntity, err)
		WriteJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
			Error:  "Validation failed",
			Code:   "VALIDATION_ERROR",
			Fields: verrs.Errors,
		})
		return
	}

	status, resp := mapError(err)
	h.logError(r, status, err)
	WriteJSON(w, status, resp)
}

func mapError(err error) (int, ErrorResponse) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		msg := m.message
		if msg == "" {
			msg = err.Error()
		}
		return m.status, ErrorResponse{Error: msg, Code: m.code}
	}
	return http.StatusInternalServerError, ErrorResponse{
		Error: "An unexpected error occurred",
		Code:  "INTERNAL_ERROR",
	}
}

// logError logs the error; request id and operator come from the context
func (h *ErrorHandler) logError(r *http.Request, status int, err error) {
	level := slog.LevelInfo
	msg := "request error"
	switch {
	case status >= 500:
		level, msg = slog.LevelError, "server error"
	case status >= 400:
		level, msg = slog.LevelWarn, "client error"
	}

	var errText string
	if err != nil {
		errText = err.Error()
	}
	h.logger.Log(r.Context(), level, msg,
		"method", r.Method,
		"path", r.URL.Path,
		"status_code", status,
		"error", errText,
	)
}

// HandleError handles err if it is non-nil and reports whether it did.
//
//	if HandleError(w, r, err, h.errorHandler) { return }
func HandleError(w http.ResponseWriter, r *http.Request, err error, handler *ErrorHandler) bool {
	if err == nil {
		return false
	}
	handler.Handle(w, r, err)
	return true
}
