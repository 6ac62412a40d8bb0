package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

// Response is the standard JSON response envelope used across all services.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// statusBodies holds the public code and message for errors that carry no
// AppError of their own. Anything missing renders as INTERNAL_ERROR.
var statusBodies = map[int]ErrorResponse{
	http.StatusNotFound:           {Code: "NOT_FOUND", Message: "resource not found"},
	http.StatusConflict:           {Code: "ALREADY_EXISTS", Message: "resource already exists"},
	http.StatusBadRequest:         {Code: "INVALID_INPUT", Message: "invalid input"},
	http.StatusUnauthorized:       {Code: "UNAUTHORIZED", Message: "authentication required"},
	http.StatusForbidden:          {Code: "FORBIDDEN", Message: "access denied"},
	http.StatusServiceUnavailable: {Code: "SERVICE_UNAVAILABLE", Message: "the service is temporarily unavailable, try again"},
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err in the standard envelope. AppErrors and validation
// errors keep their code, message and fields; sentinel errors get a fixed
// public body. Every 5xx is logged with its cause, which never reaches the
// client. The request-scoped logger wins over fallback when one is set.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		err = valErr.AppError()
	}

	status := apperrors.HTTPStatus(err)
	body, ok := statusBodies[status]
	if !ok {
		body = ErrorResponse{Code: "INTERNAL_ERROR", Message: "an internal error occurred"}
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body = ErrorResponse{Code: appErr.Code, Message: appErr.Message, Fields: appErr.Fields}
	}
	body.RequestID = logger.CorrelationIDFromContext(r.Context())

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.Int("status", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{Error: &body})
}

// WriteValidationError writes a 400. Validator errors carry their field
// messages; anything else is reported as a body that failed to decode.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		appErr := valErr.AppError()
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{Code: appErr.Code, Message: appErr.Message, Fields: appErr.Fields},
		})
		return
	}

	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: "INVALID_INPUT", Message: "request body could not be decoded"},
	})
}
