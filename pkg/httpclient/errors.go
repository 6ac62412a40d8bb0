package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// DownstreamErrorResponse mirrors the httputil.Response error envelope
// returned by storefront services.
type DownstreamErrorResponse struct {
	Error *struct {
		Code      string            `json:"code"`
		Message   string            `json:"message"`
		Fields    map[string]string `json:"fields,omitempty"`
		RequestID string            `json:"request_id,omitempty"`
	} `json:"error"`
}

// ParseResponseError turns a non-2xx response into an error. A body in the
// standard envelope keeps its code, message and fields; anything else is
// reported with the raw body. The body is consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	var downstream DownstreamErrorResponse
	if json.Unmarshal(bodyBytes, &downstream) == nil && downstream.Error != nil {
		e := downstream.Error
		return mapDownstreamError(resp.StatusCode, e.Code, e.Message, e.Fields, serviceName)
	}

	return fmt.Errorf("%s returned status %d: %s", serviceName, resp.StatusCode, string(bodyBytes))
}

// mapDownstreamError translates a downstream status code and error code into
// an AppError that keeps the original code and field-level messages, so a
// validation failure on the server stays a validation failure for the caller.
func mapDownstreamError(status int, code, message string, fields map[string]string, serviceName string) error {
	qualifiedMsg := fmt.Sprintf("%s: %s", serviceName, message)

	var sentinel error
	switch {
	case status == http.StatusNotFound:
		sentinel = apperrors.ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		sentinel = apperrors.ErrInvalidInput
	case status == http.StatusConflict:
		sentinel = apperrors.ErrConflict
	case status == http.StatusUnauthorized:
		sentinel = apperrors.ErrUnauthorized
	case status == http.StatusForbidden:
		sentinel = apperrors.ErrForbidden
	case status == http.StatusServiceUnavailable:
		sentinel = apperrors.ErrServiceUnavail
	case status >= 500:
		return fmt.Errorf("%s server error (%d/%s): %s", serviceName, status, code, message)
	}

	return &apperrors.AppError{
		Code:    code,
		Message: qualifiedMsg,
		Fields:  fields,
		Status:  status,
		Err:     sentinel,
	}
}
