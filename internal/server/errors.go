package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/tender-extractor/internal/common"
)

// defaultRetryAfter is sent on 429 when the provider gave no hint.
const defaultRetryAfter = 60 * time.Second

// APIError is the JSON body of every failed request.
type APIError struct {
	Status     int    `json:"-"`
	Success    bool   `json:"success"`
	Message    string `json:"error"`
	Code       string `json:"code"`
	RetryAfter int    `json:"retryAfter,omitempty"` // seconds
	Details    string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Checked in order; the first sentinel found in the chain wins.
var errorMappings = []errorMapping{
	{common.ErrNoFileUploaded, http.StatusBadRequest, "NO_FILE", "No file uploaded"},
	{common.ErrUnsupportedFileType, http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "Only PDF files are accepted"},
	{common.ErrEmptyExtractedText, http.StatusBadRequest, "EMPTY_PDF", "No extractable text found in PDF"},
	{common.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT", "Invalid request"},
	{common.ErrRecordNotFound, http.StatusNotFound, "NOT_FOUND", "Not found"},
	{common.ErrInvalidStatusTransition, http.StatusConflict, "INVALID_STATUS_TRANSITION", "Document is not in a state that allows this change"},
	{common.ErrProviderQuotaExceeded, http.StatusTooManyRequests, "PROVIDER_QUOTA_EXCEEDED", "AI provider quota exceeded, try again later"},
	{common.ErrProviderRateLimited, http.StatusTooManyRequests, "PROVIDER_RATE_LIMITED", "AI provider is rate limiting requests, try again later"},
	{common.ErrProviderAuth, http.StatusInternalServerError, "PROVIDER_AUTH", "AI provider rejected the configured credentials"},
	{common.ErrInvalidResponseFormat, http.StatusInternalServerError, "INVALID_RESPONSE_FORMAT", "AI provider returned a response that could not be parsed"},
	{common.ErrProviderFailure, http.StatusInternalServerError, "PROVIDER_FAILURE", "AI provider request failed"},
	{common.ErrStoreWrite, http.StatusInternalServerError, "STORE_WRITE_FAILURE", "Failed to save document"},
	{common.ErrQueueClosed, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Server is shutting down"},
}

// toAPIError converts err for the response body. Underlying error text is
// only included outside production.
func toAPIError(err error, production bool) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		out := newAPIError(m.status, m.code, m.message)
		var appErr *common.AppError
		if m.status == http.StatusBadRequest && errors.As(err, &appErr) && appErr.Message != "" {
			out.Message = appErr.Message
		}
		if m.status == http.StatusTooManyRequests {
			hint := common.RetryAfterHint(err)
			if hint <= 0 {
				hint = defaultRetryAfter
			}
			out.RetryAfter = int((hint + time.Second - 1) / time.Second)
		}
		if !production && m.status >= http.StatusInternalServerError {
			out.Details = err.Error()
		}
		return out
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return fromHTTPError(he)
	}

	out := newAPIError(http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
	if !production {
		out.Details = err.Error()
	}
	return out
}

func fromHTTPError(he *echo.HTTPError) *APIError {
	msg := http.StatusText(he.Code)
	if s, ok := he.Message.(string); ok && s != "" {
		msg = s
	}
	switch he.Code {
	case http.StatusNotFound:
		return newAPIError(he.Code, "NOT_FOUND", "Not found")
	case http.StatusRequestEntityTooLarge:
		return newAPIError(he.Code, "FILE_TOO_LARGE", "Uploaded file exceeds the size limit")
	case http.StatusTooManyRequests:
		out := newAPIError(he.Code, "RATE_LIMITED", "Too many requests")
		out.RetryAfter = 1
		return out
	default:
		return newAPIError(he.Code, "HTTP_ERROR", msg)
	}
}

// ErrorHandler returns the echo error handler used for every route.
func ErrorHandler(production bool, logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		apiErr := toAPIError(err, production)
		ctx := c.Request().Context()
		if apiErr.Status >= http.StatusInternalServerError {
			logger.Error("http.request.error", append(common.LogAttrs(ctx),
				"path", c.Path(), "code", apiErr.Code, "error", err)...)
		} else {
			logger.Debug("http.request.rejected", append(common.LogAttrs(ctx),
				"path", c.Path(), "code", apiErr.Code, "error", err)...)
		}

		if apiErr.RetryAfter > 0 {
			c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(apiErr.RetryAfter))
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(apiErr.Status)
			return
		}
		_ = c.JSON(apiErr.Status, apiErr)
	}
}
