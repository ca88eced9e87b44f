package web

// errors.go provides unified error responses for the API.
//
// Every error is logged with its technical detail and request ID, then
// mapped through core.MapError so clients only see the user message, the
// suggested action and a stable code.

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/recordqa/internal/core"
	"github.com/JonMunkholm/recordqa/internal/jobs"
	"github.com/JonMunkholm/recordqa/internal/logging"
)

var errRateLimited = errors.New("rate limit exceeded")

// ErrorResponse is the JSON body of every API error.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user message with a status derived
// from the error.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request error", "path", r.URL.Path, "method", r.Method, "status", status, "error", err.Error(), "code", msg.Code)
	} else {
		logger.Warn("request rejected", "path", r.URL.Path, "method", r.Method, "status", status, "error", err.Error(), "code", msg.Code)
	}

	writeError(w, r, status, msg)
}

// badRequest rejects malformed input that never reached the service.
func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	logging.FromContext(r.Context()).Warn("bad request", "path", r.URL.Path, "reason", message)
	writeError(w, r, http.StatusBadRequest, core.UserMessage{
		Message: message,
		Action:  "Check the request body and try again",
		Code:    "REQ001",
	})
}

func writeError(w http.ResponseWriter, _ *http.Request, status int, msg core.UserMessage) {
	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrSheetNotFound),
		errors.Is(err, core.ErrUnknownBlueprint),
		errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrRecordNotFound):
		return http.StatusConflict
	case errors.Is(err, core.ErrEmptyInput),
		errors.Is(err, core.ErrDuplicateRecordID),
		errors.Is(err, core.ErrInvalidSchema):
		return http.StatusBadRequest
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
