package web

// errors.go turns handler errors into responses.
//
// The technical error is logged with the request id; the client gets the
// coded message from core.MapError as JSON for API calls, as an alert
// fragment for HTMX, or as plain text otherwise.

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/stocktransfer/internal/core"
	"github.com/JonMunkholm/stocktransfer/internal/logging"
	"github.com/JonMunkholm/stocktransfer/internal/web/templates"
)

var (
	errRateLimited  = errors.New("rate limit exceeded")
	errInvalidRunID = errors.New("invalid run id")
	errFileTooLarge = errors.New("file too large or invalid form")
)

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the user form of it.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	switch {
	case isHTMX(r):
		renderErrorPartial(w, r, userMsg, statusCode)
	case wantsJSON(r):
		respondErrorJSON(w, userMsg, statusCode)
	default:
		http.Error(w, userMsg.Message+" ("+userMsg.Code+")", statusCode)
	}
}

// statusFor picks the HTTP status of a service error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyRuns):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrNoFiles),
		errors.Is(err, core.ErrUnsupportedFile),
		errors.Is(err, errInvalidRunID),
		errors.Is(err, errFileTooLarge):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// errorTarget is the element of the upload page that shows results.
const errorTarget = "#result"

// renderErrorPartial renders the error alert for an HTMX request. htmx does
// not swap 4xx/5xx responses, so the alert goes out as 200 retargeted at the
// result area; X-Error-Status keeps the real status.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("HX-Retarget", errorTarget)
	w.Header().Set("HX-Reswap", "innerHTML")
	w.Header().Set("X-Error-Status", strconv.Itoa(statusCode))
	w.WriteHeader(http.StatusOK)
	_ = templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// clientIP returns the host part of RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
