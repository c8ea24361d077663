// internal/app/features/errors/errors.go
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/tallyhub/internal/app/system/apperr"
	"go.uber.org/zap"
)

// Error codes returned in the "error" field of JSON error bodies.
const (
	CodeBadRequest           = "bad_request"
	CodeIdentityUnavailable  = "identity_unavailable"
	CodePersistence          = "persistence_error"
	CodeConfirmationRequired = "confirmation_required"
	CodeCountOutOfRange      = "count_out_of_range"
	CodeRateLimited          = "rate_limited"
	CodeInternal             = "internal_error"
)

// Body is the JSON shape of every error response.
type Body struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorLogger logs failed requests and writes the matching JSON error body.
type ErrorLogger struct {
	Log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{Log: logger}
}

// Write maps err onto a status code and error body:
//
//	apperr.ErrIdentityUnavailable -> 401 identity_unavailable
//	apperr.ErrCountOutOfRange     -> 422 count_out_of_range
//	*apperr.PersistenceError      -> 502 persistence_error (store diagnostic as message)
//	anything else                 -> 500 internal_error
func (l *ErrorLogger) Write(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case stderrors.Is(err, apperr.ErrIdentityUnavailable):
		l.Log.Info(msg, requestFields(r, err)...)
		WriteJSON(w, http.StatusUnauthorized, CodeIdentityUnavailable, "Your session is not ready yet. Please retry.")
	case stderrors.Is(err, apperr.ErrCountOutOfRange):
		l.Log.Info(msg, requestFields(r, err)...)
		WriteJSON(w, http.StatusUnprocessableEntity, CodeCountOutOfRange, "That change would take the count out of range.")
	case apperr.IsPersistence(err):
		l.Log.Error(msg, requestFields(r, err)...)
		WriteJSON(w, http.StatusBadGateway, CodePersistence, err.Error())
	default:
		l.LogServerError(w, r, msg, err, "Something went wrong.")
	}
}

// LogServerError logs err at Error and responds 500 with userMsg.
func (l *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	l.Log.Error(msg, requestFields(r, err)...)
	WriteJSON(w, http.StatusInternalServerError, CodeInternal, userMsg)
}

// LogBadRequest logs at Debug and responds 400 with userMsg.
func (l *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	l.Log.Debug(msg, requestFields(r, err)...)
	WriteJSON(w, http.StatusBadRequest, CodeBadRequest, userMsg)
}

// ConfirmationRequired responds 409 for a destructive action sent without
// explicit confirmation.
func (l *ErrorLogger) ConfirmationRequired(w http.ResponseWriter, r *http.Request, userMsg string) {
	l.Log.Debug("confirmation required", zap.String("path", r.URL.Path))
	WriteJSON(w, http.StatusConflict, CodeConfirmationRequired, userMsg)
}

// RateLimited responds 429.
func (l *ErrorLogger) RateLimited(w http.ResponseWriter, r *http.Request) {
	l.Log.Info("rate limited", zap.String("path", r.URL.Path))
	w.Header().Set("Retry-After", "1")
	WriteJSON(w, http.StatusTooManyRequests, CodeRateLimited, "Too many updates. Slow down and try again.")
}

// WriteJSON writes an error body with the given status.
func WriteJSON(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Body{Error: code, Message: msg})
}

func requestFields(r *http.Request, err error) []zap.Field {
	return []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	}
}
