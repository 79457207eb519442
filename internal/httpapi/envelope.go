package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dittostore/dittostore/internal/catalogerr"
	"github.com/dittostore/dittostore/internal/logger"
)

// ErrorBody is the error half of the response envelope.
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Envelope is the response shape spec.md §6 mandates for every JSON
// response except /health.
type Envelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
}

// WriteJSON writes data wrapped in the success envelope.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Envelope{Data: data, Error: nil}); err != nil {
		logger.Warn("failed to encode response body", "error", err.Error())
	}
}

// WriteNoContent writes a 204 with no body.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteError maps err to a status code via catalogerr.Status and writes the
// error envelope.
func WriteError(w http.ResponseWriter, err error) {
	status := catalogerr.Status(err)
	WriteErrorWithMessage(w, status, errMessage(err))
}

// WriteErrorWithMessage writes the error envelope with an explicit status
// and message, for callers that don't have a catalogerr sentinel (e.g. bad
// JSON bodies).
func WriteErrorWithMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := Envelope{Data: nil, Error: &ErrorBody{Code: status, Message: message}}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("failed to encode error response body", "error", err.Error())
	}
}

// catalogStatusOnly maps err to an HTTP status without writing a body, for
// HEAD responses where the client never sees a payload.
func catalogStatusOnly(err error) int {
	return catalogerr.Status(err)
}

// errMessage strips the internal wrapping context from an error so the
// client sees a stable, user-facing message for known sentinel classes.
func errMessage(err error) string {
	switch {
	case errors.Is(err, catalogerr.ErrNotFound):
		return "not found"
	case errors.Is(err, catalogerr.ErrConflict):
		return "conflict"
	case errors.Is(err, catalogerr.ErrBadRequest):
		return err.Error()
	case errors.Is(err, catalogerr.ErrForbidden):
		return err.Error()
	case errors.Is(err, catalogerr.ErrPayloadTooLarge):
		return "payload too large"
	default:
		return "internal error"
	}
}
