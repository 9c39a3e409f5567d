// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// Sentinel errors for the transport layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), accounting.IsNotFound(err):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, ErrValidation), accounting.IsBadInput(err):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case accounting.IsConflict(err):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case accounting.IsUnprocessable(err):
		Problem(w, http.StatusUnprocessableEntity, http.StatusText(http.StatusUnprocessableEntity), err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// Fail logs failures the caller cannot fix and writes the matching problem.
func Fail(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	clientErr := errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnauthorized) || accounting.IsValidation(err)
	if !clientErr && logger != nil {
		logger.Error(msg, slog.Any("error", err))
	}
	RespondError(w, err)
}
