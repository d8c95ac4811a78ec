package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nautilus-tee/enclave-signer/internal/errs"
)

func encode[T any](w http.ResponseWriter, status int, v T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode JSON", http.StatusInternalServerError)
		panic(fmt.Errorf("failed to encode json: %w", err))
	}
}

// statusFor maps an application or protocol error to the HTTP status
// code the handler should return, per the error kinds every handler is
// expected to catch and translate into the JSON error envelope.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.BadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errs.SecretNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, errs.AttestationFailed):
		return http.StatusInternalServerError
	case errors.Is(err, errs.UpstreamError):
		return http.StatusBadGateway
	case errors.Is(err, errs.ErrAlreadyLoaded), errors.Is(err, errs.ErrNotInitialized):
		return http.StatusConflict
	case errors.Is(err, errs.ErrSignatureMismatch),
		errors.Is(err, errs.ErrThresholdNotMet),
		errors.Is(err, errs.ErrDecryptionFailed),
		errors.Is(err, errs.ErrCertificateExpired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
