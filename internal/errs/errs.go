// Package errs centralizes the sentinel errors and wrapping helpers used
// throughout the enclave runtime, the host bridge, and the registry.
package errs

import (
	"errors"
	"fmt"
)

var (
	InvalidFormat = errors.New("invalid format")
	InvalidLength = errors.New("invalid length")
	IsNil         = errors.New("argument must not be nil")

	// BadRequest-class errors: malformed input, never retried.
	BadRequest = errors.New("bad request")

	// SecretNotInitialized is returned when a secret is read before the
	// bootstrap phase has written it.
	SecretNotInitialized = errors.New("secret not initialized")

	// AttestationFailed wraps NSM errors; generally transient.
	AttestationFailed = errors.New("attestation failed")

	// Seal bootstrap protocol errors, returned to the host.
	ErrSignatureMismatch  = errors.New("seal: signature mismatch")
	ErrThresholdNotMet    = errors.New("seal: threshold not met")
	ErrDecryptionFailed   = errors.New("seal: decryption failed")
	ErrCertificateExpired = errors.New("seal: certificate expired")
	ErrAlreadyLoaded      = errors.New("seal: already loaded")
	ErrNotInitialized     = errors.New("seal: not initialized")

	// UpstreamError wraps an application-specific failure from process().
	UpstreamError = errors.New("upstream error")

	// Registry mutation errors, mirroring the on-chain abort codes 0-3.
	InvalidPCRs         = errors.New("registry: invalid pcrs")
	InvalidConfigVersion = errors.New("registry: invalid config version")
	InvalidCap          = errors.New("registry: invalid capability")
	InvalidOwner        = errors.New("registry: invalid owner")

	// NotFound is returned when an id doesn't resolve to any known object.
	NotFound = errors.New("not found")

	// ErrNotStale guards destroy_old_enclave: only an instance pinned to a
	// config version older than the config's current version may be
	// destroyed permissionlessly.
	ErrNotStale = errors.New("registry: instance is not stale")
)

// Wrap wraps *err, if non-nil, with the given formatted prefix.
func Wrap(err *error, str string, args ...any) {
	if *err != nil {
		*err = fmt.Errorf("%s: %w", fmt.Sprintf(str, args...), *err)
	}
}

// WrapErr wraps *err, if non-nil, so that it additionally matches the given
// sentinel error via errors.Is.
func WrapErr(err *error, sentinel error) {
	if *err != nil {
		*err = fmt.Errorf("%w: %w", sentinel, *err)
	}
}

// Add returns nil if err is nil, and otherwise wraps err with the given
// formatted prefix. Unlike Wrap, it operates on a value instead of a
// pointer, which is convenient for use in defer statements that join
// multiple independent errors.
func Add(err error, str string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(str, args...), err)
}

// Join assigns errors.Join(*err, more) to *err, skipping nil arguments.
func Join(err *error, more error) {
	if more == nil {
		return
	}
	*err = errors.Join(*err, more)
}
