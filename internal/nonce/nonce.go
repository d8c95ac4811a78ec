// Package nonce implements the random challenge value an attestation
// document can embed to show that it is fresh. /get_attestation does not
// take a nonce from its callers.
package nonce

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/url"

	"github.com/nautilus-tee/enclave-signer/internal/errs"
)

// Len is the length of a nonce in bytes.
const Len = 20

var (
	// Accessing rand.Reader via variable facilitates mocking.
	cryptoRead       = rand.Reader
	errNotEnoughRead = errors.New("failed to read enough random bytes")
)

// Nonce is a random value that guarantees attestation document freshness.
type Nonce [Len]byte

// URLEncode returns the nonce as a URL-encoded string.
func (n *Nonce) URLEncode() string {
	return url.QueryEscape(
		base64.StdEncoding.EncodeToString(n[:]),
	)
}

// New creates a new nonce.
func New() (*Nonce, error) {
	var newNonce Nonce
	n, err := cryptoRead.Read(newNonce[:])
	if err != nil {
		return nil, errNotEnoughRead
	}
	if n != Len {
		return nil, errNotEnoughRead
	}
	return &newNonce, nil
}

// ToSlice returns the nonce's bytes as a plain slice, for embedding into an
// attestation request's auxiliary fields.
func (n *Nonce) ToSlice() []byte {
	return n[:]
}

// FromSlice turns a byte slice into a nonce. Bytes beyond Len are ignored;
// a slice shorter than Len fails with errs.InvalidLength.
func FromSlice(s []byte) (*Nonce, error) {
	if len(s) < Len {
		return nil, errs.InvalidLength
	}

	var n Nonce
	copy(n[:], s[:Len])
	return &n, nil
}
