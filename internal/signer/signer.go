// Package signer binds Ed25519 signatures to the intent-message framing
// every signing request in this system uses: an intent byte identifying the
// application, a millisecond timestamp, and a BCS-encoded application
// payload. Signing and verification both operate over that framed message,
// never over the raw payload, so a signature can never be replayed under a
// different intent.
package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/nautilus-tee/enclave-signer/internal/bcs"
	"github.com/nautilus-tee/enclave-signer/internal/errs"
)

// KeyPair holds an Ed25519 signing key. It's generated once per enclave
// boot and never leaves the enclave in cleartext; only the public half is
// bound into the attestation document's user data.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// Generate creates a fresh Ed25519 key pair using the runtime's CSPRNG.
func Generate() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

// Message builds the exact byte sequence a signature covers: the intent
// byte, the timestamp in milliseconds as a fixed 8-byte little-endian
// integer, and the caller-supplied BCS-encoded payload, concatenated with
// no additional framing.
func Message(intent byte, timestampMs uint64, bcsPayload []byte) []byte {
	enc := bcs.NewEncoder().WriteByte(intent).WriteU64(timestampMs)
	return append(enc.Bytes(), bcsPayload...)
}

// Sign signs the intent message built from intent, timestampMs, and
// bcsPayload, returning both the message that was signed and the signature
// itself.
func (kp *KeyPair) Sign(intent byte, timestampMs uint64, bcsPayload []byte) (message, signature []byte) {
	message = Message(intent, timestampMs, bcsPayload)
	signature = ed25519.Sign(kp.Private, message)
	return message, signature
}

// Verify reports whether signature is a valid Ed25519 signature by pub over
// the intent message built from intent, timestampMs, and bcsPayload.
func Verify(pub ed25519.PublicKey, intent byte, timestampMs uint64, bcsPayload, signature []byte) bool {
	message := Message(intent, timestampMs, bcsPayload)
	return ed25519.Verify(pub, message, signature)
}

// VerifyMessage reports whether signature is a valid Ed25519 signature by
// pub over the already-framed message, useful when a verifier only has the
// wire bytes and hasn't parsed out the payload.
func VerifyMessage(pub ed25519.PublicKey, message, signature []byte) bool {
	return ed25519.Verify(pub, message, signature)
}

// ParseMessage splits a framed message back into its intent byte,
// timestamp, and payload, for verifiers that need to inspect the fields
// independently (e.g. to enforce staleness).
func ParseMessage(message []byte) (intent byte, timestampMs uint64, payload []byte, err error) {
	dec := bcs.NewDecoder(message)
	intent, err = dec.ReadByte()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: %w", errs.InvalidFormat, err)
	}
	timestampMs, err = dec.ReadU64()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: %w", errs.InvalidFormat, err)
	}
	payload = message[len(message)-dec.Remaining():]
	return intent, timestampMs, payload, nil
}
