// Package app defines the contract every signed application implements:
// a typed input, a typed output, an intent byte reserved for that
// application, and a computation that may read from the secrets store.
// The signing service is written entirely against this interface.
// cmd/enclave compiles in every implementation and serves the one named by
// its -app flag.
package app

import (
	"context"

	"github.com/nautilus-tee/enclave-signer/internal/secretstore"
)

// Application is satisfied by every signable computation. Encode/Decode
// operate on the BCS wire format so the bytes an application serializes are
// byte-identical to what an on-chain verifier reconstructs from the same
// logical value.
type Application interface {
	// Intent is the domain-separation tag embedded in every signed message
	// produced from this application's output. It must never be inferred
	// or defaulted by a verifier.
	Intent() byte

	// DecodeInput parses a JSON request body into the application's input
	// type.
	DecodeInput(body []byte) (any, error)

	// Process runs the application's computation against input, consulting
	// secrets as needed, and returns a value ready for BCS encoding plus
	// the wall-clock timestamp (in milliseconds) that should be signed
	// alongside it. Applications that fetch external data (e.g. a weather
	// API) determine their own signed timestamp, per their own staleness
	// rules; a database-time application would return time.Now().
	Process(ctx context.Context, input any, secrets *secretstore.Store) (output any, timestampMs uint64, err error)

	// EncodeOutput serializes output under BCS, matching the type Process
	// returned, so the caller can build the IntentMessage payload.
	EncodeOutput(output any) ([]byte, error)
}
