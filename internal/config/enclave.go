// Package config holds the configuration structs for the enclave binary,
// the host bridge, and the registry verifier CLI, along with validation.
package config

import (
	"context"
	"strconv"

	"github.com/nautilus-tee/enclave-signer/internal/util"
)

var _ = util.Validator(&Enclave{})

// Enclave represents the signing enclave's configuration.
type Enclave struct {
	// PubPort is the loopback TCP port the public signing service binds in
	// testing mode, e.g. 3000.  Outside testing mode the service listens on
	// VSOCK port tunnel.PublicPort instead and this value is not used.
	PubPort string

	// BootstrapPort is the loopback TCP port the host-only Seal bootstrap
	// service binds in testing mode, e.g. 3001.  Outside testing mode the
	// service listens on VSOCK port tunnel.BootstrapPort instead.
	BootstrapPort string

	// Debug enables verbose request logging.  Do not set this in
	// production: it slows down every request and, per AWS's enclave
	// model, debug output is only visible when the enclave is started
	// with nitro-cli's --debug-mode flag anyway.
	Debug bool

	// EnclaveCodeURI is a pointer to the source code running inside the
	// enclave. It is recorded from flags; no endpoint serves it.
	EnclaveCodeURI string

	// Testing disables safety checks and swaps in the noop attester, so the
	// binary can run outside of an actual Nitro Enclave.
	Testing bool
}

func isValidPort(port string) bool {
	num, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return num > 0 && num < 65536
}

func (c *Enclave) Validate(_ context.Context) map[string]string {
	problems := make(map[string]string)

	if !isValidPort(c.PubPort) {
		problems["pub-port"] = "must be a valid port number"
	}
	if !isValidPort(c.BootstrapPort) {
		problems["bootstrap-port"] = "must be a valid port number"
	}
	if c.PubPort == c.BootstrapPort {
		problems["pub-port"] = "must differ from bootstrap-port"
	}

	return problems
}
