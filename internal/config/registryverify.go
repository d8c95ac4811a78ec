package config

import "context"

var _ = interface {
	Validate(context.Context) map[string]string
}(&RegistryVerify{})

// RegistryVerify holds the settings for checking an EnclaveInstance
// against a registry: where the registry is, which instance to check, and
// which PCRs to expect. Only Validate reads these fields; cmd/registry-verify
// does not use this struct and takes its inputs from flags instead.
type RegistryVerify struct {
	// RegistryAddr is the address of the registry to query, e.g. a Sui
	// fullnode RPC endpoint in production, or a local emulated registry
	// during development.
	RegistryAddr string

	// EnclaveObjectID identifies the EnclaveInstance to verify.
	EnclaveObjectID string

	// ExpectedPCRs holds the PCR values expected for the instance, as hex
	// strings keyed by register index.
	ExpectedPCRs map[int]string
}

func (c *RegistryVerify) Validate(_ context.Context) map[string]string {
	problems := make(map[string]string)

	if c.RegistryAddr == "" {
		problems["registry-addr"] = "must be set"
	}
	if c.EnclaveObjectID == "" {
		problems["enclave-object-id"] = "must be set"
	}

	return problems
}
