package config

import "context"

var _ = interface {
	Validate(context.Context) map[string]string
}(&HostBridge{})

// HostBridge represents the host-side bridge process's configuration.  It
// runs on the parent EC2 instance, never inside the enclave.
type HostBridge struct {
	// EnclaveCID is the VSOCK context ID of the enclave, assigned by
	// nitro-cli run-enclave.  4 is the conventional first child CID.
	EnclaveCID uint32

	// PubListenAddr is the host-side TCP address the LB/Internet-facing
	// traffic arrives on, e.g. ":443".  Connections are forwarded 1:1 as
	// VSOCK streams to the enclave's public port.
	PubListenAddr string

	// PubPort is the enclave's public VSOCK port to forward to.
	PubPort uint32

	// BootstrapListenAddr is the host-side TCP address the Seal bootstrap
	// service is reachable at.  It must never be reachable from outside
	// the parent EC2 instance, e.g. "127.0.0.1:3001".
	BootstrapListenAddr string

	// BootstrapPort is the enclave's bootstrap VSOCK port to forward to.
	BootstrapPort uint32

	// SecretsFile holds the JSON-encoded secrets push payload, with every
	// value hex-encoded, delivered to the enclave exactly once at startup
	// over SecretsPort.
	SecretsFile string

	// SecretsPort is the enclave's VSOCK port the bridge pushes bootstrap
	// secrets to once, before accepting public traffic.
	SecretsPort uint32

	// OutboundProxyPort is the host's own VSOCK port, which the enclave
	// dials for the length-prefixed outbound HTTP proxy protocol: the
	// enclave has no direct network access, so it tunnels its own outbound HTTP calls
	// (e.g. to weatherapi.com, or to a Sui fullnode) through the host.
	OutboundProxyPort uint32
}

func (c *HostBridge) Validate(_ context.Context) map[string]string {
	problems := make(map[string]string)

	if c.EnclaveCID == 0 {
		problems["enclave-cid"] = "must be set"
	}
	if c.PubListenAddr == "" {
		problems["pub-listen-addr"] = "must be set"
	}
	if c.PubPort == 0 {
		problems["pub-port"] = "must be set"
	}
	if c.BootstrapListenAddr == "" {
		problems["bootstrap-listen-addr"] = "must be set"
	}
	if c.BootstrapPort == 0 {
		problems["bootstrap-port"] = "must be set"
	}
	if c.SecretsFile == "" {
		problems["secrets-file"] = "must be set"
	}
	if c.SecretsPort == 0 {
		problems["secrets-port"] = "must be set"
	}
	if c.OutboundProxyPort == 0 {
		problems["outbound-proxy-port"] = "must be set"
	}

	return problems
}
