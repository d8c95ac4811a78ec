// Package tunnel implements the enclave side of the VSOCK transport: the
// enclave has no IP stack, so every inbound service listens on a VSOCK
// port instead of a TCP port, and every outbound call is dialed out to the
// host bridge's proxy port instead of routed directly.
package tunnel

import (
	"net"

	"github.com/mdlayher/vsock"
)

// Conventional VSOCK ports, matching the layout the host bridge forwards
// to: 7777 for the one-shot secrets push, 3000/3001 for the public and
// bootstrap HTTP services, 8000 for the enclave's outbound HTTP proxy
// dial-out.
const (
	SecretsPort       = 7777
	PublicPort        = 3000
	BootstrapPort     = 3001
	OutboundProxyPort = 8000

	// HostCID is the VSOCK context ID of the parent EC2 instance, as seen
	// from inside the enclave. AWS fixes this at 3.
	HostCID = 3
)

// Listen opens a VSOCK listener on port, accepting connections the host
// bridge forwards from its own TCP listeners.
func Listen(port uint32) (net.Listener, error) {
	return vsock.Listen(port, nil)
}

// DialHost opens a VSOCK connection to the given port on the host bridge,
// used for the outbound HTTP proxy protocol.
func DialHost(port uint32) (net.Conn, error) {
	return vsock.Dial(HostCID, port, nil)
}
