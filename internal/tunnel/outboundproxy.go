package tunnel

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/http"
)

// frameConn wraps a byte stream (a VSOCK connection, in production) so
// that every Write becomes one length-prefixed frame and every Read
// consumes frames the host sent back, letting an http.Transport treat the
// wrapped stream like an ordinary TCP connection.
type frameConn struct {
	net.Conn
	r         *bufio.Reader
	remaining uint32
}

func newFrameConn(conn net.Conn) *frameConn {
	return &frameConn{Conn: conn, r: bufio.NewReader(conn)}
}

func writeFrame(w io.Writer, b []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	_, err := w.Write(b)
	return err
}

func (c *frameConn) Write(b []byte) (int, error) {
	if err := writeFrame(c.Conn, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *frameConn) Read(b []byte) (int, error) {
	if c.remaining == 0 {
		var lenBuf [4]byte
		if _, err := io.ReadFull(c.r, lenBuf[:]); err != nil {
			return 0, err
		}
		c.remaining = binary.BigEndian.Uint32(lenBuf[:])
	}
	if len(b) > int(c.remaining) {
		b = b[:c.remaining]
	}
	n, err := c.r.Read(b)
	c.remaining -= uint32(n)
	return n, err
}

// dialOutboundProxy dials the host bridge's outbound proxy port and sends
// the destination address as the connection's first frame; every
// subsequent frame carries raw request/response bytes the host relays to
// and from the real upstream connection it opens on the enclave's behalf.
func dialOutboundProxy(_ context.Context, _, addr string) (net.Conn, error) {
	conn, err := DialHost(OutboundProxyPort)
	if err != nil {
		return nil, fmt.Errorf("tunnel: failed to dial outbound proxy: %w", err)
	}
	fc := newFrameConn(conn)
	if err := writeFrame(fc.Conn, []byte(addr)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tunnel: failed to send proxy handshake: %w", err)
	}
	return fc, nil
}

// NewOutboundProxyTransport returns an http.Transport that dials every
// connection through the host bridge's outbound proxy instead of the
// enclave's nonexistent network stack. TLS is negotiated by the transport
// itself on top of the framed connection, exactly as it would over a real
// TCP dial.
func NewOutboundProxyTransport() *http.Transport {
	return &http.Transport{DialContext: dialOutboundProxy}
}
