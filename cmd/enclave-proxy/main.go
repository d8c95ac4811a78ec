// Command enclave-proxy is the host-side bridge: it runs on the parent
// EC2 instance, never inside the enclave, and is the only process with an
// IP stack. It pushes the bootstrap secrets into the enclave once, then
// forwards public and bootstrap TCP traffic to the enclave over VSOCK,
// and answers the enclave's own outbound HTTP proxy dial-outs by opening
// the real connection on its behalf.
package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"flag"
	"io"
	"log"
	"net"
	"os"
	"time"

	"github.com/mdlayher/vsock"

	"github.com/nautilus-tee/enclave-signer/internal/config"
	"github.com/nautilus-tee/enclave-signer/internal/errs"
	"github.com/nautilus-tee/enclave-signer/internal/tunnel"
)

const (
	outboundConnectTimeout = 5 * time.Second
	outboundReadTimeout    = 30 * time.Second
)

func parseFlags(args []string) (_ *config.HostBridge, err error) {
	defer errs.Wrap(&err, "failed to parse flags")

	fs := flag.NewFlagSet("enclave-proxy", flag.ContinueOnError)

	enclaveCID := fs.Uint("enclave-cid", 4, "VSOCK context ID of the enclave")
	pubListenAddr := fs.String("pub-listen-addr", ":443", "host address the Internet-facing load balancer connects to")
	bootstrapListenAddr := fs.String("bootstrap-listen-addr", "127.0.0.1:3001", "host address the Seal bootstrap client connects to")
	secretsFile := fs.String("secrets-file", "", "path to the JSON secrets push payload")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &config.HostBridge{
		EnclaveCID:          uint32(*enclaveCID),
		PubListenAddr:       *pubListenAddr,
		PubPort:             tunnel.PublicPort,
		BootstrapListenAddr: *bootstrapListenAddr,
		BootstrapPort:       tunnel.BootstrapPort,
		SecretsFile:         *secretsFile,
		SecretsPort:         tunnel.SecretsPort,
		OutboundProxyPort:   tunnel.OutboundProxyPort,
	}
	if problems := cfg.Validate(context.Background()); len(problems) > 0 {
		return nil, errs.Add(errs.BadRequest, "invalid configuration: %v", problems)
	}
	return cfg, nil
}

// pushSecrets dials the enclave's secrets port once and forwards the
// contents of secretsFile verbatim: it's already the JSON payload the
// enclave's receiveSecrets expects, with every value hex-encoded.
func pushSecrets(cfg *config.HostBridge) (err error) {
	defer errs.Wrap(&err, "failed to push secrets")

	payload, err := os.ReadFile(cfg.SecretsFile)
	if err != nil {
		return err
	}
	// Validate the payload is well-formed JSON before we commit to the
	// one-shot push; a malformed file should fail loudly here, not leave
	// the enclave stuck waiting.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		return err
	}

	conn, err := vsock.Dial(cfg.EnclaveCID, cfg.SecretsPort, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Write(payload)
	return err
}

// forwardLoop accepts TCP connections on ln forever, dialing a fresh
// VSOCK stream into the enclave's vsockPort for each one and relaying
// bytes bidirectionally until either side closes.
func forwardLoop(ln net.Listener, enclaveCID, vsockPort uint32) {
	for {
		tcpConn, err := ln.Accept()
		if err != nil {
			log.Printf("enclave-proxy: accept error on %s: %v", ln.Addr(), err)
			continue
		}
		go forwardConn(tcpConn, enclaveCID, vsockPort)
	}
}

func forwardConn(tcpConn net.Conn, enclaveCID, vsockPort uint32) {
	defer tcpConn.Close()

	vsockConn, err := vsock.Dial(enclaveCID, vsockPort, nil)
	if err != nil {
		log.Printf("enclave-proxy: failed to dial enclave on port %d: %v", vsockPort, err)
		return
	}
	defer vsockConn.Close()

	relay(tcpConn, vsockConn)
}

// relay copies bytes in both directions until one side is done, then
// waits for the other direction to finish draining.
func relay(a, b net.Conn) {
	done := make(chan struct{}, 2)
	go func() { io.Copy(a, b); done <- struct{}{} }()
	go func() { io.Copy(b, a); done <- struct{}{} }()
	<-done
	<-done
}

// writeFrame and readFrame implement the same length-prefixed framing
// internal/tunnel/outboundproxy.go uses on the enclave side: a 4-byte
// big-endian length prefix followed by that many bytes.
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

func readFrame(r *bufio.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// outboundProxyLoop accepts the enclave's VSOCK dial-outs forever. Each
// connection's first frame names the destination address; every frame
// after that is forwarded verbatim to and from a real TCP connection this
// process opens to that address.
func outboundProxyLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("enclave-proxy: outbound proxy accept error: %v", err)
			continue
		}
		go handleOutboundProxyConn(conn)
	}
}

func handleOutboundProxyConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	addrFrame, err := readFrame(r)
	if err != nil {
		log.Printf("enclave-proxy: failed to read proxy handshake: %v", err)
		return
	}
	addr := string(addrFrame)

	upstream, err := net.DialTimeout("tcp", addr, outboundConnectTimeout)
	if err != nil {
		log.Printf("enclave-proxy: failed to dial upstream %s: %v", addr, err)
		return
	}
	defer upstream.Close()

	go func() {
		for {
			upstream.SetReadDeadline(time.Now().Add(outboundReadTimeout))
			buf := make([]byte, 32*1024)
			n, err := upstream.Read(buf)
			if n > 0 {
				if werr := writeFrame(conn, buf[:n]); werr != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		frame, err := readFrame(r)
		if err != nil {
			return
		}
		if _, err := upstream.Write(frame); err != nil {
			return
		}
	}
}

func listenVSOCK(port uint32) (_ net.Listener, err error) {
	defer errs.Wrap(&err, "failed to create VSOCK listener")

	cid, err := vsock.ContextID()
	if err != nil {
		return nil, err
	}
	return vsock.ListenContextID(cid, port, nil)
}

func run(args []string) error {
	cfg, err := parseFlags(args)
	if err != nil {
		return err
	}

	log.Print("Pushing secrets to enclave.")
	if err := pushSecrets(cfg); err != nil {
		return err
	}
	log.Print("Secrets pushed.")

	pubLn, err := net.Listen("tcp", cfg.PubListenAddr)
	if err != nil {
		return errs.Add(err, "failed to listen on public address")
	}
	go forwardLoop(pubLn, cfg.EnclaveCID, cfg.PubPort)
	log.Printf("Forwarding %s -> enclave VSOCK port %d.", cfg.PubListenAddr, cfg.PubPort)

	bootLn, err := net.Listen("tcp", cfg.BootstrapListenAddr)
	if err != nil {
		return errs.Add(err, "failed to listen on bootstrap address")
	}
	go forwardLoop(bootLn, cfg.EnclaveCID, cfg.BootstrapPort)
	log.Printf("Forwarding %s -> enclave VSOCK port %d.", cfg.BootstrapListenAddr, cfg.BootstrapPort)

	outboundLn, err := listenVSOCK(cfg.OutboundProxyPort)
	if err != nil {
		return err
	}
	log.Printf("Answering enclave's outbound proxy dial-outs on VSOCK port %d.", cfg.OutboundProxyPort)
	outboundProxyLoop(outboundLn)
	return nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("Failed to run enclave-proxy: %v", err)
	}
}
