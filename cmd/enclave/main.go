// Command enclave is the signing service's entry point. Both applications
// (weather and echo) are compiled in; it serves the one named by -app,
// generates the enclave's signing key, waits for the host bridge's
// one-shot secrets push, and then serves the public and bootstrap HTTP
// services until signalled to stop.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/nautilus-tee/enclave-signer/internal/app"
	"github.com/nautilus-tee/enclave-signer/internal/app/echo"
	"github.com/nautilus-tee/enclave-signer/internal/app/weather"
	"github.com/nautilus-tee/enclave-signer/internal/attest"
	"github.com/nautilus-tee/enclave-signer/internal/attest/nitro"
	"github.com/nautilus-tee/enclave-signer/internal/attest/noop"
	"github.com/nautilus-tee/enclave-signer/internal/config"
	"github.com/nautilus-tee/enclave-signer/internal/errs"
	"github.com/nautilus-tee/enclave-signer/internal/seal"
	"github.com/nautilus-tee/enclave-signer/internal/secretstore"
	"github.com/nautilus-tee/enclave-signer/internal/service"
	"github.com/nautilus-tee/enclave-signer/internal/signer"
	"github.com/nautilus-tee/enclave-signer/internal/tunnel"
)

const (
	defaultPubPort       = "3000"
	defaultBootstrapPort = "3001"
)

// sealServers is a repeatable flag value of "id=hex_pubkey" entries,
// pinning each Seal key server's verification key at boot.
type sealServers map[string][]byte

func (s sealServers) String() string {
	var parts []string
	for id := range s {
		parts = append(parts, id)
	}
	return strings.Join(parts, ",")
}

func (s sealServers) Set(v string) error {
	id, hexPK, ok := strings.Cut(v, "=")
	if !ok {
		return fmt.Errorf("expected id=hex_pubkey, got %q", v)
	}
	pk, err := hex.DecodeString(hexPK)
	if err != nil {
		return fmt.Errorf("invalid pubkey for server %q: %w", id, err)
	}
	s[id] = pk
	return nil
}

type flags struct {
	cfg       *config.Enclave
	appName   string
	servers   sealServers
	threshold int
}

func parseFlags(out io.Writer, args []string) (*flags, error) {
	fs := flag.NewFlagSet("enclave", flag.ContinueOnError)
	fs.SetOutput(out)

	pubPort := fs.String("pub-port", defaultPubPort, "loopback TCP port the public signing service listens on with -insecure")
	bootstrapPort := fs.String("bootstrap-port", defaultBootstrapPort, "loopback TCP port the host-only bootstrap service listens on with -insecure")
	debug := fs.Bool("debug", false, "enable verbose request logging")
	enclaveCodeURI := fs.String("enclave-code-uri", "", "pointer to the source code running inside the enclave")
	testing := fs.Bool("insecure", false, "disable attestation and VSOCK, for running outside an enclave")
	appName := fs.String("app", "weather", "application to serve: weather or echo")
	threshold := fs.Int("seal-threshold", 1, "minimum number of Seal key servers that must agree to recover a secret")

	servers := make(sealServers)
	fs.Var(servers, "seal-server", "Seal key server as id=hex_pubkey; may be repeated")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &config.Enclave{
		PubPort:        *pubPort,
		BootstrapPort:  *bootstrapPort,
		Debug:          *debug,
		EnclaveCodeURI: *enclaveCodeURI,
		Testing:        *testing,
	}
	return &flags{cfg: cfg, appName: *appName, servers: servers, threshold: *threshold}, nil
}

// selectApp returns the application with the given name; every candidate
// is compiled into this binary and the choice is made at startup. For
// weather, the outbound HTTP transport depends on whether this binary is actually
// running inside an enclave: production builds must route through the
// host bridge's outbound proxy, since there's no other way out.
func selectApp(name string, testing bool) (app.Application, error) {
	switch name {
	case "weather":
		var transport http.RoundTripper
		if !testing {
			transport = tunnel.NewOutboundProxyTransport()
		}
		return weather.App{Transport: transport}, nil
	case "echo":
		return echo.App{}, nil
	default:
		return nil, fmt.Errorf("unknown application %q", name)
	}
}

// listenForBootstrap opens the listener the host bridge pushes the
// bootstrap secrets through: VSOCK in production, loopback TCP in
// testing, mirroring how the public and bootstrap HTTP services pick
// their own listeners in internal/service.
func listenForBootstrap(cfg *config.Enclave) (net.Listener, error) {
	if cfg.Testing {
		return net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(int(tunnel.SecretsPort))))
	}
	return tunnel.Listen(tunnel.SecretsPort)
}

// secretsPush is the JSON payload the host bridge sends, once, over the
// secrets port: a map of secret name to hex-encoded value. Real
// deployments deliver the weatherapi.com key (or any other per-instance
// credential) this way instead of through the process environment, so the
// value never appears in the enclave image or its logs.
type secretsPush struct {
	Secrets map[string]string `json:"secrets"`
}

// receiveSecrets accepts exactly one connection on ln, decodes the
// secrets push, and installs every entry into store. It then closes ln:
// the push happens once per boot, before any application traffic is
// served.
func receiveSecrets(ln net.Listener, store *secretstore.Store) (err error) {
	defer errs.Wrap(&err, "failed to receive secrets push")
	defer ln.Close()

	conn, err := ln.Accept()
	if err != nil {
		return err
	}
	defer conn.Close()

	var push secretsPush
	if err := json.NewDecoder(conn).Decode(&push); err != nil {
		return err
	}
	for name, hexValue := range push.Secrets {
		value, err := hex.DecodeString(hexValue)
		if err != nil {
			return fmt.Errorf("secret %q: %w", name, err)
		}
		if err := store.Write(name, value); err != nil {
			return err
		}
	}
	return nil
}

func run(ctx context.Context, out io.Writer, args []string) (err error) {
	defer errs.Wrap(&err, "failed to run enclave")

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	log.SetFlags(log.LstdFlags | log.Lshortfile | log.LUTC)
	log.SetOutput(out)

	f, err := parseFlags(out, args)
	if err != nil {
		return err
	}
	if problems := f.cfg.Validate(ctx); len(problems) > 0 {
		err := errors.New("invalid configuration")
		for field, problem := range problems {
			err = errors.Join(err, fmt.Errorf("field %q: %v", field, problem))
		}
		return err
	}

	a, err := selectApp(f.appName, f.cfg.Testing)
	if err != nil {
		return err
	}

	var attester attest.Attester = nitro.NewAttester()
	if f.cfg.Testing {
		attester = noop.NewAttester()
	}

	signKP, err := signer.Generate()
	if err != nil {
		return fmt.Errorf("failed to generate signing key: %w", err)
	}
	log.Printf("Generated signing key: %x", signKP.Public)

	secrets := secretstore.New()
	coordinator, err := seal.New(signKP, f.servers, f.threshold, secrets)
	if err != nil {
		return fmt.Errorf("failed to create Seal coordinator: %w", err)
	}

	bootLn, err := listenForBootstrap(f.cfg)
	if err != nil {
		return fmt.Errorf("failed to listen for secrets push: %w", err)
	}
	log.Print("Waiting for secrets push from host bridge.")
	if err := receiveSecrets(bootLn, secrets); err != nil {
		return err
	}
	log.Print("Received secrets push.")

	return service.Run(ctx, f.cfg, attester, a, signKP, secrets, coordinator)
}

func main() {
	if err := run(context.Background(), os.Stdout, os.Args[1:]); err != nil {
		log.Fatalf("Failed to run enclave: %v", err)
	}
}
