package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nautilus-tee/enclave-signer/internal/app"
	"github.com/nautilus-tee/enclave-signer/internal/attest"
	"github.com/nautilus-tee/enclave-signer/internal/config"
	"github.com/nautilus-tee/enclave-signer/internal/seal"
	"github.com/nautilus-tee/enclave-signer/internal/secretstore"
	"github.com/nautilus-tee/enclave-signer/internal/signer"
	"github.com/nautilus-tee/enclave-signer/internal/system"
	"github.com/nautilus-tee/enclave-signer/internal/tunnel"
)

type publicDeps struct {
	app     app.Application
	secrets *secretstore.Store
	signer  *signer.KeyPair
	builder *attest.Builder
}

type bootstrapDeps struct {
	coordinator *seal.Coordinator
}

// Run wires the public signing service and the host-only Seal bootstrap
// service, starts both, and blocks until ctx is cancelled. In production
// (cfg.Testing == false) both services listen on VSOCK, since the enclave
// has no IP stack of its own; in testing mode they bind ordinary loopback
// TCP ports so the binary can run outside a Nitro Enclave.
func Run(
	ctx context.Context,
	cfg *config.Enclave,
	attester attest.Attester,
	a app.Application,
	signKP *signer.KeyPair,
	secrets *secretstore.Store,
	coordinator *seal.Coordinator,
) error {
	if err := checkSystemSafety(cfg); err != nil {
		return fmt.Errorf("failed safety check: %w", err)
	}

	builder := attest.NewBuilder(attester, attest.WithSignPK(signKP.Public), attest.WithUserData(signKP.Public))

	pubSrv := newPublicSrv(cfg, &publicDeps{app: a, secrets: secrets, signer: signKP, builder: builder})
	pubLn, err := listen(cfg, cfg.PubPort, tunnel.PublicPort)
	if err != nil {
		return fmt.Errorf("failed to listen for public service: %w", err)
	}

	bootSrv := newBootstrapSrv(cfg, &bootstrapDeps{coordinator: coordinator})
	bootLn, err := listen(cfg, cfg.BootstrapPort, tunnel.BootstrapPort)
	if err != nil {
		return fmt.Errorf("failed to listen for bootstrap service: %w", err)
	}

	startAllWebSrvs(ctx, pubSrv, pubLn, bootSrv, bootLn)
	log.Println("Exiting.")
	return nil
}

func checkSystemSafety(cfg *config.Enclave) error {
	if cfg.Testing {
		return nil
	}

	if !system.HasSecureRNG() {
		return errors.New("system does not use desired RNG")
	}
	if !system.HasSecureKernelVersion() {
		return errors.New("system does not have minimum desired kernel version")
	}
	return nil
}

// listen binds tcpPort on loopback when cfg.Testing is set, and vsockPort
// over VSOCK otherwise.
func listen(cfg *config.Enclave, tcpPort string, vsockPort uint32) (net.Listener, error) {
	if cfg.Testing {
		return net.Listen("tcp", net.JoinHostPort("127.0.0.1", tcpPort))
	}
	return tunnel.Listen(vsockPort)
}

func startAllWebSrvs(
	ctx context.Context,
	pubSrv *http.Server,
	pubLn net.Listener,
	bootSrv *http.Server,
	bootLn net.Listener,
) {
	var wg = new(sync.WaitGroup)
	defer wg.Wait()

	startWebSrv(ctx, bootSrv, bootLn, wg)
	startWebSrv(ctx, pubSrv, pubLn, wg)
}

func startWebSrv(
	ctx context.Context,
	srv *http.Server,
	ln net.Listener,
	wg *sync.WaitGroup,
) {
	go func() {
		log.Printf("Starting web server: %v", ln.Addr())
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error listening and serving: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		log.Printf("Got signal - shutting down: %s", ln.Addr())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}
	}()
}

func newPublicSrv(cfg *config.Enclave, deps *publicDeps) *http.Server {
	r := chi.NewRouter()
	addPublicRoutes(r, deps, cfg.Debug)
	return &http.Server{Handler: r}
}

func newBootstrapSrv(cfg *config.Enclave, deps *bootstrapDeps) *http.Server {
	r := chi.NewRouter()
	addBootstrapRoutes(r, deps, cfg.Debug)
	return &http.Server{Handler: r}
}
