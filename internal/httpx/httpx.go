// Package httpx implements small HTTP utilities shared by the enclave's
// binaries and its tests.
package httpx

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/nautilus-tee/enclave-signer/internal/errs"
)

var errDeadlineExceeded = errors.New("deadline exceeded")

// NewUnauthClient returns an HTTP client that skips HTTPS certificate
// validation.  The enclave doesn't terminate TLS itself -- the VSOCK bridge
// and the host's load balancer are the transport boundary -- so client code
// only needs a client that won't refuse to dial a bare IP or self-signed
// endpoint during local testing.  Authentication of the remote party is
// handled by the attestation document, not by the certificate chain.
func NewUnauthClient() *http.Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
	}
	return &http.Client{
		Transport: transport,
		Timeout:   5 * time.Second,
	}
}

// WaitForSvc waits for the service at the given URL to become reachable by
// issuing repeated GET requests.  It blocks until either the service
// responds or the context's deadline expires.
func WaitForSvc(
	ctx context.Context,
	client *http.Client,
	url string,
) (err error) {
	defer errs.Wrap(&err, "failed to wait for service")

	start := time.Now()
	deadline, ok := ctx.Deadline()
	if !ok {
		return errors.New("context has no deadline")
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)

	for {
		log.Print("Making request to service...")
		if _, err := client.Do(req); err == nil {
			log.Print("Service is ready.")
			return nil
		}
		if time.Since(start) > deadline.Sub(start) {
			return errDeadlineExceeded
		}
		time.Sleep(10 * time.Millisecond)
	}
}
