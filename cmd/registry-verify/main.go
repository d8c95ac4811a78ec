// Command registry-verify fetches an attested signing service's public
// key and attestation document and checks them against the PCR
// measurements of a locally built enclave image, the same way an operator
// would before trusting that instance's signatures.
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
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"

	"github.com/nautilus-tee/enclave-signer/internal/attest"
	"github.com/nautilus-tee/enclave-signer/internal/attest/nitro"
	"github.com/nautilus-tee/enclave-signer/internal/attest/noop"
	"github.com/nautilus-tee/enclave-signer/internal/errs"
	"github.com/nautilus-tee/enclave-signer/internal/httpx"
	"github.com/nautilus-tee/enclave-signer/internal/service"
)

var (
	errFailedToAttest  = errors.New("failed to attest enclave")
	errFailedToParse   = errors.New("failed to parse flags")
	errFailedToConvert = errors.New("failed to convert measurements to PCR")
)

type config struct {
	addr    string
	verbose bool
	testing bool
	pcrs    attest.PCR
}

func parseFlags(out io.Writer, args []string) (_ *config, err error) {
	defer errs.WrapErr(&err, errFailedToParse)

	fs := flag.NewFlagSet("registry-verify", flag.ContinueOnError)
	fs.SetOutput(out)

	addr := fs.String(
		"addr",
		"",
		"Address of the signing service, e.g.: https://example.com:8443",
	)
	pcrs := fs.String(
		"pcrs",
		"",
		"JSON-encoded enclave image measurements as emitted by 'nitro-cli build'",
	)
	verbose := fs.Bool(
		"verbose",
		false,
		"Enable verbose logging",
	)
	testing := fs.Bool(
		"insecure",
		false,
		"Verify against the noop attester instead of a real Nitro attestation",
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *addr == "" {
		return nil, errors.New("flag -addr must be provided")
	}
	if *pcrs == "" {
		return nil, errors.New("flag -pcrs must be provided")
	}

	pcr, err := toPCR([]byte(*pcrs))
	if err != nil {
		return nil, err
	}

	return &config{
		addr:    *addr,
		testing: *testing,
		verbose: *verbose,
		pcrs:    pcr,
	}, nil
}

// toPCR parses the JSON measurements nitro-cli build-enclave prints, e.g.:
//
//	{
//	  "Measurements": {
//	    "HashAlgorithm": "Sha384 { ... }",
//	    "PCR0": "8b927cf0...",
//	    "PCR1": "4b4d5b36...",
//	    "PCR2": "22d2194e..."
//	  }
//	}
func toPCR(jsonMsmts []byte) (_ attest.PCR, err error) {
	defer errs.WrapErr(&err, errFailedToConvert)

	m := struct {
		Measurements struct {
			HashAlgorithm string `json:"HashAlgorithm"`
			PCR0          string `json:"PCR0"`
			PCR1          string `json:"PCR1"`
			PCR2          string `json:"PCR2"`
		} `json:"Measurements"`
	}{}
	if err := json.Unmarshal(jsonMsmts, &m); err != nil {
		return nil, err
	}

	const want = "sha384"
	got := strings.ToLower(m.Measurements.HashAlgorithm)
	if !strings.HasPrefix(got, want) {
		return nil, fmt.Errorf("expected hash algorithm %q but got %q", want, got)
	}

	pcr0, err := hex.DecodeString(m.Measurements.PCR0)
	if err != nil {
		return nil, err
	}
	pcr1, err := hex.DecodeString(m.Measurements.PCR1)
	if err != nil {
		return nil, err
	}
	pcr2, err := hex.DecodeString(m.Measurements.PCR2)
	if err != nil {
		return nil, err
	}

	return attest.PCR{0: pcr0, 1: pcr1, 2: pcr2}, nil
}

func run(ctx context.Context, out io.Writer, args []string) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	cfg, err := parseFlags(out, args)
	if err != nil {
		return err
	}
	return verifyEnclave(ctx, cfg)
}

// verifyEnclave fetches the signing service's public key and attestation
// document, verifies the document, and checks both the PCR measurements
// and the public_key binding against what the caller expects.
func verifyEnclave(ctx context.Context, cfg *config) (err error) {
	defer errs.WrapErr(&err, errFailedToAttest)

	client := httpx.NewUnauthClient()

	pk, err := fetchPK(ctx, client, cfg.addr)
	if err != nil {
		return err
	}

	rawDoc, err := fetchAttestation(ctx, client, cfg.addr)
	if err != nil {
		return err
	}

	var attester attest.Attester = nitro.NewAttester()
	if cfg.testing {
		attester = noop.NewAttester()
	}
	rawDoc.Type = attester.Type()

	doc, err := attester.Verify(rawDoc, nil)
	if err != nil {
		return err
	}

	// Nitro enclaves returning debug-mode measurements report zeroed-out
	// PCR0-2 instead of real ones; never let that pass as a match.
	if doc.PCRs.FromDebugMode() {
		return errors.New("enclave was attested in debug mode")
	}

	if !cfg.pcrs.Equal(doc.PCRs) {
		if cfg.verbose {
			log.Printf("expected PCRs:\n%+v\nbut got PCRs:\n%+v", cfg.pcrs, doc.PCRs)
		}
		color.Red("Enclave's code DOES NOT match local code!")
	} else {
		color.Green("Enclave's code matches local code!")
	}

	if hex.EncodeToString(doc.PublicKey) != pk {
		color.Red("Attestation document's public_key does not match /health_check's pk!")
	} else {
		color.Green("Attestation document's public_key matches /health_check's pk.")
	}

	return nil
}

func fetchPK(ctx context.Context, client *http.Client, addr string) (string, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return "", err
	}
	u.Path = service.PathHealthCheck

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("health_check returned status %d", resp.StatusCode)
	}

	var body struct {
		PK string `json:"pk"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.PK, nil
}

func fetchAttestation(ctx context.Context, client *http.Client, addr string) (*attest.RawDocument, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}
	u.Path = service.PathAttestation

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get_attestation returned %q with body: %s", resp.Status, string(body))
	}

	var wire struct {
		Attestation string `json:"attestation"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, err
	}
	doc, err := hex.DecodeString(wire.Attestation)
	if err != nil {
		return nil, err
	}
	return &attest.RawDocument{Doc: doc}, nil
}

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Stdout, os.Args[1:]); err != nil {
		log.Fatalf("Failed to run verifier: %v", err)
	}
}
