package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nautilus-tee/enclave-signer/internal/attest"
	"github.com/nautilus-tee/enclave-signer/internal/attest/noop"
	"github.com/nautilus-tee/enclave-signer/internal/service"
	"github.com/nautilus-tee/enclave-signer/internal/signer"
)

// validPCRs represents a well-formatted sample output from running:
//
//	nitro-cli build-enclave ...
const validPCRs = `{
	"Measurements": {
		"HashAlgorithm": "Sha384 { ... }",
		"PCR0": "616161616161616161616161616161616161616161616161616161616161616161616161616161616161616161616161",
		"PCR1": "626262626262626262626262626262626262626262626262626262626262626262626262626262626262626262626262",
		"PCR2": "636363636363636363636363636363636363636363636363636363636363636363636363636363636363636363636363"
	}
}`

// newTestServer serves health_check and get_attestation responses built
// around a noop attestation document binding kp's public key, matching
// what internal/service wires up for a real signing service.
func newTestServer(t *testing.T, kp *signer.KeyPair) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(service.PathHealthCheck, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"pk": %q}`, hex.EncodeToString(kp.Public))
	})
	mux.HandleFunc(service.PathAttestation, func(w http.ResponseWriter, r *http.Request) {
		doc, err := noop.NewAttester().Attest(&attest.AuxInfo{PublicKey: kp.Public})
		require.NoError(t, err)
		fmt.Fprintf(w, `{"attestation": %q}`, hex.EncodeToString(doc.Doc))
	})
	return httptest.NewServer(mux)
}

func TestRun(t *testing.T) {
	kp, err := signer.Generate()
	require.NoError(t, err)
	srv := newTestServer(t, kp)
	defer srv.Close()

	cases := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{
			name:    "missing addr",
			wantErr: errFailedToParse,
		},
		{
			name:    "missing PCRs",
			args:    []string{"-addr", srv.URL},
			wantErr: errFailedToParse,
		},
		{
			name:    "invalid PCRs",
			args:    []string{"-addr", srv.URL, "-pcrs", "invalid"},
			wantErr: errFailedToConvert,
		},
		{
			name: "noop attester verifies successfully",
			args: []string{"-insecure", "-addr", srv.URL, "-pcrs", validPCRs},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := run(context.Background(), io.Discard, c.args)
			require.ErrorIs(t, err, c.wantErr)
		})
	}
}

func TestToPCR(t *testing.T) {
	cases := []struct {
		name     string
		in       []byte
		wantPCRs attest.PCR
		wantErr  bool
	}{
		{
			name:    "invalid json",
			in:      []byte("invalid"),
			wantErr: true,
		},
		{
			name: "invalid hash",
			in: []byte(`{
				"Measurements": {
					"HashAlgorithm": "Sha512 { ... }",
					"PCR0": "616161616161616161616161616161616161616161616161616161616161616161616161616161616161616161616161",
					"PCR1": "626262626262626262626262626262626262626262626262626262626262626262626262626262626262626262626262",
					"PCR2": "636363636363636363636363636363636363636363636363636363636363636363636363636363636363636363636363"
				}
			}`),
			wantErr: true,
		},
		{
			name: "invalid PCR value",
			in: []byte(`{
				"Measurements": {
					"HashAlgorithm": "Sha384 { ... }",
					"PCR0": "foobar"
				}
			}`),
			wantErr: true,
		},
		{
			name: "valid",
			in:   []byte(validPCRs),
			wantPCRs: attest.PCR{
				0: []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
				1: []byte("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
				2: []byte("cccccccccccccccccccccccccccccccccccccccccccccccc"),
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			gotPCRs, err := toPCR(c.in)
			require.Equal(t, c.wantErr, err != nil)
			if !c.wantErr {
				require.True(t, gotPCRs.Equal(c.wantPCRs))
			}
		})
	}
}

func TestFetchPK(t *testing.T) {
	kp, err := signer.Generate()
	require.NoError(t, err)
	srv := newTestServer(t, kp)
	defer srv.Close()

	pk, err := fetchPK(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(kp.Public), pk)
}

func TestFetchAttestation(t *testing.T) {
	kp, err := signer.Generate()
	require.NoError(t, err)
	srv := newTestServer(t, kp)
	defer srv.Close()

	rawDoc, err := fetchAttestation(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)

	var aux attest.AuxInfo
	require.NoError(t, json.Unmarshal(rawDoc.Doc, &aux))
	require.Equal(t, []byte(kp.Public), aux.PublicKey)
}
