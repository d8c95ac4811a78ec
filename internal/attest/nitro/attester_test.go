package nitro

import (
	"testing"

	"github.com/nautilus-tee/enclave-signer/internal/attest"
	"github.com/nautilus-tee/enclave-signer/internal/nonce"
	"github.com/nautilus-tee/enclave-signer/internal/util"
	"github.com/stretchr/testify/require"
)

func TestNitroAttest(t *testing.T) {
	if !IsEnclave() {
		t.Skip("skipping test; not running in an enclave")
	}
	attester := NewAttester()

	cases := []struct {
		name    string
		aux     *attest.AuxInfo
		wantErr bool
	}{
		{
			name:    "nil aux info",
			wantErr: true,
		},
		{
			name: "empty aux info",
			aux:  &attest.AuxInfo{},
		},
		{
			name: "aux info with nonce",
			aux: &attest.AuxInfo{
				Nonce: util.Must(nonce.New()).ToSlice(),
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			doc, err := attester.Attest(c.aux)
			if c.wantErr {
				require.NotNil(t, err)
				return
			}
			require.Equal(t, doc.Type, attest.TypeNitro)
		})
	}
}

func TestNitroVerify(t *testing.T) {
	if !IsEnclave() {
		t.Skip("skipping test; not running in an enclave")
	}

	attester := NewAttester()
	getDoc := func(t *testing.T, n *nonce.Nonce) *attest.RawDocument {
		doc, err := attester.Attest(&attest.AuxInfo{Nonce: n.ToSlice()})
		require.NoError(t, err)
		return doc
	}
	testNonce := util.Must(nonce.New())

	cases := []struct {
		name    string
		doc     *attest.RawDocument
		nonce   *nonce.Nonce
		wantErr bool
	}{
		{
			name:    "nil document and nonce",
			wantErr: true,
		},
		{
			name:    "document type mismatch",
			doc:     &attest.RawDocument{Type: "foo"},
			wantErr: true,
		},
		{
			name: "invalid document",
			doc: &attest.RawDocument{
				Type: attest.TypeNitro,
				Doc:  []byte("foobar"),
			},
			wantErr: true,
		},
		{
			name:    "nonce mismatch",
			doc:     getDoc(t, util.Must(nonce.New())),
			nonce:   util.Must(nonce.New()),
			wantErr: true,
		},
		{
			name: "no nonce",
			doc:  getDoc(t, util.Must(nonce.New())),
		},
		{
			name:  "valid document and nonce",
			doc:   getDoc(t, testNonce),
			nonce: testNonce,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := attester.Verify(c.doc, c.nonce)
			if c.wantErr {
				require.Error(t, err)
				return
			}
		})
	}
}
