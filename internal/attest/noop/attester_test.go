package noop

import (
	"testing"

	"github.com/nautilus-tee/enclave-signer/internal/attest"
	"github.com/nautilus-tee/enclave-signer/internal/nonce"
	"github.com/stretchr/testify/require"
)

func TestType(t *testing.T) {
	require.Equal(t, attest.TypeNoop, NewAttester().Type())
}

func TestSuccessfulVerification(t *testing.T) {
	var (
		a       = NewAttester()
		origAux = &attest.AuxInfo{
			PublicKey: []byte("abc"),
			UserData:  []byte("def"),
			Nonce:     []byte("ghi"),
		}
	)

	attestation, err := a.Attest(origAux)
	require.Nil(t, err)

	doc, err := a.Verify(attestation, &nonce.Nonce{})
	require.Nil(t, err)
	require.Equal(t, origAux, &doc.AuxInfo)
}

func TestFailedVerification(t *testing.T) {
	var a = NewAttester()

	_, err := a.Verify(&attest.RawDocument{
		Type: attest.TypeNoop,
		Doc:  []byte(`"foo": "bar`),
	}, &nonce.Nonce{})
	require.NotNil(t, err)
}
