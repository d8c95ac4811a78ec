// Package noop implements a stand-in attester for development and testing
// outside of an actual Nitro Enclave.
package noop

import (
	"encoding/json"

	"github.com/nautilus-tee/enclave-signer/internal/attest"
	"github.com/nautilus-tee/enclave-signer/internal/nonce"
)

var _ attest.Attester = (*Attester)(nil)

type Attester struct{}

// NewAttester returns a new noop attester.
func NewAttester() attest.Attester {
	return new(Attester)
}

func (*Attester) Type() string {
	return attest.TypeNoop
}

func (*Attester) Attest(aux *attest.AuxInfo) (*attest.RawDocument, error) {
	// With the Nitro attester, the attestation document is a CBOR-encoded
	// byte array.  For simplicity, the noop attester encodes the given
	// AuxInfo as a JSON object in the attestation document.
	a, err := json.Marshal(aux)
	if err != nil {
		return nil, err
	}
	return &attest.RawDocument{
		Type: attest.TypeNoop,
		Doc:  a,
	}, nil
}

func (*Attester) Verify(a *attest.RawDocument, _ *nonce.Nonce) (*attest.Document, error) {
	var doc = new(attest.Document)
	var aux = new(attest.AuxInfo)

	if err := json.Unmarshal(a.Doc, aux); err != nil {
		return nil, err
	}
	doc.AuxInfo = *aux
	return doc, nil
}
