package nitro

import (
	"errors"
	"time"

	"github.com/nautilus-tee/enclave-signer/internal/attest"
	"github.com/nautilus-tee/enclave-signer/internal/errs"
	"github.com/nautilus-tee/enclave-signer/internal/nonce"

	"github.com/hf/nsm"
	"github.com/hf/nsm/request"
)

var _ attest.Attester = (*Attester)(nil)
var ErrDebugMode = errors.New("attestation document was produced in debug mode")

// Attester implements the attester interface by drawing on the AWS Nitro
// Enclave hypervisor.
type Attester struct {
	session *nsm.Session
}

// NewAttester returns a new Nitro attester.
func NewAttester() attest.Attester {
	return new(Attester)
}

func (*Attester) Type() string {
	return attest.TypeNitro
}

func (a *Attester) Attest(aux *attest.AuxInfo) (_ *attest.RawDocument, err error) {
	defer errs.Wrap(&err, "failed to create attestation document")

	if a.session == nil {
		// Open a session to the Nitro Secure Module.
		if a.session, err = nsm.OpenDefaultSession(); err != nil {
			return nil, err
		}
	}

	if aux == nil {
		return nil, errors.New("aux info is nil")
	}

	req := &request.Attestation{
		Nonce:     aux.Nonce,
		UserData:  aux.UserData,
		PublicKey: aux.PublicKey,
	}
	resp, err := a.session.Send(req)
	if err != nil {
		return nil, err
	}
	if resp.Attestation == nil || resp.Attestation.Document == nil {
		return nil, errors.New("required fields missing in attestation response")
	}

	return &attest.RawDocument{
		Type: attest.TypeNitro,
		Doc:  resp.Attestation.Document,
	}, nil
}

func (a *Attester) Verify(
	doc *attest.RawDocument,
	ourNonce *nonce.Nonce,
) (_ *attest.Document, err error) {
	defer errs.Wrap(&err, "failed to verify attestation document")

	if doc == nil {
		return nil, errors.New("attestation document is nil")
	}
	if doc.Type != a.Type() {
		return nil, errors.New("attestation document type mismatch")
	}

	// First, verify the attestation document.
	opts := verifyOptions{CurrentTime: time.Now().UTC()}
	res, err := verify(doc.Doc, opts)
	if err != nil {
		return nil, err
	}

	// Verify that the attestation document contains the nonce that we may
	// have asked it to embed.
	if ourNonce != nil {
		docNonce, err := nonce.FromSlice(res.Document.Nonce)
		if err != nil {
			return nil, err
		}
		if *ourNonce != *docNonce {
			return nil, errors.New("nonce does not match")
		}
	}

	out := &attest.Document{
		ModuleID:    res.Document.ModuleID,
		Timestamp:   res.Document.Timestamp,
		Digest:      res.Document.Digest,
		PCRs:        attest.PCR(res.Document.PCRs),
		Certificate: res.Document.Certificate,
		CABundle:    res.Document.CABundle,
		AuxInfo: attest.AuxInfo{
			Nonce:     res.Document.Nonce,
			UserData:  res.Document.UserData,
			PublicKey: res.Document.PublicKey,
		},
	}

	// If the enclave is running in debug mode, return an error *and* the
	// document: a caller that only cares about the auxiliary fields can
	// still make use of them, but must not treat the PCRs as trustworthy.
	if out.PCRs.FromDebugMode() {
		err = ErrDebugMode
	}

	return out, err
}
