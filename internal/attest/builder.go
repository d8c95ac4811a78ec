package attest

import "github.com/nautilus-tee/enclave-signer/internal/nonce"

// Builder bundles an attester with the auxiliary fields an attestation
// document is built from. As a Builder is passed through the stack, its
// auxiliary fields are updated and eventually used to create an
// attestation document.
type Builder struct {
	Attester
	AuxInfo
}

type auxField func(*Builder)

// NewBuilder returns a new Builder with the given attester and sets the
// given auxiliary fields.
func NewBuilder(attester Attester, opts ...auxField) *Builder {
	b := &Builder{Attester: attester}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Update updates the builder with the given auxiliary fields.
func (b *Builder) Update(opts ...auxField) {
	for _, opt := range opts {
		opt(b)
	}
}

// Attest returns an attestation document with the auxiliary fields that
// were either already set, or are now passed in as options.
func (b *Builder) Attest(opts ...auxField) (*RawDocument, error) {
	for _, opt := range opts {
		opt(b)
	}
	return b.Attester.Attest(&b.AuxInfo)
}

// WithSignPK binds the enclave's Ed25519 signing public key into the
// attestation document's public_key field, so a caller of /get_attestation
// can learn, in one round trip, which key the PCRs it's looking at vouch
// for.
func WithSignPK(signPK []byte) auxField {
	return func(b *Builder) {
		b.PublicKey = signPK
	}
}

// WithNonce sets the given nonce in an auxiliary field.
func WithNonce(n *nonce.Nonce) auxField {
	return func(b *Builder) {
		if n == nil {
			return
		}
		b.Nonce = n.ToSlice()
	}
}

// WithUserData sets the given bytes in the document's user_data field.
func WithUserData(data []byte) auxField {
	return func(b *Builder) {
		b.UserData = data
	}
}
