// Package elgamal implements threshold ElGamal encryption over the BLS12-381
// G1 group, used only by the bootstrap protocol in internal/seal: a key
// server encrypts a per-object secret share under the enclave's ephemeral
// public key, and the enclave recovers the share by combining its private
// key with the ciphertext once threshold-many shares arrive.
package elgamal

import (
	"crypto/rand"
	"fmt"
	"io"

	bls12381 "github.com/kilic/bls12-381"
)

// PrivateKey is a random scalar in the BLS12-381 scalar field.
type PrivateKey struct {
	scalar *bls12381.Fr
}

// PublicKey is the PrivateKey's scalar multiple of the G1 generator.
type PublicKey struct {
	point *bls12381.PointG1
}

// Ciphertext is an ElGamal ciphertext over G1: (ephemeral*G, message + ephemeral*pk).
type Ciphertext struct {
	EphemeralPoint *bls12381.PointG1
	MaskedMessage  *bls12381.PointG1
}

func g1() *bls12381.G1 { return bls12381.NewG1() }

// GenerateKeyPair draws a fresh random scalar and derives its public point.
func GenerateKeyPair(rnd io.Reader) (*PrivateKey, *PublicKey, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	sk, err := new(bls12381.Fr).Rand(rnd)
	if err != nil {
		return nil, nil, fmt.Errorf("elgamal: failed to draw random scalar: %w", err)
	}
	pub := g1().New()
	g1().MulScalar(pub, g1().One(), sk)
	return &PrivateKey{scalar: sk}, &PublicKey{point: pub}, nil
}

// Bytes serializes the public key as a compressed G1 point.
func (pk *PublicKey) Bytes() []byte {
	return g1().ToCompressed(pk.point)
}

// PublicKeyFromBytes parses a compressed G1 point produced by Bytes.
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	p, err := g1().FromCompressed(b)
	if err != nil {
		return nil, fmt.Errorf("elgamal: invalid public key encoding: %w", err)
	}
	return &PublicKey{point: p}, nil
}

// Encrypt masks message (a G1 point, typically derived from a secret share
// via hash-to-curve) under recipient's public key, drawing a fresh
// ephemeral scalar from rnd.
func Encrypt(rnd io.Reader, recipient *PublicKey, message *bls12381.PointG1) (*Ciphertext, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	ephemeral, err := new(bls12381.Fr).Rand(rnd)
	if err != nil {
		return nil, fmt.Errorf("elgamal: failed to draw ephemeral scalar: %w", err)
	}

	ephemeralPoint := g1().New()
	g1().MulScalar(ephemeralPoint, g1().One(), ephemeral)

	shared := g1().New()
	g1().MulScalar(shared, recipient.point, ephemeral)

	masked := g1().New()
	g1().Add(masked, message, shared)

	return &Ciphertext{EphemeralPoint: ephemeralPoint, MaskedMessage: masked}, nil
}

// Decrypt recovers the message point by subtracting the shared secret
// sk*EphemeralPoint from MaskedMessage.
func (sk *PrivateKey) Decrypt(ct *Ciphertext) *bls12381.PointG1 {
	shared := g1().New()
	g1().MulScalar(shared, ct.EphemeralPoint, sk.scalar)

	negShared := g1().New()
	g1().Neg(negShared, shared)

	message := g1().New()
	g1().Add(message, ct.MaskedMessage, negShared)
	return message
}

// compressedG1Len is the encoded length of a compressed BLS12-381 G1 point.
const compressedG1Len = 48

// Bytes serializes a ciphertext as two back-to-back compressed G1 points.
func (ct *Ciphertext) Bytes() []byte {
	b := make([]byte, 0, 2*compressedG1Len)
	b = append(b, g1().ToCompressed(ct.EphemeralPoint)...)
	b = append(b, g1().ToCompressed(ct.MaskedMessage)...)
	return b
}

// CiphertextFromBytes parses the encoding produced by Bytes.
func CiphertextFromBytes(b []byte) (*Ciphertext, error) {
	if len(b) != 2*compressedG1Len {
		return nil, fmt.Errorf("elgamal: invalid ciphertext length %d", len(b))
	}
	ephemeral, err := g1().FromCompressed(b[:compressedG1Len])
	if err != nil {
		return nil, fmt.Errorf("elgamal: invalid ephemeral point: %w", err)
	}
	masked, err := g1().FromCompressed(b[compressedG1Len:])
	if err != nil {
		return nil, fmt.Errorf("elgamal: invalid masked message point: %w", err)
	}
	return &Ciphertext{EphemeralPoint: ephemeral, MaskedMessage: masked}, nil
}

// PointBytes returns the compressed encoding of a G1 point, used to derive a
// symmetric key from a decrypted message point via hashing.
func PointBytes(p *bls12381.PointG1) []byte {
	return g1().ToCompressed(p)
}

// RandomPoint draws a random scalar and returns its multiple of the G1
// generator. A Seal key server uses a fresh random point of this kind as
// the message an ElGamal ciphertext masks; the enclave derives the
// object's symmetric key by hashing the recovered point's bytes.
func RandomPoint(rnd io.Reader) (*bls12381.PointG1, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	scalar, err := new(bls12381.Fr).Rand(rnd)
	if err != nil {
		return nil, fmt.Errorf("elgamal: failed to draw random scalar: %w", err)
	}
	p := g1().New()
	g1().MulScalar(p, g1().One(), scalar)
	return p, nil
}
