// Package seal implements the two-phase key-bootstrap protocol: the
// enclave asks a set of Seal key servers (reached only by ferrying
// requests through the host bridge, since the enclave has no network) to
// release decryption shares for an operator-prepared secret, recovers the
// secret once threshold-many shares agree, and installs it into the
// secrets store. The protocol never lets the host, or any single key
// server, observe the recovered plaintext.
package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/nautilus-tee/enclave-signer/internal/elgamal"
	"github.com/nautilus-tee/enclave-signer/internal/errs"
	"github.com/nautilus-tee/enclave-signer/internal/secretstore"
	"github.com/nautilus-tee/enclave-signer/internal/signer"
	"golang.org/x/crypto/blake2b"
)

// state is the bootstrap attempt's position in Idle -> AwaitingResponses ->
// Loaded. It resets to Idle on any error encountered mid-attempt.
type state int

const (
	stateIdle state = iota
	stateAwaitingResponses
	stateLoaded
)

// PrimarySecretName is the name under which the first recovered secret is
// installed into the secrets store.
const PrimarySecretName = "API_KEY"

// sessionTTLMinutes bounds how long a certificate issued by
// InitParameterLoad remains valid; the original Seal example pins this to
// 10 minutes.
const sessionTTLMinutes = 10

// Coordinator drives one bootstrap attempt at a time. threshold is the
// minimum number of agreeing key-server responses required to recover an
// object's symmetric key.
type Coordinator struct {
	mu sync.Mutex

	state state

	signer    *signer.KeyPair
	egSK      *elgamal.PrivateKey
	egPK      *elgamal.PublicKey
	serverPKs map[string][]byte
	threshold int

	pendingIDs        [][]byte
	pendingCreationMs uint64
	pendingTTLMin     uint64

	secrets *secretstore.Store
}

// New builds a Coordinator bound to signKP (the enclave's long-lived
// identity, used to sign session certificates) and secrets (where the
// recovered plaintexts are installed). serverPKs pins each Seal key
// server's verification key at boot, by server id; threshold is the
// minimum number of servers that must agree for an object to be
// recoverable.
func New(signKP *signer.KeyPair, serverPKs map[string][]byte, threshold int, secrets *secretstore.Store) (*Coordinator, error) {
	egSK, egPK, err := elgamal.GenerateKeyPair(nil)
	if err != nil {
		return nil, fmt.Errorf("seal: failed to generate ElGamal keypair: %w", err)
	}
	return &Coordinator{
		state:     stateIdle,
		signer:    signKP,
		egSK:      egSK,
		egPK:      egPK,
		serverPKs: serverPKs,
		threshold: threshold,
		secrets:   secrets,
	}, nil
}

// address derives a Sui-style address from an Ed25519 public key:
// blake2b256(0x00 || pk).
func address(pk []byte) [32]byte {
	h, _ := blake2b.New256(nil) // nil key, fixed 32-byte output; never errors
	h.Write([]byte{0x00})
	h.Write(pk)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// InitParameterLoad begins a bootstrap attempt: it mints a fresh session
// keypair, signs a certificate authorizing that session to request the
// given ids, and returns the hex-ready FetchKeyRequest the caller ferries
// to every Seal key server.
func (c *Coordinator) InitParameterLoad(req InitParameterLoadRequest) (*FetchKeyRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateLoaded {
		return nil, errs.ErrAlreadyLoaded
	}

	sessionKP, err := signer.Generate()
	if err != nil {
		return nil, fmt.Errorf("seal: failed to generate session key: %w", err)
	}

	nowMs := uint64(time.Now().UnixMilli())
	cert := Certificate{
		User:           address(c.signer.Public),
		SessionPK:      sessionKP.Public,
		CreationTimeMs: nowMs,
		TTLMin:         sessionTTLMinutes,
	}
	cert.Signature = ed25519.Sign(c.signer.Private, certMessage(cert))

	ids := make([][]byte, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = []byte(id)
	}

	fkr := &FetchKeyRequest{
		Certificate: cert,
		EGPublicKey: c.egPK.Bytes(),
		IDs:         ids,
		PTB:         buildPTB(req.EnclaveObjectID, req.InitialSharedVersion, ids),
	}

	c.state = stateAwaitingResponses
	c.pendingIDs = ids
	c.pendingCreationMs = nowMs
	c.pendingTTLMin = sessionTTLMinutes

	return fkr, nil
}

// certMessage is the byte sequence a certificate's signature covers: every
// field except the signature itself, in declaration order.
func certMessage(c Certificate) []byte {
	out := append([]byte{}, c.User[:]...)
	out = append(out, c.SessionPK...)
	out = append(out, uint64ToBytes(c.CreationTimeMs)...)
	out = append(out, uint64ToBytes(c.TTLMin)...)
	return out
}

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

// buildPTB constructs the programmable-transaction-block bytes invoking
// seal_approve(id, &Enclave) once per id, against the given enclave shared
// object. The PTB's exact Move-level encoding is opaque to this service;
// what matters is that every Seal key server reconstructs the identical
// bytes from the same (enclaveObjectID, initialSharedVersion, ids) tuple,
// so this is the canonical serialization both sides agree on.
func buildPTB(enclaveObjectID string, initialSharedVersion uint64, ids [][]byte) []byte {
	out := []byte(enclaveObjectID)
	out = append(out, uint64ToBytes(initialSharedVersion)...)
	for _, id := range ids {
		out = append(out, id...)
	}
	return out
}

// CompleteParameterLoad finishes a bootstrap attempt: it verifies every
// key server's response against its pinned public key, requires at least
// Threshold agreeing responses per object, recovers each object's
// symmetric key via ElGamal decryption, AEAD-decrypts the corresponding
// operator-supplied object, and installs the first recovered plaintext
// into the secrets store under PrimarySecretName.
func (c *Coordinator) CompleteParameterLoad(encryptedObjects []EncryptedObject, responses []ServerResponse) (*CompleteParameterLoadResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateLoaded {
		return nil, errs.ErrAlreadyLoaded
	}
	if c.state != stateAwaitingResponses {
		return nil, errs.ErrNotInitialized
	}

	nowMs := uint64(time.Now().UnixMilli())
	if nowMs-c.pendingCreationMs > c.pendingTTLMin*60*1000 {
		c.state = stateIdle
		return nil, errs.ErrCertificateExpired
	}

	plaintexts := make([][]byte, 0, len(encryptedObjects))
	for _, obj := range encryptedObjects {
		key, err := c.recoverSymmetricKey(obj.ID, responses)
		if err != nil {
			c.state = stateIdle
			return nil, err
		}
		plaintext, err := aesGCMDecrypt(key, obj.Nonce, obj.Ciphertext)
		if err != nil {
			c.state = stateIdle
			return nil, fmt.Errorf("%w: %w", errs.ErrDecryptionFailed, err)
		}
		plaintexts = append(plaintexts, plaintext)
	}

	if len(plaintexts) == 0 {
		c.state = stateIdle
		return nil, fmt.Errorf("%w: no secrets were decrypted", errs.ErrDecryptionFailed)
	}

	if err := c.secrets.Write(PrimarySecretName, plaintexts[0]); err != nil {
		c.state = stateIdle
		return nil, err
	}

	c.state = stateLoaded
	return &CompleteParameterLoadResponse{DummySecrets: plaintexts[1:]}, nil
}

// recoverSymmetricKey verifies each response claiming to cover objectID
// under its server's pinned key, decrypts the ElGamal ciphertext, and
// requires at least Threshold responses to agree on the recovered key
// before returning it.
func (c *Coordinator) recoverSymmetricKey(objectID []byte, responses []ServerResponse) ([]byte, error) {
	votes := map[string]int{}
	keysByHex := map[string][]byte{}

	for _, r := range responses {
		serverPK, pinned := c.serverPKs[r.ServerID]
		if !pinned {
			continue
		}
		signed := append(append([]byte{}, objectID...), r.Ciphertext...)
		if !signer.VerifyMessage(serverPK, signed, r.Signature) {
			return nil, fmt.Errorf("%w: server %q", errs.ErrSignatureMismatch, r.ServerID)
		}

		ct, err := elgamal.CiphertextFromBytes(r.Ciphertext)
		if err != nil {
			continue
		}
		point := c.egSK.Decrypt(ct)
		sum := sha256.Sum256(elgamal.PointBytes(point))
		key := sum[:]

		keyHex := hex.EncodeToString(key)
		votes[keyHex]++
		keysByHex[keyHex] = key
	}

	var winningHex string
	for keyHex, n := range votes {
		if n > votes[winningHex] {
			winningHex = keyHex
		}
	}

	if votes[winningHex] < c.threshold {
		return nil, errs.ErrThresholdNotMet
	}
	return keysByHex[winningHex], nil
}

func aesGCMDecrypt(key, nonce, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}
