package seal

// InitParameterLoadRequest is the body of POST /init_parameter_load.
type InitParameterLoadRequest struct {
	EnclaveObjectID      string   `json:"enclave_object_id"`
	InitialSharedVersion uint64   `json:"initial_shared_version"`
	IDs                  []string `json:"ids"`
}

// InitParameterLoadResponse carries the hex-encoded, BCS-serialized
// FetchKeyRequest the caller forwards to the Seal key servers.
type InitParameterLoadResponse struct {
	EncodedRequest string `json:"encoded_request"`
}

// CompleteParameterLoadRequest is the body of POST /complete_parameter_load.
type CompleteParameterLoadRequest struct {
	EncryptedObjects string `json:"encrypted_objects"`
	SealResponses    string `json:"seal_responses"`
}

// CompleteParameterLoadResponse returns every decrypted secret after the
// first, which the caller installed directly into the secrets store.
type CompleteParameterLoadResponse struct {
	DummySecrets [][]byte `json:"dummy_secrets"`
}

// Certificate authorizes a session public key to request decryption shares
// on the enclave's behalf, for a bounded validity window, signed by the
// enclave's long-lived Ed25519 key.
type Certificate struct {
	User           [32]byte // blake2b256(0x00 || sign_pk)
	SessionPK      []byte   // ephemeral Ed25519 public key for this session
	CreationTimeMs uint64
	TTLMin         uint64
	Signature      []byte
}

// FetchKeyRequest is sent out-of-band (ferried by the host bridge) to every
// Seal key server.
type FetchKeyRequest struct {
	Certificate Certificate
	EGPublicKey []byte
	IDs         [][]byte
	PTB         []byte
}

// ServerResponse is one key server's reply: a signed, ElGamal-encrypted
// share of an object's symmetric key.
type ServerResponse struct {
	ServerID   string
	Signature  []byte
	Ciphertext []byte
}

// EncryptedObject is a secret, AES-256-GCM-sealed ahead of time by the
// operator with a key only recoverable by combining threshold-many
// ServerResponses.
type EncryptedObject struct {
	ID         []byte
	Nonce      []byte
	Ciphertext []byte
}
