package seal

import (
	"fmt"

	"github.com/nautilus-tee/enclave-signer/internal/bcs"
)

func (c *Certificate) encode(enc *bcs.Encoder) {
	enc.WriteBytes(c.User[:]).
		WriteBytes(c.SessionPK).
		WriteU64(c.CreationTimeMs).
		WriteU64(c.TTLMin).
		WriteBytes(c.Signature)
}

func decodeCertificate(dec *bcs.Decoder) (Certificate, error) {
	var c Certificate
	user, err := dec.ReadBytes()
	if err != nil {
		return c, err
	}
	if len(user) != 32 {
		return c, fmt.Errorf("seal: certificate user must be 32 bytes, got %d", len(user))
	}
	copy(c.User[:], user)

	if c.SessionPK, err = dec.ReadBytes(); err != nil {
		return c, err
	}
	if c.CreationTimeMs, err = dec.ReadU64(); err != nil {
		return c, err
	}
	if c.TTLMin, err = dec.ReadU64(); err != nil {
		return c, err
	}
	if c.Signature, err = dec.ReadBytes(); err != nil {
		return c, err
	}
	return c, nil
}

// Encode serializes a FetchKeyRequest under BCS, field in declaration
// order, so every Seal key server reconstructs the exact bytes the
// certificate's signature covers.
func (r *FetchKeyRequest) Encode() []byte {
	enc := bcs.NewEncoder()
	r.Certificate.encode(enc)
	enc.WriteBytes(r.EGPublicKey)
	enc.WriteULEB128(uint64(len(r.IDs)))
	for _, id := range r.IDs {
		enc.WriteBytes(id)
	}
	enc.WriteBytes(r.PTB)
	return enc.Bytes()
}

// DecodeFetchKeyRequest parses the encoding produced by Encode.
func DecodeFetchKeyRequest(b []byte) (*FetchKeyRequest, error) {
	dec := bcs.NewDecoder(b)
	cert, err := decodeCertificate(dec)
	if err != nil {
		return nil, err
	}
	egPK, err := dec.ReadBytes()
	if err != nil {
		return nil, err
	}
	n, err := dec.ReadULEB128()
	if err != nil {
		return nil, err
	}
	ids := make([][]byte, n)
	for i := range ids {
		if ids[i], err = dec.ReadBytes(); err != nil {
			return nil, err
		}
	}
	ptb, err := dec.ReadBytes()
	if err != nil {
		return nil, err
	}
	return &FetchKeyRequest{Certificate: cert, EGPublicKey: egPK, IDs: ids, PTB: ptb}, nil
}

// Encode serializes a ServerResponse under BCS.
func (r *ServerResponse) Encode() []byte {
	return bcs.NewEncoder().
		WriteString(r.ServerID).
		WriteBytes(r.Signature).
		WriteBytes(r.Ciphertext).
		Bytes()
}

func decodeServerResponse(dec *bcs.Decoder) (ServerResponse, error) {
	var r ServerResponse
	var err error
	if r.ServerID, err = dec.ReadString(); err != nil {
		return r, err
	}
	if r.Signature, err = dec.ReadBytes(); err != nil {
		return r, err
	}
	if r.Ciphertext, err = dec.ReadBytes(); err != nil {
		return r, err
	}
	return r, nil
}

// DecodeServerResponses parses a ULEB128-length-prefixed list of
// ServerResponse values, the shape returned for seal_responses.
func DecodeServerResponses(b []byte) ([]ServerResponse, error) {
	dec := bcs.NewDecoder(b)
	n, err := dec.ReadULEB128()
	if err != nil {
		return nil, err
	}
	out := make([]ServerResponse, n)
	for i := range out {
		if out[i], err = decodeServerResponse(dec); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// EncodeServerResponses is the inverse of DecodeServerResponses, for
// assembling a seal_responses value.
func EncodeServerResponses(responses []ServerResponse) []byte {
	enc := bcs.NewEncoder().WriteULEB128(uint64(len(responses)))
	for _, r := range responses {
		enc.WriteString(r.ServerID).WriteBytes(r.Signature).WriteBytes(r.Ciphertext)
	}
	return enc.Bytes()
}

// Encode serializes an EncryptedObject under BCS.
func (o *EncryptedObject) Encode() []byte {
	return bcs.NewEncoder().
		WriteBytes(o.ID).
		WriteBytes(o.Nonce).
		WriteBytes(o.Ciphertext).
		Bytes()
}

func decodeEncryptedObject(dec *bcs.Decoder) (EncryptedObject, error) {
	var o EncryptedObject
	var err error
	if o.ID, err = dec.ReadBytes(); err != nil {
		return o, err
	}
	if o.Nonce, err = dec.ReadBytes(); err != nil {
		return o, err
	}
	if o.Ciphertext, err = dec.ReadBytes(); err != nil {
		return o, err
	}
	return o, nil
}

// DecodeEncryptedObjects parses a ULEB128-length-prefixed list of
// EncryptedObject values.
func DecodeEncryptedObjects(b []byte) ([]EncryptedObject, error) {
	dec := bcs.NewDecoder(b)
	n, err := dec.ReadULEB128()
	if err != nil {
		return nil, err
	}
	out := make([]EncryptedObject, n)
	for i := range out {
		if out[i], err = decodeEncryptedObject(dec); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// EncodeEncryptedObjects is the inverse of DecodeEncryptedObjects, for
// assembling an encrypted_objects value.
func EncodeEncryptedObjects(objects []EncryptedObject) []byte {
	enc := bcs.NewEncoder().WriteULEB128(uint64(len(objects)))
	for _, o := range objects {
		enc.WriteBytes(o.ID).WriteBytes(o.Nonce).WriteBytes(o.Ciphertext)
	}
	return enc.Bytes()
}
