package service

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/nautilus-tee/enclave-signer/internal/app"
	"github.com/nautilus-tee/enclave-signer/internal/attest"
	"github.com/nautilus-tee/enclave-signer/internal/httperr"
	"github.com/nautilus-tee/enclave-signer/internal/seal"
	"github.com/nautilus-tee/enclave-signer/internal/secretstore"
	"github.com/nautilus-tee/enclave-signer/internal/signer"
)

type healthCheckResponse struct {
	PK string `json:"pk"`
}

// healthCheck never fails: it reports the enclave's signing public key so
// a caller can, in the same round trip, compare it against the
// attestation document's user_data field.
func healthCheck(kp *signer.KeyPair) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		encode(w, http.StatusOK, healthCheckResponse{PK: hex.EncodeToString(kp.Public)})
	}
}

type attestationResponse struct {
	Attestation string `json:"attestation"`
}

// getAttestation requests a fresh attestation document binding the
// enclave's signing public key into user_data, so a verifier never has to
// trust a second channel for that binding.
func getAttestation(builder *attest.Builder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := builder.Attest()
		if err != nil {
			encode(w, http.StatusInternalServerError, httperr.New(err.Error()))
			return
		}
		encode(w, http.StatusOK, attestationResponse{Attestation: hex.EncodeToString(doc.Doc)})
	}
}

type processDataRequest struct {
	Payload json.RawMessage `json:"payload"`
}

type signedResponse struct {
	Intent      byte            `json:"intent"`
	TimestampMs uint64          `json:"timestamp_ms"`
	Data        json.RawMessage `json:"data"`
}

type processDataResponse struct {
	Response  signedResponse `json:"response"`
	Signature string         `json:"signature"`
}

// processData runs the compiled-in application against the request
// payload, signs its output under the sampled timestamp, and returns both
// the JSON-rendered output and the hex signature. The timestamp in the
// response is the one covered by the signature; a verifier must use it,
// not its own wall clock, when reconstructing the signed message.
func processData(a app.Application, secrets *secretstore.Store, kp *signer.KeyPair) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req processDataRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			encode(w, http.StatusBadRequest, httperr.New(err.Error()))
			return
		}

		input, err := a.DecodeInput(req.Payload)
		if err != nil {
			encode(w, statusFor(err), httperr.New(err.Error()))
			return
		}

		output, timestampMs, err := a.Process(r.Context(), input, secrets)
		if err != nil {
			encode(w, statusFor(err), httperr.New(err.Error()))
			return
		}

		payload, err := a.EncodeOutput(output)
		if err != nil {
			encode(w, http.StatusInternalServerError, httperr.New(err.Error()))
			return
		}
		data, err := json.Marshal(output)
		if err != nil {
			encode(w, http.StatusInternalServerError, httperr.New(err.Error()))
			return
		}

		_, sig := kp.Sign(a.Intent(), timestampMs, payload)
		encode(w, http.StatusOK, processDataResponse{
			Response: signedResponse{
				Intent:      a.Intent(),
				TimestampMs: timestampMs,
				Data:        data,
			},
			Signature: hex.EncodeToString(sig),
		})
	}
}

// ping is the host-only bootstrap server's trivial liveness probe,
// distinct from health_check on the public port.
func ping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

func initParameterLoad(c *seal.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req seal.InitParameterLoadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			encode(w, http.StatusBadRequest, httperr.New(err.Error()))
			return
		}

		fkr, err := c.InitParameterLoad(req)
		if err != nil {
			encode(w, statusFor(err), httperr.New(err.Error()))
			return
		}
		encode(w, http.StatusOK, seal.InitParameterLoadResponse{
			EncodedRequest: hex.EncodeToString(fkr.Encode()),
		})
	}
}

func completeParameterLoad(c *seal.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req seal.CompleteParameterLoadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			encode(w, http.StatusBadRequest, httperr.New(err.Error()))
			return
		}

		encodedObjects, err := hex.DecodeString(req.EncryptedObjects)
		if err != nil {
			encode(w, http.StatusBadRequest, httperr.New(err.Error()))
			return
		}
		encodedResponses, err := hex.DecodeString(req.SealResponses)
		if err != nil {
			encode(w, http.StatusBadRequest, httperr.New(err.Error()))
			return
		}

		objects, err := seal.DecodeEncryptedObjects(encodedObjects)
		if err != nil {
			encode(w, http.StatusBadRequest, httperr.New(err.Error()))
			return
		}
		responses, err := seal.DecodeServerResponses(encodedResponses)
		if err != nil {
			encode(w, http.StatusBadRequest, httperr.New(err.Error()))
			return
		}

		resp, err := c.CompleteParameterLoad(objects, responses)
		if err != nil {
			encode(w, statusFor(err), httperr.New(err.Error()))
			return
		}
		encode(w, http.StatusOK, resp)
	}
}
