// Package weather implements a reference application: it fetches current
// conditions for a named location from weatherapi.com, using an API key
// installed by the Seal bootstrap protocol, and signs the result.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nautilus-tee/enclave-signer/internal/app"
	"github.com/nautilus-tee/enclave-signer/internal/bcs"
	"github.com/nautilus-tee/enclave-signer/internal/errs"
	"github.com/nautilus-tee/enclave-signer/internal/secretstore"
)

// Intent is this application's domain-separation tag.
const Intent byte = 0

// apiKeySecretName is the name under which the bootstrap protocol installs
// the weatherapi.com API key.
const apiKeySecretName = "API_KEY"

// maxStaleness is how old a weatherapi.com reading may be before it's
// rejected: signing a stale value would let a client extract a
// freshly-dated signature over data that no longer reflects reality.
const maxStaleness = time.Hour

// apiBaseURL is overridden in tests to point at a local httptest.Server
// instead of the real weatherapi.com endpoint.
var apiBaseURL = "https://api.weatherapi.com/v1/current.json"

// Request is the application-defined input to /process_data.
type Request struct {
	Location string `json:"location"`
}

// Response is the application-defined output, BCS-encoded into the signed
// IntentMessage payload in field-declaration order: location then
// temperature.
type Response struct {
	Location    string
	Temperature uint64
}

// App implements app.Application for the weather lookup. Transport
// determines how outbound requests to weatherapi.com leave the process: in
// production it must be tunnel.NewOutboundProxyTransport(), since the
// enclave has no network stack of its own; nil falls back to
// http.DefaultTransport, which is only safe outside an enclave.
type App struct {
	Transport http.RoundTripper
}

var _ app.Application = App{}

func (a App) Intent() byte { return Intent }

func (a App) DecodeInput(body []byte) (any, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.BadRequest, err)
	}
	if req.Location == "" {
		return nil, fmt.Errorf("%w: location must not be empty", errs.BadRequest)
	}
	return req, nil
}

type weatherAPIResponse struct {
	Location struct {
		Name string `json:"name"`
	} `json:"location"`
	Current struct {
		TempC            float64 `json:"temp_c"`
		LastUpdatedEpoch int64   `json:"last_updated_epoch"`
	} `json:"current"`
}

func (a App) Process(ctx context.Context, input any, secrets *secretstore.Store) (any, uint64, error) {
	req, ok := input.(Request)
	if !ok {
		return nil, 0, fmt.Errorf("%w: unexpected input type %T", errs.BadRequest, input)
	}

	apiKey, err := secrets.Read(apiKeySecretName)
	if err != nil {
		return nil, 0, err
	}

	reqURL := fmt.Sprintf(
		"%s?key=%s&q=%s",
		apiBaseURL, url.QueryEscape(string(apiKey)), url.QueryEscape(req.Location),
	)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", errs.UpstreamError, err)
	}

	client := &http.Client{Timeout: 10 * time.Second, Transport: a.Transport}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to reach weatherapi.com: %w", errs.UpstreamError, err)
	}
	defer resp.Body.Close()

	var parsed weatherAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("%w: failed to parse weather response: %w", errs.UpstreamError, err)
	}

	lastUpdatedMs := uint64(parsed.Current.LastUpdatedEpoch) * 1000
	if time.Now().UnixMilli()-int64(lastUpdatedMs) > maxStaleness.Milliseconds() {
		return nil, 0, fmt.Errorf("%w: weather reading is stale", errs.UpstreamError)
	}

	out := Response{
		Location:    parsed.Location.Name,
		Temperature: uint64(parsed.Current.TempC),
	}
	return out, lastUpdatedMs, nil
}

func (a App) EncodeOutput(output any) ([]byte, error) {
	resp, ok := output.(Response)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected output type %T", errs.BadRequest, output)
	}
	return bcs.NewEncoder().
		WriteString(resp.Location).
		WriteU64(resp.Temperature).
		Bytes(), nil
}
