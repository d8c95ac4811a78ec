package weather

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nautilus-tee/enclave-signer/internal/bcs"
	"github.com/nautilus-tee/enclave-signer/internal/errs"
	"github.com/nautilus-tee/enclave-signer/internal/secretstore"
	"github.com/stretchr/testify/require"
)

func storeWithAPIKey(t *testing.T) *secretstore.Store {
	t.Helper()
	s := secretstore.New()
	require.NoError(t, s.Write(apiKeySecretName, []byte("test-key")))
	return s
}

func TestDecodeInputRejectsEmptyLocation(t *testing.T) {
	_, err := App{}.DecodeInput([]byte(`{"location":""}`))
	require.ErrorIs(t, err, errs.BadRequest)
}

func TestDecodeInputRejectsMalformedJSON(t *testing.T) {
	_, err := App{}.DecodeInput([]byte(`not json`))
	require.ErrorIs(t, err, errs.BadRequest)
}

func TestProcessRequiresAPIKey(t *testing.T) {
	_, _, err := App{}.Process(context.Background(), Request{Location: "San Francisco"}, secretstore.New())
	require.ErrorIs(t, err, errs.SecretNotInitialized)
}

func TestEncodeOutputMatchesVector(t *testing.T) {
	want, err := hex.DecodeString("0d53616e204672616e636973636f0d00000000000000")
	require.NoError(t, err)

	got, err := App{}.EncodeOutput(Response{Location: "San Francisco", Temperature: 13})
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestFullIntentMessageMatchesVector(t *testing.T) {
	want, err := hex.DecodeString("0020b1d110960100000d53616e204672616e636973636f0d00000000000000")
	require.NoError(t, err)

	payload, err := App{}.EncodeOutput(Response{Location: "San Francisco", Temperature: 13})
	require.NoError(t, err)

	got := bcs.NewEncoder().WriteByte(Intent).WriteU64(1744038900000).Bytes()
	got = append(got, payload...)
	require.Equal(t, want, got)
}

func withFakeWeatherAPI(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	orig := apiBaseURL
	apiBaseURL = srv.URL
	t.Cleanup(func() { apiBaseURL = orig })
}

func TestProcessRejectsStaleReading(t *testing.T) {
	withFakeWeatherAPI(t, func(w http.ResponseWriter, r *http.Request) {
		stale := time.Now().Add(-2 * time.Hour).Unix()
		fmt.Fprintf(w, `{"location":{"name":"San Francisco"},"current":{"temp_c":13,"last_updated_epoch":%d}}`, stale)
	})

	_, _, err := App{}.Process(context.Background(), Request{Location: "San Francisco"}, storeWithAPIKey(t))
	require.ErrorIs(t, err, errs.UpstreamError)
}

func TestProcessReturnsFreshReading(t *testing.T) {
	fresh := time.Now().Add(-1 * time.Minute).Unix()
	withFakeWeatherAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"location":{"name":"San Francisco"},"current":{"temp_c":13,"last_updated_epoch":%d}}`, fresh)
	})

	out, ts, err := App{}.Process(context.Background(), Request{Location: "San Francisco"}, storeWithAPIKey(t))
	require.NoError(t, err)
	require.Equal(t, Response{Location: "San Francisco", Temperature: 13}, out)
	require.Equal(t, uint64(fresh)*1000, ts)
}
