package echo

import (
	"context"
	"testing"

	"github.com/nautilus-tee/enclave-signer/internal/errs"
	"github.com/nautilus-tee/enclave-signer/internal/secretstore"
	"github.com/stretchr/testify/require"
)

func TestDecodeInputRejectsMalformedJSON(t *testing.T) {
	_, err := App{}.DecodeInput([]byte(`not json`))
	require.ErrorIs(t, err, errs.BadRequest)
}

func TestProcessEchoesMessage(t *testing.T) {
	input, err := App{}.DecodeInput([]byte(`{"message":"hello"}`))
	require.NoError(t, err)

	out, ts, err := App{}.Process(context.Background(), input, secretstore.New())
	require.NoError(t, err)
	require.Equal(t, Response{Message: "hello"}, out)
	require.NotZero(t, ts)
}

func TestEncodeOutputIsBCSString(t *testing.T) {
	got, err := App{}.EncodeOutput(Response{Message: "hi"})
	require.NoError(t, err)

	// BCS string: ULEB128 length (2) then the raw bytes.
	require.Equal(t, []byte{2, 'h', 'i'}, got)
}

func TestIntentIsDistinctFromWeather(t *testing.T) {
	require.NotEqual(t, Intent, byte(0))
}
