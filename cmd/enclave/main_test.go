package main

import (
	"encoding/hex"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nautilus-tee/enclave-signer/internal/app/echo"
	"github.com/nautilus-tee/enclave-signer/internal/app/weather"
	"github.com/nautilus-tee/enclave-signer/internal/secretstore"
)

func TestParseFlagsDefaults(t *testing.T) {
	f, err := parseFlags(io.Discard, []string{"-insecure"})
	require.NoError(t, err)
	require.Equal(t, defaultPubPort, f.cfg.PubPort)
	require.Equal(t, defaultBootstrapPort, f.cfg.BootstrapPort)
	require.True(t, f.cfg.Testing)
	require.Equal(t, "weather", f.appName)
}

func TestSelectApp(t *testing.T) {
	a, err := selectApp("weather", true)
	require.NoError(t, err)
	require.Equal(t, weather.Intent, a.Intent())
	require.Nil(t, a.(weather.App).Transport)

	a, err = selectApp("weather", false)
	require.NoError(t, err)
	require.NotNil(t, a.(weather.App).Transport)

	a, err = selectApp("echo", true)
	require.NoError(t, err)
	require.Equal(t, echo.Intent, a.Intent())

	_, err = selectApp("bogus", true)
	require.Error(t, err)
}

func TestSealServersSet(t *testing.T) {
	s := make(sealServers)
	require.NoError(t, s.Set("server-a=616263"))
	require.Equal(t, []byte("abc"), s["server-a"])

	require.Error(t, s.Set("no-equals-sign"))
	require.Error(t, s.Set("server-b=not-hex"))
}

func TestReceiveSecretsInstallsValues(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	store := secretstore.New()
	done := make(chan error, 1)
	go func() { done <- receiveSecrets(ln, store) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	_, err = conn.Write([]byte(`{"secrets":{"API_KEY":"` + hex.EncodeToString([]byte("topsecret")) + `"}}`))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	require.NoError(t, <-done)
	got, err := store.Read("API_KEY")
	require.NoError(t, err)
	require.Equal(t, "topsecret", string(got))
}

func TestReceiveSecretsRejectsBadHex(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	store := secretstore.New()
	done := make(chan error, 1)
	go func() { done <- receiveSecrets(ln, store) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	_, err = conn.Write([]byte(`{"secrets":{"API_KEY":"not-hex"}}`))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	require.Error(t, <-done)
}
