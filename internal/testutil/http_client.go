// Package testutil provides small test doubles shared across the enclave
// runtime's unit tests.
package testutil

import (
	"net/http"
	"time"
)

// Client is a short-timeout HTTP client for tests that talk to an
// httptest.Server and shouldn't hang if something goes wrong.
var Client = &http.Client{
	Timeout: 3 * time.Second,
}
