// Package echo implements a second reference application, demonstrating
// that the signing service dispatches to the Application interface
// polymorphically: swapping weather for echo changes nothing outside this
// package and the -app flag cmd/enclave selects an application by.
package echo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nautilus-tee/enclave-signer/internal/app"
	"github.com/nautilus-tee/enclave-signer/internal/bcs"
	"github.com/nautilus-tee/enclave-signer/internal/errs"
	"github.com/nautilus-tee/enclave-signer/internal/secretstore"
)

// Intent is this application's domain-separation tag. It must differ from
// every other application's intent byte linked into the same registry, so
// intent 1 is reserved for echo.
const Intent byte = 1

// Request is the application-defined input: an arbitrary message to sign
// verbatim.
type Request struct {
	Message string `json:"message"`
}

// Response is the application-defined output.
type Response struct {
	Message string
}

// App implements app.Application by signing back exactly what it was sent,
// with no external dependency and no secrets requirement.
type App struct{}

var _ app.Application = App{}

func (App) Intent() byte { return Intent }

func (App) DecodeInput(body []byte) (any, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.BadRequest, err)
	}
	return req, nil
}

func (App) Process(_ context.Context, input any, _ *secretstore.Store) (any, uint64, error) {
	req, ok := input.(Request)
	if !ok {
		return nil, 0, fmt.Errorf("%w: unexpected input type %T", errs.BadRequest, input)
	}
	return Response{Message: req.Message}, uint64(time.Now().UnixMilli()), nil
}

func (App) EncodeOutput(output any) ([]byte, error) {
	resp, ok := output.(Response)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected output type %T", errs.BadRequest, output)
	}
	return bcs.NewEncoder().WriteString(resp.Message).Bytes(), nil
}
