package service

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// URL paths for the public signing service (port 3000).
const (
	PathHealthCheck  = "/health_check"
	PathAttestation  = "/get_attestation"
	PathProcessData  = "/process_data"
)

// URL paths for the host-only Seal bootstrap service (port 3001).
const (
	PathPing                  = "/ping"
	PathInitParameterLoad     = "/init_parameter_load"
	PathCompleteParameterLoad = "/complete_parameter_load"
)

func setupMiddlewares(r *chi.Mux, debug bool) {
	if debug {
		r.Use(middleware.Logger)
	}
}

// corsAllowAll mirrors the original source's permissive CORS layer: a
// signing service has no cookies or session state to protect, so any
// origin may call it.
func corsAllowAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func addPublicRoutes(r *chi.Mux, deps *publicDeps, debug bool) {
	setupMiddlewares(r, debug)
	r.Use(corsAllowAll)

	r.Get(PathHealthCheck, healthCheck(deps.signer))
	r.Get(PathAttestation, getAttestation(deps.builder))
	r.Post(PathProcessData, processData(deps.app, deps.secrets, deps.signer))
}

func addBootstrapRoutes(r *chi.Mux, deps *bootstrapDeps, debug bool) {
	setupMiddlewares(r, debug)

	r.Get(PathPing, ping())
	r.Post(PathInitParameterLoad, initParameterLoad(deps.coordinator))
	r.Post(PathCompleteParameterLoad, completeParameterLoad(deps.coordinator))
}
