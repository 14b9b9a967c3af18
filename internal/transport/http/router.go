// Package httptransport assembles the public HTTP surface: validation
// endpoints, health and metrics.
package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"travelguard/pkg/platform/httputil"
	"travelguard/pkg/platform/middleware/requestid"
	"travelguard/pkg/platform/middleware/requesttime"
)

// Registrar mounts a handler's routes.
type Registrar interface {
	Register(r chi.Router)
}

// Health describes the state backend for /healthz.
type Health struct {
	Backend  string
	Degraded func() bool
}

type healthResponse struct {
	Status   string `json:"status"`
	Store    string `json:"store"`
	Degraded bool   `json:"degraded"`
}

// RouterConfig carries the router's ambient dependencies.
type RouterConfig struct {
	RequestTimeout time.Duration
	Gatherer       prometheus.Gatherer
	Health         Health
}

// NewRouter wires the endpoints. API routes run under the request timeout;
// health and metrics do not.
func NewRouter(cfg RouterConfig, handlers ...Registrar) http.Handler {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		resp := healthResponse{Status: "ok", Store: cfg.Health.Backend}
		if cfg.Health.Degraded != nil {
			resp.Degraded = cfg.Health.Degraded()
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	})
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	r.Group(func(api chi.Router) {
		api.Use(requesttime.Middleware)
		if cfg.RequestTimeout > 0 {
			api.Use(middleware.Timeout(cfg.RequestTimeout))
		}
		for _, h := range handlers {
			h.Register(api)
		}
	})
	return r
}
