// Package httptransport assembles the public HTTP surface: the shared
// middleware stack, the /v1 API behind parent sessions, and the operational
// endpoints.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"purchasegate/pkg/platform/middleware/auth"
	"purchasegate/pkg/platform/middleware/metadata"
	"purchasegate/pkg/platform/middleware/request"
	"purchasegate/pkg/platform/middleware/requesttime"
)

const (
	defaultMaxBodyBytes   = 64 << 10
	defaultRequestTimeout = 30 * time.Second
	defaultMetricsPath    = "/metrics"
)

// Registrar mounts a domain handler's authenticated routes.
type Registrar interface {
	Register(r chi.Router)
}

// PublicRegistrar mounts routes that carry their own credential, such as
// signed approval links.
type PublicRegistrar interface {
	RegisterPublic(r chi.Router)
}

// Handlers are the domain handlers served under /v1.
type Handlers struct {
	API    []Registrar
	Public []PublicRegistrar
	Health Registrar
}

type Config struct {
	Sessions       auth.TokenValidator
	Metadata       metadata.Config
	Clock          func() time.Time
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	MetricsPath    string
}

// NewRouter wires every endpoint with the shared middleware stack.
func NewRouter(cfg Config, h Handlers, logger *slog.Logger) http.Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = defaultMetricsPath
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(metadata.NewMiddleware(cfg.Metadata).Handler)
	r.Use(request.Logger(logger))
	r.Use(requesttime.Middleware(cfg.Clock))

	if h.Health != nil {
		h.Health.Register(r)
	}
	r.Handle(cfg.MetricsPath, promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
		r.Use(request.ContentTypeJSON)
		r.Use(request.BodyLimit(cfg.MaxBodyBytes))

		for _, p := range h.Public {
			p.RegisterPublic(r)
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireParent(cfg.Sessions, logger))
			for _, reg := range h.API {
				reg.Register(r)
			}
		})
	})

	return r
}
