// Package httptransport assembles the HTTP surface: public health and
// metrics endpoints, the authenticated command API, and the admin API.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cmdgate/internal/admin"
	admissionhandler "cmdgate/internal/admission/handler"
	"cmdgate/internal/platform/middleware"
	"cmdgate/pkg/platform/httputil"
)

// HealthChecker reports the liveness of a backing dependency.
type HealthChecker interface {
	Name() string
	Health(ctx context.Context) error
}

// Check adapts a named health function to a HealthChecker.
func Check(name string, fn func(context.Context) error) HealthChecker {
	return namedCheck{name: name, fn: fn}
}

type namedCheck struct {
	name string
	fn   func(context.Context) error
}

func (c namedCheck) Name() string                     { return c.name }
func (c namedCheck) Health(ctx context.Context) error { return c.fn(ctx) }

// Deps carries everything the router mounts. Keeping it a struct makes main
// read as a wiring manifest.
type Deps struct {
	Admission *admissionhandler.Handler
	Admin     *admin.Handler
	Resolver  middleware.ActorResolver
	Logger    *slog.Logger
	Health    []HealthChecker
}

// NewRouter wires the full route tree. Authentication happens in middleware
// so handlers only ever see resolved actor identities.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	r.Get("/health", handleHealth(deps.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireActor(deps.Resolver, deps.Logger))
		deps.Admission.Register(r)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			deps.Admin.Register(r)
		})
	})

	return r
}

func handleHealth(checks []HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		httpStatus := http.StatusOK
		deps := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Health(r.Context()); err != nil {
				deps[c.Name()] = "unhealthy"
				status = "degraded"
				httpStatus = http.StatusServiceUnavailable
				continue
			}
			deps[c.Name()] = "ok"
		}
		body := map[string]any{"status": status}
		if len(deps) > 0 {
			body["dependencies"] = deps
		}
		httputil.WriteJSON(w, httpStatus, body)
	}
}
