package httpapi

import (
	"net/http"
	"time"

	"github.com/SARVESHVARADKAR123/CollabEdit/internal/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	ServiceName       string
	Development       bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter serves the REST API under /api and, when ws is non-nil, the
// real-time gateway at /ws.
func NewRouter(sessions *SessionHandler, ws http.Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(CorrelationID)
	r.Use(observability.MetricsMiddleware(cfg.ServiceName))
	r.Use(Recovery(cfg.Development))

	if ws != nil {
		r.Handle("/ws", ws)
	}

	r.Route("/api/sessions", func(api chi.Router) {
		if cfg.RateLimitRequests > 0 {
			window := cfg.RateLimitWindow
			if window <= 0 {
				window = time.Minute
			}
			api.Use(httprate.LimitByIP(cfg.RateLimitRequests, window))
		}

		api.Post("/", sessions.Create)
		api.Get("/", sessions.List)
		api.Route("/{sessionId}", func(s chi.Router) {
			s.Get("/", sessions.Get)
			s.Post("/join", sessions.Join)
			s.Post("/leave", sessions.Leave)
			s.Post("/operations", sessions.ApplyOperation)
			s.Post("/close", sessions.Close)
			s.Post("/reopen", sessions.Reopen)
		})
	})

	return otelhttp.NewHandler(r, cfg.ServiceName)
}
