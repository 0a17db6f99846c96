package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/throttle/internal/interfaces/http/handlers"
	"github.com/turtacn/throttle/pkg/logger"
)

// NewOpsHandler builds the operational endpoints: metrics, health checks and
// the limiter table.
func NewOpsHandler(gatherer prometheus.Gatherer, health *handlers.HealthHandler, limiters *handlers.LimitersHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", health.LivenessCheck)
	r.Get("/readyz", health.ReadinessCheck)

	r.Get("/limiters", limiters.ListLimiters)
	r.Delete("/limiters/{name}/keys/{key}", limiters.ResetKey)
	return r
}

// OpsServer serves the operational endpoints on their own listener.
type OpsServer struct {
	server *http.Server
	logger logger.Logger
}

// NewOpsServer creates an OpsServer listening on addr.
func NewOpsServer(addr string, handler http.Handler, log logger.Logger) *OpsServer {
	return &OpsServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: log.WithComponent("ops_server"),
	}
}

// Start serves until Stop is called.
func (s *OpsServer) Start() error {
	s.logger.Info(context.Background(), "Starting ops server", logger.String("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *OpsServer) Stop(ctx context.Context) error {
	s.logger.Info(ctx, "Stopping ops server")
	return s.server.Shutdown(ctx)
}
