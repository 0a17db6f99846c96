package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/turtacn/throttle/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency the service needs in order to serve traffic.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter is a Pinger that also reports diagnostics such as latency and
// connection pool statistics.
type HealthReporter interface {
	Pinger
	HealthCheck(ctx context.Context) (map[string]interface{}, error)
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	dependencies map[string]Pinger
	log          logger.Logger
}

// NewHealthHandler creates a new HealthHandler. dependencies are pinged by the
// readiness check; nil entries are ignored.
func NewHealthHandler(dependencies map[string]Pinger, log logger.Logger) *HealthHandler {
	deps := make(map[string]Pinger, len(dependencies))
	for name, dep := range dependencies {
		if dep != nil {
			deps[name] = dep
		}
	}
	return &HealthHandler{dependencies: deps, log: log}
}

// LivenessCheck reports that the process is up.
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
	})
}

// ReadinessCheck checks every dependency and reports 503 when one is unavailable.
// Each entry of "checks" carries a status and, for a HealthReporter, its diagnostics.
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]map[string]interface{}, len(h.dependencies))
	for name, dep := range h.dependencies {
		check, err := checkDependency(ctx, dep)
		if err != nil {
			h.log.Warn(ctx, "Readiness check failed", logger.String("dependency", name), logger.String("error", err.Error()))
			check["status"] = "error: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			check["status"] = "ok"
		}
		checks[name] = check
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

func checkDependency(ctx context.Context, dep Pinger) (map[string]interface{}, error) {
	reporter, ok := dep.(HealthReporter)
	if !ok {
		return map[string]interface{}{}, dep.Ping(ctx)
	}
	details, err := reporter.HealthCheck(ctx)
	if details == nil {
		details = map[string]interface{}{}
	}
	return details, err
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
