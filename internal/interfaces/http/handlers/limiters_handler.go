package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/throttle/internal/application/dto"
	"github.com/turtacn/throttle/internal/infrastructure/ratelimit"
	"github.com/turtacn/throttle/pkg/errors"
	"github.com/turtacn/throttle/pkg/logger"
)

// LimitersHandler exposes the named limiters on the ops listener.
type LimitersHandler struct {
	registry *ratelimit.Registry
	backend  string
	log      logger.Logger
}

// NewLimitersHandler creates a new LimitersHandler.
func NewLimitersHandler(registry *ratelimit.Registry, backend string, log logger.Logger) *LimitersHandler {
	return &LimitersHandler{registry: registry, backend: backend, log: log}
}

// ListLimiters writes the effective limiter table.
func (h *LimitersHandler) ListLimiters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.NewLimitersResponse(h.backend, h.registry.Rules()))
}

// ResetKey forgets the history of one key of one limiter.
func (h *LimitersHandler) ResetKey(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	key := chi.URLParam(r, "key")

	limiter, err := h.registry.Get(name)
	if err != nil {
		writeJSON(w, http.StatusNotFound, dto.NewErrorResponse(errors.ErrNotFound.WithMessage("rate limiter %q not found", name)))
		return
	}

	if err := limiter.Reset(r.Context(), key); err != nil {
		h.log.Error(r.Context(), "Failed to reset rate limit key", err, logger.String("limiter", name), logger.String("key", key))
		writeJSON(w, errors.HTTPStatus(err), dto.NewErrorResponse(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
