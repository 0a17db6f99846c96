package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/throttle/internal/config"
	"github.com/turtacn/throttle/internal/infrastructure/ratelimit"
	"github.com/turtacn/throttle/internal/interfaces/http/handlers"
	"github.com/turtacn/throttle/internal/interfaces/http/middleware"
	"github.com/turtacn/throttle/pkg/constants"
	"github.com/turtacn/throttle/pkg/logger"
)

// Router is the public API server. Every endpoint category is guarded by its
// named rate limiter.
type Router struct {
	engine   *gin.Engine
	config   *config.Config
	logger   logger.Logger
	registry *ratelimit.Registry
	verifier middleware.PrincipalVerifier
	tracer   trace.Tracer
	metrics  middleware.HTTPMetrics
	server   *http.Server
}

// NewRouter creates the router and registers every route. verifier may be nil,
// in which case all callers are anonymous.
func NewRouter(
	cfg *config.Config,
	log logger.Logger,
	registry *ratelimit.Registry,
	verifier middleware.PrincipalVerifier,
	tracer trace.Tracer,
	metrics middleware.HTTPMetrics,
) *Router {
	r := &Router{
		engine:   gin.New(),
		config:   cfg,
		logger:   log.WithComponent("http_router"),
		registry: registry,
		verifier: verifier,
		tracer:   tracer,
		metrics:  metrics,
	}
	r.setupRoutes()

	r.server = &http.Server{
		Addr:           cfg.Server.Address(),
		Handler:        r.engine,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}
	return r
}

// Handler returns the HTTP handler serving the API.
func (r *Router) Handler() http.Handler {
	return r.engine
}

func (r *Router) setupRoutes() {
	r.engine.Use(handlers.RecoveryMiddleware(r.logger))
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.ObservabilityMiddleware(r.tracer, r.metrics))
	r.engine.Use(handlers.LoggingMiddleware(r.logger))
	r.engine.Use(cors.New(cors.Config{
		AllowOrigins: r.config.Server.CORSAllowedOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", constants.HeaderRequestID},
		ExposeHeaders: []string{
			constants.HeaderRequestID,
			constants.HeaderRateLimitLimit,
			constants.HeaderRateLimitRemaining,
			constants.HeaderRateLimitReset,
			constants.HeaderRetryAfter,
		},
		MaxAge: 12 * time.Hour,
	}))
	r.engine.Use(middleware.OptionalPrincipal(r.verifier, r.logger))

	if r.config.Server.EnablePprof {
		pprof.Register(r.engine)
	}

	v1 := r.engine.Group("/api/v1")
	{
		auth := v1.Group("/auth", r.limit(constants.LimiterAuth))
		{
			auth.POST("/login", handlers.CategoryHandler(constants.LimiterAuth))
			auth.POST("/register", handlers.CategoryHandler(constants.LimiterAuth))
			auth.POST("/password-reset", handlers.CategoryHandler(constants.LimiterAuth))
		}

		v1.POST("/uploads", r.limit(constants.LimiterUpload), handlers.CategoryHandler(constants.LimiterUpload))

		admin := v1.Group("/admin", r.limit(constants.LimiterAdmin))
		{
			admin.GET("/users", handlers.CategoryHandler(constants.LimiterAdmin))
			admin.GET("/stats", handlers.CategoryHandler(constants.LimiterAdmin))
		}

		projects := v1.Group("/projects", r.limit(constants.LimiterGeneral))
		{
			projects.GET("", handlers.CategoryHandler(constants.LimiterGeneral))
			projects.POST("", handlers.CategoryHandler(constants.LimiterGeneral))
			projects.GET("/:id", handlers.CategoryHandler(constants.LimiterGeneral))
			projects.PUT("/:id", handlers.CategoryHandler(constants.LimiterGeneral))
			projects.DELETE("/:id", handlers.CategoryHandler(constants.LimiterGeneral))
		}

		v1.GET("/reports", r.limit(constants.LimiterStrict), handlers.CategoryHandler(constants.LimiterStrict))

		public := v1.Group("/public", r.limit(constants.LimiterGenerous))
		{
			public.GET("/status", handlers.CategoryHandler(constants.LimiterGenerous))
			public.GET("/docs", handlers.CategoryHandler(constants.LimiterGenerous))
		}
	}

	r.engine.NoRoute(handlers.NotFound)
}

// limit returns the rate limit middleware of the named limiter, or a
// pass-through when rate limiting is disabled. Unknown names panic.
func (r *Router) limit(name string) gin.HandlerFunc {
	if !r.config.RateLimit.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.RateLimitMiddleware(r.registry.MustGet(name), r.logger)
}

// Start serves the API until Stop is called.
func (r *Router) Start() error {
	r.logger.Info(context.Background(), "Starting HTTP server", logger.String("address", r.server.Addr))

	if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (r *Router) Stop(ctx context.Context) error {
	r.logger.Info(ctx, "Stopping HTTP server")
	return r.server.Shutdown(ctx)
}
