package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/throttle/internal/config"
	"github.com/turtacn/throttle/internal/infrastructure/crypto"
	"github.com/turtacn/throttle/internal/infrastructure/monitoring"
	"github.com/turtacn/throttle/internal/infrastructure/persistence/redis"
	"github.com/turtacn/throttle/internal/infrastructure/ratelimit"
	"github.com/turtacn/throttle/internal/interfaces/http"
	"github.com/turtacn/throttle/internal/interfaces/http/handlers"
	"github.com/turtacn/throttle/internal/interfaces/http/middleware"
	"github.com/turtacn/throttle/pkg/logger"
)

func main() {
	configFile := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	// Load config
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Fatal(context.Background(), "Server exited with error", err)
	}
	appLogger.Info(context.Background(), "Server stopped")
}

func run(ctx context.Context, cfg *config.Config, appLogger logger.Logger) error {
	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(registry)

	// Initialize tracing
	tracing, err := monitoring.NewTracingManager(&cfg.Tracing, appLogger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = tracing.Shutdown(shutdownCtx)
	}()

	// Initialize rate limiters
	rules, err := cfg.RateLimit.Rules()
	if err != nil {
		return err
	}

	dependencies := map[string]handlers.Pinger{}
	var factory ratelimit.StoreFactory
	switch cfg.RateLimit.Backend {
	case config.BackendRedis:
		redisConn := redis.NewRedisConnection(&cfg.Redis, appLogger)
		if err := redisConn.Connect(ctx); err != nil {
			return err
		}
		defer redisConn.Close()
		dependencies["redis"] = redisConn
		factory = ratelimit.RedisStoreFactory(redisConn.Client())
	default:
		factory = ratelimit.MemoryStoreFactory(
			ratelimit.WithSweepInterval(cfg.RateLimit.SweepInterval),
			ratelimit.WithStoreLogger(appLogger),
			ratelimit.WithStoreMetrics(metrics),
		)
	}

	limiters, err := ratelimit.NewRegistry(rules, factory, appLogger,
		ratelimit.WithTrustedSources(cfg.RateLimit.TrustedSources),
		ratelimit.WithMetrics(metrics),
		ratelimit.WithTracer(tracing.Tracer()),
	)
	if err != nil {
		return err
	}
	defer limiters.Close()

	// A nil *PrincipalVerifier must not reach the middleware as a non-nil interface.
	var verifier middleware.PrincipalVerifier
	if v := crypto.NewPrincipalVerifier(&cfg.JWT, appLogger); v != nil {
		verifier = v
	}

	// Initialize HTTP servers
	router := http.NewRouter(cfg, appLogger, limiters, verifier, tracing.Tracer(), metrics)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(router.Start)

	var ops *http.OpsServer
	if cfg.Ops.Enabled {
		ops = http.NewOpsServer(cfg.Ops.Address(), http.NewOpsHandler(
			registry,
			handlers.NewHealthHandler(dependencies, appLogger),
			handlers.NewLimitersHandler(limiters, cfg.RateLimit.Backend, appLogger),
		), appLogger)
		g.Go(ops.Start)
	}

	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info(context.Background(), "Shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := router.Stop(shutdownCtx)
		if ops != nil {
			if opsErr := ops.Stop(shutdownCtx); err == nil {
				err = opsErr
			}
		}
		return err
	})

	return g.Wait()
}
