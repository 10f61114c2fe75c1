package dispatchservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/dispatchd/handler"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/dispatchd/hub"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/dispatchd/service"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/dispatchd/store"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/config"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/jwt"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/logger"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/rabbitmq"
)

// Run boots the dispatch server: REST API, websocket hub, and (when
// RabbitMQ is configured) the push fanout.
func Run(ctx context.Context, maxConcurrent int) error {
	log := logger.New("dispatch-service")
	ctx = logger.WithRequestID(ctx, "startup-001")

	cfg, err := config.LoadFromFile("./config/config.yaml")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// storage: Postgres when configured, in-memory otherwise
	var st store.Store
	if cfg.Database.Host != "" {
		pool, err := store.NewPool(ctx, cfg, log)
		if err != nil {
			log.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
			return err
		}
		defer pool.Close()

		pg, err := store.NewPostgres(ctx, pool)
		if err != nil {
			log.Error(ctx, "db_schema_failed", "Failed to prepare database schema", err, nil)
			return err
		}
		st = pg
	} else {
		log.Info(ctx, "memory_store", "no database configured, using the in-memory store", nil)
		st = store.NewMemory()
	}

	// push fanout is optional: without RabbitMQ, dispatch runs realtime-only
	var notifier service.Notifier
	if cfg.RabbitMQ.Host != "" {
		rmq, err := rabbitmq.Connect(ctx, cfg, log)
		if err != nil {
			log.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
			return err
		}
		defer rmq.Close()
		notifier = rmq
	} else {
		log.Info(ctx, "push_disabled", "no RabbitMQ configured, push notifications are off", nil)
	}

	if cfg.JWT.SecretKey == "" {
		return fmt.Errorf("jwt.secret_key is required (set DRYJETS_JWT_SECRET or config.yaml)")
	}
	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, 12*time.Hour)

	h := hub.New(log, jwtManager, st)
	svc := service.New(log, st, h, notifier, cfg.Dispatchd.DefaultRadiusKm)

	mux := http.NewServeMux()
	httpHandler := handler.New(svc, log, jwtManager, h)
	httpHandler.RegisterRoutes(mux)

	// concurrency limiter (global) — blocks when capacity is full
	limitedHandler := withConcurrencyLimit(maxConcurrent, mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Dispatchd.Port),
		Handler:           limitedHandler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	log.Info(ctx, "service_started",
		fmt.Sprintf("Dispatch service started on port %d", cfg.Dispatchd.Port),
		map[string]string{
			"port":           fmt.Sprint(cfg.Dispatchd.Port),
			"max_concurrent": fmt.Sprint(maxConcurrent),
		},
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "http_server_error", "HTTP server terminated with error", err, nil)
			return err
		}
	}

	return nil
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// It controls how many HTTP requests can be in-progress at the same time.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}: // acquire
			defer func() { <-sem }() // release
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
