package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/KebabObama/school-reservation/internal/application"
	"github.com/KebabObama/school-reservation/internal/config"
	"github.com/KebabObama/school-reservation/internal/events"
	httptransport "github.com/KebabObama/school-reservation/internal/http"
	"github.com/KebabObama/school-reservation/internal/lock"
	"github.com/KebabObama/school-reservation/internal/logging"
	"github.com/KebabObama/school-reservation/internal/persistence/sqlstore"
	"github.com/KebabObama/school-reservation/internal/recurrence"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr(), err)
	}
	return a.serve(ctx, listener, cfg.ShutdownTimeout)
}

// app holds the wired process components.
type app struct {
	logger    *slog.Logger
	store     *sqlstore.Store
	redis     redis.UniversalClient
	publisher events.Publisher
	handler   http.Handler
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	store, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver: sqlstore.Dialect(cfg.DBDriver),
		DSN:    cfg.DBDSN,
	}, sqlstore.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	a := &app{logger: logger, store: store}

	var locker lock.RoomLocker = lock.NewMemory()
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		redisLock := lock.NewRedis(a.redis, cfg.LockTTL, logger)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := redisLock.Ping(pingCtx)
		cancel()
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		locker = redisLock
		logger.Info("room locks use redis", "addr", cfg.RedisAddr, "ttl", cfg.LockTTL)
	}

	a.publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		a.publisher = events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue, logger)
		logger.Info("reservation events published to amqp", "queue", cfg.AMQPQueue)
	}

	service := application.NewReservationService(store, locker, a.publisher,
		recurrence.NewEngine(recurrence.MaxOccurrences), time.Now, logger)

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Reservations: httptransport.NewReservationHandler(service, logger),
		Health:       httptransport.NewHealthHandler(store, logger),
		Verifier:     httptransport.NewJWTVerifier(cfg.JWTSecret),
		Logger:       logger,
		CORSOrigins:  cfg.CORSOrigins,
		Middleware:   []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})
	return a, nil
}

func (a *app) serve(ctx context.Context, listener net.Listener, shutdownTimeout time.Duration) error {
	server := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("reservation API listening", "addr", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		a.logger.Info("reservation API stopped")
		return nil
	})
	return g.Wait()
}

func (a *app) close() {
	if closer, ok := a.publisher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("failed to close event publisher", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis client", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("failed to close storage", "error", err)
		}
	}
}
