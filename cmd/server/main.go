package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/cashbook/internal/adapter/http"
	"github.com/iho/cashbook/internal/adapter/http/handler"
	"github.com/iho/cashbook/internal/adapter/http/middleware"
	redisRepo "github.com/iho/cashbook/internal/adapter/repository/redis"
	"github.com/iho/cashbook/internal/infrastructure/config"
	"github.com/iho/cashbook/internal/infrastructure/eventpublisher"
	"github.com/iho/cashbook/internal/infrastructure/idgen"
	"github.com/iho/cashbook/internal/infrastructure/logger"
	"github.com/iho/cashbook/internal/infrastructure/metrics"
	"github.com/iho/cashbook/internal/infrastructure/redis"
	"github.com/iho/cashbook/internal/infrastructure/storage"
	"github.com/iho/cashbook/internal/usecase"
)

const (
	limiterCleanupInterval = time.Minute
	limiterMaxIdle         = 10 * time.Minute
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}

// app is the wired service.
type app struct {
	handler   http.Handler
	registry  *prometheus.Registry
	publisher *eventpublisher.AsyncPublisher
	limiter   *middleware.RateLimiter
	closers   []func() error
}

func (a *app) Close(log zerolog.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	a := &app{registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(a.registry)

	backend, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.closers = append(a.closers, backend.Close)
	log.Info().Str("driver", backend.Driver).Msg("storage ready")

	checks := map[string]handler.Checker{"storage": backend.Ping}

	opts := []usecase.Option{
		usecase.WithMetrics(m),
		usecase.WithLogger(log),
	}
	if backend.Retrier != nil {
		opts = append(opts, usecase.WithRetrier(backend.Retrier))
	}

	var idempotency usecase.IdempotencyStore
	if cfg.CacheEnabled() {
		client, err := redis.NewClientWithRetry(ctx, cfg.RedisURL, log, cfg.ConnectMaxElapsed)
		if err != nil {
			a.Close(log)
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		log.Info().Msg("connected to redis")

		opts = append(opts, usecase.WithSummaryCache(redisRepo.NewCache(client), cfg.SummaryCacheTTL))
		idempotency = redisRepo.NewIdempotencyStore(client)
		checks["redis"] = pingRedis(client)
	}

	broker, closeBroker, err := newBrokerPublisher(cfg, log)
	if err != nil {
		a.Close(log)
		return nil, fmt.Errorf("event publisher: %w", err)
	}
	if broker != nil {
		a.closers = append(a.closers, closeBroker)
		a.publisher = eventpublisher.NewAsyncPublisher(eventpublisher.Config{
			Publisher: broker,
			Logger:    logger.Component(log, "events"),
			OnFailure: m.EventPublishFailed,
		})
		opts = append(opts, usecase.WithEventPublisher(a.publisher))
	}

	ledgerUC := usecase.NewLedgerUseCase(backend.TxManager, backend.Entries, idgen.NewULIDGenerator(), opts...)

	a.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).OnLimit(m.RateLimited)

	a.handler = httpAdapter.NewRouter(httpAdapter.RouterConfig{
		EntryHandler:       handler.NewEntryHandler(ledgerUC),
		LedgerHandler:      handler.NewLedgerHandler(ledgerUC),
		ExpenseHandler:     handler.NewExpenseHandler(ledgerUC, cfg.DefaultLedgerID, cfg.CurrencyGlyph),
		TransactionHandler: handler.NewTransactionHandler(ledgerUC, cfg.DefaultLedgerID),
		HealthHandler:      handler.NewHealthHandler(checks),
		IdempotencyStore:   idempotency,
		IdempotencyTTL:     cfg.IdempotencyTTL,
		RateLimiter:        a.limiter,
		Metrics:            m,
		Logger:             log,
	})

	return a, nil
}

// newBrokerPublisher returns the publisher selected by cfg.EventsDriver, or
// nil when events are disabled.
func newBrokerPublisher(cfg *config.Config, log zerolog.Logger) (eventpublisher.Publisher, func() error, error) {
	switch cfg.EventsDriver {
	case config.EventsLog:
		return eventpublisher.NewLogPublisher(log), func() error { return nil }, nil
	case config.EventsKafka:
		p := eventpublisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		return p, p.Close, nil
	case config.EventsAMQP:
		p, err := eventpublisher.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	default:
		return nil, nil, nil
	}
}

func pingRedis(client *goredis.Client) handler.Checker {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(log)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      a.handler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		return listen(server)
	})

	g.Go(func() error {
		log.Info().Str("port", cfg.MetricsPort).Msg("starting metrics server")
		return listen(metricsServer)
	})

	if a.publisher != nil {
		g.Go(func() error {
			return a.publisher.Start(gctx)
		})
	}

	g.Go(func() error {
		a.limiter.RunCleanup(gctx.Done(), limiterCleanupInterval, limiterMaxIdle)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.HTTPShutdownTimeout)
		defer cancel()

		return errors.Join(server.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})

	return g.Wait()
}

func listen(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
