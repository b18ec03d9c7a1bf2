// Package storage opens the entry store selected by configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/cashbook/internal/adapter/repository/bolt"
	"github.com/iho/cashbook/internal/adapter/repository/memory"
	pgrepo "github.com/iho/cashbook/internal/adapter/repository/postgres"
	"github.com/iho/cashbook/internal/adapter/repository/sqlite"
	"github.com/iho/cashbook/internal/infrastructure/config"
	"github.com/iho/cashbook/internal/infrastructure/postgres"
	"github.com/iho/cashbook/internal/usecase"
)

// Backend bundles the collaborators the ledger engine needs from storage.
type Backend struct {
	Driver    string
	Entries   usecase.EntryRepository
	TxManager usecase.TransactionManager
	// Retrier is set for backends with transient transaction failures.
	Retrier usecase.Retrier

	ping  func(ctx context.Context) error
	close func() error
}

// Ping checks that the backend answers. Backends without a connection
// always succeed.
func (b *Backend) Ping(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

// Close releases the backend.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Open connects to the backend named by cfg.StorageDriver, applying schema
// migrations where the backend has them.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Backend, error) {
	logger = logger.With().Str("storage", cfg.StorageDriver).Logger()

	switch cfg.StorageDriver {
	case config.StorageMemory:
		store := memory.NewStore()
		logger.Warn().Msg("using in-memory storage, entries are lost on restart")
		return &Backend{Driver: cfg.StorageDriver, Entries: store, TxManager: store}, nil

	case config.StoragePostgres:
		return openPostgres(ctx, cfg, logger)

	case config.StorageSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("sqlite storage ready")
		return &Backend{
			Driver:    cfg.StorageDriver,
			Entries:   store,
			TxManager: store,
			ping:      store.Ping,
			close:     store.Close,
		}, nil

	case config.StorageBolt:
		store, err := bolt.Open(cfg.BoltPath, cfg.BoltTimeout)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", cfg.BoltPath).Msg("bolt storage ready")
		return &Backend{
			Driver:    cfg.StorageDriver,
			Entries:   store,
			TxManager: store,
			close:     store.Close,
		}, nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

func openPostgres(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Backend, error) {
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.ConnectMaxElapsed,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	if err := postgres.RunMigrations(cfg.DatabaseURL, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger.Info().Msg("postgres storage ready")

	return &Backend{
		Driver:    cfg.StorageDriver,
		Entries:   pgrepo.NewEntryRepository(pool),
		TxManager: pgrepo.NewTxManager(pool),
		Retrier:   pgrepo.NewRetrier(logger),
		ping:      pool.Ping,
		close: func() error {
			pool.Close()
			return nil
		},
	}, nil
}
