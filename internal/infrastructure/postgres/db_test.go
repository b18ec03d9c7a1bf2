package postgres

import (
	"context"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewPoolWithConfigInvalidURL(t *testing.T) {
	if _, err := NewPoolWithConfig(context.Background(), PoolConfig{DatabaseURL: "not-a-url"}); err == nil {
		t.Fatalf("expected error when parsing invalid URL")
	}
}

func TestNewPoolWithConfigPingFailure(t *testing.T) {
	cfg := PoolConfig{
		DatabaseURL:    "postgres://invalid.invalid:5432/db?connect_timeout=1",
		MaxConns:       1,
		ConnectTimeout: 200 * time.Millisecond,
	}

	if _, err := NewPoolWithConfig(context.Background(), cfg); err == nil {
		t.Fatalf("expected error when pool cannot connect")
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(names) == 0 {
		t.Fatal("expected embedded migrations")
	}

	ups, downs := 0, 0
	for _, name := range names {
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups++
		case strings.HasSuffix(name, ".down.sql"):
			downs++
		}
	}
	if ups != downs {
		t.Fatalf("expected every up migration to have a down, got %d up and %d down", ups, downs)
	}
}

func TestRunMigrationsInvalidURL(t *testing.T) {
	if err := RunMigrations("://bad", zerolog.Nop()); err == nil {
		t.Fatal("expected error for invalid database URL")
	}
}
