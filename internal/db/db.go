package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Open connects to Postgres, retrying the initial ping with exponential
// backoff for up to maxWait so the server can start alongside its database.
func Open(ctx context.Context, dsn string, maxWait time.Duration, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = maxWait

	err = backoff.RetryNotify(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}, backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
		logger.Warn("database not ready, retrying", zap.Error(err), zap.Duration("next", next))
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func RunMigrations(ctx context.Context, db *sql.DB, basePath string) error {
	path := filepath.Join(basePath, "schema.sql")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
