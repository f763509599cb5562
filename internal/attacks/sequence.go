package attacks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
)

// Allocator hands out eventIds. Concurrent calls never return the same value.
type Allocator interface {
	Allocate(ctx context.Context) (int64, error)
}

const sequenceName = "attack_events"

// PostgresAllocator reserves ids from a counter row. Each reservation is a
// single UPDATE ... RETURNING, so the row lock serializes concurrent callers.
// The counter never falls behind the highest stored eventId, which covers
// rows inserted without going through the allocator.
//
// A reserved id whose insert later fails is not returned to the pool; the
// resequence pass closes such gaps.
type PostgresAllocator struct {
	db     *sql.DB
	logger *zap.Logger
	retry  retryPolicy
}

func NewPostgresAllocator(db *sql.DB, logger *zap.Logger) *PostgresAllocator {
	return &PostgresAllocator{
		db:     db,
		logger: logger,
		retry:  retryPolicy{maxRetries: 5, initial: 10 * time.Millisecond, max: 200 * time.Millisecond},
	}
}

func (a *PostgresAllocator) Allocate(ctx context.Context) (int64, error) {
	return allocateWithRetry(ctx, a.reserve, a.retry, a.logger)
}

// retryPolicy bounds how often a conflicting reservation is retried.
type retryPolicy struct {
	maxRetries uint64
	initial    time.Duration
	max        time.Duration
}

// allocateWithRetry calls reserve until it yields an id. Only
// ErrSequenceConflict is retried; any other error ends the attempt.
func allocateWithRetry(ctx context.Context, reserve func(context.Context) (int64, error), p retryPolicy, logger *zap.Logger) (int64, error) {
	var id int64
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.initial
	bo.MaxInterval = p.max

	op := func() error {
		next, err := reserve(ctx)
		if err != nil {
			if errors.Is(err, ErrSequenceConflict) {
				return err
			}
			return backoff.Permanent(err)
		}
		id = next
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("event id conflict, retrying", zap.Error(err), zap.Duration("wait", wait))
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, p.maxRetries), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return 0, err
	}
	return id, nil
}

func (a *PostgresAllocator) reserve(ctx context.Context) (int64, error) {
	const q = `
		UPDATE event_sequences
		SET value = GREATEST(value, (SELECT COALESCE(MAX(event_id), 0) FROM attack_events)) + 1
		WHERE name = $1
		RETURNING value
	`
	var next int64
	err := a.db.QueryRowContext(ctx, q, sequenceName).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := a.db.ExecContext(ctx,
			`INSERT INTO event_sequences (name, value) VALUES ($1, 0) ON CONFLICT (name) DO NOTHING`, sequenceName); err != nil {
			return 0, classify("init sequence", err)
		}
		return 0, fmt.Errorf("sequence initialised: %w", ErrSequenceConflict)
	}
	if err != nil {
		return 0, classify("reserve event id", err)
	}

	// A writer that bypassed the counter may have claimed this id between
	// the UPDATE and now; take the next one if so.
	var taken bool
	if err := a.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM attack_events WHERE event_id = $1)`, next).Scan(&taken); err != nil {
		return 0, classify("check event id", err)
	}
	if taken {
		return 0, fmt.Errorf("event id %d: %w", next, ErrSequenceConflict)
	}
	return next, nil
}

// Peek returns the id the next allocation would produce without reserving it.
func (a *PostgresAllocator) Peek(ctx context.Context) (int64, error) {
	const q = `
		SELECT GREATEST(
			COALESCE((SELECT value FROM event_sequences WHERE name = $1), 0),
			(SELECT COALESCE(MAX(event_id), 0) FROM attack_events)
		) + 1
	`
	var next int64
	if err := a.db.QueryRowContext(ctx, q, sequenceName).Scan(&next); err != nil {
		return 0, classify("peek event id", err)
	}
	return next, nil
}
