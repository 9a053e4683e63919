package client

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// AdvisoryLocker serializes undo of one change log entry across every
// process sharing the database, using a session-level advisory lock keyed by
// the entry id.
//
// Each held lock pins one session for the whole undo while the store keeps
// issuing its own queries, so the locker dials a pool of its own. Waiters
// queue on that pool and never take connections from the store.
type AdvisoryLocker struct {
	db     *PostgresClient
	logger *zap.Logger
}

func NewAdvisoryLocker(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (*AdvisoryLocker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := NewPostgresClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("advisory lock pool: %w", err)
	}
	return &AdvisoryLocker{db: db, logger: logger}, nil
}

func (l *AdvisoryLocker) Close() {
	l.db.Close()
}

func (l *AdvisoryLocker) Lock(ctx context.Context, entryID int64) (func(), error) {
	conn, err := l.db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", entryID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("pg_advisory_lock: %w", err)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// The caller's context may already be cancelled.
		if _, err := conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", entryID); err != nil {
			l.logger.Error("advisory unlock failed", zap.Int64("entry_id", entryID), zap.Error(err))
			// A connection still holding the lock must not return to the pool.
			conn.Conn().Close(context.Background())
		}
		conn.Release()
	}, nil
}
