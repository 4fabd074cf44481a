// File: internal/store/tx.go
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrConflict reports that a versioned document changed between read and
// write. Transactions failing with it are retried.
var ErrConflict = errors.New("concurrent modification conflict")

// RetryConfig bounds how often a conflicting transaction is re-run.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		Delay:       10 * time.Millisecond,
	}
}

// RetryObserver is told about every conflict that triggers another attempt.
type RetryObserver func(attempt int, err error)

type Transactor struct {
	db       *gorm.DB
	cfg      RetryConfig
	observer RetryObserver
}

type Option func(*Transactor)

func WithRetryObserver(fn RetryObserver) Option {
	return func(t *Transactor) { t.observer = fn }
}

func NewTransactor(db *gorm.DB, cfg RetryConfig, opts ...Option) *Transactor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	t := &Transactor{db: db, cfg: cfg}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// DB returns the non-transactional handle used for snapshot reads.
func (t *Transactor) DB() *gorm.DB { return t.db }

// RunInTransaction executes fn inside one database transaction. When fn or
// the commit fails with a conflict the whole transaction is re-run, waiting
// a little longer each time. After the last attempt the error wraps
// ErrConflict.
func (t *Transactor) RunInTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var lastErr error
	for attempt := 1; attempt <= t.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := t.db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return nil
		}
		if !IsConflict(err) {
			return err
		}
		lastErr = err

		if attempt == t.cfg.MaxAttempts {
			break
		}
		if t.observer != nil {
			t.observer(attempt, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.cfg.Delay * time.Duration(attempt)):
		}
	}
	if errors.Is(lastErr, ErrConflict) {
		return fmt.Errorf("giving up after %d attempts: %w", t.cfg.MaxAttempts, lastErr)
	}
	return fmt.Errorf("giving up after %d attempts: %w: %v", t.cfg.MaxAttempts, ErrConflict, lastErr)
}

// IsConflict classifies errors that a retry may resolve: optimistic version
// mismatches, SQLite lock contention and PostgreSQL serialization failures
// or deadlocks.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "database table is locked")
}
