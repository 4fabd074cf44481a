// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/iyunix/go-parley/internal/repository"
	"github.com/iyunix/go-parley/internal/store"
)

// NewDB opens a migrated SQLite database in a temporary directory that is
// removed when the test ends.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := store.Open(store.Config{
		Driver: store.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "parley_test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))
	t.Cleanup(func() { _ = store.Close(db) })
	return db
}

// NewUnitOfWork wires a unit of work over a fresh database.
func NewUnitOfWork(t testing.TB) (*repository.UnitOfWork, *gorm.DB) {
	t.Helper()
	db := NewDB(t)
	tx := store.NewTransactor(db, store.RetryConfig{MaxAttempts: 5, Delay: time.Millisecond})
	return repository.NewUnitOfWork(tx), db
}

// Clock hands out strictly increasing timestamps.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}
