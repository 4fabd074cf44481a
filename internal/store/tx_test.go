package store_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/iyunix/go-parley/internal/store"
)

type counter struct {
	ID    uint `gorm:"primaryKey"`
	Value int
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := store.Open(store.Config{
		Driver: store.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "tx.db"),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&counter{}))
	t.Cleanup(func() { _ = store.Close(db) })
	return db
}

func TestRunInTransaction_RetriesConflicts(t *testing.T) {
	db := openTestDB(t)

	var retries []int
	tx := store.NewTransactor(db, store.RetryConfig{MaxAttempts: 3, Delay: time.Millisecond},
		store.WithRetryObserver(func(attempt int, err error) { retries = append(retries, attempt) }))

	calls := 0
	err := tx.RunInTransaction(context.Background(), func(tx *gorm.DB) error {
		calls++
		if err := tx.Create(&counter{Value: calls}).Error; err != nil {
			return err
		}
		if calls < 3 {
			return store.ErrConflict
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retries)

	// Rolled-back attempts leave nothing behind.
	var rows []counter
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].Value)
}

func TestRunInTransaction_ExhaustedAttemptsWrapConflict(t *testing.T) {
	db := openTestDB(t)
	tx := store.NewTransactor(db, store.RetryConfig{MaxAttempts: 2, Delay: time.Millisecond})

	calls := 0
	err := tx.RunInTransaction(context.Background(), func(*gorm.DB) error {
		calls++
		return fmt.Errorf("update chat: %w", store.ErrConflict)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, 2, calls)
}

func TestRunInTransaction_DoesNotRetryOtherErrors(t *testing.T) {
	db := openTestDB(t)
	tx := store.NewTransactor(db, store.DefaultRetryConfig())
	boom := errors.New("boom")

	calls := 0
	err := tx.RunInTransaction(context.Background(), func(*gorm.DB) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRunInTransaction_HonoursCancelledContext(t *testing.T) {
	db := openTestDB(t)
	tx := store.NewTransactor(db, store.DefaultRetryConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tx.RunInTransaction(ctx, func(*gorm.DB) error {
		t.Fatal("fn must not run on a cancelled context")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"version mismatch", fmt.Errorf("wrap: %w", store.ErrConflict), true},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"other", errors.New("no such table"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, store.IsConflict(tt.err))
		})
	}
}
