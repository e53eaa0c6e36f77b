package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// setupTestDB creates an in-memory database with one table. A single
// connection keeps every statement on the same in-memory database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE things (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func countThings(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM things`).Scan(&n))
	return n
}

func insertThing(tx *sql.Tx, name string) error {
	_, err := tx.Exec(`INSERT INTO things (name) VALUES (?)`, name)
	return err
}

func TestWithTransaction_Commits(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db, nil)

	err := mgr.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		return insertThing(tx, "a")
	})

	require.NoError(t, err)
	assert.Equal(t, 1, countThings(t, db))
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db, nil)

	err := mgr.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		if err := insertThing(tx, "a"); err != nil {
			return err
		}
		return errors.New("boom")
	})

	assert.EqualError(t, err, "boom")
	assert.Equal(t, 0, countThings(t, db))
}

func TestWithTransaction_RollsBackAndRepanics(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db, nil)

	assert.PanicsWithValue(t, "boom", func() {
		_ = mgr.WithTransaction(context.Background(), func(tx *sql.Tx) error {
			if err := insertThing(tx, "a"); err != nil {
				return err
			}
			panic("boom")
		})
	})
	assert.Equal(t, 0, countThings(t, db))
}

func TestWithTransaction_Timeout(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db, nil, WithTimeout(20*time.Millisecond))

	err := mgr.WithTransaction(context.Background(), func(tx *sql.Tx) error {
		time.Sleep(60 * time.Millisecond)
		return insertThing(tx, "late")
	})

	assert.ErrorIs(t, err, ErrTransactionTimeout)
	assert.Equal(t, 0, countThings(t, db))
}

func TestRun_RetriesDeadlocks(t *testing.T) {
	db := setupTestDB(t)
	core, logs := observer.New(zapcore.WarnLevel)
	mgr := NewManager(db, zap.New(core), WithRetry(&RetryConfig{MaxRetries: 3, BaseBackoff: time.Millisecond}))

	attempts := 0
	err := mgr.Run(context.Background(), func(tx *sql.Tx) error {
		attempts++
		if err := insertThing(tx, fmt.Sprintf("attempt %d", attempts)); err != nil {
			return err
		}
		if attempts < 3 {
			return &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	// failed attempts were rolled back
	assert.Equal(t, 1, countThings(t, db))
	assert.Equal(t, 2, logs.FilterMessage("transaction conflict, retrying").Len())
}

func TestRun_GivesUp(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db, nil, WithRetry(&RetryConfig{MaxRetries: 2, BaseBackoff: time.Millisecond}))

	attempts := 0
	err := mgr.Run(context.Background(), func(tx *sql.Tx) error {
		attempts++
		return errors.New("pq: could not serialize access due to concurrent update")
	})

	assert.ErrorIs(t, err, ErrDeadlock)
	assert.Equal(t, 2, attempts)
}

func TestRun_DoesNotRetryOtherErrors(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db, nil, WithRetry(&RetryConfig{MaxRetries: 5, BaseBackoff: time.Millisecond}))

	attempts := 0
	sentinel := errors.New("not a conflict")
	err := mgr.Run(context.Background(), func(tx *sql.Tx) error {
		attempts++
		return sentinel
	})

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, attempts)
}

func TestRun_CancelledContext(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := mgr.Run(ctx, func(tx *sql.Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "pg deadlock", err: &pgconn.PgError{Code: "40P01"}, want: true},
		{name: "pg serialization failure", err: &pgconn.PgError{Code: "40001"}, want: true},
		{name: "wrapped pg deadlock", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "40P01"}), want: true},
		{name: "pg unique violation", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "deadlock message", err: errors.New("ERROR: deadlock detected (SQLSTATE 40P01)"), want: true},
		{name: "lock wait timeout", err: errors.New("lock wait timeout exceeded; try restarting transaction"), want: true},
		{name: "serialization message", err: errors.New("could not serialize access due to read/write dependencies"), want: true},
		{name: "other", err: errors.New("some other database error"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}

func TestIsolationLevel(t *testing.T) {
	tests := []struct {
		level IsolationLevel
		name  string
		sql   sql.IsolationLevel
	}{
		{ReadCommitted, "READ COMMITTED", sql.LevelReadCommitted},
		{RepeatableRead, "REPEATABLE READ", sql.LevelRepeatableRead},
		{Serializable, "SERIALIZABLE", sql.LevelSerializable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.level.String())
			assert.Equal(t, tt.sql, tt.level.ToSQLOptions().Isolation)
		})
	}
}
