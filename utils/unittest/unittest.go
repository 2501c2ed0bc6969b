package unittest

import (
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/require"
)

// RequireReturnsBefore fails the test if f runs longer than timeout.
func RequireReturnsBefore(t testing.TB, f func(), timeout time.Duration) {
	returned := make(chan struct{})
	go func() {
		defer close(returned)
		f()
	}()
	RequireCloseBefore(t, returned, timeout, "function did not return in time")
}

// RequireCloseBefore fails the test if c stays open for longer than timeout.
func RequireCloseBefore(t testing.TB, c <-chan struct{}, timeout time.Duration, message string) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c:
	case <-timer.C:
		require.FailNow(t, "channel not closed within "+timeout.String(), message)
	}
}

// RequireNeverClosedWithin fails the test if c closes within d.
func RequireNeverClosedWithin(t testing.TB, c <-chan struct{}, d time.Duration, message string) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c:
		require.FailNow(t, "channel closed within "+d.String(), message)
	case <-timer.C:
	}
}

// TempDir creates a directory the caller removes.
func TempDir(t testing.TB) string {
	dir, err := os.MkdirTemp("", "hotshot-test-")
	require.NoError(t, err)
	return dir
}

func RunWithTempDir(t testing.TB, f func(dir string)) {
	dir := TempDir(t)
	defer os.RemoveAll(dir)
	f(dir)
}

// BadgerDB opens a database with badger's logging silenced.
func BadgerDB(t testing.TB, dir string) *badger.DB {
	db, err := badger.Open(badger.DefaultOptions(dir).WithKeepL0InMemory(true).WithLogger(nil))
	require.NoError(t, err)
	return db
}

func RunWithBadgerDB(t testing.TB, f func(db *badger.DB)) {
	RunWithTempDir(t, func(dir string) {
		db := BadgerDB(t, dir)
		defer db.Close()
		f(db)
	})
}
