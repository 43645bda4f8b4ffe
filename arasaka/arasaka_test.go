package arasaka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.DefaultWriter = io.Discard
	defaultLogWriter = io.Discard
}

func setupTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	ctx := context.Background()
	dbfile := filepath.Join(t.TempDir(), "test.sqlite3")
	db, err := CreateDB(ctx, dbTypeSQLite, dbfile)
	require.NoError(t, err)
	t.Cleanup(
		func() {
			if sqlDB, e := db.DB(); e == nil {
				_ = sqlDB.Close()
			}
		},
	)
	return db
}

func testDBI(t testing.TB) DBI {
	t.Helper()
	return NewDatabase(setupTestDB(t), testLogger(), false)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLedger is an in-memory Ledger. Row numbers start at 2, below the
// header row.
type fakeLedger struct {
	mu   sync.Mutex
	rows []LedgerRow
	// writeErr is returned by every write, when set
	writeErr error
	findErr  error
	finds    []string
}

func newFakeLedger(rows ...LedgerRow) *fakeLedger {
	l := &fakeLedger{}
	for _, r := range rows {
		r.Row = len(l.rows) + 2
		l.rows = append(l.rows, r)
	}
	return l
}

func (l *fakeLedger) index(row int) int {
	return slices.IndexFunc(
		l.rows, func(r LedgerRow) bool {
			return r.Row == row
		},
	)
}

func (l *fakeLedger) get(username string) LedgerRow {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.rows {
		if strings.EqualFold(r.Username, username) {
			return r
		}
	}
	return LedgerRow{}
}

func (l *fakeLedger) Find(_ context.Context, username string) (LedgerRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finds = append(l.finds, username)
	if l.findErr != nil {
		return LedgerRow{}, l.findErr
	}
	for _, r := range l.rows {
		if strings.EqualFold(r.Username, username) {
			return r, nil
		}
	}
	return LedgerRow{}, ErrLedgerRowNotFound
}

func (l *fakeLedger) Row(_ context.Context, row int) (LedgerRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.index(row); i >= 0 {
		return l.rows[i], nil
	}
	return LedgerRow{}, ErrLedgerRowNotFound
}

func (l *fakeLedger) Usernames(context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.rows))
	for _, r := range l.rows {
		names = append(names, r.Username)
	}
	return names, nil
}

func (l *fakeLedger) update(row int, f func(r *LedgerRow)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writeErr != nil {
		return l.writeErr
	}
	i := l.index(row)
	if i < 0 {
		return errors.New("no such row")
	}
	f(&l.rows[i])
	return nil
}

func (l *fakeLedger) WriteXP(_ context.Context, row int, weekly WeeklyXP, total float64) error {
	return l.update(
		row, func(r *LedgerRow) {
			r.Weekly = weekly
			r.Total = total
		},
	)
}

func (l *fakeLedger) WriteWeekly(_ context.Context, row int, weekly WeeklyXP) error {
	return l.update(
		row, func(r *LedgerRow) {
			r.Weekly = weekly
		},
	)
}

func (l *fakeLedger) WriteRank(_ context.Context, row int, rank string) error {
	return l.update(
		row, func(r *LedgerRow) {
			r.Rank = rank
		},
	)
}

func (l *fakeLedger) Append(_ context.Context, row LedgerRow) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writeErr != nil {
		return l.writeErr
	}
	row.Row = len(l.rows) + 2
	l.rows = append(l.rows, row)
	return nil
}

func (l *fakeLedger) Delete(_ context.Context, row int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writeErr != nil {
		return l.writeErr
	}
	i := l.index(row)
	if i < 0 {
		return errors.New("no such row")
	}
	l.rows = slices.Delete(l.rows, i, i+1)
	for j := i; j < len(l.rows); j++ {
		l.rows[j].Row--
	}
	return nil
}

// fakeResolver resolves game usernames from a fixed map
type fakeResolver map[string]string

func (f fakeResolver) ResolveDiscordID(_ context.Context, gameUsername string) (string, bool) {
	if id, ok := f[gameUsername]; ok {
		return id, true
	}
	return gameUsername, false
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []EventRecord
	err     error
}

func (f *fakeRecorder) RecordEvent(_ context.Context, record *EventRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, *record)
	return nil
}

// fakeConfirmer answers every fuzzy match the same way, and records what
// it was asked.
type fakeConfirmer struct {
	answer bool
	err    error
	asked  [][2]string
}

func (f *fakeConfirmer) ConfirmMatch(_ context.Context, username, match string) (bool, error) {
	f.asked = append(f.asked, [2]string{username, match})
	return f.answer, f.err
}
