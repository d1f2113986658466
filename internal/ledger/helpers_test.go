package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tally/internal/events"
	"tally/internal/models"
	"tally/internal/testutil"
)

// dbRegistry resolves categories straight from the categories table.
type dbRegistry struct {
	db *gorm.DB
}

func (r dbRegistry) Lookup(ctx context.Context, ownerID, name string, categoryType models.CategoryType) (*models.Category, bool, error) {
	var c models.Category
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND name = ? AND type = ?", ownerID, name, categoryType).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &c, true, nil
}

type fixture struct {
	db      *gorm.DB
	entries EntryServicer
	stats   *statsService
	user    *models.User
}

func setup(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return setupOn(t, testutil.SetupTestDB(t), opts...)
}

// setupConcurrent runs on a file database whose transactions overlap, with
// enough retries to absorb SQLITE_BUSY under heavy contention.
func setupConcurrent(t *testing.T) *fixture {
	t.Helper()
	return setupOn(t, testutil.SetupFileDB(t), WithRetry(100, time.Millisecond))
}

func setupOn(t *testing.T, db *gorm.DB, opts ...Option) *fixture {
	t.Helper()

	user := testutil.CreateTestUser(t, db)
	testutil.CreateTestCategory(t, db, user.ID, "Salary", models.CategoryTypeIncome)
	testutil.CreateTestCategory(t, db, user.ID, "Food", models.CategoryTypeExpense)
	testutil.CreateTestCategory(t, db, user.ID, "Rent", models.CategoryTypeExpense)

	opts = append([]Option{WithRetry(3, time.Millisecond)}, opts...)
	return &fixture{
		db:      db,
		entries: NewEntryService(db, dbRegistry{db: db}, opts...),
		stats:   NewStatsService(db, DefaultMaxRangeDays).(*statsService),
		user:    user,
	}
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) create(t *testing.T, amt string, entryType models.EntryType, category string, date time.Time) *models.Entry {
	t.Helper()

	entry, err := f.entries.CreateEntry(context.Background(), f.user.ID, CreateEntryInput{
		Amount:   amount(amt),
		Type:     entryType,
		Category: category,
		Date:     date,
	})
	require.NoError(t, err)
	return entry
}

func dayRow(t *testing.T, db *gorm.DB, ownerID string, year, month, day int) models.DayAggregate {
	t.Helper()

	var row models.DayAggregate
	require.NoError(t, db.Where("user_id = ? AND year = ? AND month = ? AND day = ?", ownerID, year, month, day).
		Take(&row).Error, "day aggregate %d-%d-%d should exist", year, month, day)
	return row
}

func monthRow(t *testing.T, db *gorm.DB, ownerID string, year, month int) models.MonthAggregate {
	t.Helper()

	var row models.MonthAggregate
	require.NoError(t, db.Where("user_id = ? AND year = ? AND month = ?", ownerID, year, month).
		Take(&row).Error, "month aggregate %d-%d should exist", year, month)
	return row
}

func requireConsistent(t *testing.T, db *gorm.DB, ownerID string) {
	t.Helper()

	found, err := NewVerifier(db).Verify(context.Background(), ownerID)
	require.NoError(t, err)
	require.Empty(t, found, "rollups disagree with the entry log")
}

// recordingPublisher keeps every event it is handed.
type recordingPublisher struct {
	mu      sync.Mutex
	events  []*events.EntryEvent
	ctxErrs []error
	err     error
}

func (p *recordingPublisher) Publish(ctx context.Context, e *events.EntryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) kinds() []events.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Kind, len(p.events))
	for i, e := range p.events {
		out[i] = e.Kind
	}
	return out
}
