package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"tally/internal/cache"
	apperrors "tally/internal/errors"
	"tally/internal/events"
	"tally/internal/models"
	"tally/internal/testutil"
)

func TestCreateEntry_IncomeUpdatesRollups(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	entry := f.create(t, "100.00", models.EntryTypeIncome, "Salary", testutil.Date(2024, time.March, 5))

	assert.Equal(t, int64(10000), entry.Amount)
	assert.Equal(t, "icon-Salary", entry.CategoryIcon)
	assert.Equal(t, f.user.ID, entry.UserID)
	assert.NotEmpty(t, entry.ID)

	day := dayRow(t, f.db, f.user.ID, 2024, 3, 5)
	assert.Equal(t, int64(10000), day.Income)
	assert.Equal(t, int64(0), day.Expense)

	month := monthRow(t, f.db, f.user.ID, 2024, 3)
	assert.Equal(t, int64(10000), month.Income)
	assert.Equal(t, int64(0), month.Expense)

	series, err := f.stats.GetTimeSeries(ctx, f.user.ID, TimeSeriesQuery{Granularity: GranularityDay, Year: 2024, Month: 3})
	require.NoError(t, err)
	require.Len(t, series, 31)
	assert.Equal(t, int64(10000), series[4].Income)
	assert.Equal(t, 5, series[4].Day)

	years, err := f.stats.GetAvailableYears(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{2024}, years)

	requireConsistent(t, f.db, f.user.ID)
}

func TestCreateEntry_AccumulatesIntoExistingRows(t *testing.T) {
	f := setup(t)
	date := testutil.Date(2024, time.March, 5)

	f.create(t, "100.00", models.EntryTypeIncome, "Salary", date)
	f.create(t, "0.10", models.EntryTypeIncome, "Salary", date)
	f.create(t, "12.34", models.EntryTypeExpense, "Food", date)
	f.create(t, "7.66", models.EntryTypeExpense, "Rent", testutil.Date(2024, time.March, 20))

	day := dayRow(t, f.db, f.user.ID, 2024, 3, 5)
	assert.Equal(t, int64(10010), day.Income)
	assert.Equal(t, int64(1234), day.Expense)

	month := monthRow(t, f.db, f.user.ID, 2024, 3)
	assert.Equal(t, int64(10010), month.Income)
	assert.Equal(t, int64(2000), month.Expense)

	assert.Equal(t, int64(2), testutil.CountRows(t, f.db, &models.DayAggregate{}))
	assert.Equal(t, int64(1), testutil.CountRows(t, f.db, &models.MonthAggregate{}))
	requireConsistent(t, f.db, f.user.ID)
}

func TestCreateEntry_NormalizesDateToUTC(t *testing.T) {
	f := setup(t)

	// 23:30 at UTC-5 is already the next day in UTC.
	local := time.Date(2023, time.December, 31, 23, 30, 0, 0, time.FixedZone("EST", -5*60*60))
	entry := f.create(t, "5.00", models.EntryTypeExpense, "Food", local)

	assert.True(t, entry.Date.Equal(testutil.Date(2024, time.January, 1)), "got %v", entry.Date)
	dayRow(t, f.db, f.user.ID, 2024, 1, 1)
	monthRow(t, f.db, f.user.ID, 2024, 1)

	_, err := f.entries.DeleteEntry(context.Background(), f.user.ID, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), dayRow(t, f.db, f.user.ID, 2024, 1, 1).Expense)
	requireConsistent(t, f.db, f.user.ID)
}

func TestCreateEntry_Validation(t *testing.T) {
	f := setup(t)
	date := testutil.Date(2024, time.March, 5)

	tests := []struct {
		name     string
		input    CreateEntryInput
		wantCode string
	}{
		{
			name:     "zero_amount",
			input:    CreateEntryInput{Amount: amount("0"), Type: models.EntryTypeIncome, Category: "Salary", Date: date},
			wantCode: "INVALID_INPUT",
		},
		{
			name:     "negative_amount",
			input:    CreateEntryInput{Amount: amount("-3.00"), Type: models.EntryTypeIncome, Category: "Salary", Date: date},
			wantCode: "INVALID_INPUT",
		},
		{
			name:     "three_decimal_places",
			input:    CreateEntryInput{Amount: amount("1.005"), Type: models.EntryTypeIncome, Category: "Salary", Date: date},
			wantCode: "INVALID_INPUT",
		},
		{
			name:     "amount_too_large",
			input:    CreateEntryInput{Amount: amount("1000000000000.00"), Type: models.EntryTypeIncome, Category: "Salary", Date: date},
			wantCode: "INVALID_INPUT",
		},
		{
			name:     "unknown_type",
			input:    CreateEntryInput{Amount: amount("1.00"), Type: "transfer", Category: "Salary", Date: date},
			wantCode: "INVALID_ENTRY_TYPE",
		},
		{
			name:     "blank_category",
			input:    CreateEntryInput{Amount: amount("1.00"), Type: models.EntryTypeIncome, Category: "  ", Date: date},
			wantCode: "INVALID_INPUT",
		},
		{
			name:     "missing_date",
			input:    CreateEntryInput{Amount: amount("1.00"), Type: models.EntryTypeIncome, Category: "Salary"},
			wantCode: "INVALID_INPUT",
		},
		{
			name:     "year_zero",
			input:    CreateEntryInput{Amount: amount("1.00"), Type: models.EntryTypeIncome, Category: "Salary", Date: time.Date(0, time.June, 15, 0, 0, 0, 0, time.UTC)},
			wantCode: "INVALID_INPUT",
		},
		{
			name:     "year_past_9999",
			input:    CreateEntryInput{Amount: amount("1.00"), Type: models.EntryTypeIncome, Category: "Salary", Date: time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC)},
			wantCode: "INVALID_INPUT",
		},
		{
			name: "description_too_long",
			input: CreateEntryInput{Amount: amount("1.00"), Type: models.EntryTypeIncome, Category: "Salary", Date: date,
				Description: strings.Repeat("x", MaxDescriptionLength+1)},
			wantCode: "INVALID_INPUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.entries.CreateEntry(context.Background(), f.user.ID, tt.input)
			testutil.AssertAppError(t, err, tt.wantCode)
		})
	}

	assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.Entry{}))
	assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.DayAggregate{}))
	assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.MonthAggregate{}))
}

func TestCreateEntry_UnknownCategoryWritesNothing(t *testing.T) {
	f := setup(t)

	// "Food" exists, but only as an expense category.
	_, err := f.entries.CreateEntry(context.Background(), f.user.ID, CreateEntryInput{
		Amount:   amount("10.00"),
		Type:     models.EntryTypeIncome,
		Category: "Food",
		Date:     testutil.Date(2024, time.March, 5),
	})
	testutil.AssertAppError(t, err, "UNKNOWN_CATEGORY")

	assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.Entry{}))
	assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.DayAggregate{}))
	assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.MonthAggregate{}))
}

func TestCreateEntry_CategoryOfAnotherUserIsUnknown(t *testing.T) {
	f := setup(t)
	other := testutil.CreateTestUser(t, f.db)
	testutil.CreateTestCategory(t, f.db, other.ID, "Bonus", models.CategoryTypeIncome)

	_, err := f.entries.CreateEntry(context.Background(), f.user.ID, CreateEntryInput{
		Amount: amount("1.00"), Type: models.EntryTypeIncome, Category: "Bonus", Date: testutil.Date(2024, 1, 1),
	})
	testutil.AssertAppError(t, err, "UNKNOWN_CATEGORY")
}

func TestCreateEntry_IconSurvivesCategoryDeletion(t *testing.T) {
	f := setup(t)
	entry := f.create(t, "3.00", models.EntryTypeExpense, "Food", testutil.Date(2024, time.May, 1))

	require.NoError(t, f.db.Where("user_id = ? AND name = ?", f.user.ID, "Food").Delete(&models.Category{}).Error)

	got, err := f.entries.GetEntryByID(context.Background(), f.user.ID, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "Food", got.Category)
	assert.Equal(t, "icon-Food", got.CategoryIcon)
}

func TestDeleteEntry_RoundTripKeepsZeroRows(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	entry := f.create(t, "50.00", models.EntryTypeExpense, "Food", testutil.Date(2024, time.July, 14))

	deleted, err := f.entries.DeleteEntry(ctx, f.user.ID, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, deleted.ID)
	assert.Equal(t, int64(5000), deleted.Amount)

	day := dayRow(t, f.db, f.user.ID, 2024, 7, 14)
	assert.Equal(t, int64(0), day.Income)
	assert.Equal(t, int64(0), day.Expense)
	month := monthRow(t, f.db, f.user.ID, 2024, 7)
	assert.Equal(t, int64(0), month.Expense)

	assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.Entry{}))

	years, err := f.stats.GetAvailableYears(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{2024}, years)

	requireConsistent(t, f.db, f.user.ID)
}

func TestDeleteEntry_ZeroRowsAcceptNewEntries(t *testing.T) {
	f := setup(t)
	date := testutil.Date(2024, time.July, 14)

	first := f.create(t, "8.25", models.EntryTypeIncome, "Salary", date)
	_, err := f.entries.DeleteEntry(context.Background(), f.user.ID, first.ID)
	require.NoError(t, err)

	f.create(t, "8.25", models.EntryTypeIncome, "Salary", date)

	assert.Equal(t, int64(825), dayRow(t, f.db, f.user.ID, 2024, 7, 14).Income)
	assert.Equal(t, int64(825), monthRow(t, f.db, f.user.ID, 2024, 7).Income)
	assert.Equal(t, int64(1), testutil.CountRows(t, f.db, &models.DayAggregate{}))
	requireConsistent(t, f.db, f.user.ID)
}

func TestDeleteEntry_Errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	entry := f.create(t, "20.00", models.EntryTypeIncome, "Salary", testutil.Date(2024, time.March, 5))
	other := testutil.CreateTestUser(t, f.db)

	t.Run("missing_entry", func(t *testing.T) {
		_, err := f.entries.DeleteEntry(ctx, f.user.ID, "0190d2c4-0000-7000-8000-000000000000")
		testutil.AssertAppError(t, err, "ENTRY_NOT_FOUND")
	})

	t.Run("malformed_id", func(t *testing.T) {
		_, err := f.entries.DeleteEntry(ctx, f.user.ID, "not-a-uuid")
		testutil.AssertAppError(t, err, "ENTRY_NOT_FOUND")
	})

	t.Run("other_owner", func(t *testing.T) {
		_, err := f.entries.DeleteEntry(ctx, other.ID, entry.ID)
		testutil.AssertAppError(t, err, "FORBIDDEN")
	})

	assert.Equal(t, int64(1), testutil.CountRows(t, f.db, &models.Entry{}))
	assert.Equal(t, int64(2000), dayRow(t, f.db, f.user.ID, 2024, 3, 5).Income)

	t.Run("already_deleted", func(t *testing.T) {
		_, err := f.entries.DeleteEntry(ctx, f.user.ID, entry.ID)
		require.NoError(t, err)
		_, err = f.entries.DeleteEntry(ctx, f.user.ID, entry.ID)
		testutil.AssertAppError(t, err, "ENTRY_NOT_FOUND")
	})

	assert.Equal(t, int64(0), dayRow(t, f.db, f.user.ID, 2024, 3, 5).Income)
}

func TestDeleteEntry_InvariantViolationAborts(t *testing.T) {
	t.Run("day_row_too_small", func(t *testing.T) {
		f := setup(t)
		entry := f.create(t, "20.00", models.EntryTypeIncome, "Salary", testutil.Date(2024, time.March, 5))

		require.NoError(t, f.db.Model(&models.DayAggregate{}).
			Where("user_id = ?", f.user.ID).
			UpdateColumn("income", 500).Error)

		_, err := f.entries.DeleteEntry(context.Background(), f.user.ID, entry.ID)
		testutil.AssertAppError(t, err, "INVARIANT_VIOLATION")

		var appErr *apperrors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "An internal error occurred", appErr.Message)

		assert.Equal(t, int64(1), testutil.CountRows(t, f.db, &models.Entry{}), "entry delete must roll back")
		assert.Equal(t, int64(500), dayRow(t, f.db, f.user.ID, 2024, 3, 5).Income)
		assert.Equal(t, int64(2000), monthRow(t, f.db, f.user.ID, 2024, 3).Income)
	})

	t.Run("month_row_missing", func(t *testing.T) {
		f := setup(t)
		entry := f.create(t, "20.00", models.EntryTypeIncome, "Salary", testutil.Date(2024, time.March, 5))

		require.NoError(t, f.db.Where("user_id = ?", f.user.ID).Delete(&models.MonthAggregate{}).Error)

		_, err := f.entries.DeleteEntry(context.Background(), f.user.ID, entry.ID)
		testutil.AssertAppError(t, err, "INVARIANT_VIOLATION")

		assert.Equal(t, int64(1), testutil.CountRows(t, f.db, &models.Entry{}))
		assert.Equal(t, int64(2000), dayRow(t, f.db, f.user.ID, 2024, 3, 5).Income, "day decrement must roll back")
	})
}

// failCreatesOn makes every insert into table fail.
func failCreatesOn(t *testing.T, db *gorm.DB, table string) {
	t.Helper()

	name := "test:fail_" + table
	err := db.Callback().Create().Before("gorm:create").Register(name, func(d *gorm.DB) {
		if d.Statement.Table == table {
			_ = d.AddError(fmt.Errorf("injected failure on %s", table))
		}
	})
	require.NoError(t, err)
}

func TestCreateEntry_AtomicWhenRollupFails(t *testing.T) {
	for _, table := range []string{"day_aggregates", "month_aggregates"} {
		t.Run(table, func(t *testing.T) {
			f := setup(t)
			failCreatesOn(t, f.db, table)

			_, err := f.entries.CreateEntry(context.Background(), f.user.ID, CreateEntryInput{
				Amount: amount("10.00"), Type: models.EntryTypeIncome, Category: "Salary", Date: testutil.Date(2024, 3, 5),
			})
			testutil.AssertAppError(t, err, "INTERNAL_ERROR")

			assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.Entry{}))
			assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.DayAggregate{}))
			assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &models.MonthAggregate{}))
		})
	}
}

func TestCreateEntry_ConcurrentWritersSameDay(t *testing.T) {
	f := setupConcurrent(t)
	const writers = 25
	date := testutil.Date(2024, time.March, 5)

	var g errgroup.Group
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			_, err := f.entries.CreateEntry(context.Background(), f.user.ID, CreateEntryInput{
				Amount: amount("1.50"), Type: models.EntryTypeExpense, Category: "Food", Date: date,
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(writers), testutil.CountRows(t, f.db, &models.Entry{}))
	assert.Equal(t, int64(writers*150), dayRow(t, f.db, f.user.ID, 2024, 3, 5).Expense)
	assert.Equal(t, int64(writers*150), monthRow(t, f.db, f.user.ID, 2024, 3).Expense)
	requireConsistent(t, f.db, f.user.ID)
}

func TestDeleteEntry_ConcurrentDeletesSameDay(t *testing.T) {
	f := setupConcurrent(t)
	const entries = 25
	date := testutil.Date(2024, time.March, 5)

	ids := make([]string, entries)
	for i := range ids {
		ids[i] = f.create(t, "2.25", models.EntryTypeIncome, "Salary", date).ID
	}
	f.create(t, "1.00", models.EntryTypeIncome, "Salary", date)

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			_, err := f.entries.DeleteEntry(context.Background(), f.user.ID, id)
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(1), testutil.CountRows(t, f.db, &models.Entry{}))
	assert.Equal(t, int64(100), dayRow(t, f.db, f.user.ID, 2024, 3, 5).Income)
	assert.Equal(t, int64(100), monthRow(t, f.db, f.user.ID, 2024, 3).Income)
	requireConsistent(t, f.db, f.user.ID)
}

func TestConcurrentCreatesAndDeletes(t *testing.T) {
	f := setupConcurrent(t)
	date := testutil.Date(2024, time.March, 5)

	var doomed []string
	for i := 0; i < 15; i++ {
		doomed = append(doomed, f.create(t, "3.00", models.EntryTypeExpense, "Rent", date).ID)
	}

	var g errgroup.Group
	for _, id := range doomed {
		g.Go(func() error {
			_, err := f.entries.DeleteEntry(context.Background(), f.user.ID, id)
			return err
		})
	}
	for i := 0; i < 20; i++ {
		// Spread creates over two days of the same month.
		day := date.AddDate(0, 0, i%2)
		g.Go(func() error {
			_, err := f.entries.CreateEntry(context.Background(), f.user.ID, CreateEntryInput{
				Amount: amount("0.75"), Type: models.EntryTypeExpense, Category: "Rent", Date: day,
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(20), testutil.CountRows(t, f.db, &models.Entry{}))
	assert.Equal(t, int64(10*75), dayRow(t, f.db, f.user.ID, 2024, 3, 5).Expense)
	assert.Equal(t, int64(10*75), dayRow(t, f.db, f.user.ID, 2024, 3, 6).Expense)
	assert.Equal(t, int64(20*75), monthRow(t, f.db, f.user.ID, 2024, 3).Expense)
	requireConsistent(t, f.db, f.user.ID)
}

func TestDeleteEntry_ConcurrentDeletesOfSameEntry(t *testing.T) {
	f := setupConcurrent(t)
	entry := f.create(t, "9.99", models.EntryTypeIncome, "Salary", testutil.Date(2024, time.March, 5))

	var succeeded, notFound atomic.Int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := f.entries.DeleteEntry(context.Background(), f.user.ID, entry.ID)
			switch {
			case err == nil:
				succeeded.Add(1)
			case apperrors.HasCode(err, apperrors.ErrEntryNotFound):
				notFound.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(7), notFound.Load())
	assert.Equal(t, int64(0), dayRow(t, f.db, f.user.ID, 2024, 3, 5).Income)
	requireConsistent(t, f.db, f.user.ID)
}

func TestRandomSequencesKeepRollupsConsistent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	categories := map[models.EntryType][]string{
		models.EntryTypeIncome:  {"Salary"},
		models.EntryTypeExpense: {"Food", "Rent"},
	}
	start := testutil.Date(2023, time.November, 15)

	var live []string
	for i := 0; i < 150; i++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			idx := rng.Intn(len(live))
			_, err := f.entries.DeleteEntry(ctx, f.user.ID, live[idx])
			require.NoError(t, err)
			live = append(live[:idx], live[idx+1:]...)
			continue
		}

		entryType := models.EntryTypeExpense
		if rng.Intn(2) == 0 {
			entryType = models.EntryTypeIncome
		}
		names := categories[entryType]
		cents := rng.Intn(100000) + 1
		entry := f.create(t,
			fmt.Sprintf("%d.%02d", cents/100, cents%100),
			entryType,
			names[rng.Intn(len(names))],
			start.AddDate(0, 0, rng.Intn(120)),
		)
		live = append(live, entry.ID)
	}

	requireConsistent(t, f.db, f.user.ID)

	years, err := f.stats.GetAvailableYears(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{2023, 2024}, years)
}

// countingCache records invalidations and otherwise behaves like a nop.
type countingCache struct {
	cache.Store
	invalidations atomic.Int32
	err           error
}

func (c *countingCache) Invalidate(context.Context, string) error {
	c.invalidations.Add(1)
	return c.err
}

func TestEntryService_SideEffectsAfterCommit(t *testing.T) {
	pub := &recordingPublisher{}
	store := &countingCache{Store: cache.NewNop()}
	f := setup(t, WithPublisher(pub), WithCache(store))
	ctx := context.Background()

	entry := f.create(t, "42.00", models.EntryTypeIncome, "Salary", testutil.Date(2024, time.March, 5))
	_, err := f.entries.DeleteEntry(ctx, f.user.ID, entry.ID)
	require.NoError(t, err)

	_, err = f.entries.CreateEntry(ctx, f.user.ID, CreateEntryInput{
		Amount: amount("1.00"), Type: models.EntryTypeIncome, Category: "Nope", Date: testutil.Date(2024, 3, 5),
	})
	require.Error(t, err)

	assert.Equal(t, []events.Kind{events.KindEntryCreated, events.KindEntryDeleted}, pub.kinds())
	assert.Equal(t, int32(2), store.invalidations.Load())

	first := pub.events[0]
	assert.Equal(t, entry.ID, first.EntryID)
	assert.Equal(t, "42.00", first.Amount)
	assert.Equal(t, "2024-03-05", first.Date)
}

func TestEntryService_SideEffectFailuresDoNotFailWrites(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	store := &countingCache{Store: cache.NewNop(), err: errors.New("redis down")}
	f := setup(t, WithPublisher(pub), WithCache(store))

	entry := f.create(t, "1.00", models.EntryTypeIncome, "Salary", testutil.Date(2024, time.March, 5))

	_, err := f.entries.DeleteEntry(context.Background(), f.user.ID, entry.ID)
	require.NoError(t, err)
	assert.Len(t, pub.kinds(), 2)
}

func TestGetEntryByID(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	entry := f.create(t, "1.00", models.EntryTypeIncome, "Salary", testutil.Date(2024, time.March, 5))
	other := testutil.CreateTestUser(t, f.db)

	got, err := f.entries.GetEntryByID(ctx, f.user.ID, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)

	_, err = f.entries.GetEntryByID(ctx, other.ID, entry.ID)
	testutil.AssertAppError(t, err, "FORBIDDEN")

	_, err = f.entries.GetEntryByID(ctx, f.user.ID, "0190d2c4-0000-7000-8000-000000000000")
	testutil.AssertAppError(t, err, "ENTRY_NOT_FOUND")
}
