// Package ledger keeps the entry log and its day and month rollups
// consistent, and answers aggregate queries over them.
//
// All aggregate mutations go through the entry service; the aggregate store
// is unexported so nothing else can write rollup rows.
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/models"
	"tally/internal/pagination"
)

// CategoryRegistry resolves the categories entries are filed under.
type CategoryRegistry interface {
	// Lookup returns found=false when the owner has no category with this
	// name and type. The returned category carries the icon to snapshot.
	Lookup(ctx context.Context, ownerID, name string, categoryType models.CategoryType) (*models.Category, bool, error)
}

// EntryServicer is the write path of the ledger plus entry lookups.
type EntryServicer interface {
	CreateEntry(ctx context.Context, ownerID string, in CreateEntryInput) (*models.Entry, error)
	DeleteEntry(ctx context.Context, ownerID, entryID string) (*models.Entry, error)
	GetEntryByID(ctx context.Context, ownerID, entryID string) (*models.Entry, error)
	GetEntryHistory(ctx context.Context, ownerID string, filter EntryFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Entry], error)
}

// StatsServicer answers read-only aggregate queries.
type StatsServicer interface {
	GetBalance(ctx context.Context, ownerID string, from, to time.Time) (*Balance, error)
	GetCategoryBreakdown(ctx context.Context, ownerID string, from, to time.Time) ([]CategoryTotal, error)
	GetTimeSeries(ctx context.Context, ownerID string, q TimeSeriesQuery) ([]Period, error)
	GetAvailableYears(ctx context.Context, ownerID string) ([]int, error)
}

// Verifier recomputes rollups from the entry log and reports mismatches.
type Verifier interface {
	Verify(ctx context.Context, ownerID string) ([]Discrepancy, error)
	Owners(ctx context.Context) ([]string, error)
}

// CreateEntryInput holds the caller supplied fields of a new entry.
type CreateEntryInput struct {
	Amount      decimal.Decimal
	Type        models.EntryType
	Category    string
	Date        time.Time
	Description string
}

// EntryFilter narrows entry history. Zero values mean "no filter".
type EntryFilter struct {
	From     *time.Time
	To       *time.Time
	Type     *models.EntryType
	Category string
}

// Balance is the income and expense total over a date range, in minor units.
type Balance struct {
	Income  int64
	Expense int64
}

// CategoryTotal is the sum of one category's entries of one type.
type CategoryTotal struct {
	Category     string
	CategoryIcon string
	Type         models.EntryType
	Total        int64
}

// Granularity selects the period size of a time series.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
)

// TimeSeriesQuery selects the days of one month or the months of one year.
// Month is ignored for GranularityMonth.
type TimeSeriesQuery struct {
	Granularity Granularity
	Year        int
	Month       int
}

// Period is one row of a time series. Day is zero for month rows.
type Period struct {
	Year    int   `json:"year"`
	Month   int   `json:"month"`
	Day     int   `json:"day,omitempty"`
	Income  int64 `json:"income"`
	Expense int64 `json:"expense"`
}

// DiscrepancyKind names which pair of sources disagreed.
type DiscrepancyKind string

const (
	DayVsEntries   DiscrepancyKind = "day_vs_entries"
	MonthVsEntries DiscrepancyKind = "month_vs_entries"
	MonthVsDays    DiscrepancyKind = "month_vs_days"
)

// Discrepancy reports a rollup value that does not match what it should
// equal. Day is zero for month level mismatches.
type Discrepancy struct {
	OwnerID  string
	Kind     DiscrepancyKind
	Year     int
	Month    int
	Day      int
	Field    string
	Expected int64
	Actual   int64
}
