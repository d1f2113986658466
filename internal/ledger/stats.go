package ledger

import (
	"context"
	"time"

	"gorm.io/gorm"

	"tally/internal/dates"
	apperrors "tally/internal/errors"
	"tally/internal/models"
)

// DefaultMaxRangeDays bounds the span of balance and breakdown queries.
const DefaultMaxRangeDays = 90

// statsService reads the entry log and rollup tables. It never writes.
type statsService struct {
	db           *gorm.DB
	maxRangeDays int
	now          func() time.Time
}

// NewStatsService creates a new StatsServicer. A non-positive maxRangeDays
// uses DefaultMaxRangeDays.
func NewStatsService(db *gorm.DB, maxRangeDays int) StatsServicer {
	if maxRangeDays <= 0 {
		maxRangeDays = DefaultMaxRangeDays
	}
	return &statsService{db: db, maxRangeDays: maxRangeDays, now: time.Now}
}

// ValidateRange normalizes an inclusive date range and checks it is ordered
// and no longer than maxDays. Ranges are rejected, never truncated.
func ValidateRange(from, to time.Time, maxDays int) (time.Time, time.Time, error) {
	if from.IsZero() || to.IsZero() {
		return from, to, apperrors.WithMessage(apperrors.ErrInvalidInput, "from and to are required")
	}
	from, to = dates.Normalize(from), dates.Normalize(to)
	if from.After(to) {
		return from, to, apperrors.WithMessage(apperrors.ErrInvalidInput, "from must not be after to")
	}
	if dates.SpanDays(from, to) > maxDays {
		return from, to, apperrors.ErrDateRangeTooLarge
	}
	return from, to, nil
}

// GetBalance sums the owner's entries dated within [from, to].
func (s *statsService) GetBalance(ctx context.Context, ownerID string, from, to time.Time) (*Balance, error) {
	from, to, err := ValidateRange(from, to, s.maxRangeDays)
	if err != nil {
		return nil, err
	}

	var balance Balance
	err = s.db.WithContext(ctx).Model(&models.Entry{}).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0) AS income, "+
			"COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END), 0) AS expense",
			models.EntryTypeIncome, models.EntryTypeExpense).
		Where("user_id = ? AND date >= ? AND date <= ?", ownerID, from, to).
		Scan(&balance).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &balance, nil
}

// GetCategoryBreakdown totals the owner's entries within [from, to] per
// category and type, largest first.
func (s *statsService) GetCategoryBreakdown(ctx context.Context, ownerID string, from, to time.Time) ([]CategoryTotal, error) {
	from, to, err := ValidateRange(from, to, s.maxRangeDays)
	if err != nil {
		return nil, err
	}

	totals := []CategoryTotal{}
	err = s.db.WithContext(ctx).Model(&models.Entry{}).
		Select("category, type, MAX(category_icon) AS category_icon, SUM(amount) AS total").
		Where("user_id = ? AND date >= ? AND date <= ?", ownerID, from, to).
		Group("category, type").
		Order("total DESC, category ASC, type ASC").
		Scan(&totals).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return totals, nil
}

// GetTimeSeries returns every day of a month or every month of a year, in
// order, with zero rows for periods that have no aggregate.
func (s *statsService) GetTimeSeries(ctx context.Context, ownerID string, q TimeSeriesQuery) ([]Period, error) {
	if q.Year < 1 || q.Year > 9999 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "year is out of range")
	}

	switch q.Granularity {
	case GranularityDay:
		if q.Month < 1 || q.Month > 12 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "month must be between 1 and 12")
		}
		return s.daySeries(ctx, ownerID, q.Year, q.Month)
	case GranularityMonth:
		return s.monthSeries(ctx, ownerID, q.Year)
	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "granularity must be day or month")
	}
}

func (s *statsService) daySeries(ctx context.Context, ownerID string, year, month int) ([]Period, error) {
	var rows []models.DayAggregate
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND year = ? AND month = ?", ownerID, year, month).
		Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	byDay := make(map[int]models.DayAggregate, len(rows))
	for _, r := range rows {
		byDay[r.Day] = r
	}

	n := dates.DaysIn(year, month)
	series := make([]Period, n)
	for d := 1; d <= n; d++ {
		r := byDay[d]
		series[d-1] = Period{Year: year, Month: month, Day: d, Income: r.Income, Expense: r.Expense}
	}
	return series, nil
}

func (s *statsService) monthSeries(ctx context.Context, ownerID string, year int) ([]Period, error) {
	var rows []models.MonthAggregate
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND year = ?", ownerID, year).
		Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	byMonth := make(map[int]models.MonthAggregate, len(rows))
	for _, r := range rows {
		byMonth[r.Month] = r
	}

	series := make([]Period, 12)
	for m := 1; m <= 12; m++ {
		r := byMonth[m]
		series[m-1] = Period{Year: year, Month: m, Income: r.Income, Expense: r.Expense}
	}
	return series, nil
}

// GetAvailableYears lists the years the owner has month aggregates for,
// ascending. Owners without any fall back to the current UTC year.
func (s *statsService) GetAvailableYears(ctx context.Context, ownerID string) ([]int, error) {
	var years []int
	if err := s.db.WithContext(ctx).Model(&models.MonthAggregate{}).
		Where("user_id = ?", ownerID).
		Distinct().
		Order("year ASC").
		Pluck("year", &years).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if len(years) == 0 {
		return []int{s.now().UTC().Year()}, nil
	}
	return years, nil
}
