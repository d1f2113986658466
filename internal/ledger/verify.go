package ledger

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"tally/internal/dates"
	apperrors "tally/internal/errors"
	"tally/internal/models"
)

type verifier struct {
	db *gorm.DB
}

// NewVerifier creates a read-only consistency checker.
func NewVerifier(db *gorm.DB) Verifier {
	return &verifier{db: db}
}

type totals struct {
	income  int64
	expense int64
}

func (t *totals) add(entryType models.EntryType, amount int64) {
	if entryType == models.EntryTypeIncome {
		t.income += amount
	} else {
		t.expense += amount
	}
}

type monthKey struct {
	year  int
	month int
}

type dayKey struct {
	monthKey
	day int
}

// Verify recomputes every day and month total of ownerID from the entry log
// and compares it with the stored rollups. It never repairs anything.
func (v *verifier) Verify(ctx context.Context, ownerID string) ([]Discrepancy, error) {
	db := v.db.WithContext(ctx)

	entryDays := map[dayKey]*totals{}
	entryMonths := map[monthKey]*totals{}

	rows, err := db.Model(&models.Entry{}).
		Select("date, type, amount").
		Where("user_id = ?", ownerID).
		Rows()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	defer rows.Close()

	for rows.Next() {
		var e models.Entry
		if err := db.ScanRows(rows, &e); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		y, m, d := dates.Split(e.Date)
		dk := dayKey{monthKey{y, m}, d}
		if entryDays[dk] == nil {
			entryDays[dk] = &totals{}
		}
		entryDays[dk].add(e.Type, e.Amount)
		if entryMonths[dk.monthKey] == nil {
			entryMonths[dk.monthKey] = &totals{}
		}
		entryMonths[dk.monthKey].add(e.Type, e.Amount)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var dayRows []models.DayAggregate
	if err := db.Where("user_id = ?", ownerID).Find(&dayRows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	var monthRows []models.MonthAggregate
	if err := db.Where("user_id = ?", ownerID).Find(&monthRows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	storedDays := map[dayKey]totals{}
	dayMonths := map[monthKey]*totals{}
	for _, r := range dayRows {
		dk := dayKey{monthKey{r.Year, r.Month}, r.Day}
		storedDays[dk] = totals{income: r.Income, expense: r.Expense}
		if dayMonths[dk.monthKey] == nil {
			dayMonths[dk.monthKey] = &totals{}
		}
		dayMonths[dk.monthKey].income += r.Income
		dayMonths[dk.monthKey].expense += r.Expense
	}
	storedMonths := map[monthKey]totals{}
	for _, r := range monthRows {
		storedMonths[monthKey{r.Year, r.Month}] = totals{income: r.Income, expense: r.Expense}
	}

	var out []Discrepancy
	report := func(kind DiscrepancyKind, y, m, d int, expected, actual totals) {
		if expected.income != actual.income {
			out = append(out, Discrepancy{OwnerID: ownerID, Kind: kind, Year: y, Month: m, Day: d,
				Field: "income", Expected: expected.income, Actual: actual.income})
		}
		if expected.expense != actual.expense {
			out = append(out, Discrepancy{OwnerID: ownerID, Kind: kind, Year: y, Month: m, Day: d,
				Field: "expense", Expected: expected.expense, Actual: actual.expense})
		}
	}

	for dk := range unionDays(entryDays, storedDays) {
		report(DayVsEntries, dk.year, dk.month, dk.day, deref(entryDays[dk]), storedDays[dk])
	}
	for mk := range unionMonths(entryMonths, dayMonths, storedMonths) {
		report(MonthVsEntries, mk.year, mk.month, 0, deref(entryMonths[mk]), storedMonths[mk])
		report(MonthVsDays, mk.year, mk.month, 0, deref(dayMonths[mk]), storedMonths[mk])
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Field < b.Field
	})
	return out, nil
}

// Owners lists every user that has entries or aggregate rows.
func (v *verifier) Owners(ctx context.Context) ([]string, error) {
	db := v.db.WithContext(ctx)
	seen := map[string]struct{}{}

	for _, model := range []interface{}{&models.Entry{}, &models.MonthAggregate{}} {
		var ids []string
		if err := db.Model(model).Distinct().Pluck("user_id", &ids).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}

	owners := make([]string, 0, len(seen))
	for id := range seen {
		owners = append(owners, id)
	}
	sort.Strings(owners)
	return owners, nil
}

func deref(t *totals) totals {
	if t == nil {
		return totals{}
	}
	return *t
}

func unionDays(a map[dayKey]*totals, b map[dayKey]totals) map[dayKey]struct{} {
	keys := make(map[dayKey]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	return keys
}

func unionMonths(a, b map[monthKey]*totals, c map[monthKey]totals) map[monthKey]struct{} {
	keys := make(map[monthKey]struct{}, len(a)+len(c))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	for k := range c {
		keys[k] = struct{}{}
	}
	return keys
}
