package ledger

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tally/internal/dates"
	apperrors "tally/internal/errors"
	"tally/internal/logger"
	"tally/internal/models"
)

// aggregateKey identifies the day and month rows an entry contributes to.
type aggregateKey struct {
	ownerID string
	year    int
	month   int
	day     int
}

func keyFor(ownerID string, date time.Time) aggregateKey {
	y, m, d := dates.Split(date)
	return aggregateKey{ownerID: ownerID, year: y, month: m, day: d}
}

func (k aggregateKey) String() string {
	return fmt.Sprintf("%s/%04d-%02d-%02d", k.ownerID, k.year, k.month, k.day)
}

// aggregateStore mutates the rollup tables. It only ever runs on a
// transaction handed to it by the entry service.
type aggregateStore struct{}

// column returns the rollup column an entry type is summed into.
func column(t models.EntryType) string {
	if t == models.EntryTypeIncome {
		return "income"
	}
	return "expense"
}

// add increments the day and month rows for key, creating them if needed.
func (aggregateStore) add(tx *gorm.DB, key aggregateKey, t models.EntryType, amount int64) error {
	var income, expense int64
	if t == models.EntryTypeIncome {
		income = amount
	} else {
		expense = amount
	}
	now := time.Now().UTC()

	day := &models.DayAggregate{
		UserID: key.ownerID, Year: key.year, Month: key.month, Day: key.day,
		Income: income, Expense: expense, UpdatedAt: now,
	}
	if err := tx.Clauses(upsert("day_aggregates", "user_id", "year", "month", "day")).Create(day).Error; err != nil {
		return fmt.Errorf("upsert day aggregate %s: %w", key, err)
	}

	month := &models.MonthAggregate{
		UserID: key.ownerID, Year: key.year, Month: key.month,
		Income: income, Expense: expense, UpdatedAt: now,
	}
	if err := tx.Clauses(upsert("month_aggregates", "user_id", "year", "month")).Create(month).Error; err != nil {
		return fmt.Errorf("upsert month aggregate %s: %w", key, err)
	}
	return nil
}

// upsert builds an INSERT ... ON CONFLICT clause that adds the inserted
// totals onto an existing row.
func upsert(table string, keyColumns ...string) clause.OnConflict {
	cols := make([]clause.Column, len(keyColumns))
	for i, c := range keyColumns {
		cols[i] = clause.Column{Name: c}
	}
	return clause.OnConflict{
		Columns: cols,
		DoUpdates: clause.Assignments(map[string]interface{}{
			"income":     gorm.Expr(table + ".income + excluded.income"),
			"expense":    gorm.Expr(table + ".expense + excluded.expense"),
			"updated_at": gorm.Expr("excluded.updated_at"),
		}),
	}
}

// subtract decrements the day and month rows for key. A missing row or a
// decrement that would go below zero means the rollups no longer match the
// entry log; the caller's transaction must abort.
func (s aggregateStore) subtract(tx *gorm.DB, key aggregateKey, t models.EntryType, amount int64) error {
	col := column(t)
	now := time.Now().UTC()

	day := tx.Model(&models.DayAggregate{}).
		Where("user_id = ? AND year = ? AND month = ? AND day = ?", key.ownerID, key.year, key.month, key.day).
		Where(col+" >= ?", amount).
		UpdateColumns(map[string]interface{}{
			col:          gorm.Expr(col+" - ?", amount),
			"updated_at": now,
		})
	if day.Error != nil {
		return fmt.Errorf("decrement day aggregate %s: %w", key, day.Error)
	}
	if day.RowsAffected == 0 {
		var row models.DayAggregate
		err := tx.Where("user_id = ? AND year = ? AND month = ? AND day = ?", key.ownerID, key.year, key.month, key.day).
			Take(&row).Error
		return s.violation(err, "day", key, col, amount)
	}

	month := tx.Model(&models.MonthAggregate{}).
		Where("user_id = ? AND year = ? AND month = ?", key.ownerID, key.year, key.month).
		Where(col+" >= ?", amount).
		UpdateColumns(map[string]interface{}{
			col:          gorm.Expr(col+" - ?", amount),
			"updated_at": now,
		})
	if month.Error != nil {
		return fmt.Errorf("decrement month aggregate %s: %w", key, month.Error)
	}
	if month.RowsAffected == 0 {
		var row models.MonthAggregate
		err := tx.Where("user_id = ? AND year = ? AND month = ?", key.ownerID, key.year, key.month).
			Take(&row).Error
		return s.violation(err, "month", key, col, amount)
	}
	return nil
}

// violation classifies a failed decrement after the row lookup returned
// lookupErr, logs it and returns the error that aborts the transaction.
func (aggregateStore) violation(lookupErr error, level string, key aggregateKey, col string, amount int64) error {
	reason := "would become negative"
	switch {
	case errors.Is(lookupErr, gorm.ErrRecordNotFound):
		reason = "missing"
	case lookupErr != nil:
		return fmt.Errorf("load %s aggregate %s: %w", level, key, lookupErr)
	}

	logger.Component("ledger").Errorw("Aggregate invariant violated",
		"level", level,
		"reason", reason,
		"user_id", key.ownerID,
		"year", key.year,
		"month", key.month,
		"day", key.day,
		"column", col,
		"amount", amount,
	)
	return apperrors.Wrap(apperrors.ErrInvariantViolation,
		fmt.Errorf("%s aggregate %s %s %s by %d", level, key, reason, col, amount))
}
