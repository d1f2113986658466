package models

import "time"

// EntryType represents the direction of an entry
type EntryType string

const (
	EntryTypeIncome  EntryType = "income"
	EntryTypeExpense EntryType = "expense"
)

// Valid reports whether t is a supported entry type.
func (t EntryType) Valid() bool {
	return t == EntryTypeIncome || t == EntryTypeExpense
}

// CategoryType returns the category type entries of this type are filed under.
func (t EntryType) CategoryType() CategoryType {
	return CategoryType(t)
}

// Entry is a single dated income or expense record. Entries are immutable:
// they are created and deleted as a whole.
//
// Amount is stored in currency minor units. Category and CategoryIcon are
// snapshots taken at creation time.
type Entry struct {
	Base
	UserID       string    `gorm:"type:uuid;not null;index:idx_entries_user_date,priority:1" json:"user_id"`
	Amount       int64     `gorm:"type:bigint;not null" json:"amount"`
	Type         EntryType `gorm:"type:varchar(10);not null" json:"type"`
	Category     string    `gorm:"not null" json:"category"`
	CategoryIcon string    `json:"category_icon"`
	Description  string    `json:"description"`
	Date         time.Time `gorm:"not null;index:idx_entries_user_date,priority:2" json:"date"`
}
