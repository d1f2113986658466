package models

// CategoryType represents the type of category
type CategoryType string

const (
	CategoryTypeIncome  CategoryType = "income"
	CategoryTypeExpense CategoryType = "expense"
)

// Category is a user-defined label that entries of the same type are filed under.
// Names are unique per (user, type). Deleting a category never touches the
// entries that were recorded against it.
type Category struct {
	Base
	UserID string       `gorm:"type:uuid;not null;uniqueIndex:idx_categories_user_name_type,priority:1" json:"user_id"`
	Name   string       `gorm:"not null;uniqueIndex:idx_categories_user_name_type,priority:2" json:"name"`
	Type   CategoryType `gorm:"type:varchar(10);not null;uniqueIndex:idx_categories_user_name_type,priority:3" json:"type"`
	Icon   string       `json:"icon"`
}
