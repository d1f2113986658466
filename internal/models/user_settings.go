package models

import "time"

// DefaultCurrency is assigned to users who never picked one.
const DefaultCurrency = "USD"

// UserSettings stores per-user display preferences.
type UserSettings struct {
	UserID    string    `gorm:"type:uuid;primaryKey" json:"user_id"`
	Currency  string    `gorm:"type:varchar(3);not null" json:"currency"`
	UpdatedAt time.Time `json:"updated_at"`
}
