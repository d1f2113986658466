package models

import "time"

// DayAggregate holds running income and expense totals of one user for a
// single UTC calendar day. Rows are created lazily by the first entry that
// touches the day and are never deleted.
type DayAggregate struct {
	UserID    string    `gorm:"type:uuid;primaryKey" json:"-"`
	Year      int       `gorm:"primaryKey;autoIncrement:false" json:"year"`
	Month     int       `gorm:"primaryKey;autoIncrement:false" json:"month"`
	Day       int       `gorm:"primaryKey;autoIncrement:false" json:"day"`
	Income    int64     `gorm:"type:bigint;not null;default:0" json:"income"`
	Expense   int64     `gorm:"type:bigint;not null;default:0" json:"expense"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MonthAggregate holds running income and expense totals of one user for a
// calendar month. Month is 1-12.
type MonthAggregate struct {
	UserID    string    `gorm:"type:uuid;primaryKey" json:"-"`
	Year      int       `gorm:"primaryKey;autoIncrement:false" json:"year"`
	Month     int       `gorm:"primaryKey;autoIncrement:false" json:"month"`
	Income    int64     `gorm:"type:bigint;not null;default:0" json:"income"`
	Expense   int64     `gorm:"type:bigint;not null;default:0" json:"expense"`
	UpdatedAt time.Time `json:"updated_at"`
}
