package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "tally/internal/errors"
	"tally/internal/models"
	"tally/internal/validator"
)

type settingsService struct {
	db *gorm.DB
}

// NewSettingsService creates a new SettingsServicer.
func NewSettingsService(db *gorm.DB) SettingsServicer {
	return &settingsService{db: db}
}

// GetSettings returns the user's settings, storing the defaults on first use.
func (s *settingsService) GetSettings(ctx context.Context, userID string) (*models.UserSettings, error) {
	db := s.db.WithContext(ctx)

	settings := models.UserSettings{UserID: userID}
	err := db.Where(models.UserSettings{UserID: userID}).
		Attrs(models.UserSettings{Currency: models.DefaultCurrency}).
		FirstOrCreate(&settings).Error
	if isUniqueViolation(err) {
		// A concurrent first read stored the row; use it.
		settings = models.UserSettings{}
		err = db.Where("user_id = ?", userID).Take(&settings).Error
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &settings, nil
}

// UpdateCurrency sets the user's display currency. Amounts are never
// converted; the currency only affects presentation.
func (s *settingsService) UpdateCurrency(ctx context.Context, userID, currency string) (*models.UserSettings, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if !validator.IsISO4217(currency) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "currency must be a 3-letter ISO 4217 code")
	}

	settings := &models.UserSettings{UserID: userID, Currency: currency, UpdatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"currency", "updated_at"}),
	}).Create(settings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return settings, nil
}
