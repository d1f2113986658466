package ledger

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"tally/internal/dates"
	apperrors "tally/internal/errors"
	"tally/internal/models"
	"tally/internal/pagination"
)

// GetEntryHistory lists the owner's entries newest first.
func (s *entryService) GetEntryHistory(ctx context.Context, ownerID string, filter EntryFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Entry], error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "from must not be after to")
	}
	if filter.Type != nil && !filter.Type.Valid() {
		return nil, apperrors.ErrInvalidEntryType
	}

	page.Defaults()

	base := s.db.WithContext(ctx).Model(&models.Entry{}).Where("user_id = ?", ownerID)
	base = applyEntryFilters(base, filter).Session(&gorm.Session{})

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var entries []models.Entry
	if err := base.Scopes(pagination.Paginate(page)).
		Order("date DESC, id DESC").
		Find(&entries).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(entries, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func applyEntryFilters(q *gorm.DB, f EntryFilter) *gorm.DB {
	if f.From != nil {
		q = q.Where("date >= ?", dates.Normalize(*f.From))
	}
	if f.To != nil {
		q = q.Where("date <= ?", dates.Normalize(*f.To))
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		q = q.Where("category = ?", c)
	}
	return q
}
