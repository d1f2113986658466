package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	apperrors "tally/internal/errors"
	"tally/internal/ledger"
	"tally/internal/models"
	"tally/internal/pagination"
)

const maxCategoryNameLength = 100

var _ ledger.CategoryRegistry = (*categoryService)(nil)

// categoryService handles category-related business logic.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

func validCategoryType(t models.CategoryType) bool {
	return t == models.CategoryTypeIncome || t == models.CategoryTypeExpense
}

// CreateCategory creates a new category
func (s *categoryService) CreateCategory(ctx context.Context, userID, name string, categoryType models.CategoryType, icon string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}
	if utf8.RuneCountInString(name) > maxCategoryNameLength {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name must be at most 100 characters")
	}
	if !validCategoryType(categoryType) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category type must be income or expense")
	}

	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.Category{}).
		Where("user_id = ? AND name = ? AND type = ?", userID, name, categoryType).
		Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateCategory
	}

	category := &models.Category{
		UserID: userID,
		Name:   name,
		Type:   categoryType,
		Icon:   icon,
	}
	if err := db.Create(category).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.ErrDuplicateCategory
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return category, nil
}

// GetUserCategories retrieves a paginated list of categories for a user,
// optionally restricted to one type.
func (s *categoryService) GetUserCategories(ctx context.Context, userID string, categoryType *models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	page.Defaults()

	base := s.db.WithContext(ctx).Model(&models.Category{}).Where("user_id = ?", userID)
	if categoryType != nil {
		base = base.Where("type = ?", *categoryType)
	}
	base = base.Session(&gorm.Session{})

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var categories []models.Category
	if err := base.Scopes(pagination.Paginate(page)).Order("type ASC, name ASC").Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(categories, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// DeleteCategory removes a category. Entries recorded against it keep their
// category name and icon.
func (s *categoryService) DeleteCategory(ctx context.Context, userID, name string, categoryType models.CategoryType) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND name = ? AND type = ?", userID, strings.TrimSpace(name), categoryType).
		Delete(&models.Category{})
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrCategoryNotFound
	}
	return nil
}

// Lookup reports whether the user has a category with this name and type.
func (s *categoryService) Lookup(ctx context.Context, userID, name string, categoryType models.CategoryType) (*models.Category, bool, error) {
	var category models.Category
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND name = ? AND type = ?", userID, name, categoryType).
		First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, true, nil
}
