package services

import (
	"context"

	"tally/internal/ledger"
	"tally/internal/models"
	"tally/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(ctx context.Context, email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(ctx context.Context, email, password string) (*models.User, error)
}

// CategoryServicer defines the contract for category-related business logic.
// It is also the registry the ledger resolves entry categories through.
type CategoryServicer interface {
	ledger.CategoryRegistry

	CreateCategory(ctx context.Context, userID, name string, categoryType models.CategoryType, icon string) (*models.Category, error)
	GetUserCategories(ctx context.Context, userID string, categoryType *models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	DeleteCategory(ctx context.Context, userID, name string, categoryType models.CategoryType) error
}

// SettingsServicer defines the contract for per-user display settings.
type SettingsServicer interface {
	GetSettings(ctx context.Context, userID string) (*models.UserSettings, error)
	UpdateCurrency(ctx context.Context, userID, currency string) (*models.UserSettings, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(ctx context.Context, userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
