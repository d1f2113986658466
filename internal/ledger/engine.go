package ledger

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"tally/internal/cache"
	"tally/internal/dates"
	apperrors "tally/internal/errors"
	"tally/internal/events"
	"tally/internal/logger"
	"tally/internal/models"
	"tally/internal/money"
	"tally/internal/uuid"
)

const (
	// MaxDescriptionLength is the longest description an entry may carry.
	MaxDescriptionLength = 500

	DefaultWriteAttempts = 3
	DefaultRetryBackoff  = 25 * time.Millisecond

	// afterCommitTimeout bounds cache invalidation and event publishing once
	// a write is durable.
	afterCommitTimeout = 5 * time.Second
)

// entryService is the only writer of entries and aggregate rows.
type entryService struct {
	db           *gorm.DB
	registry     CategoryRegistry
	store        aggregateStore
	cache        cache.Store
	publisher    events.Publisher
	maxAttempts  int
	retryBackoff time.Duration
}

// Option configures the entry service.
type Option func(*entryService)

// WithCache makes committed writes invalidate the owner's cached reads.
func WithCache(store cache.Store) Option {
	return func(s *entryService) { s.cache = store }
}

// WithPublisher makes committed writes emit entry events.
func WithPublisher(p events.Publisher) Option {
	return func(s *entryService) { s.publisher = p }
}

// WithRetry sets how often a conflicting write is attempted and the base
// delay between attempts. Non-positive values keep the defaults.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *entryService) {
		if attempts > 0 {
			s.maxAttempts = attempts
		}
		if backoff > 0 {
			s.retryBackoff = backoff
		}
	}
}

// NewEntryService creates a new EntryServicer.
func NewEntryService(db *gorm.DB, registry CategoryRegistry, opts ...Option) EntryServicer {
	s := &entryService{
		db:           db,
		registry:     registry,
		cache:        cache.NewNop(),
		publisher:    events.NewNopPublisher(),
		maxAttempts:  DefaultWriteAttempts,
		retryBackoff: DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEntry records a new entry and adds it to its day and month rollups
// in one transaction.
func (s *entryService) CreateEntry(ctx context.Context, ownerID string, in CreateEntryInput) (*models.Entry, error) {
	entry, err := s.validateEntry(ownerID, in)
	if err != nil {
		return nil, err
	}

	category, found, err := s.registry.Lookup(ctx, ownerID, entry.Category, entry.Type.CategoryType())
	if err != nil {
		return nil, asAppError(err)
	}
	if !found {
		return nil, apperrors.ErrUnknownCategory
	}
	entry.CategoryIcon = category.Icon

	key := keyFor(ownerID, entry.Date)
	var created *models.Entry
	err = s.inTransaction(ctx, "create", func(tx *gorm.DB) error {
		row := *entry
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if err := s.store.add(tx, key, row.Type, row.Amount); err != nil {
			return err
		}
		created = &row
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, events.KindEntryCreated, created)
	return created, nil
}

func (s *entryService) validateEntry(ownerID string, in CreateEntryInput) (*models.Entry, error) {
	if !in.Type.Valid() {
		return nil, apperrors.ErrInvalidEntryType
	}

	amount, err := money.ToMinorUnits(in.Amount)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category is required")
	}

	if in.Date.IsZero() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "date is required")
	}
	if !dates.InRange(in.Date) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, dates.ErrYearOutOfRange.Error())
	}

	if utf8.RuneCountInString(in.Description) > MaxDescriptionLength {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "description must be at most 500 characters")
	}

	return &models.Entry{
		Base:        models.Base{ID: uuid.New()},
		UserID:      ownerID,
		Amount:      amount,
		Type:        in.Type,
		Category:    category,
		Description: in.Description,
		Date:        dates.Normalize(in.Date),
	}, nil
}

// DeleteEntry removes an entry and takes its amount back out of the rollups.
// The returned entry is the row as it was before deletion.
func (s *entryService) DeleteEntry(ctx context.Context, ownerID, entryID string) (*models.Entry, error) {
	if !uuid.IsValid(entryID) {
		return nil, apperrors.ErrEntryNotFound
	}

	var deleted *models.Entry
	err := s.inTransaction(ctx, "delete", func(tx *gorm.DB) error {
		entry, err := findOwnedEntry(tx, ownerID, entryID)
		if err != nil {
			return err
		}

		res := tx.Where("id = ? AND user_id = ?", entry.ID, ownerID).Delete(&models.Entry{})
		if res.Error != nil {
			return res.Error
		}
		// Lost a race with a concurrent delete of the same entry.
		if res.RowsAffected == 0 {
			return apperrors.ErrEntryNotFound
		}

		if err := s.store.subtract(tx, keyFor(ownerID, entry.Date), entry.Type, entry.Amount); err != nil {
			return err
		}
		deleted = entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, events.KindEntryDeleted, deleted)
	return deleted, nil
}

// GetEntryByID returns one of the owner's entries.
func (s *entryService) GetEntryByID(ctx context.Context, ownerID, entryID string) (*models.Entry, error) {
	if !uuid.IsValid(entryID) {
		return nil, apperrors.ErrEntryNotFound
	}
	entry, err := findOwnedEntry(s.db.WithContext(ctx), ownerID, entryID)
	if err != nil {
		return nil, asAppError(err)
	}
	return entry, nil
}

func findOwnedEntry(db *gorm.DB, ownerID, entryID string) (*models.Entry, error) {
	var entry models.Entry
	if err := db.Where("id = ?", entryID).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrEntryNotFound
		}
		return nil, err
	}
	if entry.UserID != ownerID {
		return nil, apperrors.ErrForbidden
	}
	return &entry, nil
}

// afterCommit runs the side effects of a committed write. Their failures are
// logged and never reported to the caller. They run even when the request
// that made the write has already gone away.
func (s *entryService) afterCommit(ctx context.Context, kind events.Kind, entry *models.Entry) {
	log := logger.Component("ledger")

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), afterCommitTimeout)
	defer cancel()

	if err := s.cache.Invalidate(ctx, entry.UserID); err != nil {
		log.Warnw("Failed to invalidate cached aggregates", "user_id", entry.UserID, "error", err)
	}

	event := &events.EntryEvent{
		Kind:       kind,
		EntryID:    entry.ID,
		UserID:     entry.UserID,
		Type:       string(entry.Type),
		Amount:     money.Format(entry.Amount),
		Category:   entry.Category,
		Date:       entry.Date.Format(dates.Layout),
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warnw("Failed to publish entry event", "kind", kind, "entry_id", entry.ID, "error", err)
	}
}
