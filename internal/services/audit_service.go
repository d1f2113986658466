package services

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"tally/internal/logger"
	"tally/internal/models"
)

// Audit actions recorded for user writes.
const (
	AuditRegister       = "REGISTER"
	AuditLogin          = "LOGIN"
	AuditCreateCategory = "CREATE_CATEGORY"
	AuditDeleteCategory = "DELETE_CATEGORY"
	AuditUpdateSettings = "UPDATE_SETTINGS"
	AuditCreateEntry    = "CREATE_ENTRY"
	AuditDeleteEntry    = "DELETE_ENTRY"
)

type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records an audit event. It runs after the audited write has
// committed, so failures are logged and never returned.
func (s *auditService) Log(ctx context.Context, userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{}) {
	log := logger.Component("audit")

	row := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
	}
	if len(changes) > 0 {
		data, err := json.Marshal(changes)
		if err != nil {
			log.Warnw("Unencodable audit changes", "error", err, "action", action)
			data = []byte("{}")
		}
		row.Changes = string(data)
	}

	// A cancelled request still gets its audit row.
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Create(row).Error; err != nil {
		log.Errorw("Failed to write audit log",
			"error", err,
			"user_id", userID,
			"action", action,
			"resource_type", resourceType,
			"resource_id", resourceID,
		)
	}
}
