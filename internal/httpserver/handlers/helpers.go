package handlers

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"cleanops/internal/models"
)

var validate = validator.New()

// audit records a best-effort event-log row. Failures are swallowed; the
// audit trail never blocks the primary mutation.
func audit(db *gorm.DB, companyID, actorKind, actorID, action string, md map[string]any) {
	b, _ := json.Marshal(md)
	entry := models.AuditLog{
		Action:    action,
		ActorKind: actorKind,
		Metadata:  models.JSONB(b),
	}
	if companyID != "" {
		entry.CompanyID = &companyID
	}
	if actorID != "" {
		entry.ActorID = &actorID
	}
	_ = db.Create(&entry).Error
}
