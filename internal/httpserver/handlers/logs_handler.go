package handlers

import (
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cleanops/internal/auth"
	"cleanops/internal/models"
)

// CompanyLogs returns recent audit events for the tenant. Non-admin users
// only see their own actions.
func CompanyLogs(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var logs []models.AuditLog
		q := db.Where("company_id = ?", p.CompanyID)
		if !p.IsAdmin {
			q = q.Where("actor_id = ?", p.ID)
		}
		if action := r.URL.Query().Get("action"); action != "" {
			q = q.Where("action = ?", action)
		}
		if err := q.Order("created_at desc").Limit(200).Find(&logs).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, logs)
	}
}
