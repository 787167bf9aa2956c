package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cleanops/internal/auth"
	"cleanops/internal/models"
)

// ListMessages returns company-wide messages plus those addressed to the
// caller, newest first.
func ListMessages(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var msgs []models.Message
		if err := db.Where("company_id = ? AND (recipient IS NULL OR recipient = ? OR sender_id = ?)", p.CompanyID, p.ID, p.ID).
			Order("created_at desc").Limit(200).Find(&msgs).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, msgs)
	}
}

func CreateMessage(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req struct {
			Recipient *string `json:"recipient"`
			Body      string  `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Body = strings.TrimSpace(req.Body)
		if req.Body == "" {
			respondError(w, http.StatusBadRequest, "body required")
			return
		}
		if req.Recipient != nil {
			// Recipient must be a user or employee of the same company.
			var users, employees int64
			db.Model(&models.User{}).Where("id = ? AND company_id = ?", *req.Recipient, p.CompanyID).Count(&users)
			db.Model(&models.Employee{}).Where("id = ? AND company_id = ?", *req.Recipient, p.CompanyID).Count(&employees)
			if users+employees == 0 {
				respondError(w, http.StatusNotFound, "recipient not found")
				return
			}
		}
		m := models.Message{
			CompanyID:  p.CompanyID,
			SenderKind: p.Kind,
			SenderID:   p.ID,
			Recipient:  req.Recipient,
			Body:       req.Body,
		}
		if err := db.Create(&m).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusCreated, m)
	}
}

// MarkMessageRead stamps the read flag; only the addressee may mark it.
func MarkMessageRead(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var m models.Message
		if err := db.First(&m, "id = ? AND company_id = ?", chi.URLParam(r, "id"), p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if m.Recipient != nil && *m.Recipient != p.ID {
			respondError(w, http.StatusForbidden, "forbidden")
			return
		}
		if m.ReadAt == nil {
			now := time.Now()
			if err := db.Model(&m).Update("read_at", &now).Error; err != nil {
				respondError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]any{"read": true})
	}
}

// DeleteMessage removes a message the caller sent, along with attachments.
func DeleteMessage(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var m models.Message
		if err := db.First(&m, "id = ? AND company_id = ?", chi.URLParam(r, "id"), p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if m.SenderID != p.ID && !p.IsAdmin {
			respondError(w, http.StatusForbidden, "forbidden")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&models.Attachment{}, "owner_kind = 'message' AND owner_id = ?", m.ID).Error; err != nil {
				return err
			}
			return tx.Delete(&m).Error
		})
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"deleted": true})
	}
}
