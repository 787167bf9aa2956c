package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cleanops/internal/auth"
	"cleanops/internal/models"
)

var attachmentOwnerKinds = map[string]bool{"job": true, "quote": true, "message": true}

type createAttachmentReq struct {
	OwnerKind   string `json:"owner_kind" validate:"required"`
	OwnerID     string `json:"owner_id" validate:"required,uuid"`
	FileName    string `json:"file_name" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"required,max=128"`
	SizeBytes   int64  `json:"size_bytes" validate:"gte=0"`
	StoragePath string `json:"storage_path" validate:"required,max=512"`
}

// CreateAttachment registers uploaded-file metadata against a job, quote,
// or message of the same tenant.
func CreateAttachment(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req createAttachmentReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := validate.Struct(req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.OwnerKind = strings.ToLower(req.OwnerKind)
		if !attachmentOwnerKinds[req.OwnerKind] {
			respondError(w, http.StatusBadRequest, "owner_kind must be job, quote or message")
			return
		}
		var count int64
		switch req.OwnerKind {
		case "job":
			db.Model(&models.Job{}).Where("id = ? AND company_id = ?", req.OwnerID, p.CompanyID).Count(&count)
		case "quote":
			db.Model(&models.Quote{}).Where("id = ? AND company_id = ?", req.OwnerID, p.CompanyID).Count(&count)
		case "message":
			db.Model(&models.Message{}).Where("id = ? AND company_id = ?", req.OwnerID, p.CompanyID).Count(&count)
		}
		if count == 0 {
			respondError(w, http.StatusNotFound, "owner not found")
			return
		}
		a := models.Attachment{
			CompanyID:   p.CompanyID,
			OwnerKind:   req.OwnerKind,
			OwnerID:     req.OwnerID,
			FileName:    req.FileName,
			ContentType: req.ContentType,
			SizeBytes:   req.SizeBytes,
			StoragePath: req.StoragePath,
		}
		if err := db.Create(&a).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusCreated, a)
	}
}

// DeleteAttachment removes the row and the stored file best-effort.
func DeleteAttachment(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var a models.Attachment
		if err := db.First(&a, "id = ? AND company_id = ?", chi.URLParam(r, "id"), p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if err := db.Delete(&a).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := os.Remove(a.StoragePath); err != nil && !os.IsNotExist(err) {
			lg.Warnw("attachment file removal failed", "path", a.StoragePath, "error", err)
		}
		respondJSON(w, http.StatusOK, map[string]any{"deleted": true})
	}
}
