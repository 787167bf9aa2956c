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

func ListEmployees(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var es []models.Employee
		q := db.Where("company_id = ?", auth.CompanyID(r.Context()))
		if r.URL.Query().Get("active") == "1" {
			q = q.Where("is_active = ?", true)
		}
		if err := q.Order("name asc").Find(&es).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, es)
	}
}

type createEmployeeReq struct {
	Username   string  `json:"username" validate:"required,min=2,max=64"`
	Name       string  `json:"name" validate:"required,max=120"`
	Email      string  `json:"email" validate:"omitempty,email"`
	Phone      string  `json:"phone" validate:"max=32"`
	Password   string  `json:"password" validate:"required,min=6,max=72"`
	HourlyRate float64 `json:"hourly_rate" validate:"gte=0"`
}

func CreateEmployee(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req createEmployeeReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Username = strings.ToLower(strings.TrimSpace(req.Username))
		if err := validate.Struct(req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var count int64
		db.Model(&models.Employee{}).Where("company_id = ? AND LOWER(username) = ?", p.CompanyID, req.Username).Count(&count)
		if count > 0 {
			respondError(w, http.StatusConflict, "username already taken")
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "hash error")
			return
		}
		e := models.Employee{
			CompanyID:    p.CompanyID,
			Username:     req.Username,
			Name:         req.Name,
			Email:        strings.ToLower(strings.TrimSpace(req.Email)),
			Phone:        req.Phone,
			PasswordHash: hash,
			HourlyRate:   req.HourlyRate,
			IsActive:     true,
		}
		if err := db.Create(&e).Error; err != nil {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		audit(db, p.CompanyID, p.Kind, p.ID, "EMPLOYEE_CREATE", map[string]any{"employee_id": e.ID, "username": e.Username})
		respondJSON(w, http.StatusCreated, e)
	}
}

func UpdateEmployee(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		id := chi.URLParam(r, "id")
		var req struct {
			Name       *string  `json:"name"`
			Email      *string  `json:"email"`
			Phone      *string  `json:"phone"`
			Password   *string  `json:"password"`
			HourlyRate *float64 `json:"hourly_rate"`
			IsActive   *bool    `json:"is_active"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var e models.Employee
		if err := db.First(&e, "id = ? AND company_id = ?", id, p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if req.Name != nil {
			e.Name = *req.Name
		}
		if req.Email != nil {
			e.Email = strings.ToLower(strings.TrimSpace(*req.Email))
		}
		if req.Phone != nil {
			e.Phone = *req.Phone
		}
		if req.HourlyRate != nil {
			if *req.HourlyRate < 0 {
				respondError(w, http.StatusBadRequest, "hourly_rate must not be negative")
				return
			}
			e.HourlyRate = *req.HourlyRate
		}
		if req.IsActive != nil {
			e.IsActive = *req.IsActive
			if !e.IsActive {
				_ = auth.RevokeAllSessions(db, auth.KindEmployee, e.ID)
			}
		}
		if req.Password != nil && *req.Password != "" {
			hash, err := auth.HashPassword(*req.Password)
			if err != nil {
				respondError(w, http.StatusInternalServerError, "hash error")
				return
			}
			e.PasswordHash = hash
		}
		e.UpdatedAt = time.Now()
		if err := db.Save(&e).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, e)
	}
}

func DeleteEmployee(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		id := chi.URLParam(r, "id")
		var e models.Employee
		if err := db.First(&e, "id = ? AND company_id = ?", id, p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec("DELETE FROM job_assignments WHERE employee_id = ?", e.ID).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.Shift{}, "employee_id = ?", e.ID).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.Session{}, "principal_kind = ? AND principal_id = ?", auth.KindEmployee, e.ID).Error; err != nil {
				return err
			}
			return tx.Delete(&e).Error
		})
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		audit(db, p.CompanyID, p.Kind, p.ID, "EMPLOYEE_DELETE", map[string]any{"employee_id": e.ID})
		respondJSON(w, http.StatusOK, map[string]any{"deleted": true})
	}
}
