package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cleanops/internal/auth"
	"cleanops/internal/models"
)

// ListShifts returns the company's shifts; employees only see their own.
func ListShifts(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		q := db.Where("company_id = ?", p.CompanyID)
		if p.Kind == auth.KindEmployee {
			q = q.Where("employee_id = ?", p.ID)
		} else if eid := r.URL.Query().Get("employee_id"); eid != "" {
			q = q.Where("employee_id = ?", eid)
		}
		if from := r.URL.Query().Get("from"); from != "" {
			if t, err := time.Parse(time.RFC3339, from); err == nil {
				q = q.Where("started_at >= ?", t)
			}
		}
		if to := r.URL.Query().Get("to"); to != "" {
			if t, err := time.Parse(time.RFC3339, to); err == nil {
				q = q.Where("started_at < ?", t)
			}
		}
		var shifts []models.Shift
		if err := q.Order("started_at desc").Limit(500).Find(&shifts).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, shifts)
	}
}

type createShiftReq struct {
	EmployeeID string     `json:"employee_id" validate:"required,uuid"`
	JobID      *string    `json:"job_id" validate:"omitempty,uuid"`
	StartedAt  time.Time  `json:"started_at" validate:"required"`
	EndedAt    *time.Time `json:"ended_at"`
	BreakMin   int        `json:"break_min" validate:"gte=0,lte=480"`
}

// CreateShift records a shift on behalf of an employee (office use; field
// staff clock in and out instead).
func CreateShift(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req createShiftReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := validate.Struct(req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.EndedAt != nil && !req.EndedAt.After(req.StartedAt) {
			respondError(w, http.StatusBadRequest, "ended_at must be after started_at")
			return
		}
		var e models.Employee
		if err := db.First(&e, "id = ? AND company_id = ?", req.EmployeeID, p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "employee not found")
			return
		}
		if req.JobID != nil {
			var j models.Job
			if err := db.First(&j, "id = ? AND company_id = ?", *req.JobID, p.CompanyID).Error; err != nil {
				respondError(w, http.StatusNotFound, "job not found")
				return
			}
		}
		s := models.Shift{
			CompanyID:  p.CompanyID,
			EmployeeID: e.ID,
			JobID:      req.JobID,
			StartedAt:  req.StartedAt,
			EndedAt:    req.EndedAt,
			BreakMin:   req.BreakMin,
		}
		if err := db.Create(&s).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusCreated, s)
	}
}

// ClockIn opens a shift for the signed-in employee. A second clock-in with
// an open shift is rejected.
func ClockIn(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		if p.Kind != auth.KindEmployee {
			respondError(w, http.StatusForbidden, "employees only")
			return
		}
		var req struct {
			JobID *string `json:"job_id"`
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		var open int64
		db.Model(&models.Shift{}).Where("employee_id = ? AND ended_at IS NULL", p.ID).Count(&open)
		if open > 0 {
			respondError(w, http.StatusConflict, "shift already open")
			return
		}
		if req.JobID != nil {
			var j models.Job
			if err := db.First(&j, "id = ? AND company_id = ?", *req.JobID, p.CompanyID).Error; err != nil {
				respondError(w, http.StatusNotFound, "job not found")
				return
			}
		}
		s := models.Shift{
			CompanyID:  p.CompanyID,
			EmployeeID: p.ID,
			JobID:      req.JobID,
			StartedAt:  time.Now(),
		}
		if err := db.Create(&s).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		audit(db, p.CompanyID, p.Kind, p.ID, "SHIFT_CLOCK_IN", map[string]any{"shift_id": s.ID})
		respondJSON(w, http.StatusCreated, s)
	}
}

// ClockOut closes the employee's open shift.
func ClockOut(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		if p.Kind != auth.KindEmployee {
			respondError(w, http.StatusForbidden, "employees only")
			return
		}
		var req struct {
			BreakMin int `json:"break_min"`
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		if req.BreakMin < 0 {
			respondError(w, http.StatusBadRequest, "break_min must not be negative")
			return
		}
		var s models.Shift
		if err := db.First(&s, "employee_id = ? AND ended_at IS NULL", p.ID).Error; err != nil {
			respondError(w, http.StatusConflict, "no open shift")
			return
		}
		now := time.Now()
		if err := db.Model(&s).Updates(map[string]any{
			"ended_at": &now, "break_min": req.BreakMin, "updated_at": now,
		}).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		audit(db, p.CompanyID, p.Kind, p.ID, "SHIFT_CLOCK_OUT", map[string]any{"shift_id": s.ID})
		respondJSON(w, http.StatusOK, map[string]any{"ended_at": now})
	}
}
