package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cleanops/internal/auth"
	"cleanops/internal/models"
)

// jobTransitions holds the allowed status moves: scheduled -> in_progress
// -> completed, with canceled reachable until completion.
var jobTransitions = map[string][]string{
	models.JobScheduled:  {models.JobInProgress, models.JobCanceled},
	models.JobInProgress: {models.JobCompleted, models.JobCanceled},
}

func jobTransitionAllowed(from, to string) bool {
	for _, s := range jobTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func ListJobs(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		q := db.Preload("Employees").Where("company_id = ?", p.CompanyID)
		if s := r.URL.Query().Get("status"); s != "" {
			q = q.Where("status = ?", s)
		}
		if cid := r.URL.Query().Get("customer_id"); cid != "" {
			q = q.Where("customer_id = ?", cid)
		}
		if from := r.URL.Query().Get("from"); from != "" {
			if t, err := time.Parse(time.RFC3339, from); err == nil {
				q = q.Where("scheduled_at >= ?", t)
			}
		}
		if to := r.URL.Query().Get("to"); to != "" {
			if t, err := time.Parse(time.RFC3339, to); err == nil {
				q = q.Where("scheduled_at < ?", t)
			}
		}
		// Employees only see work assigned to them.
		if p.Kind == auth.KindEmployee {
			q = q.Joins("JOIN job_assignments ja ON ja.job_id = jobs.id AND ja.employee_id = ?", p.ID)
		}
		var jobs []models.Job
		if err := q.Order("scheduled_at asc").Find(&jobs).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, jobs)
	}
}

type createJobReq struct {
	CustomerID  string    `json:"customer_id" validate:"required,uuid"`
	Title       string    `json:"title" validate:"required,max=200"`
	Notes       string    `json:"notes"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	DurationMin int       `json:"duration_min" validate:"gte=0,lte=1440"`
	EmployeeIDs []string  `json:"employee_ids" validate:"dive,uuid"`
}

func CreateJob(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req createJobReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := validate.Struct(req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var customer models.Customer
		if err := db.First(&customer, "id = ? AND company_id = ?", req.CustomerID, p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "customer not found")
			return
		}
		if req.DurationMin == 0 {
			req.DurationMin = 60
		}
		j := models.Job{
			CompanyID:   p.CompanyID,
			CustomerID:  customer.ID,
			Title:       req.Title,
			Notes:       req.Notes,
			Status:      models.JobScheduled,
			ScheduledAt: req.ScheduledAt,
			DurationMin: req.DurationMin,
		}
		if len(req.EmployeeIDs) > 0 {
			var es []models.Employee
			if err := db.Where("company_id = ? AND id IN ?", p.CompanyID, req.EmployeeIDs).Find(&es).Error; err != nil || len(es) != len(req.EmployeeIDs) {
				respondError(w, http.StatusBadRequest, "unknown employee id")
				return
			}
			j.Employees = es
		}
		if err := db.Create(&j).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		audit(db, p.CompanyID, p.Kind, p.ID, "JOB_CREATE", map[string]any{"job_id": j.ID, "customer_id": j.CustomerID})
		respondJSON(w, http.StatusCreated, j)
	}
}

func GetJob(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var j models.Job
		if err := db.Preload("Employees").First(&j, "id = ? AND company_id = ?", chi.URLParam(r, "id"), auth.CompanyID(r.Context())).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		respondJSON(w, http.StatusOK, j)
	}
}

func UpdateJob(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req struct {
			Title       *string    `json:"title"`
			Notes       *string    `json:"notes"`
			ScheduledAt *time.Time `json:"scheduled_at"`
			DurationMin *int       `json:"duration_min"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var j models.Job
		if err := db.First(&j, "id = ? AND company_id = ?", chi.URLParam(r, "id"), p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if j.Status == models.JobCompleted || j.Status == models.JobCanceled {
			respondError(w, http.StatusConflict, "job is closed")
			return
		}
		if req.Title != nil {
			j.Title = *req.Title
		}
		if req.Notes != nil {
			j.Notes = *req.Notes
		}
		if req.ScheduledAt != nil {
			j.ScheduledAt = *req.ScheduledAt
		}
		if req.DurationMin != nil {
			if *req.DurationMin <= 0 || *req.DurationMin > 1440 {
				respondError(w, http.StatusBadRequest, "duration_min out of range")
				return
			}
			j.DurationMin = *req.DurationMin
		}
		j.UpdatedAt = time.Now()
		if err := db.Save(&j).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, j)
	}
}

func DeleteJob(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var j models.Job
		if err := db.First(&j, "id = ? AND company_id = ?", chi.URLParam(r, "id"), p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec("DELETE FROM job_assignments WHERE job_id = ?", j.ID).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.Attachment{}, "owner_kind = 'job' AND owner_id = ?", j.ID).Error; err != nil {
				return err
			}
			return tx.Delete(&j).Error
		})
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		audit(db, p.CompanyID, p.Kind, p.ID, "JOB_DELETE", map[string]any{"job_id": j.ID})
		respondJSON(w, http.StatusOK, map[string]any{"deleted": true})
	}
}

// AssignJob replaces the set of employees assigned to a job.
func AssignJob(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req struct {
			EmployeeIDs []string `json:"employee_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var j models.Job
		if err := db.First(&j, "id = ? AND company_id = ?", chi.URLParam(r, "id"), p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if j.Status == models.JobCompleted || j.Status == models.JobCanceled {
			respondError(w, http.StatusConflict, "job is closed")
			return
		}
		var es []models.Employee
		if len(req.EmployeeIDs) > 0 {
			if err := db.Where("company_id = ? AND id IN ?", p.CompanyID, req.EmployeeIDs).Find(&es).Error; err != nil || len(es) != len(req.EmployeeIDs) {
				respondError(w, http.StatusBadRequest, "unknown employee id")
				return
			}
		}
		if err := db.Model(&j).Association("Employees").Replace(es); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		audit(db, p.CompanyID, p.Kind, p.ID, "JOB_ASSIGN", map[string]any{"job_id": j.ID, "employees": len(es)})
		respondJSON(w, http.StatusOK, map[string]any{"assigned": len(es)})
	}
}

// UpdateJobStatus moves a job along scheduled -> in_progress -> completed.
func UpdateJobStatus(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var j models.Job
		if err := db.First(&j, "id = ? AND company_id = ?", chi.URLParam(r, "id"), p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if !jobTransitionAllowed(j.Status, req.Status) {
			respondError(w, http.StatusConflict, "invalid status transition")
			return
		}
		// Updates writes the map values back into j, so keep the old status
		// for the audit entry.
		prev := j.Status
		updates := map[string]any{"status": req.Status, "updated_at": time.Now()}
		if req.Status == models.JobCompleted {
			now := time.Now()
			updates["completed_at"] = &now
		}
		if err := db.Model(&j).Updates(updates).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		audit(db, p.CompanyID, p.Kind, p.ID, "JOB_STATUS", map[string]any{"job_id": j.ID, "from": prev, "to": req.Status})
		respondJSON(w, http.StatusOK, map[string]any{"status": req.Status})
	}
}

// ListCompletedJobs returns finished work, newest first.
func ListCompletedJobs(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var jobs []models.Job
		if err := db.Preload("Employees").
			Where("company_id = ? AND status = ?", auth.CompanyID(r.Context()), models.JobCompleted).
			Order("completed_at desc").Limit(200).Find(&jobs).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, jobs)
	}
}
