package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cleanops/internal/auth"
	"cleanops/internal/config"
	"cleanops/internal/mail"
	"cleanops/internal/models"
)

type lineItem struct {
	Description string  `json:"description" validate:"required,max=200"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
}

func sumLineItems(items []lineItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Quantity * it.UnitPrice
	}
	return total
}

func ListQuotes(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := db.Where("company_id = ?", auth.CompanyID(r.Context()))
		if s := r.URL.Query().Get("status"); s != "" {
			q = q.Where("status = ?", s)
		}
		if cid := r.URL.Query().Get("customer_id"); cid != "" {
			q = q.Where("customer_id = ?", cid)
		}
		var quotes []models.Quote
		if err := q.Order("created_at desc").Find(&quotes).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, quotes)
	}
}

type createQuoteReq struct {
	CustomerID string     `json:"customer_id" validate:"required,uuid"`
	Title      string     `json:"title" validate:"required,max=200"`
	LineItems  []lineItem `json:"line_items" validate:"required,min=1,dive"`
}

func CreateQuote(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req createQuoteReq
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
		items, _ := json.Marshal(req.LineItems)
		q := models.Quote{
			CompanyID:  p.CompanyID,
			CustomerID: customer.ID,
			Title:      req.Title,
			LineItems:  models.JSONB(items),
			Total:      sumLineItems(req.LineItems),
			Status:     models.QuoteDraft,
		}
		if err := db.Create(&q).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		audit(db, p.CompanyID, p.Kind, p.ID, "QUOTE_CREATE", map[string]any{"quote_id": q.ID})
		respondJSON(w, http.StatusCreated, q)
	}
}

func GetQuote(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q models.Quote
		if err := db.First(&q, "id = ? AND company_id = ?", chi.URLParam(r, "id"), auth.CompanyID(r.Context())).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		respondJSON(w, http.StatusOK, q)
	}
}

// UpdateQuote edits a draft. Sent and decided quotes are immutable.
func UpdateQuote(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req struct {
			Title     *string    `json:"title"`
			LineItems []lineItem `json:"line_items"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var q models.Quote
		if err := db.First(&q, "id = ? AND company_id = ?", chi.URLParam(r, "id"), p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if q.Status != models.QuoteDraft {
			respondError(w, http.StatusConflict, "only draft quotes can be edited")
			return
		}
		if req.Title != nil {
			q.Title = *req.Title
		}
		if req.LineItems != nil {
			for _, it := range req.LineItems {
				if err := validate.Struct(it); err != nil {
					respondError(w, http.StatusBadRequest, err.Error())
					return
				}
			}
			items, _ := json.Marshal(req.LineItems)
			q.LineItems = models.JSONB(items)
			q.Total = sumLineItems(req.LineItems)
		}
		q.UpdatedAt = time.Now()
		if err := db.Save(&q).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, q)
	}
}

func DeleteQuote(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var q models.Quote
		if err := db.First(&q, "id = ? AND company_id = ?", chi.URLParam(r, "id"), p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if q.Status == models.QuoteConverted {
			respondError(w, http.StatusConflict, "converted quotes cannot be deleted")
			return
		}
		if err := db.Delete(&q).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		audit(db, p.CompanyID, p.Kind, p.ID, "QUOTE_DELETE", map[string]any{"quote_id": q.ID})
		respondJSON(w, http.StatusOK, map[string]any{"deleted": true})
	}
}

// SendQuote moves draft -> sent and emails the customer with a portal link.
// Email failure is logged; the status change stands.
func SendQuote(db *gorm.DB, lg *zap.SugaredLogger, cfg *config.Config, mailer mail.Sender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var q models.Quote
		if err := db.First(&q, "id = ? AND company_id = ?", chi.URLParam(r, "id"), p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if q.Status != models.QuoteDraft {
			respondError(w, http.StatusConflict, "only draft quotes can be sent")
			return
		}
		now := time.Now()
		if err := db.Model(&q).Updates(map[string]any{
			"status": models.QuoteSent, "sent_at": &now, "updated_at": now,
		}).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		var customer models.Customer
		var company models.Company
		_ = db.First(&customer, "id = ?", q.CustomerID).Error
		_ = db.Select("name").First(&company, "id = ?", p.CompanyID).Error
		if customer.Email != "" {
			link := cfg.Server.BaseURL + "/portal/quotes/" + q.ID
			if err := mailer.Send(customer.Email, "Quote from "+company.Name, mail.TemplateQuote, map[string]string{
				"Name": customer.Name, "Company": company.Name, "Title": q.Title,
				"Total": fmt.Sprintf("%.2f", q.Total), "Link": link,
			}); err != nil {
				lg.Errorw("quote email failed", "quote_id", q.ID, "error", err)
			}
		}
		audit(db, p.CompanyID, p.Kind, p.ID, "QUOTE_SEND", map[string]any{"quote_id": q.ID})
		respondJSON(w, http.StatusOK, map[string]any{"status": models.QuoteSent})
	}
}

// decideQuote applies accept/reject; only sent quotes can be decided.
func decideQuote(db *gorm.DB, q *models.Quote, status string) (int, string) {
	switch q.Status {
	case models.QuoteSent:
	case models.QuoteAccepted, models.QuoteRejected, models.QuoteConverted:
		return http.StatusConflict, "quote already decided"
	default:
		return http.StatusConflict, "quote has not been sent"
	}
	now := time.Now()
	if err := db.Model(q).Updates(map[string]any{
		"status": status, "decided_at": &now, "updated_at": now,
	}).Error; err != nil {
		return http.StatusInternalServerError, err.Error()
	}
	q.Status = status
	return http.StatusOK, ""
}

func AcceptQuote(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return quoteDecisionHandler(db, lg, models.QuoteAccepted, "QUOTE_ACCEPT")
}

func RejectQuote(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return quoteDecisionHandler(db, lg, models.QuoteRejected, "QUOTE_REJECT")
}

func quoteDecisionHandler(db *gorm.DB, lg *zap.SugaredLogger, status, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var q models.Quote
		if err := db.First(&q, "id = ? AND company_id = ?", chi.URLParam(r, "id"), p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if code, msg := decideQuote(db, &q, status); msg != "" {
			respondError(w, code, msg)
			return
		}
		audit(db, p.CompanyID, p.Kind, p.ID, action, map[string]any{"quote_id": q.ID})
		respondJSON(w, http.StatusOK, map[string]any{"status": status})
	}
}

type convertQuoteReq struct {
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	DurationMin int       `json:"duration_min" validate:"gte=0,lte=1440"`
}

// ConvertQuote turns an accepted quote into a scheduled job.
func ConvertQuote(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req convertQuoteReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := validate.Struct(req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var q models.Quote
		if err := db.First(&q, "id = ? AND company_id = ?", chi.URLParam(r, "id"), p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if q.Status != models.QuoteAccepted {
			respondError(w, http.StatusConflict, "only accepted quotes can be converted")
			return
		}
		if req.DurationMin == 0 {
			req.DurationMin = 60
		}
		var job models.Job
		err := db.Transaction(func(tx *gorm.DB) error {
			job = models.Job{
				CompanyID:   p.CompanyID,
				CustomerID:  q.CustomerID,
				Title:       q.Title,
				Notes:       "Converted from quote " + q.ID,
				Status:      models.JobScheduled,
				ScheduledAt: req.ScheduledAt,
				DurationMin: req.DurationMin,
			}
			if err := tx.Create(&job).Error; err != nil {
				return err
			}
			now := time.Now()
			return tx.Model(&q).Updates(map[string]any{
				"status": models.QuoteConverted, "converted_job_id": job.ID, "updated_at": now,
			}).Error
		})
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		audit(db, p.CompanyID, p.Kind, p.ID, "QUOTE_CONVERT", map[string]any{"quote_id": q.ID, "job_id": job.ID})
		respondJSON(w, http.StatusCreated, job)
	}
}
