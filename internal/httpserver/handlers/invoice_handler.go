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

func ListInvoices(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := db.Where("company_id = ?", auth.CompanyID(r.Context()))
		if s := r.URL.Query().Get("status"); s != "" {
			q = q.Where("status = ?", s)
		}
		if cid := r.URL.Query().Get("customer_id"); cid != "" {
			q = q.Where("customer_id = ?", cid)
		}
		var invoices []models.Invoice
		if err := q.Order("created_at desc").Find(&invoices).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, invoices)
	}
}

type createInvoiceReq struct {
	CustomerID string     `json:"customer_id" validate:"required,uuid"`
	JobID      *string    `json:"job_id" validate:"omitempty,uuid"`
	LineItems  []lineItem `json:"line_items" validate:"required,min=1,dive"`
	DueAt      *time.Time `json:"due_at"`
}

// CreateInvoice issues the next invoice number in the tenant's sequence.
func CreateInvoice(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req createInvoiceReq
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
		if req.JobID != nil {
			var job models.Job
			if err := db.First(&job, "id = ? AND company_id = ?", *req.JobID, p.CompanyID).Error; err != nil {
				respondError(w, http.StatusNotFound, "job not found")
				return
			}
		}
		items, _ := json.Marshal(req.LineItems)
		var inv models.Invoice
		err := db.Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&models.Invoice{}).Where("company_id = ?", p.CompanyID).Count(&count).Error; err != nil {
				return err
			}
			inv = models.Invoice{
				CompanyID:  p.CompanyID,
				CustomerID: customer.ID,
				JobID:      req.JobID,
				Number:     fmt.Sprintf("INV-%05d", count+1),
				LineItems:  models.JSONB(items),
				Total:      sumLineItems(req.LineItems),
				Status:     models.InvoiceDraft,
				DueAt:      req.DueAt,
			}
			return tx.Create(&inv).Error
		})
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		audit(db, p.CompanyID, p.Kind, p.ID, "INVOICE_CREATE", map[string]any{"invoice_id": inv.ID, "number": inv.Number})
		respondJSON(w, http.StatusCreated, inv)
	}
}

func GetInvoice(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var inv models.Invoice
		if err := db.First(&inv, "id = ? AND company_id = ?", chi.URLParam(r, "id"), auth.CompanyID(r.Context())).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		respondJSON(w, http.StatusOK, inv)
	}
}

// UpdateInvoice edits a draft invoice. Sent invoices can only change DueAt.
func UpdateInvoice(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req struct {
			LineItems []lineItem `json:"line_items"`
			DueAt     *time.Time `json:"due_at"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var inv models.Invoice
		if err := db.First(&inv, "id = ? AND company_id = ?", chi.URLParam(r, "id"), p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		switch inv.Status {
		case models.InvoiceDraft:
		case models.InvoiceSent:
			if req.LineItems != nil {
				respondError(w, http.StatusConflict, "sent invoices cannot change line items")
				return
			}
		default:
			respondError(w, http.StatusConflict, "invoice is closed")
			return
		}
		if req.LineItems != nil {
			for _, it := range req.LineItems {
				if err := validate.Struct(it); err != nil {
					respondError(w, http.StatusBadRequest, err.Error())
					return
				}
			}
			items, _ := json.Marshal(req.LineItems)
			inv.LineItems = models.JSONB(items)
			inv.Total = sumLineItems(req.LineItems)
		}
		if req.DueAt != nil {
			inv.DueAt = req.DueAt
		}
		inv.UpdatedAt = time.Now()
		if err := db.Save(&inv).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, inv)
	}
}

// DeleteInvoice removes a draft. Anything already sent must be voided instead.
func DeleteInvoice(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var inv models.Invoice
		if err := db.First(&inv, "id = ? AND company_id = ?", chi.URLParam(r, "id"), p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if inv.Status != models.InvoiceDraft {
			respondError(w, http.StatusConflict, "only draft invoices can be deleted")
			return
		}
		if err := db.Delete(&inv).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		audit(db, p.CompanyID, p.Kind, p.ID, "INVOICE_DELETE", map[string]any{"invoice_id": inv.ID})
		respondJSON(w, http.StatusOK, map[string]any{"deleted": true})
	}
}

// SendInvoice moves draft -> sent and emails the customer. Email failure is
// logged; the status change stands.
func SendInvoice(db *gorm.DB, lg *zap.SugaredLogger, cfg *config.Config, mailer mail.Sender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var inv models.Invoice
		if err := db.First(&inv, "id = ? AND company_id = ?", chi.URLParam(r, "id"), p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if inv.Status != models.InvoiceDraft {
			respondError(w, http.StatusConflict, "only draft invoices can be sent")
			return
		}
		now := time.Now()
		if err := db.Model(&inv).Updates(map[string]any{
			"status": models.InvoiceSent, "sent_at": &now, "updated_at": now,
		}).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		var customer models.Customer
		var company models.Company
		_ = db.First(&customer, "id = ?", inv.CustomerID).Error
		_ = db.Select("name").First(&company, "id = ?", p.CompanyID).Error
		if customer.Email != "" {
			data := map[string]string{
				"Name": customer.Name, "Company": company.Name, "Number": inv.Number,
				"Total": fmt.Sprintf("%.2f", inv.Total),
				"Link":  cfg.Server.BaseURL + "/portal/invoices/" + inv.ID,
			}
			if inv.DueAt != nil {
				data["DueAt"] = inv.DueAt.Format("2006-01-02")
			}
			if err := mailer.Send(customer.Email, "Invoice "+inv.Number+" from "+company.Name, mail.TemplateInvoice, data); err != nil {
				lg.Errorw("invoice email failed", "invoice_id", inv.ID, "error", err)
			}
		}
		audit(db, p.CompanyID, p.Kind, p.ID, "INVOICE_SEND", map[string]any{"invoice_id": inv.ID})
		respondJSON(w, http.StatusOK, map[string]any{"status": models.InvoiceSent})
	}
}

// MarkInvoicePaid records a payment received outside Stripe.
func MarkInvoicePaid(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var inv models.Invoice
		if err := db.First(&inv, "id = ? AND company_id = ?", chi.URLParam(r, "id"), p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if inv.Status != models.InvoiceSent {
			respondError(w, http.StatusConflict, "only sent invoices can be marked paid")
			return
		}
		now := time.Now()
		if err := db.Model(&inv).Updates(map[string]any{
			"status": models.InvoicePaid, "paid_at": &now, "updated_at": now,
		}).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		audit(db, p.CompanyID, p.Kind, p.ID, "INVOICE_PAID", map[string]any{"invoice_id": inv.ID})
		respondJSON(w, http.StatusOK, map[string]any{"status": models.InvoicePaid})
	}
}

// VoidInvoice cancels a sent, unpaid invoice.
func VoidInvoice(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var inv models.Invoice
		if err := db.First(&inv, "id = ? AND company_id = ?", chi.URLParam(r, "id"), p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if inv.Status != models.InvoiceSent {
			respondError(w, http.StatusConflict, "only sent invoices can be voided")
			return
		}
		if err := db.Model(&inv).Updates(map[string]any{
			"status": models.InvoiceVoid, "updated_at": time.Now(),
		}).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		audit(db, p.CompanyID, p.Kind, p.ID, "INVOICE_VOID", map[string]any{"invoice_id": inv.ID})
		respondJSON(w, http.StatusOK, map[string]any{"status": models.InvoiceVoid})
	}
}
