package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cleanops/internal/auth"
	"cleanops/internal/config"
	"cleanops/internal/models"
)

// PortalSignin exchanges a portal access token (from the invite email) for
// a bearer JWT scoped to the customer and their company.
func PortalSignin(db *gorm.DB, lg *zap.SugaredLogger, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Token == "" {
			respondError(w, http.StatusBadRequest, "token required")
			return
		}
		var c models.Customer
		if err := db.First(&c, "portal_token = ?", req.Token).Error; err != nil {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		tok, err := auth.SignPortalToken(cfg.Portal.JWTSecret, c.ID, c.CompanyID, cfg.Portal.TokenTTL)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "token error")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"token": tok, "name": c.Name})
	}
}

// PortalQuotes lists the customer's quotes, drafts excluded.
func PortalQuotes(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var quotes []models.Quote
		if err := db.Where("company_id = ? AND customer_id = ? AND status <> ?", p.CompanyID, p.ID, models.QuoteDraft).
			Order("created_at desc").Find(&quotes).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, quotes)
	}
}

// PortalDecideQuote lets the customer accept or reject a sent quote.
func PortalDecideQuote(db *gorm.DB, lg *zap.SugaredLogger, status, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var q models.Quote
		if err := db.First(&q, "id = ? AND company_id = ? AND customer_id = ?", chi.URLParam(r, "id"), p.CompanyID, p.ID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if code, msg := decideQuote(db, &q, status); msg != "" {
			respondError(w, code, msg)
			return
		}
		audit(db, p.CompanyID, auth.KindCustomer, p.ID, action, map[string]any{"quote_id": q.ID})
		respondJSON(w, http.StatusOK, map[string]any{"status": status})
	}
}

// PortalInvoices lists the customer's sent and paid invoices.
func PortalInvoices(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var invoices []models.Invoice
		if err := db.Where("company_id = ? AND customer_id = ? AND status IN ?", p.CompanyID, p.ID,
			[]string{models.InvoiceSent, models.InvoicePaid}).
			Order("created_at desc").Find(&invoices).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, invoices)
	}
}

// PortalJobs lists the customer's upcoming scheduled visits.
func PortalJobs(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var jobs []models.Job
		if err := db.Where("company_id = ? AND customer_id = ? AND status IN ? AND scheduled_at >= ?",
			p.CompanyID, p.ID, []string{models.JobScheduled, models.JobInProgress}, time.Now().Add(-24*time.Hour)).
			Order("scheduled_at asc").Find(&jobs).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, jobs)
	}
}
