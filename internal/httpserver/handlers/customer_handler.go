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
	"cleanops/internal/config"
	"cleanops/internal/mail"
	"cleanops/internal/models"
)

func ListCustomers(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cs []models.Customer
		q := db.Where("company_id = ?", auth.CompanyID(r.Context()))
		if s := strings.TrimSpace(r.URL.Query().Get("search")); s != "" {
			like := "%" + strings.ToLower(s) + "%"
			q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
		}
		if err := q.Order("name asc").Find(&cs).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, cs)
	}
}

type createCustomerReq struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"max=32"`
	Address string `json:"address" validate:"max=255"`
	Notes   string `json:"notes"`
}

// CreateCustomer adds a customer; the service address is geocoded
// best-effort so scheduling views can map it.
func CreateCustomer(db *gorm.DB, lg *zap.SugaredLogger, geo Geocoder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req createCustomerReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if err := validate.Struct(req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		c := models.Customer{
			CompanyID: p.CompanyID,
			Name:      req.Name,
			Email:     strings.ToLower(strings.TrimSpace(req.Email)),
			Phone:     req.Phone,
			Address:   req.Address,
			Notes:     req.Notes,
		}
		if c.Address != "" {
			if res, err := geo.Resolve(r.Context(), c.Address); err != nil {
				lg.Warnw("geocode failed", "address", c.Address, "error", err)
			} else if res != nil {
				c.Lat, c.Lng = &res.Lat, &res.Lng
			}
		}
		if err := db.Create(&c).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		audit(db, p.CompanyID, p.Kind, p.ID, "CUSTOMER_CREATE", map[string]any{"customer_id": c.ID})
		respondJSON(w, http.StatusCreated, c)
	}
}

func GetCustomer(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c models.Customer
		if err := db.First(&c, "id = ? AND company_id = ?", chi.URLParam(r, "id"), auth.CompanyID(r.Context())).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		respondJSON(w, http.StatusOK, c)
	}
}

func UpdateCustomer(db *gorm.DB, lg *zap.SugaredLogger, geo Geocoder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var req struct {
			Name    *string `json:"name"`
			Email   *string `json:"email"`
			Phone   *string `json:"phone"`
			Address *string `json:"address"`
			Notes   *string `json:"notes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var c models.Customer
		if err := db.First(&c, "id = ? AND company_id = ?", chi.URLParam(r, "id"), p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondError(w, http.StatusBadRequest, "name must not be empty")
				return
			}
			c.Name = name
		}
		if req.Email != nil {
			c.Email = strings.ToLower(strings.TrimSpace(*req.Email))
		}
		if req.Phone != nil {
			c.Phone = *req.Phone
		}
		if req.Notes != nil {
			c.Notes = *req.Notes
		}
		if req.Address != nil && *req.Address != c.Address {
			c.Address = *req.Address
			c.Lat, c.Lng = nil, nil
			if c.Address != "" {
				if res, err := geo.Resolve(r.Context(), c.Address); err != nil {
					lg.Warnw("geocode failed", "address", c.Address, "error", err)
				} else if res != nil {
					c.Lat, c.Lng = &res.Lat, &res.Lng
				}
			}
		}
		c.UpdatedAt = time.Now()
		if err := db.Save(&c).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, c)
	}
}

// DeleteCustomer removes a customer and its dependent rows. Customers with
// jobs or invoices on file are rejected to keep history intact.
func DeleteCustomer(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var c models.Customer
		if err := db.First(&c, "id = ? AND company_id = ?", chi.URLParam(r, "id"), p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		var count int64
		db.Model(&models.Job{}).Where("customer_id = ?", c.ID).Count(&count)
		if count > 0 {
			respondError(w, http.StatusConflict, "customer has jobs on file")
			return
		}
		db.Model(&models.Invoice{}).Where("customer_id = ?", c.ID).Count(&count)
		if count > 0 {
			respondError(w, http.StatusConflict, "customer has invoices on file")
			return
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&models.Quote{}, "customer_id = ?", c.ID).Error; err != nil {
				return err
			}
			return tx.Delete(&c).Error
		})
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		audit(db, p.CompanyID, p.Kind, p.ID, "CUSTOMER_DELETE", map[string]any{"customer_id": c.ID})
		respondJSON(w, http.StatusOK, map[string]any{"deleted": true})
	}
}

// InviteCustomerPortal issues a portal access token and emails the customer
// a signin link.
func InviteCustomerPortal(db *gorm.DB, lg *zap.SugaredLogger, cfg *config.Config, mailer mail.Sender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var c models.Customer
		if err := db.First(&c, "id = ? AND company_id = ?", chi.URLParam(r, "id"), p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if c.Email == "" {
			respondError(w, http.StatusBadRequest, "customer has no email address")
			return
		}
		token := auth.NewToken()
		if err := db.Model(&c).Updates(map[string]any{"portal_token": token, "updated_at": time.Now()}).Error; err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		var company models.Company
		_ = db.Select("name").First(&company, "id = ?", p.CompanyID).Error
		link := cfg.Server.BaseURL + "/portal?token=" + token
		if err := mailer.Send(c.Email, "Your customer portal", mail.TemplatePortalLink, map[string]string{
			"Name": c.Name, "Company": company.Name, "Link": link,
		}); err != nil {
			lg.Errorw("portal invite email failed", "customer_id", c.ID, "error", err)
		}
		respondJSON(w, http.StatusOK, map[string]any{"invited": true})
	}
}
