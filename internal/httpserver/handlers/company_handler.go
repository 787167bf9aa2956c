package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cleanops/internal/auth"
	"cleanops/internal/geocode"
	"cleanops/internal/models"
)

// Geocoder is the slice of the geocoding client the handlers need.
type Geocoder interface {
	Search(ctx context.Context, query string, limit int) ([]geocode.Result, error)
	Resolve(ctx context.Context, address string) (*geocode.Result, error)
}

func GetCompanyProfile(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c models.Company
		if err := db.First(&c, "id = ?", auth.CompanyID(r.Context())).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		respondJSON(w, http.StatusOK, c)
	}
}

// UpdateCompanyProfile patches the tenant profile. An address change is
// re-geocoded best-effort; geocoding failure does not block the update.
func UpdateCompanyProfile(db *gorm.DB, lg *zap.SugaredLogger, geo Geocoder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name     *string `json:"name"`
			Email    *string `json:"email"`
			Phone    *string `json:"phone"`
			Address  *string `json:"address"`
			Timezone *string `json:"timezone"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var c models.Company
		if err := db.First(&c, "id = ?", auth.CompanyID(r.Context())).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondError(w, http.StatusBadRequest, "name must not be empty")
				return
			}
			var count int64
			db.Model(&models.Company{}).Where("LOWER(name) = ? AND id <> ?", strings.ToLower(name), c.ID).Count(&count)
			if count > 0 {
				respondError(w, http.StatusConflict, "company name already registered")
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
		if req.Timezone != nil {
			if _, err := time.LoadLocation(*req.Timezone); err != nil {
				respondError(w, http.StatusBadRequest, "unknown timezone")
				return
			}
			c.Timezone = *req.Timezone
		}
		if req.Address != nil && *req.Address != c.Address {
			c.Address = *req.Address
			c.Lat, c.Lng = nil, nil
			if res, err := geo.Resolve(r.Context(), c.Address); err != nil {
				lg.Warnw("geocode failed", "address", c.Address, "error", err)
			} else if res != nil {
				c.Lat, c.Lng = &res.Lat, &res.Lng
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

// GeocodeSearch proxies address autocomplete for the browser client.
func GeocodeSearch(lg *zap.SugaredLogger, geo Geocoder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if len(q) < 3 {
			respondError(w, http.StatusBadRequest, "q must be at least 3 characters")
			return
		}
		results, err := geo.Search(r.Context(), q, 5)
		if err != nil {
			lg.Warnw("geocode search failed", "q", q, "error", err)
			respondError(w, http.StatusBadGateway, "geocoding unavailable")
			return
		}
		respondJSON(w, http.StatusOK, results)
	}
}
