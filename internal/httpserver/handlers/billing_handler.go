package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cleanops/internal/auth"
	"cleanops/internal/billing"
	"cleanops/internal/config"
	"cleanops/internal/models"
)

// CreateCheckout starts a subscription Checkout session for the tenant,
// creating the Stripe customer on first use.
func CreateCheckout(db *gorm.DB, lg *zap.SugaredLogger, cfg *config.Config, b billing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var c models.Company
		if err := db.First(&c, "id = ?", p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if c.StripeCustomerID == "" {
			custID, err := b.EnsureCustomer(c.Name, c.Email)
			if err != nil {
				lg.Errorw("stripe customer create failed", "company_id", c.ID, "error", err)
				respondError(w, http.StatusBadGateway, "billing unavailable")
				return
			}
			c.StripeCustomerID = custID
			if err := db.Model(&c).Updates(map[string]any{
				"stripe_customer_id": custID, "updated_at": time.Now(),
			}).Error; err != nil {
				respondError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		url, err := b.CheckoutURL(c.StripeCustomerID,
			cfg.Server.BaseURL+"/settings/billing?checkout=success",
			cfg.Server.BaseURL+"/settings/billing?checkout=canceled")
		if err != nil {
			lg.Errorw("checkout session failed", "company_id", c.ID, "error", err)
			respondError(w, http.StatusBadGateway, "billing unavailable")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"url": url})
	}
}

// CreateBillingPortal opens the Stripe billing portal for the tenant.
func CreateBillingPortal(db *gorm.DB, lg *zap.SugaredLogger, cfg *config.Config, b billing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		var c models.Company
		if err := db.First(&c, "id = ?", p.CompanyID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if c.StripeCustomerID == "" {
			respondError(w, http.StatusConflict, "no billing account yet")
			return
		}
		url, err := b.PortalURL(c.StripeCustomerID, cfg.Server.BaseURL+"/settings/billing")
		if err != nil {
			lg.Errorw("portal session failed", "company_id", c.ID, "error", err)
			respondError(w, http.StatusBadGateway, "billing unavailable")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"url": url})
	}
}

// subscriptionStatus maps Stripe's vocabulary onto ours.
func subscriptionStatus(s stripe.SubscriptionStatus) string {
	switch s {
	case stripe.SubscriptionStatusActive:
		return models.SubActive
	case stripe.SubscriptionStatusTrialing:
		return models.SubTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return models.SubPastDue
	default:
		return models.SubCanceled
	}
}

// StripeWebhook consumes signed events and applies idempotent row updates
// keyed by the Stripe customer id. Unknown event types are acknowledged.
func StripeWebhook(db *gorm.DB, lg *zap.SugaredLogger, b billing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			respondError(w, http.StatusBadRequest, "read error")
			return
		}
		event, err := b.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid signature")
			return
		}
		switch event.Type {
		case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
			var sub stripe.Subscription
			if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
				respondError(w, http.StatusBadRequest, "bad payload")
				return
			}
			if sub.Customer == nil {
				lg.Warnw("subscription event without customer", "type", event.Type, "subscription", sub.ID)
				break
			}
			status := subscriptionStatus(sub.Status)
			if event.Type == "customer.subscription.deleted" {
				status = models.SubCanceled
			}
			res := db.Model(&models.Company{}).
				Where("stripe_customer_id = ?", sub.Customer.ID).
				Updates(map[string]any{
					"stripe_subscription_id": sub.ID,
					"subscription_status":    status,
					"updated_at":             time.Now(),
				})
			if res.Error != nil {
				lg.Errorw("subscription update failed", "customer", sub.Customer.ID, "error", res.Error)
				respondError(w, http.StatusInternalServerError, "update failed")
				return
			}
			if res.RowsAffected == 0 {
				lg.Warnw("webhook for unknown customer", "customer", sub.Customer.ID, "type", event.Type)
			}
		case "checkout.session.completed":
			var sess stripe.CheckoutSession
			if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
				respondError(w, http.StatusBadRequest, "bad payload")
				return
			}
			if sess.Customer != nil && sess.Subscription != nil {
				_ = db.Model(&models.Company{}).
					Where("stripe_customer_id = ?", sess.Customer.ID).
					Updates(map[string]any{
						"stripe_subscription_id": sess.Subscription.ID,
						"subscription_status":    models.SubActive,
						"updated_at":             time.Now(),
					}).Error
			}
		default:
			lg.Debugw("unhandled stripe event", "type", event.Type)
		}
		respondJSON(w, http.StatusOK, map[string]any{"received": true})
	}
}
