package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stripe/stripe-go/v82"

	"cleanops/internal/models"
)

// stubBilling satisfies billing.Service without talking to Stripe.
type stubBilling struct {
	event    stripe.Event
	eventErr error
	url      string
	urlErr   error
}

func (s *stubBilling) EnsureCustomer(name, email string) (string, error) { return "cus_test", nil }
func (s *stubBilling) CheckoutURL(customerID, successURL, cancelURL string) (string, error) {
	return s.url, s.urlErr
}
func (s *stubBilling) PortalURL(customerID, returnURL string) (string, error) {
	return s.url, s.urlErr
}
func (s *stubBilling) VerifyEvent(payload []byte, sig string) (stripe.Event, error) {
	return s.event, s.eventErr
}

func subscriptionEvent(t *testing.T, eventType, status string) stripe.Event {
	t.Helper()
	raw, _ := json.Marshal(map[string]any{
		"id":       "sub_123",
		"status":   status,
		"customer": "cus_123",
	})
	return stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestStripeWebhookInvalidSignature(t *testing.T) {
	db, _ := newTestDB(t)
	b := &stubBilling{eventErr: errors.New("bad signature")}

	req := httptest.NewRequest(http.MethodPost, "/api/billing/webhook", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	StripeWebhook(db, testLogger, b).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("StripeWebhook() status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestStripeWebhookSubscriptionUpdate(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		subStatus string
	}{
		{"activation", "customer.subscription.updated", "active"},
		{"past due", "customer.subscription.updated", "past_due"},
		{"cancellation", "customer.subscription.deleted", "canceled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newTestDB(t)
			mock.ExpectExec(`UPDATE "companies" SET`).WillReturnResult(sqlmock.NewResult(0, 1))

			b := &stubBilling{event: subscriptionEvent(t, tt.eventType, tt.subStatus)}
			req := httptest.NewRequest(http.MethodPost, "/api/billing/webhook", strings.NewReader("{}"))
			w := httptest.NewRecorder()
			StripeWebhook(db, testLogger, b).ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("StripeWebhook() status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("expectations: %v", err)
			}
		})
	}
}

func TestStripeWebhookSubscriptionWithoutCustomer(t *testing.T) {
	db, mock := newTestDB(t)
	raw, _ := json.Marshal(map[string]any{"id": "sub_123", "status": "active"})
	b := &stubBilling{event: stripe.Event{
		Type: "customer.subscription.updated",
		Data: &stripe.EventData{Raw: raw},
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/billing/webhook", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	StripeWebhook(db, testLogger, b).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("StripeWebhook() status = %d, want %d", w.Code, http.StatusOK)
	}
	// No UPDATE: the event is acknowledged and dropped.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestStripeWebhookIgnoresUnknownEvents(t *testing.T) {
	db, mock := newTestDB(t)
	b := &stubBilling{event: stripe.Event{Type: "invoice.finalized", Data: &stripe.EventData{Raw: []byte("{}")}}}

	req := httptest.NewRequest(http.MethodPost, "/api/billing/webhook", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	StripeWebhook(db, testLogger, b).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("StripeWebhook() status = %d, want %d", w.Code, http.StatusOK)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestSubscriptionStatusMapping(t *testing.T) {
	tests := []struct {
		in   stripe.SubscriptionStatus
		want string
	}{
		{stripe.SubscriptionStatusActive, models.SubActive},
		{stripe.SubscriptionStatusTrialing, models.SubTrialing},
		{stripe.SubscriptionStatusPastDue, models.SubPastDue},
		{stripe.SubscriptionStatusUnpaid, models.SubPastDue},
		{stripe.SubscriptionStatusCanceled, models.SubCanceled},
		{stripe.SubscriptionStatusIncompleteExpired, models.SubCanceled},
	}
	for _, tt := range tests {
		if got := subscriptionStatus(tt.in); got != tt.want {
			t.Errorf("subscriptionStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCreateCheckoutReusesStripeCustomer(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(`SELECT \* FROM "companies"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "stripe_customer_id"}).
			AddRow(testCompanyID, "Shiny Co", "billing@shiny.example", "cus_existing"))

	b := &stubBilling{url: "https://checkout.stripe.test/s/1"}
	req := asPrincipal(httptest.NewRequest(http.MethodPost, "/api/billing/checkout", nil), officeUser(), "")
	w := httptest.NewRecorder()
	CreateCheckout(db, testLogger, testConfig(), b).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("CreateCheckout() status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var resp map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["url"] != b.url {
		t.Errorf("checkout url = %q, want %q", resp["url"], b.url)
	}
	// No UPDATE expected: the existing customer id is reused.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
