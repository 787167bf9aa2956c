// Package billing wraps the Stripe API for subscription checkout, the
// customer billing portal, and signed webhook payload verification.
package billing

import (
	"fmt"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/webhook"

	"cleanops/internal/config"
)

// Service is the handler-facing surface; tests substitute a stub.
type Service interface {
	EnsureCustomer(companyName, email string) (string, error)
	CheckoutURL(customerID, successURL, cancelURL string) (string, error)
	PortalURL(customerID, returnURL string) (string, error)
	VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

type Client struct {
	priceID       string
	webhookSecret string
}

func NewClient(cfg *config.Config) *Client {
	stripe.Key = cfg.Billing.StripeKey
	return &Client{
		priceID:       cfg.Billing.PriceID,
		webhookSecret: cfg.Billing.WebhookSecret,
	}
}

// EnsureCustomer creates a Stripe customer for a company and returns its id.
func (c *Client) EnsureCustomer(companyName, email string) (string, error) {
	cust, err := customer.New(&stripe.CustomerParams{
		Name:  stripe.String(companyName),
		Email: stripe.String(email),
	})
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return cust.ID, nil
}

// CheckoutURL starts a subscription Checkout session.
func (c *Client) CheckoutURL(customerID, successURL, cancelURL string) (string, error) {
	sess, err := checkoutsession.New(&stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(c.priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	})
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// PortalURL opens a billing-portal session for an existing customer.
func (c *Client) PortalURL(customerID, returnURL string) (string, error) {
	sess, err := portalsession.New(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return sess.URL, nil
}

// VerifyEvent checks the webhook signature and returns the decoded event.
func (c *Client) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, c.webhookSecret)
}
