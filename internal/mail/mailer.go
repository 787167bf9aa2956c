// Package mail sends transactional email through Resend. Bodies are rendered
// from embedded html/template files; callers treat failures as best-effort
// except during signup.
package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"cleanops/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names map to files under templates/.
type Template string

const (
	TemplateVerifyEmail   Template = "verify_email"
	TemplateResetPassword Template = "reset_password"
	TemplateQuote         Template = "quote"
	TemplateInvoice       Template = "invoice"
	TemplatePortalLink    Template = "portal_link"
)

// Sender delivers a rendered template to one recipient. Handlers depend on
// this interface so tests can swap in a recorder.
type Sender interface {
	Send(to, subject string, tmpl Template, data map[string]string) error
}

type Client struct {
	client *resend.Client
	from   string
	lg     *zap.SugaredLogger
}

func NewClient(cfg *config.Config, lg *zap.SugaredLogger) *Client {
	return &Client{
		client: resend.NewClient(cfg.Mail.APIKey),
		from:   fmt.Sprintf("%s <%s>", cfg.Mail.FromName, cfg.Mail.From),
		lg:     lg,
	}
}

func (c *Client) Send(to, subject string, tmpl Template, data map[string]string) error {
	body, err := render(tmpl, data)
	if err != nil {
		return err
	}
	_, err = c.client.Emails.Send(&resend.SendEmailRequest{
		From:    c.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func render(tmpl Template, data map[string]string) (string, error) {
	t, err := template.ParseFS(templateFS, fmt.Sprintf("templates/%s.html", tmpl))
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", tmpl, err)
	}
	var body bytes.Buffer
	if err := t.Execute(&body, data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", tmpl, err)
	}
	return body.String(), nil
}
