package mail

import (
	"strings"
	"testing"
)

func TestRenderAllTemplates(t *testing.T) {
	data := map[string]string{
		"Name":    "Pat",
		"Company": "Shiny Co",
		"Title":   "Spring deep clean",
		"Total":   "$240.00",
		"Number":  "INV-00042",
		"Link":    "https://app.cleanops.example/t/abc123",
	}
	for _, tmpl := range []Template{
		TemplateVerifyEmail, TemplateResetPassword, TemplateQuote, TemplateInvoice, TemplatePortalLink,
	} {
		body, err := render(tmpl, data)
		if err != nil {
			t.Errorf("render(%s) error = %v", tmpl, err)
			continue
		}
		if !strings.Contains(body, "Pat") {
			t.Errorf("render(%s) body missing recipient name", tmpl)
		}
		if !strings.Contains(body, data["Link"]) {
			t.Errorf("render(%s) body missing link", tmpl)
		}
	}
}

func TestRenderEscapesHTML(t *testing.T) {
	body, err := render(TemplateQuote, map[string]string{
		"Name":    "<script>alert(1)</script>",
		"Company": "Shiny Co",
		"Title":   "Windows",
		"Total":   "$10.00",
		"Link":    "https://app.cleanops.example/t/abc",
	})
	if err != nil {
		t.Fatalf("render() error = %v", err)
	}
	if strings.Contains(body, "<script>") {
		t.Error("render() left script tag unescaped")
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	if _, err := render(Template("no_such_template"), nil); err == nil {
		t.Error("render() with unknown template succeeded, want error")
	}
}
