package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"cleanops/internal/models"
)

const testInvoiceID = "99999999-9999-9999-9999-999999999999"

func invoiceRows(status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "company_id", "customer_id", "number", "status", "total"}).
		AddRow(testInvoiceID, testCompanyID, testCustomerID, "INV-00007", status, 120.0)
}

func TestCreateInvoiceNumbersSequentially(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(`SELECT \* FROM "customers"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "name", "email"}).
			AddRow(testCustomerID, testCompanyID, "Pat", "pat@example.com"))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "invoices"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(`INSERT INTO "invoices"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testInvoiceID))
	mock.ExpectCommit()
	mock.ExpectQuery(`INSERT INTO "audit_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	body, _ := json.Marshal(map[string]any{
		"customer_id": testCustomerID,
		"line_items":  []map[string]any{{"description": "Deep clean", "quantity": 2, "unit_price": 60.0}},
	})
	req := asPrincipal(httptest.NewRequest(http.MethodPost, "/api/invoices", bytes.NewReader(body)), officeUser(), "")
	w := httptest.NewRecorder()
	CreateInvoice(db, testLogger).ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("CreateInvoice() status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var inv models.Invoice
	if err := json.Unmarshal(w.Body.Bytes(), &inv); err != nil {
		t.Fatalf("decode invoice: %v", err)
	}
	if inv.Number != "INV-00005" {
		t.Errorf("invoice number = %q, want %q", inv.Number, "INV-00005")
	}
	if inv.Total != 120.0 {
		t.Errorf("invoice total = %v, want 120", inv.Total)
	}
	if inv.Status != models.InvoiceDraft {
		t.Errorf("invoice status = %q, want %q", inv.Status, models.InvoiceDraft)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestCreateInvoiceRequiresLineItems(t *testing.T) {
	db, _ := newTestDB(t)
	body, _ := json.Marshal(map[string]any{"customer_id": testCustomerID, "line_items": []map[string]any{}})
	req := asPrincipal(httptest.NewRequest(http.MethodPost, "/api/invoices", bytes.NewReader(body)), officeUser(), "")
	w := httptest.NewRecorder()
	CreateInvoice(db, testLogger).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("CreateInvoice() status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestMarkInvoicePaidStatusGuards(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		wantStatus int
	}{
		{"sent invoice paid", models.InvoiceSent, http.StatusOK},
		{"draft not payable", models.InvoiceDraft, http.StatusConflict},
		{"already paid", models.InvoicePaid, http.StatusConflict},
		{"voided", models.InvoiceVoid, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newTestDB(t)
			mock.ExpectQuery(`SELECT \* FROM "invoices"`).WillReturnRows(invoiceRows(tt.status))
			if tt.wantStatus == http.StatusOK {
				mock.ExpectExec(`UPDATE "invoices" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery(`INSERT INTO "audit_logs"`).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
			}

			req := asPrincipal(httptest.NewRequest(http.MethodPost, "/api/invoices/"+testInvoiceID+"/pay", nil), officeUser(), testInvoiceID)
			w := httptest.NewRecorder()
			MarkInvoicePaid(db, testLogger).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("MarkInvoicePaid() status = %d, want %d", w.Code, tt.wantStatus)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("expectations: %v", err)
			}
		})
	}
}

func TestVoidInvoiceOnlySent(t *testing.T) {
	for _, status := range []string{models.InvoiceDraft, models.InvoicePaid, models.InvoiceVoid} {
		t.Run(status, func(t *testing.T) {
			db, mock := newTestDB(t)
			mock.ExpectQuery(`SELECT \* FROM "invoices"`).WillReturnRows(invoiceRows(status))

			req := asPrincipal(httptest.NewRequest(http.MethodPost, "/api/invoices/"+testInvoiceID+"/void", nil), officeUser(), testInvoiceID)
			w := httptest.NewRecorder()
			VoidInvoice(db, testLogger).ServeHTTP(w, req)

			if w.Code != http.StatusConflict {
				t.Errorf("VoidInvoice() status = %d, want %d", w.Code, http.StatusConflict)
			}
		})
	}
}

func TestDeleteInvoiceOnlyDraft(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(`SELECT \* FROM "invoices"`).WillReturnRows(invoiceRows(models.InvoiceSent))

	req := asPrincipal(httptest.NewRequest(http.MethodDelete, "/api/invoices/"+testInvoiceID, nil), officeUser(), testInvoiceID)
	w := httptest.NewRecorder()
	DeleteInvoice(db, testLogger).ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("DeleteInvoice() status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestSendInvoiceEmailsCustomer(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(`SELECT \* FROM "invoices"`).WillReturnRows(invoiceRows(models.InvoiceDraft))
	mock.ExpectExec(`UPDATE "invoices" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "customers"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "name", "email"}).
			AddRow(testCustomerID, testCompanyID, "Pat", "pat@example.com"))
	mock.ExpectQuery(`SELECT "name" FROM "companies"`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Shiny Co"))
	mock.ExpectQuery(`INSERT INTO "audit_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	sender := &fakeSender{}
	req := asPrincipal(httptest.NewRequest(http.MethodPost, "/api/invoices/"+testInvoiceID+"/send", nil), officeUser(), testInvoiceID)
	w := httptest.NewRecorder()
	SendInvoice(db, testLogger, testConfig(), sender).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("SendInvoice() status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if len(sender.sent) != 1 {
		t.Fatalf("emails sent = %d, want 1", len(sender.sent))
	}
	if sender.sent[0].To != "pat@example.com" {
		t.Errorf("email to = %q, want customer address", sender.sent[0].To)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
