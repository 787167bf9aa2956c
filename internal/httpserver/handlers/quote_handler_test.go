package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"cleanops/internal/auth"
	"cleanops/internal/models"
)

const (
	testCompanyID  = "11111111-1111-1111-1111-111111111111"
	testUserID     = "22222222-2222-2222-2222-222222222222"
	testQuoteID    = "33333333-3333-3333-3333-333333333333"
	testCustomerID = "44444444-4444-4444-4444-444444444444"
)

func officeUser() auth.Principal {
	return auth.Principal{Kind: auth.KindUser, ID: testUserID, CompanyID: testCompanyID, IsAdmin: true}
}

func quoteRows(status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "company_id", "customer_id", "title", "status", "total"}).
		AddRow(testQuoteID, testCompanyID, testCustomerID, "Deep clean", status, 250.0)
}

func TestAcceptQuoteStatusGuards(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		wantStatus int
	}{
		{"sent quote accepted", models.QuoteSent, http.StatusOK},
		{"already accepted", models.QuoteAccepted, http.StatusConflict},
		{"already rejected", models.QuoteRejected, http.StatusConflict},
		{"already converted", models.QuoteConverted, http.StatusConflict},
		{"still draft", models.QuoteDraft, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newTestDB(t)
			mock.ExpectQuery(`SELECT \* FROM "quotes"`).WillReturnRows(quoteRows(tt.status))
			if tt.wantStatus == http.StatusOK {
				mock.ExpectExec(`UPDATE "quotes" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery(`INSERT INTO "audit_logs"`).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
			}

			req := asPrincipal(httptest.NewRequest(http.MethodPost, "/api/quotes/"+testQuoteID+"/accept", nil), officeUser(), testQuoteID)
			w := httptest.NewRecorder()
			AcceptQuote(db, testLogger).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("AcceptQuote() status = %d, want %d", w.Code, tt.wantStatus)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("expectations: %v", err)
			}
		})
	}
}

func TestConvertQuoteRequiresAccepted(t *testing.T) {
	for _, status := range []string{models.QuoteDraft, models.QuoteSent, models.QuoteRejected, models.QuoteConverted} {
		t.Run(status, func(t *testing.T) {
			db, mock := newTestDB(t)
			mock.ExpectQuery(`SELECT \* FROM "quotes"`).WillReturnRows(quoteRows(status))

			body, _ := json.Marshal(map[string]any{"scheduled_at": time.Now().Add(48 * time.Hour)})
			req := asPrincipal(httptest.NewRequest(http.MethodPost, "/api/quotes/"+testQuoteID+"/convert", bytes.NewReader(body)), officeUser(), testQuoteID)
			w := httptest.NewRecorder()
			ConvertQuote(db, testLogger).ServeHTTP(w, req)

			if w.Code != http.StatusConflict {
				t.Errorf("ConvertQuote() status = %d, want %d", w.Code, http.StatusConflict)
			}
		})
	}
}

func TestConvertQuoteCreatesJob(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(`SELECT \* FROM "quotes"`).WillReturnRows(quoteRows(models.QuoteAccepted))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "jobs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("55555555-5555-5555-5555-555555555555"))
	mock.ExpectExec(`UPDATE "quotes" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`INSERT INTO "audit_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	body, _ := json.Marshal(map[string]any{"scheduled_at": time.Now().Add(48 * time.Hour), "duration_min": 90})
	req := asPrincipal(httptest.NewRequest(http.MethodPost, "/api/quotes/"+testQuoteID+"/convert", bytes.NewReader(body)), officeUser(), testQuoteID)
	w := httptest.NewRecorder()
	ConvertQuote(db, testLogger).ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("ConvertQuote() status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var job models.Job
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.Status != models.JobScheduled {
		t.Errorf("job status = %q, want %q", job.Status, models.JobScheduled)
	}
	if job.CustomerID != testCustomerID {
		t.Errorf("job customer = %q, want %q", job.CustomerID, testCustomerID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

// A quote id that belongs to another tenant yields 404, never the row.
func TestGetQuoteOtherTenantNotFound(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(`SELECT \* FROM "quotes"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := asPrincipal(httptest.NewRequest(http.MethodGet, "/api/quotes/"+testQuoteID, nil), officeUser(), testQuoteID)
	w := httptest.NewRecorder()
	GetQuote(db, testLogger).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("GetQuote() status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestSendQuoteEmailFailureDoesNotRollBack(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(`SELECT \* FROM "quotes"`).WillReturnRows(quoteRows(models.QuoteDraft))
	mock.ExpectExec(`UPDATE "quotes" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "customers"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "name", "email"}).
			AddRow(testCustomerID, testCompanyID, "Pat", "pat@example.com"))
	mock.ExpectQuery(`SELECT "name" FROM "companies"`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Shiny Co"))
	mock.ExpectQuery(`INSERT INTO "audit_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	sender := &fakeSender{err: errMailDown}
	req := asPrincipal(httptest.NewRequest(http.MethodPost, "/api/quotes/"+testQuoteID+"/send", nil), officeUser(), testQuoteID)
	w := httptest.NewRecorder()
	SendQuote(db, testLogger, testConfig(), sender).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("SendQuote() status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestSumLineItems(t *testing.T) {
	items := []lineItem{
		{Description: "Windows", Quantity: 4, UnitPrice: 12.5},
		{Description: "Carpet", Quantity: 1, UnitPrice: 80},
	}
	if got := sumLineItems(items); got != 130 {
		t.Errorf("sumLineItems() = %v, want 130", got)
	}
}
