package handlers

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"cleanops/internal/auth"
	"cleanops/internal/models"
)

func TestJobTransitionAllowed(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{models.JobScheduled, models.JobInProgress, true},
		{models.JobScheduled, models.JobCanceled, true},
		{models.JobScheduled, models.JobCompleted, false},
		{models.JobInProgress, models.JobCompleted, true},
		{models.JobInProgress, models.JobCanceled, true},
		{models.JobInProgress, models.JobScheduled, false},
		{models.JobCompleted, models.JobInProgress, false},
		{models.JobCanceled, models.JobInProgress, false},
	}
	for _, tt := range tests {
		if got := jobTransitionAllowed(tt.from, tt.to); got != tt.want {
			t.Errorf("jobTransitionAllowed(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

const testJobID = "66666666-6666-6666-6666-666666666666"

func jobRows(status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "company_id", "customer_id", "title", "status"}).
		AddRow(testJobID, testCompanyID, testCustomerID, "Weekly clean", status)
}

func TestUpdateJobStatusRejectsSkippedState(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(`SELECT \* FROM "jobs"`).WillReturnRows(jobRows(models.JobScheduled))

	body, _ := json.Marshal(map[string]string{"status": models.JobCompleted})
	req := asPrincipal(httptest.NewRequest(http.MethodPost, "/api/jobs/"+testJobID+"/status", bytes.NewReader(body)), officeUser(), testJobID)
	w := httptest.NewRecorder()
	UpdateJobStatus(db, testLogger).ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("UpdateJobStatus() status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestUpdateJobStatusHappyPath(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(`SELECT \* FROM "jobs"`).WillReturnRows(jobRows(models.JobInProgress))
	mock.ExpectExec(`UPDATE "jobs" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "audit_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	body, _ := json.Marshal(map[string]string{"status": models.JobCompleted})
	req := asPrincipal(httptest.NewRequest(http.MethodPost, "/api/jobs/"+testJobID+"/status", bytes.NewReader(body)), officeUser(), testJobID)
	w := httptest.NewRecorder()
	UpdateJobStatus(db, testLogger).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("UpdateJobStatus() status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

// jsonArgContains matches an argument whose serialized form contains the
// given fragment.
type jsonArgContains string

func (j jsonArgContains) Match(v driver.Value) bool {
	switch s := v.(type) {
	case []byte:
		return strings.Contains(string(s), string(j))
	case string:
		return strings.Contains(s, string(j))
	}
	return false
}

func TestUpdateJobStatusAuditRecordsPriorStatus(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(`SELECT \* FROM "jobs"`).WillReturnRows(jobRows(models.JobInProgress))
	mock.ExpectExec(`UPDATE "jobs" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "audit_logs"`).
		WithArgs(testCompanyID, auth.KindUser, testUserID, "JOB_STATUS",
			sqlmock.AnyArg(), jsonArgContains(`"from":"in_progress"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	body, _ := json.Marshal(map[string]string{"status": models.JobCompleted})
	req := asPrincipal(httptest.NewRequest(http.MethodPost, "/api/jobs/"+testJobID+"/status", bytes.NewReader(body)), officeUser(), testJobID)
	w := httptest.NewRecorder()
	UpdateJobStatus(db, testLogger).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("UpdateJobStatus() status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestUpdateJobOtherTenantNotFound(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(`SELECT \* FROM "jobs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	body, _ := json.Marshal(map[string]string{"title": "Renamed"})
	req := asPrincipal(httptest.NewRequest(http.MethodPatch, "/api/jobs/"+testJobID, bytes.NewReader(body)), officeUser(), testJobID)
	w := httptest.NewRecorder()
	UpdateJob(db, testLogger).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("UpdateJob() status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestCreateJobUnknownCustomer(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectQuery(`SELECT \* FROM "customers"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	body, _ := json.Marshal(map[string]any{
		"customer_id":  testCustomerID,
		"title":        "Move-out clean",
		"scheduled_at": "2026-09-15T09:00:00Z",
	})
	req := asPrincipal(httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewReader(body)), officeUser(), "")
	w := httptest.NewRecorder()
	CreateJob(db, testLogger).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("CreateJob() status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
