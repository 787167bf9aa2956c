package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"cleanops/internal/auth"
	"cleanops/internal/config"
	"cleanops/internal/mail"
)

// newTestDB opens GORM over sqlmock. Default transactions are skipped so
// expectations only cover the statements the handlers issue themselves.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 glogger.Default.LogMode(glogger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm open: %v", err)
	}
	return db, mock
}

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.Server.BaseURL = "http://test.local"
	cfg.Portal.JWTSecret = "test-portal-secret"
	return cfg
}

// asPrincipal attaches an authenticated principal and an optional {id} route
// param to a request, the way the middleware stack would.
func asPrincipal(r *http.Request, p auth.Principal, id string) *http.Request {
	ctx := auth.WithPrincipal(r.Context(), p)
	if id != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return r.WithContext(ctx)
}

// fakeSender records outbound mail and can be told to fail.
type fakeSender struct {
	sent []fakeMail
	err  error
}

type fakeMail struct {
	To       string
	Subject  string
	Template mail.Template
	Data     map[string]string
}

func (f *fakeSender) Send(to, subject string, tmpl mail.Template, data map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, fakeMail{To: to, Subject: subject, Template: tmpl, Data: data})
	return nil
}

var testLogger = zap.NewNop().Sugar()

var errMailDown = errors.New("mail provider down")
