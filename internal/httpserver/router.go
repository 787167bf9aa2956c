package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cleanops/internal/auth"
	"cleanops/internal/billing"
	"cleanops/internal/config"
	"cleanops/internal/httpserver/handlers"
	"cleanops/internal/mail"
	"cleanops/internal/models"
	"cleanops/internal/ratelimit"
)

// Deps carries the external collaborators handlers compose.
type Deps struct {
	DB      *gorm.DB
	Log     *zap.SugaredLogger
	Config  *config.Config
	Mailer  mail.Sender
	Billing billing.Service
	Geo     handlers.Geocoder
}

func NewRouter(d Deps) http.Handler {
	db, lg, cfg := d.DB, d.Log, d.Config

	authLimiter := ratelimit.New(cfg.Limits.AuthBudget, cfg.Limits.Window)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)
	r.Use(metricsMiddleware)
	r.Use(httprate.LimitByIP(cfg.Limits.GlobalRPS, time.Second))

	r.Route("/api", func(api chi.Router) {
		// Public auth endpoints, each with its own fixed-window budget.
		api.With(authLimiter.Middleware("signup")).Post("/auth/signup", handlers.Signup(db, lg, cfg, d.Mailer))
		api.With(authLimiter.Middleware("verify")).Get("/auth/verify-email", handlers.VerifyEmail(db, lg, cfg))
		api.With(authLimiter.Middleware("signin")).Post("/auth/signin", handlers.Signin(db, lg, cfg))
		api.With(authLimiter.Middleware("signin")).Post("/auth/employee-signin", handlers.EmployeeSignin(db, lg, cfg))
		api.With(authLimiter.Middleware("forgot")).Post("/auth/forgot-password", handlers.ForgotPassword(db, lg, cfg, d.Mailer))
		api.With(authLimiter.Middleware("reset")).Post("/auth/reset-password", handlers.ResetPassword(db, lg))
		api.With(authLimiter.Middleware("portal-signin")).Post("/portal/signin", handlers.PortalSignin(db, lg, cfg))

		api.Post("/billing/webhook", handlers.StripeWebhook(db, lg, d.Billing))

		// Staff endpoints: company users and employees, cookie sessions.
		api.Group(func(staff chi.Router) {
			staff.Use(auth.SessionAuth(db, cfg.Session.CookieName))

			staff.Post("/auth/signout", handlers.Signout(db, cfg))
			staff.Get("/auth/me", handlers.Me(db, lg))
			staff.Post("/auth/password", handlers.ChangePassword(db, lg))

			staff.Get("/jobs", handlers.ListJobs(db, lg))
			staff.Get("/jobs/completed", handlers.ListCompletedJobs(db, lg))
			staff.Get("/jobs/{id}", handlers.GetJob(db, lg))
			staff.Post("/jobs/{id}/status", handlers.UpdateJobStatus(db, lg))

			staff.Get("/shifts", handlers.ListShifts(db, lg))
			staff.Post("/shifts/clock-in", handlers.ClockIn(db, lg))
			staff.Post("/shifts/clock-out", handlers.ClockOut(db, lg))

			staff.Get("/messages", handlers.ListMessages(db, lg))
			staff.Post("/messages", handlers.CreateMessage(db, lg))
			staff.Post("/messages/{id}/read", handlers.MarkMessageRead(db, lg))
			staff.Delete("/messages/{id}", handlers.DeleteMessage(db, lg))

			staff.Post("/attachments", handlers.CreateAttachment(db, lg))
			staff.Delete("/attachments/{id}", handlers.DeleteAttachment(db, lg))

			// Office endpoints: company users only.
			staff.Group(func(office chi.Router) {
				office.Use(auth.RequireKind(auth.KindUser))

				office.Get("/company/profile", handlers.GetCompanyProfile(db, lg))
				office.Put("/company/profile", handlers.UpdateCompanyProfile(db, lg, d.Geo))
				office.Get("/geocode", handlers.GeocodeSearch(lg, d.Geo))

				office.Get("/employees", handlers.ListEmployees(db, lg))
				office.Post("/employees", handlers.CreateEmployee(db, lg))
				office.Patch("/employees/{id}", handlers.UpdateEmployee(db, lg))
				office.Delete("/employees/{id}", handlers.DeleteEmployee(db, lg))

				office.Get("/customers", handlers.ListCustomers(db, lg))
				office.Post("/customers", handlers.CreateCustomer(db, lg, d.Geo))
				office.Get("/customers/{id}", handlers.GetCustomer(db, lg))
				office.Patch("/customers/{id}", handlers.UpdateCustomer(db, lg, d.Geo))
				office.Delete("/customers/{id}", handlers.DeleteCustomer(db, lg))
				office.Post("/customers/{id}/portal-invite", handlers.InviteCustomerPortal(db, lg, cfg, d.Mailer))

				office.Post("/jobs", handlers.CreateJob(db, lg))
				office.Patch("/jobs/{id}", handlers.UpdateJob(db, lg))
				office.Delete("/jobs/{id}", handlers.DeleteJob(db, lg))
				office.Post("/jobs/{id}/assign", handlers.AssignJob(db, lg))

				office.Get("/quotes", handlers.ListQuotes(db, lg))
				office.Post("/quotes", handlers.CreateQuote(db, lg))
				office.Get("/quotes/{id}", handlers.GetQuote(db, lg))
				office.Patch("/quotes/{id}", handlers.UpdateQuote(db, lg))
				office.Delete("/quotes/{id}", handlers.DeleteQuote(db, lg))
				office.Post("/quotes/{id}/send", handlers.SendQuote(db, lg, cfg, d.Mailer))
				office.Post("/quotes/{id}/accept", handlers.AcceptQuote(db, lg))
				office.Post("/quotes/{id}/reject", handlers.RejectQuote(db, lg))
				office.Post("/quotes/{id}/convert", handlers.ConvertQuote(db, lg))

				office.Get("/invoices", handlers.ListInvoices(db, lg))
				office.Post("/invoices", handlers.CreateInvoice(db, lg))
				office.Get("/invoices/{id}", handlers.GetInvoice(db, lg))
				office.Patch("/invoices/{id}", handlers.UpdateInvoice(db, lg))
				office.Delete("/invoices/{id}", handlers.DeleteInvoice(db, lg))
				office.Post("/invoices/{id}/send", handlers.SendInvoice(db, lg, cfg, d.Mailer))
				office.Post("/invoices/{id}/mark-paid", handlers.MarkInvoicePaid(db, lg))
				office.Post("/invoices/{id}/void", handlers.VoidInvoice(db, lg))

				office.Post("/shifts", handlers.CreateShift(db, lg))

				office.Get("/logs", handlers.CompanyLogs(db, lg))

				office.Group(func(admin chi.Router) {
					admin.Use(auth.RequireAdmin())
					admin.Post("/billing/checkout", handlers.CreateCheckout(db, lg, cfg, d.Billing))
					admin.Post("/billing/portal", handlers.CreateBillingPortal(db, lg, cfg, d.Billing))
				})
			})
		})

		// Customer portal, bearer JWT.
		api.Group(func(portal chi.Router) {
			portal.Use(auth.PortalAuth(cfg.Portal.JWTSecret))
			portal.Get("/portal/quotes", handlers.PortalQuotes(db, lg))
			portal.Post("/portal/quotes/{id}/accept", handlers.PortalDecideQuote(db, lg, models.QuoteAccepted, "PORTAL_QUOTE_ACCEPT"))
			portal.Post("/portal/quotes/{id}/reject", handlers.PortalDecideQuote(db, lg, models.QuoteRejected, "PORTAL_QUOTE_REJECT"))
			portal.Get("/portal/invoices", handlers.PortalInvoices(db, lg))
			portal.Get("/portal/jobs", handlers.PortalJobs(db, lg))
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}
