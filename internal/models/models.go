package models

import "time"

// Subscription statuses mirror the billing provider's vocabulary.
const (
	SubTrialing = "trialing"
	SubActive   = "active"
	SubPastDue  = "past_due"
	SubCanceled = "canceled"
)

type Company struct {
	ID                   string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name                 string    `gorm:"uniqueIndex;not null" json:"name"`
	Email                string    `gorm:"not null" json:"email"`
	Phone                string    `json:"phone"`
	Address              string    `json:"address"`
	Lat                  *float64  `json:"lat,omitempty"`
	Lng                  *float64  `json:"lng,omitempty"`
	Timezone             string    `gorm:"not null;default:UTC;size:64" json:"timezone"`
	StripeCustomerID     string    `gorm:"index" json:"-"`
	StripeSubscriptionID string    `json:"-"`
	SubscriptionStatus   string    `gorm:"not null;default:trialing" json:"subscription_status"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type User struct {
	ID              string     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID       string     `gorm:"type:uuid;not null;uniqueIndex:idx_users_company_email" json:"company_id"`
	Email           string     `gorm:"not null;uniqueIndex:idx_users_company_email" json:"email"`
	Name            string     `json:"name"`
	PasswordHash    string     `gorm:"not null" json:"-"`
	IsAdmin         bool       `gorm:"not null;default:false" json:"is_admin"`
	IsActive        bool       `gorm:"not null;default:true" json:"is_active"`
	EmailVerified   bool       `gorm:"not null;default:false" json:"email_verified"`
	VerifyToken     *string    `gorm:"index" json:"-"`
	VerifyExpiresAt *time.Time `json:"-"`
	ResetToken      *string    `gorm:"index" json:"-"`
	ResetExpiresAt  *time.Time `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type Employee struct {
	ID           string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_employees_company_username" json:"company_id"`
	Username     string    `gorm:"not null;uniqueIndex:idx_employees_company_username;size:64" json:"username"`
	Name         string    `gorm:"not null" json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `gorm:"not null" json:"-"`
	HourlyRate   float64   `gorm:"not null;default:0" json:"hourly_rate"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Customer struct {
	ID          string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID   string    `gorm:"type:uuid;not null;index" json:"company_id"`
	Name        string    `gorm:"not null" json:"name"`
	Email       string    `gorm:"index" json:"email"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	Lat         *float64  `json:"lat,omitempty"`
	Lng         *float64  `json:"lng,omitempty"`
	Notes       string    `gorm:"type:text" json:"notes"`
	PortalToken *string   `gorm:"index" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Job statuses. Transitions are enforced in the handlers:
// scheduled -> in_progress -> completed, with canceled reachable from
// scheduled and in_progress.
const (
	JobScheduled  = "scheduled"
	JobInProgress = "in_progress"
	JobCompleted  = "completed"
	JobCanceled   = "canceled"
)

type Job struct {
	ID          string     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID   string     `gorm:"type:uuid;not null;index" json:"company_id"`
	CustomerID  string     `gorm:"type:uuid;not null;index" json:"customer_id"`
	Title       string     `gorm:"not null" json:"title"`
	Notes       string     `gorm:"type:text" json:"notes"`
	Status      string     `gorm:"not null;default:scheduled" json:"status"`
	ScheduledAt time.Time  `gorm:"not null;index" json:"scheduled_at"`
	DurationMin int        `gorm:"not null;default:60" json:"duration_min"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Employees   []Employee `gorm:"many2many:job_assignments" json:"employees,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Quote statuses: draft -> sent -> accepted/rejected -> converted.
const (
	QuoteDraft     = "draft"
	QuoteSent      = "sent"
	QuoteAccepted  = "accepted"
	QuoteRejected  = "rejected"
	QuoteConverted = "converted"
)

type Quote struct {
	ID             string     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID      string     `gorm:"type:uuid;not null;index" json:"company_id"`
	CustomerID     string     `gorm:"type:uuid;not null;index" json:"customer_id"`
	Title          string     `gorm:"not null" json:"title"`
	LineItems      JSONB      `gorm:"type:jsonb;default:'[]'::jsonb" json:"line_items"`
	Total          float64    `gorm:"not null;default:0" json:"total"`
	Status         string     `gorm:"not null;default:draft" json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
	ConvertedJobID *string    `gorm:"type:uuid" json:"converted_job_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Invoice statuses.
const (
	InvoiceDraft = "draft"
	InvoiceSent  = "sent"
	InvoicePaid  = "paid"
	InvoiceVoid  = "void"
)

type Invoice struct {
	ID         string     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID  string     `gorm:"type:uuid;not null;uniqueIndex:idx_invoices_company_number" json:"company_id"`
	CustomerID string     `gorm:"type:uuid;not null;index" json:"customer_id"`
	JobID      *string    `gorm:"type:uuid;index" json:"job_id,omitempty"`
	Number     string     `gorm:"not null;uniqueIndex:idx_invoices_company_number" json:"number"`
	LineItems  JSONB      `gorm:"type:jsonb;default:'[]'::jsonb" json:"line_items"`
	Total      float64    `gorm:"not null;default:0" json:"total"`
	Status     string     `gorm:"not null;default:draft" json:"status"`
	DueAt      *time.Time `json:"due_at,omitempty"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type Shift struct {
	ID         string     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID  string     `gorm:"type:uuid;not null;index" json:"company_id"`
	EmployeeID string     `gorm:"type:uuid;not null;index" json:"employee_id"`
	JobID      *string    `gorm:"type:uuid;index" json:"job_id,omitempty"`
	StartedAt  time.Time  `gorm:"not null" json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	BreakMin   int        `gorm:"not null;default:0" json:"break_min"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type Message struct {
	ID         string     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID  string     `gorm:"type:uuid;not null;index" json:"company_id"`
	SenderKind string     `gorm:"not null;size:16" json:"sender_kind"` // user or employee
	SenderID   string     `gorm:"type:uuid;not null" json:"sender_id"`
	Recipient  *string    `gorm:"type:uuid" json:"recipient,omitempty"` // nil means company-wide
	Body       string     `gorm:"type:text;not null" json:"body"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type Attachment struct {
	ID          string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID   string    `gorm:"type:uuid;not null;index" json:"company_id"`
	OwnerKind   string    `gorm:"not null;size:16;index:idx_attachments_owner" json:"owner_kind"` // job, quote, message
	OwnerID     string    `gorm:"type:uuid;not null;index:idx_attachments_owner" json:"owner_id"`
	FileName    string    `gorm:"not null" json:"file_name"`
	ContentType string    `gorm:"not null;size:128" json:"content_type"`
	SizeBytes   int64     `gorm:"not null" json:"size_bytes"`
	StoragePath string    `gorm:"not null" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// Session is a server-side staff session. The opaque token travels in an
// HTTP-only cookie; PrincipalKind is "user" or "employee".
type Session struct {
	Token         string     `gorm:"primaryKey;size:64" json:"-"`
	PrincipalKind string     `gorm:"not null;size:16" json:"principal_kind"`
	PrincipalID   string     `gorm:"type:uuid;index;not null" json:"principal_id"`
	CompanyID     string     `gorm:"type:uuid;index;not null" json:"company_id"`
	ExpiresAt     time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type AuditLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CompanyID *string   `gorm:"type:uuid;index" json:"company_id,omitempty"`
	ActorKind string    `gorm:"size:16" json:"actor_kind"`
	ActorID   *string   `gorm:"type:uuid" json:"actor_id,omitempty"`
	Action    string    `gorm:"not null" json:"action"`
	Metadata  JSONB     `gorm:"type:jsonb;default:'{}'::jsonb" json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}
