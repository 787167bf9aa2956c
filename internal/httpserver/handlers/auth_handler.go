package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cleanops/internal/auth"
	"cleanops/internal/config"
	"cleanops/internal/mail"
	"cleanops/internal/models"
)

type signupReq struct {
	CompanyName string `json:"company_name" validate:"required,min=2,max=120"`
	Email       string `json:"email" validate:"required,email"`
	Name        string `json:"name" validate:"required,max=120"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	Phone       string `json:"phone" validate:"max=32"`
	Timezone    string `json:"timezone" validate:"max=64"`
}

// Signup creates a company (tenant) and its first admin user, then sends a
// verification email. In production a failed verification email rolls the
// pair back; elsewhere the failure is only logged.
func Signup(db *gorm.DB, lg *zap.SugaredLogger, cfg *config.Config, mailer mail.Sender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.CompanyName = strings.TrimSpace(req.CompanyName)
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if err := validate.Struct(req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		var count int64
		db.Model(&models.Company{}).Where("LOWER(name) = ?", strings.ToLower(req.CompanyName)).Count(&count)
		if count > 0 {
			respondError(w, http.StatusConflict, "company name already registered")
			return
		}
		db.Model(&models.User{}).Where("LOWER(email) = ?", req.Email).Count(&count)
		if count > 0 {
			respondError(w, http.StatusConflict, "email already registered")
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "hash error")
			return
		}

		tz := req.Timezone
		if tz == "" {
			tz = "UTC"
		}
		token := auth.NewToken()
		expires := time.Now().Add(24 * time.Hour)

		var company models.Company
		var user models.User
		err = db.Transaction(func(tx *gorm.DB) error {
			company = models.Company{
				Name:               req.CompanyName,
				Email:              req.Email,
				Phone:              req.Phone,
				Timezone:           tz,
				SubscriptionStatus: models.SubTrialing,
			}
			if err := tx.Create(&company).Error; err != nil {
				return err
			}
			user = models.User{
				CompanyID:       company.ID,
				Email:           req.Email,
				Name:            req.Name,
				PasswordHash:    hash,
				IsAdmin:         true,
				IsActive:        true,
				VerifyToken:     &token,
				VerifyExpiresAt: &expires,
			}
			return tx.Create(&user).Error
		})
		if err != nil {
			respondError(w, http.StatusConflict, "signup failed")
			return
		}

		link := cfg.Server.BaseURL + "/api/auth/verify-email?token=" + token
		if err := mailer.Send(user.Email, "Verify your email", mail.TemplateVerifyEmail, map[string]string{
			"Name": user.Name, "Company": company.Name, "Link": link,
		}); err != nil {
			lg.Errorw("verification email failed", "email", user.Email, "error", err)
			if cfg.IsProduction() {
				db.Delete(&models.User{}, "id = ?", user.ID)
				db.Delete(&models.Company{}, "id = ?", company.ID)
				respondError(w, http.StatusInternalServerError, "could not send verification email")
				return
			}
		}

		audit(db, company.ID, auth.KindUser, user.ID, "COMPANY_SIGNUP", map[string]any{"company": company.Name})
		respondJSON(w, http.StatusCreated, map[string]any{
			"company_id":           company.ID,
			"user_id":              user.ID,
			"requiresVerification": true,
		})
	}
}

// VerifyEmail consumes a single-use verification token and signs the user in.
func VerifyEmail(db *gorm.DB, lg *zap.SugaredLogger, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			respondError(w, http.StatusBadRequest, "token required")
			return
		}
		var u models.User
		if err := db.First(&u, "verify_token = ?", token).Error; err != nil {
			respondError(w, http.StatusBadRequest, "invalid token")
			return
		}
		if u.VerifyExpiresAt == nil || time.Now().After(*u.VerifyExpiresAt) {
			respondError(w, http.StatusBadRequest, "token expired")
			return
		}
		if err := db.Model(&u).Updates(map[string]any{
			"email_verified":    true,
			"verify_token":      nil,
			"verify_expires_at": nil,
			"updated_at":        time.Now(),
		}).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "verify failed")
			return
		}
		sess, err := auth.CreateSession(db, auth.KindUser, u.ID, u.CompanyID, cfg.Session.TTL)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "session error")
			return
		}
		auth.SetSessionCookie(w, cfg.Session.CookieName, sess.Token, sess.ExpiresAt, cfg.Session.CookieSecure)
		respondJSON(w, http.StatusOK, map[string]any{"verified": true})
	}
}

type signinReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signin authenticates a company user and sets the session cookie.
func Signin(db *gorm.DB, lg *zap.SugaredLogger, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signinReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		var u models.User
		if err := db.First(&u, "LOWER(email) = ?", strings.ToLower(strings.TrimSpace(req.Email))).Error; err != nil {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if !u.IsActive {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		sess, err := auth.CreateSession(db, auth.KindUser, u.ID, u.CompanyID, cfg.Session.TTL)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "session error")
			return
		}
		auth.SetSessionCookie(w, cfg.Session.CookieName, sess.Token, sess.ExpiresAt, cfg.Session.CookieSecure)
		respondJSON(w, http.StatusOK, map[string]any{
			"id": u.ID, "email": u.Email, "company_id": u.CompanyID,
			"email_verified": u.EmailVerified,
		})
	}
}

type employeeSigninReq struct {
	CompanyName string `json:"company_name"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

// EmployeeSignin authenticates field staff by company + username.
func EmployeeSignin(db *gorm.DB, lg *zap.SugaredLogger, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req employeeSigninReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.CompanyName == "" || req.Username == "" || req.Password == "" {
			respondError(w, http.StatusBadRequest, "company_name, username and password required")
			return
		}
		var company models.Company
		if err := db.First(&company, "LOWER(name) = ?", strings.ToLower(strings.TrimSpace(req.CompanyName))).Error; err != nil {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		var e models.Employee
		if err := db.First(&e, "company_id = ? AND LOWER(username) = ?", company.ID, strings.ToLower(req.Username)).Error; err != nil {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if !e.IsActive {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if err := auth.CheckPassword(e.PasswordHash, req.Password); err != nil {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		sess, err := auth.CreateSession(db, auth.KindEmployee, e.ID, e.CompanyID, cfg.Session.TTL)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "session error")
			return
		}
		auth.SetSessionCookie(w, cfg.Session.CookieName, sess.Token, sess.ExpiresAt, cfg.Session.CookieSecure)
		respondJSON(w, http.StatusOK, map[string]any{"id": e.ID, "name": e.Name, "company_id": e.CompanyID})
	}
}

// Signout revokes the current session; ?all=1 revokes every session of the
// signed-in principal.
func Signout(db *gorm.DB, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		if r.URL.Query().Get("all") == "1" {
			_ = auth.RevokeAllSessions(db, p.Kind, p.ID)
		} else if c, err := r.Cookie(cfg.Session.CookieName); err == nil {
			_ = auth.RevokeSession(db, c.Value)
		}
		auth.ClearSessionCookie(w, cfg.Session.CookieName, cfg.Session.CookieSecure)
		respondJSON(w, http.StatusOK, map[string]any{"signed_out": true})
	}
}

// Me returns the signed-in principal's record.
func Me(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		switch p.Kind {
		case auth.KindUser:
			var u models.User
			if err := db.First(&u, "id = ?", p.ID).Error; err != nil {
				respondError(w, http.StatusNotFound, "not found")
				return
			}
			respondJSON(w, http.StatusOK, u)
		case auth.KindEmployee:
			var e models.Employee
			if err := db.First(&e, "id = ?", p.ID).Error; err != nil {
				respondError(w, http.StatusNotFound, "not found")
				return
			}
			respondJSON(w, http.StatusOK, e)
		default:
			respondError(w, http.StatusUnauthorized, "unauthorized")
		}
	}
}

// ForgotPassword issues a reset token. The response is 200 whether or not
// the address is known, to avoid account enumeration.
func ForgotPassword(db *gorm.DB, lg *zap.SugaredLogger, cfg *config.Config, mailer mail.Sender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))
		var u models.User
		if err := db.First(&u, "LOWER(email) = ?", email).Error; err == nil {
			token := auth.NewToken()
			expires := time.Now().Add(time.Hour)
			if err := db.Model(&u).Updates(map[string]any{
				"reset_token":      token,
				"reset_expires_at": expires,
				"updated_at":       time.Now(),
			}).Error; err == nil {
				link := cfg.Server.BaseURL + "/reset-password?token=" + token
				if err := mailer.Send(u.Email, "Reset your password", mail.TemplateResetPassword, map[string]string{
					"Name": u.Name, "Link": link,
				}); err != nil {
					lg.Errorw("reset email failed", "email", u.Email, "error", err)
				}
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			lg.Errorw("forgot password lookup failed", "error", err)
		}
		respondJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

// ResetPassword consumes a single-use, time-limited reset token, rehashes
// the password, and revokes every session of the user.
func ResetPassword(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token    string `json:"token"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Token == "" || len(req.Password) < 8 {
			respondError(w, http.StatusBadRequest, "token and password (min 8 chars) required")
			return
		}
		var u models.User
		if err := db.First(&u, "reset_token = ?", req.Token).Error; err != nil {
			respondError(w, http.StatusBadRequest, "invalid token")
			return
		}
		if u.ResetExpiresAt == nil || time.Now().After(*u.ResetExpiresAt) {
			respondError(w, http.StatusBadRequest, "token expired")
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "hash error")
			return
		}
		if err := db.Model(&u).Updates(map[string]any{
			"password_hash":    hash,
			"reset_token":      nil,
			"reset_expires_at": nil,
			"updated_at":       time.Now(),
		}).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "reset failed")
			return
		}
		_ = auth.RevokeAllSessions(db, auth.KindUser, u.ID)
		audit(db, u.CompanyID, auth.KindUser, u.ID, "PASSWORD_RESET", nil)
		respondJSON(w, http.StatusOK, map[string]any{"reset": true})
	}
}

// ChangePassword lets a signed-in user rotate their own password.
func ChangePassword(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		if p.Kind != auth.KindUser {
			respondError(w, http.StatusForbidden, "forbidden")
			return
		}
		var req struct {
			Current string `json:"current_password"`
			New     string `json:"new_password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if len(req.New) < 8 {
			respondError(w, http.StatusBadRequest, "new password must be at least 8 characters")
			return
		}
		var u models.User
		if err := db.First(&u, "id = ?", p.ID).Error; err != nil {
			respondError(w, http.StatusNotFound, "not found")
			return
		}
		if err := auth.CheckPassword(u.PasswordHash, req.Current); err != nil {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		hash, err := auth.HashPassword(req.New)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "hash error")
			return
		}
		if err := db.Model(&u).Updates(map[string]any{"password_hash": hash, "updated_at": time.Now()}).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "update failed")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"updated": true})
	}
}
