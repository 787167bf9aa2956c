package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"cleanops/internal/models"
)

// NewToken returns an opaque token for sessions and one-time email links.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

// CreateSession inserts a server-side session row and returns it.
func CreateSession(db *gorm.DB, kind, principalID, companyID string, ttl time.Duration) (*models.Session, error) {
	s := models.Session{
		Token:         NewToken(),
		PrincipalKind: kind,
		PrincipalID:   principalID,
		CompanyID:     companyID,
		ExpiresAt:     time.Now().Add(ttl),
		CreatedAt:     time.Now(),
	}
	if err := db.Create(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// RevokeSession marks one session revoked. Missing tokens are not an error.
func RevokeSession(db *gorm.DB, token string) error {
	now := time.Now()
	return db.Model(&models.Session{}).Where("token = ?", token).
		Update("revoked_at", &now).Error
}

// RevokeAllSessions revokes every live session of a principal, e.g. after a
// password reset or a "sign out everywhere" request.
func RevokeAllSessions(db *gorm.DB, kind, principalID string) error {
	now := time.Now()
	return db.Model(&models.Session{}).
		Where("principal_kind = ? AND principal_id = ? AND revoked_at IS NULL", kind, principalID).
		Update("revoked_at", &now).Error
}

// SetSessionCookie writes the HTTP-only session cookie.
func SetSessionCookie(w http.ResponseWriter, name, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
