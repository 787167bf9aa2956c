package auth

import (
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"cleanops/internal/models"
)

// SessionAuth resolves the staff session cookie to a Principal. The session
// row is consulted on every request so revocation takes effect immediately.
func SessionAuth(db *gorm.DB, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(cookieName)
			if err != nil || c.Value == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			var sess models.Session
			if db.First(&sess, "token = ?", c.Value).Error != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if sess.RevokedAt != nil || time.Now().After(sess.ExpiresAt) {
				http.Error(w, "session expired", http.StatusUnauthorized)
				return
			}
			p := Principal{Kind: sess.PrincipalKind, ID: sess.PrincipalID, CompanyID: sess.CompanyID}
			if p.Kind == KindUser {
				var u models.User
				if db.Select("is_admin", "is_active").First(&u, "id = ?", p.ID).Error != nil || !u.IsActive {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				p.IsAdmin = u.IsAdmin
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireKind rejects principals that are not of one of the given kinds.
func RequireKind(kinds ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := FromContext(r.Context())
			for _, k := range kinds {
				if p.Kind == k {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}

// RequireAdmin rejects company users without the admin flag.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := FromContext(r.Context())
			if p.Kind != KindUser || !p.IsAdmin {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PortalAuth resolves a customer-portal bearer JWT to a Principal.
func PortalAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := VerifyPortalToken(secret, strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			p := Principal{Kind: KindCustomer, ID: claims.CustomerID, CompanyID: claims.CompanyID}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
