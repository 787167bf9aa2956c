package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PortalClaims are the claims carried by a customer-portal bearer token.
type PortalClaims struct {
	CustomerID string
	CompanyID  string
}

// SignPortalToken issues an HS256 bearer token for the customer portal.
func SignPortalToken(secret, customerID, companyID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": customerID,
		"cid": companyID,
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyPortalToken validates a portal bearer token and extracts its claims.
func VerifyPortalToken(secret, tokenStr string) (PortalClaims, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return PortalClaims{}, errors.New("invalid token")
	}
	mapc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return PortalClaims{}, errors.New("invalid claims")
	}
	sub, _ := mapc["sub"].(string)
	cid, _ := mapc["cid"].(string)
	if sub == "" || cid == "" {
		return PortalClaims{}, errors.New("invalid claims")
	}
	return PortalClaims{CustomerID: sub, CompanyID: cid}, nil
}
