// Package session issues and persists opaque per-client identifiers.
//
// The identifier travels in a signed HttpOnly cookie; the JWT is only a
// transport for the opaque ID, never a claims carrier. Server-side, the
// ID keys an identity document in the store.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the session cookie.
const CookieName = "nots_session"

// MinSecretLen is the minimum accepted signing secret length in bytes.
const MinSecretLen = 16

// ErrWeakSecret is returned when the signing secret is too short.
var ErrWeakSecret = errors.New("session: signing secret too short")

// Claims carries the opaque session ID inside the signed cookie.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// GenerateToken signs the session ID into a JWT string.
func GenerateToken(secret []byte, sessionID string, expiry time.Duration) (string, error) {
	if len(secret) < MinSecretLen {
		return "", ErrWeakSecret
	}
	now := time.Now()
	claims := &Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken validates a token and returns the session ID it carries.
// The signing method is pinned to HS256.
func ParseToken(secret []byte, tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return "", errors.New("session: invalid token")
	}
	return claims.SessionID, nil
}

// SetCookie writes the signed session token as an HttpOnly cookie.
func SetCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   30 * 86400,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
}

// ClearCookie removes the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

type idKey struct{}

// Middleware softly parses the session cookie into the request context.
// Missing or invalid cookies are ignored; handlers that need an
// identity call Manager.Ensure.
func Middleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
				if id, err := ParseToken(secret, c.Value); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), idKey{}, id))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// FromContext returns the session ID parsed by Middleware, or "".
func FromContext(ctx context.Context) string {
	v, _ := ctx.Value(idKey{}).(string)
	return v
}

// Secure reports whether the request arrived over TLS, directly or via
// a forwarding proxy.
func Secure(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
