// Package auth validates the bearer tokens issued by the login service and
// carries the caller's claims through the request context.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gitlab.connectwisedev.com/storefront-service/pkg/apperr"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
	RoleUser  = "user"
)

// Claims is the token payload. ID is the account id, which is also the
// customer id for the "user" role.
type Claims struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// IsStaff reports whether the caller can act on other customers' data.
func (c *Claims) IsStaff() bool {
	return c.Role == RoleAdmin || c.Role == RoleStaff
}

// CanActFor reports whether the caller may read or change customerID's cart.
func (c *Claims) CanActFor(customerID int64) bool {
	return c.ID == customerID || c.IsStaff()
}

// HasRole reports whether the caller holds one of roles.
func (c *Claims) HasRole(roles ...string) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}

// Issue signs claims with HS256. The token expires ttl after now.
func Issue(secret []byte, c Claims, ttl time.Duration, now time.Time) (string, error) {
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies an HMAC-signed token and returns its claims.
func Parse(secret []byte, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.ID <= 0 || claims.Role == "" {
		return nil, errors.New("token is missing id or role")
	}
	return claims, nil
}

type ctxKey struct{}

// NewContext returns ctx carrying c.
func NewContext(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the claims stored by Middleware.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Claims)
	return c, ok && c != nil
}

// ErrorWriter renders an authentication or authorization failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware requires "Authorization: Bearer <token>" and stores the
// verified claims in the request context.
func Middleware(secret []byte, fail ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				fail(w, r, apperr.New(apperr.Unauthenticated, "Missing authorization"))
				return
			}
			parts := strings.Fields(header)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				fail(w, r, apperr.New(apperr.Unauthenticated, "Invalid authorization header"))
				return
			}
			claims, err := Parse(secret, parts[1])
			if err != nil {
				fail(w, r, apperr.Wrap(apperr.Unauthenticated, err, "Invalid token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), claims)))
		})
	}
}

// RequireRole rejects callers that hold none of roles.
func RequireRole(fail ErrorWriter, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := FromContext(r.Context())
			if !ok {
				fail(w, r, apperr.New(apperr.Unauthenticated, "Missing authorization"))
				return
			}
			if !c.HasRole(roles...) {
				fail(w, r, apperr.New(apperr.Forbidden, "Insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
