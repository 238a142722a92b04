package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by bearer tokens. Token issuance lives with the auth
// provider; this layer only validates.
type Claims struct {
	TenantID string `json:"tenant_id"`
	MemberID string `json:"member_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type claimsKey struct{}

// ClaimsFromContext returns the validated claims, or nil outside an
// authenticated request.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}

// Auth validates bearer tokens and enforces roles on admin routes.
type Auth struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewAuth(secret, issuer string, ttl time.Duration) *Auth {
	return &Auth{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// Enabled reports whether token checks are enforced. Without a configured
// secret the middleware passes requests through (local development).
func (a *Auth) Enabled() bool { return a != nil && len(a.secret) > 0 }

// GenerateToken issues a token for the given identity. Used by tests and
// operational tooling; production tokens come from the auth provider.
func (a *Auth) GenerateToken(tenantID, memberID, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		TenantID: tenantID,
		MemberID: memberID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   memberID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseToken validates the signature, issuer and expiry.
func (a *Auth) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(a.issuer))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// RequireRole wraps a handler: the request must carry a valid bearer token
// whose role is one of the allowed set. An empty allowed set accepts any
// valid token.
func (a *Auth) RequireRole(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeJSON(w, http.StatusUnauthorized, Fail("missing bearer token"))
			return
		}
		claims, err := a.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, Result[any]{Code: ResultTokenExpired, Type: "error", Message: "token invalid or expired"})
			return
		}
		if len(roles) > 0 {
			allowed := false
			for _, role := range roles {
				if claims.Role == role {
					allowed = true
					break
				}
			}
			if !allowed {
				writeJSON(w, http.StatusForbidden, Fail("insufficient role"))
				return
			}
		}
		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	}
}
