package dispatcher

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the minimal principal identity carried by an ingress bearer
// token, grounded on the teacher's agent-to-agent JWT claims shape.
type Claims struct {
	Principal string `json:"principal"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates the HS256 bearer tokens that identify
// an ingress request's principal. SPEC_FULL.md §6 is explicit that the
// Dispatcher accepts a principal but leaves authentication unspecified;
// this is the narrow addition that fills that gap.
type TokenManager struct {
	secret []byte
}

// NewTokenManager constructs a TokenManager over secret.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// Issue mints a bearer token for principal valid for ttl.
func (tm *TokenManager) Issue(principal string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Principal: principal,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

// Validate parses and verifies raw, returning the embedded principal.
func (tm *TokenManager) Validate(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

type principalContextKey struct{}

func withPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

func principalFromRequest(r *http.Request) (string, bool) {
	p, ok := r.Context().Value(principalContextKey{}).(string)
	return p, ok
}

// requireAuth validates the Authorization bearer token and stores the
// principal in the request context. When tm is nil, authentication is
// disabled (development mode) and the body's own user_id fields are
// trusted instead.
func requireAuth(tm *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tm == nil {
				next.ServeHTTP(w, r)
				return
			}
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
				respondError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
				return
			}
			raw := strings.TrimSpace(header[len("Bearer "):])
			claims, err := tm.Validate(raw)
			if err != nil {
				respondError(w, http.StatusUnauthorized, err)
				return
			}
			ctx := withPrincipal(r.Context(), claims.Principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
