// Package auth turns bearer tokens into the principal the lending core acts for.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"libralend/internal/apperr"
	"libralend/internal/httpio"
)

// Principal is the authenticated caller.
type Principal struct {
	Subject string
	Admin   bool
}

// CanActOn reports whether p may act on a resource owned by owner.
func (p Principal) CanActOn(owner string) bool {
	return p.Admin || p.Subject == owner
}

// Claims are the JWT claims issued by the identity provider.
type Claims struct {
	Admin bool `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// TokenExpiry is the lifetime of tokens minted by Issue.
const TokenExpiry = 24 * time.Hour

// Verifier validates HS256-signed bearer tokens.
type Verifier struct {
	secret []byte
	log    *slog.Logger
}

func NewVerifier(secret string, log *slog.Logger) *Verifier {
	return &Verifier{secret: []byte(secret), log: log}
}

// Issue signs a token for subject. Used by tooling and tests; production
// tokens come from the identity provider sharing the secret.
func (v *Verifier) Issue(subject string, admin bool) (string, error) {
	now := time.Now()
	claims := Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenExpiry)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning the principal it names.
func (v *Verifier) Verify(token string) (Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Principal{}, apperr.Wrap(apperr.KindUnauthorized, "invalid token", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return Principal{}, apperr.New(apperr.KindUnauthorized, "invalid token")
	}
	return Principal{Subject: claims.Subject, Admin: claims.Admin}, nil
}

type contextKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the principal stored by Middleware.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

// Middleware rejects requests without a valid bearer token.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			httpio.Error(w, v.log, apperr.New(apperr.KindUnauthorized, "missing or invalid authorization header"))
			return
		}

		p, err := v.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			httpio.Error(w, v.log, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireAdmin must run after Middleware.
func (v *Verifier) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := FromContext(r.Context())
		if !ok {
			httpio.Error(w, v.log, apperr.New(apperr.KindUnauthorized, "not authenticated"))
			return
		}
		if !p.Admin {
			httpio.Error(w, v.log, apperr.New(apperr.KindForbidden, "admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
