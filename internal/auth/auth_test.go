package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libralend/internal/apperr"
)

func newVerifier(secret string) *Verifier {
	return NewVerifier(secret, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestIssueAndVerify(t *testing.T) {
	v := newVerifier("test-secret-key")

	token, err := v.Issue("alice@example.com", false)
	require.NoError(t, err)

	p, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Principal{Subject: "alice@example.com"}, p)

	adminToken, err := v.Issue("root", true)
	require.NoError(t, err)
	p, err = v.Verify(adminToken)
	require.NoError(t, err)
	assert.True(t, p.Admin)
}

func TestVerifyRejects(t *testing.T) {
	v := newVerifier("secret1")

	other, _ := newVerifier("secret2").Issue("alice", false)
	_, err := v.Verify(other)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = v.Verify("not-a-token")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	signed, err := expired.SignedString([]byte("secret1"))
	require.NoError(t, err)
	_, err = v.Verify(signed)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Verify(unsigned)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestCanActOn(t *testing.T) {
	assert.True(t, Principal{Subject: "alice"}.CanActOn("alice"))
	assert.False(t, Principal{Subject: "bob"}.CanActOn("alice"))
	assert.True(t, Principal{Subject: "root", Admin: true}.CanActOn("alice"))
}

func TestMiddleware(t *testing.T) {
	v := newVerifier("secret")
	var seen Principal
	h := v.Middleware(v.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	serve := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(""))

	user, _ := v.Issue("alice", false)
	assert.Equal(t, http.StatusForbidden, serve(user))

	admin, _ := v.Issue("root", true)
	assert.Equal(t, http.StatusNoContent, serve(admin))
	assert.Equal(t, "root", seen.Subject)
}
