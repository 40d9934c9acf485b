package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticator(t *testing.T) {
	_, err := NewAuthenticator(" ", "")
	require.Error(t, err)

	auth, err := NewAuthenticator("s3cret", "agroconsole")
	require.NoError(t, err)
	token, err := auth.Issue("ana", time.Hour)
	require.NoError(t, err)

	claims, err := auth.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ana", claims.Subject)

	other, _ := NewAuthenticator("other", "agroconsole")
	_, err = other.Verify(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	wrongIssuer, _ := NewAuthenticator("s3cret", "someone-else")
	_, err = wrongIssuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := &Authenticator{secret: []byte("s3cret"), issuer: "agroconsole", now: func() time.Time { return time.Now().Add(-2 * time.Hour) }}
	old, err := expired.Issue("ana", time.Hour)
	require.NoError(t, err)
	_, err = auth.Verify(old)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "x", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = auth.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHandlerRequiresToken(t *testing.T) {
	auth, err := NewAuthenticator("s3cret", "")
	require.NoError(t, err)
	api := newAPI(t, WithAuth(auth))

	rec := api.do(http.MethodGet, "/api/v1/modules", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	token, err := auth.Issue("ana", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/modules", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	ok := httptest.NewRecorder()
	api.h.ServeHTTP(ok, req)
	assert.Equal(t, http.StatusOK, ok.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/modules", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	bad := httptest.NewRecorder()
	api.h.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusUnauthorized, bad.Code)
}
