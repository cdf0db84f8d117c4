package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	monitorSecret = "monitor-signing-secret"
	monitorIssuer = "nexbridge-monitor"
)

func monitorToken(t *testing.T, secret, issuer string, expiresIn time.Duration) string {
	t.Helper()

	claims := jwt.MapClaims{
		"iss": issuer,
		"exp": time.Now().Add(expiresIn).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateToken_Valid(t *testing.T) {
	v := NewMonitorValidator(monitorSecret, monitorIssuer)

	claims, err := v.ValidateToken(monitorToken(t, monitorSecret, monitorIssuer, time.Hour))
	require.NoError(t, err)
	assert.Equal(t, monitorIssuer, claims["iss"])
}

func TestValidateToken_WrongSecret(t *testing.T) {
	v := NewMonitorValidator(monitorSecret, monitorIssuer)

	_, err := v.ValidateToken(monitorToken(t, "other-secret", monitorIssuer, time.Hour))
	assert.Error(t, err)
}

func TestValidateToken_WrongIssuer(t *testing.T) {
	v := NewMonitorValidator(monitorSecret, monitorIssuer)

	_, err := v.ValidateToken(monitorToken(t, monitorSecret, "someone-else", time.Hour))
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	v := NewMonitorValidator(monitorSecret, monitorIssuer)

	_, err := v.ValidateToken(monitorToken(t, monitorSecret, monitorIssuer, -time.Minute))
	assert.Error(t, err)
}

func TestValidateToken_MissingExpiry(t *testing.T) {
	v := NewMonitorValidator(monitorSecret, monitorIssuer)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"iss": monitorIssuer})
	signed, err := token.SignedString([]byte(monitorSecret))
	require.NoError(t, err)

	_, err = v.ValidateToken(signed)
	assert.Error(t, err, "tokens without exp are refused")
}

func TestValidateToken_RejectsNonHMAC(t *testing.T) {
	v := NewMonitorValidator(monitorSecret, monitorIssuer)

	// alg=none style tokens must never validate.
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"iss": monitorIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.ValidateToken(signed)
	assert.Error(t, err)
}

func monitorEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireMonitorToken_Valid(t *testing.T) {
	handler := RequireMonitorToken(NewMonitorValidator(monitorSecret, monitorIssuer))(monitorEcho())

	req := httptest.NewRequest(http.MethodPost, "/v1/transactions/op-1/advance", nil)
	req.Header.Set("Authorization", "Bearer "+monitorToken(t, monitorSecret, monitorIssuer, time.Hour))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireMonitorToken_MissingHeader(t *testing.T) {
	handler := RequireMonitorToken(NewMonitorValidator(monitorSecret, monitorIssuer))(monitorEcho())

	req := httptest.NewRequest(http.MethodPost, "/v1/transactions/op-1/advance", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireMonitorToken_NotBearer(t *testing.T) {
	handler := RequireMonitorToken(NewMonitorValidator(monitorSecret, monitorIssuer))(monitorEcho())

	req := httptest.NewRequest(http.MethodPost, "/v1/transactions/op-1/advance", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireMonitorToken_InvalidToken(t *testing.T) {
	handler := RequireMonitorToken(NewMonitorValidator(monitorSecret, monitorIssuer))(monitorEcho())

	req := httptest.NewRequest(http.MethodPost, "/v1/transactions/op-1/advance", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
