package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/nexbridge/bridge-middleware/pkg/app/errors"
	apphttp "github.com/nexbridge/bridge-middleware/pkg/app/http"
)

// MonitorValidator validates the HS256 bearer tokens presented by the
// transfer status monitor when it pushes operation updates.
type MonitorValidator struct {
	secret []byte
	issuer string
}

// NewMonitorValidator creates a validator for monitor tokens.
func NewMonitorValidator(secret, issuer string) *MonitorValidator {
	return &MonitorValidator{secret: []byte(secret), issuer: issuer}
}

// ValidateToken parses and verifies a monitor token, returning its claims.
func (v *MonitorValidator) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// RequireMonitorToken guards the internal advance endpoint.
func RequireMonitorToken(validator *MonitorValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, found := strings.CutPrefix(header, "Bearer ")
			if !found || tokenString == "" {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(nil, "bearer token required"))
				return
			}

			if _, err := validator.ValidateToken(tokenString); err != nil {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "invalid monitor token"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
