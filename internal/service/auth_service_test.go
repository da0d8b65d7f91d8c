package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-call-api/internal/models"
	appErrors "github.com/noah-isme/lms-call-api/pkg/errors"
)

func signTestToken(t *testing.T, method jwt.SigningMethod, secret string, claims *models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func testClaims(issuer string, expires time.Time) *models.JWTClaims {
	return &models.JWTClaims{
		UserID: "u1",
		Role:   models.RoleTeacher,
		Email:  "teacher@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService(zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", Issuer: "lms"})
	token := signTestToken(t, jwt.SigningMethodHS256, "secret", testClaims("lms", time.Now().Add(time.Hour)))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
}

func TestValidateTokenRejects(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "lms"})
	cases := map[string]string{
		"wrong secret": signTestToken(t, jwt.SigningMethodHS256, "other", testClaims("lms", time.Now().Add(time.Hour))),
		"wrong issuer": signTestToken(t, jwt.SigningMethodHS256, "secret", testClaims("elsewhere", time.Now().Add(time.Hour))),
		"expired":      signTestToken(t, jwt.SigningMethodHS256, "secret", testClaims("lms", time.Now().Add(-time.Hour))),
		"wrong alg":    signTestToken(t, jwt.SigningMethodHS512, "secret", testClaims("lms", time.Now().Add(time.Hour))),
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))
		})
	}
}

func TestValidateTokenFallsBackToSubject(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret"})
	claims := testClaims("", time.Now().Add(time.Hour))
	claims.UserID = ""
	claims.Subject = "subject-user"

	parsed, err := svc.ValidateToken(signTestToken(t, jwt.SigningMethodHS256, "secret", claims))
	require.NoError(t, err)
	assert.Equal(t, "subject-user", parsed.UserID)
}
