package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSigningSecret = "test-signing-secret"
	testIssuer        = "walknote-auth"
	testCookieName    = "app_session"
)

func newTestValidator(t *testing.T, clock func() time.Time) *SessionValidator {
	t.Helper()
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		Issuer:        testIssuer,
		CookieName:    testCookieName,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("unexpected validator construction error: %v", err)
	}
	return validator
}

func signTestToken(t *testing.T, claims SessionClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("unexpected signing error: %v", err)
	}
	return signed
}

func baseClaims(now time.Time) SessionClaims {
	return SessionClaims{
		UserEmail: "walker@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    testIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestValidateTokenAcceptsValidToken(t *testing.T) {
	now := time.Unix(1700000000, 0)
	validator := newTestValidator(t, func() time.Time { return now })
	token := signTestToken(t, baseClaims(now), testSigningSecret)

	claims, err := validator.ValidateToken(token)
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if claims.UserID() != "user-1" {
		t.Fatalf("unexpected user id: %q", claims.UserID())
	}
	if claims.UserEmail != "walker@example.com" {
		t.Fatalf("unexpected email: %q", claims.UserEmail)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	now := time.Unix(1700000000, 0)
	validator := newTestValidator(t, func() time.Time { return now })
	token := signTestToken(t, baseClaims(now), "other-secret")

	if _, err := validator.ValidateToken(token); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

func TestValidateTokenRejectsExpiredToken(t *testing.T) {
	issued := time.Unix(1700000000, 0)
	validator := newTestValidator(t, func() time.Time { return issued.Add(2 * time.Hour) })
	token := signTestToken(t, baseClaims(issued), testSigningSecret)

	if _, err := validator.ValidateToken(token); !errors.Is(err, ErrExpiredSessionToken) {
		t.Fatalf("expected expired token error, got %v", err)
	}
}

func TestValidateTokenRejectsWrongIssuer(t *testing.T) {
	now := time.Unix(1700000000, 0)
	validator := newTestValidator(t, func() time.Time { return now })
	claims := baseClaims(now)
	claims.Issuer = "someone-else"
	token := signTestToken(t, claims, testSigningSecret)

	if _, err := validator.ValidateToken(token); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

func TestValidateTokenRejectsMissingSubject(t *testing.T) {
	now := time.Unix(1700000000, 0)
	validator := newTestValidator(t, func() time.Time { return now })
	claims := baseClaims(now)
	claims.Subject = "  "
	token := signTestToken(t, claims, testSigningSecret)

	if _, err := validator.ValidateToken(token); !errors.Is(err, ErrMissingSessionSubject) {
		t.Fatalf("expected missing subject error, got %v", err)
	}
}

func TestValidateRequestReadsCookie(t *testing.T) {
	now := time.Unix(1700000000, 0)
	validator := newTestValidator(t, func() time.Time { return now })
	token := signTestToken(t, baseClaims(now), testSigningSecret)

	request := httptest.NewRequest(http.MethodGet, "/notes", nil)
	request.AddCookie(&http.Cookie{Name: testCookieName, Value: token})

	claims, err := validator.ValidateRequest(request)
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if claims.UserID() != "user-1" {
		t.Fatalf("unexpected user id: %q", claims.UserID())
	}
}

func TestValidateRequestReadsBearerHeader(t *testing.T) {
	now := time.Unix(1700000000, 0)
	validator := newTestValidator(t, func() time.Time { return now })
	token := signTestToken(t, baseClaims(now), testSigningSecret)

	request := httptest.NewRequest(http.MethodGet, "/notes", nil)
	request.Header.Set("Authorization", "Bearer "+token)

	claims, err := validator.ValidateRequest(request)
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if claims.UserID() != "user-1" {
		t.Fatalf("unexpected user id: %q", claims.UserID())
	}
}

func TestValidateRequestRejectsMissingToken(t *testing.T) {
	validator := newTestValidator(t, time.Now)
	request := httptest.NewRequest(http.MethodGet, "/notes", nil)

	if _, err := validator.ValidateRequest(request); !errors.Is(err, ErrMissingSessionToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}
