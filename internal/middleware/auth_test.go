package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/R3E-Network/marketplace_console/internal/logging"
)

var testSecret = []byte("test-secret")

func generateTestToken(t *testing.T, secret []byte, userID string, expired bool) string {
	t.Helper()
	claims := &Claims{
		UserID: userID,
		Email:  "test@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	if expired {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-1 * time.Hour))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	return tokenString
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewAuthMiddleware(t *testing.T) {
	logger := logging.NewDiscard()
	middleware := NewAuthMiddleware(testSecret, logger, []string{"/healthz", "/metrics"})

	if middleware.logger != logger {
		t.Error("logger not set correctly")
	}
	if len(middleware.skipPaths) != 2 || !middleware.skipPaths["/healthz"] {
		t.Errorf("skipPaths = %v", middleware.skipPaths)
	}
}

func TestAuthMiddleware_Handler_SkipPaths(t *testing.T) {
	handler := NewAuthMiddleware(testSecret, logging.NewDiscard(), []string{"/healthz"}).Handler(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuthMiddleware_Handler_RejectsBadHeaders(t *testing.T) {
	handler := NewAuthMiddleware(testSecret, logging.NewDiscard(), nil).Handler(okHandler())

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"no bearer prefix", "token123"},
		{"wrong prefix", "Basic token123"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer invalid.token.here"},
		{"expired token", "Bearer " + generateTestToken(t, testSecret, "user-123", true)},
		{"wrong secret", "Bearer " + generateTestToken(t, []byte("other"), "user-123", false)},
		{"no account id", "Bearer " + generateTestToken(t, testSecret, "", false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestAuthMiddleware_Handler_ValidToken(t *testing.T) {
	middleware := NewAuthMiddleware(testSecret, logging.NewDiscard(), nil)

	var capturedUserID string
	handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUserID = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/test", nil)
	req.Header.Set("Authorization", "Bearer "+generateTestToken(t, testSecret, "user-123", false))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}
	if capturedUserID != "user-123" {
		t.Errorf("User ID = %v, want user-123", capturedUserID)
	}
}

func TestAuthMiddleware_SubjectFallback(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acct-9",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := NewAuthMiddleware(testSecret, logging.NewDiscard(), nil).validateToken(signed)
	if err != nil {
		t.Fatalf("validateToken() error = %v", err)
	}
	if claims.AccountID() != "acct-9" {
		t.Errorf("AccountID() = %q, want acct-9", claims.AccountID())
	}
}

func TestAuthMiddleware_NoSecretRejectsEverything(t *testing.T) {
	if _, err := NewAuthMiddleware(nil, logging.NewDiscard(), nil).validateToken(generateTestToken(t, testSecret, "u", false)); err == nil {
		t.Fatal("validateToken() should fail without a secret")
	}
}
