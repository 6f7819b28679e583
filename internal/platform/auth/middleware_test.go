package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/abroroo/medicPro-sub000/internal/platform/db"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims(clinicID string, roles ...string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		ClinicID: clinicID,
		Roles:    roles,
	}
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %d error, got nil", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(okHandler)(c)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			c := e.NewContext(req, httptest.NewRecorder())

			err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(okHandler)(c)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidTokenBindsClinic(t *testing.T) {
	clinicID := uuid.NewString()
	tokenStr := createTestToken(t, validClaims(clinicID, RoleReceptionist), testSigningKey)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	c := e.NewContext(req, httptest.NewRecorder())

	handler := func(c echo.Context) error {
		ctx := c.Request().Context()
		if uid := UserIDFromContext(ctx); uid != "user-123" {
			t.Errorf("expected user_id=user-123, got %s", uid)
		}
		roles := RolesFromContext(ctx)
		if len(roles) != 1 || roles[0] != RoleReceptionist {
			t.Errorf("expected roles=[receptionist], got %v", roles)
		}
		if got, _ := c.Get(db.ClaimClinicKey).(string); got != clinicID {
			t.Errorf("expected clinic claim %s, got %s", clinicID, got)
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJWTMiddleware_ThenTenantMiddleware(t *testing.T) {
	clinicID := uuid.New()
	tokenStr := createTestToken(t, validClaims(clinicID.String(), RoleDoctor), testSigningKey)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	req.Header.Set("X-Clinic-ID", uuid.NewString())
	c := e.NewContext(req, httptest.NewRecorder())

	var seen uuid.UUID
	handler := func(c echo.Context) error {
		seen, _ = db.ClinicFromContext(c.Request().Context())
		return nil
	}

	h := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(db.TenantMiddleware()(handler))
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != clinicID {
		t.Errorf("expected clinic from token %s, got %s", clinicID, seen)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := validClaims(uuid.NewString())
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-1 * time.Hour))
	tokenStr := createTestToken(t, claims, testSigningKey)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	c := e.NewContext(req, httptest.NewRecorder())

	err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(okHandler)(c)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	tokenStr := createTestToken(t, validClaims(uuid.NewString()), []byte("some-other-key"))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	c := e.NewContext(req, httptest.NewRecorder())

	err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(okHandler)(c)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_AudienceMismatch(t *testing.T) {
	claims := validClaims(uuid.NewString())
	claims.Audience = jwt.ClaimStrings{"other-api"}
	tokenStr := createTestToken(t, claims, testSigningKey)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	c := e.NewContext(req, httptest.NewRecorder())

	err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Audience: "clinic-api"})(okHandler)(c)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestDevAuthMiddleware_NoToken(t *testing.T) {
	defaultClinic := uuid.New()

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	handler := func(c echo.Context) error {
		ctx := c.Request().Context()
		if uid := UserIDFromContext(ctx); uid != "dev-user" {
			t.Errorf("expected user_id=dev-user, got %s", uid)
		}
		roles := RolesFromContext(ctx)
		if len(roles) != 1 || roles[0] != RoleAdmin {
			t.Errorf("expected roles=[admin], got %v", roles)
		}
		if got, _ := c.Get(db.ClaimClinicKey).(string); got != defaultClinic.String() {
			t.Errorf("expected default clinic %s, got %s", defaultClinic, got)
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := DevAuthMiddleware(defaultClinic, nil)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDevAuthMiddleware_VerifiesProvidedToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	c := e.NewContext(req, httptest.NewRecorder())

	verify := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})
	err := DevAuthMiddleware(uuid.New(), verify)(okHandler)(c)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestDevAuthMiddleware_TokenClinicWins(t *testing.T) {
	tokenClinic := uuid.NewString()
	tokenStr := createTestToken(t, validClaims(tokenClinic, RoleDoctor), testSigningKey)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	c := e.NewContext(req, httptest.NewRecorder())

	handler := func(c echo.Context) error {
		if got, _ := c.Get(db.ClaimClinicKey).(string); got != tokenClinic {
			t.Errorf("expected token clinic %s, got %s", tokenClinic, got)
		}
		return nil
	}

	verify := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})
	if err := DevAuthMiddleware(uuid.New(), verify)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
