package db

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	ClinicIDKey contextKey = "clinic_id"
	DBTxKey     contextKey = "db_tx"
)

// ClaimClinicKey is the echo context key under which the auth middleware
// stores the clinic id taken from the verified token.
const ClaimClinicKey = "jwt_clinic_id"

// TenantMiddleware resolves the clinic of the authenticated caller and puts it
// on the request context. The clinic id only ever comes from the auth layer;
// headers, query parameters and request bodies are never consulted.
func TenantMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			clinicID, ok := extractClinicID(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "no clinic bound to credentials")
			}

			ctx := WithClinicID(c.Request().Context(), clinicID)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("clinic_id", clinicID)

			return next(c)
		}
	}
}

func extractClinicID(c echo.Context) (uuid.UUID, bool) {
	raw, _ := c.Get(ClaimClinicKey).(string)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// WithClinicID returns a context carrying the clinic id.
func WithClinicID(ctx context.Context, clinicID uuid.UUID) context.Context {
	return context.WithValue(ctx, ClinicIDKey, clinicID)
}

// ClinicFromContext retrieves the clinic id from context.
func ClinicFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ClinicIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// RequireClinic returns the clinic bound to the request or a 401 error.
// Handlers call it first so every engine call receives an explicit clinic id.
func RequireClinic(c echo.Context) (uuid.UUID, error) {
	id, ok := ClinicFromContext(c.Request().Context())
	if !ok {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "no clinic bound to credentials")
	}
	return id, nil
}
