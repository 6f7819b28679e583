package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Staff roles. Every role is scoped to the clinic bound to the token.
const (
	RoleDoctor       = "doctor"
	RoleHeadDoctor   = "head_doctor"
	RoleReceptionist = "receptionist"
	RoleUser         = "user"
	RoleAdmin        = "admin"
)

// ClinicRoles lists every role that may read the clinic's queue board.
var ClinicRoles = []string{RoleDoctor, RoleHeadDoctor, RoleReceptionist, RoleUser}

// IsValidRole reports whether r is a known staff role.
func IsValidRole(r string) bool {
	switch r {
	case RoleDoctor, RoleHeadDoctor, RoleReceptionist, RoleUser, RoleAdmin:
		return true
	}
	return false
}

// HasRole reports whether the caller holds one of roles. Admin holds all.
func HasRole(userRoles []string, roles ...string) bool {
	for _, has := range userRoles {
		if has == RoleAdmin {
			return true
		}
		for _, required := range roles {
			if has == required {
				return true
			}
		}
	}
	return false
}

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasRole(RolesFromContext(c.Request().Context()), roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
