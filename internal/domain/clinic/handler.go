package clinic

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/abroroo/medicPro-sub000/internal/platform/auth"
	"github.com/abroroo/medicPro-sub000/internal/platform/db"
	"github.com/abroroo/medicPro-sub000/pkg/apperrors"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.ClinicRoles...))
	g.GET("/clinic", h.GetCurrent)
}

// GetCurrent returns the clinic bound to the caller's credentials.
func (h *Handler) GetCurrent(c echo.Context) error {
	clinicID, ok := db.ClinicFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no clinic bound to credentials")
	}
	cl, err := h.svc.GetClinic(c.Request().Context(), clinicID)
	if err != nil {
		return apperrors.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, cl)
}
