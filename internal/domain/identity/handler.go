package identity

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/abroroo/medicPro-sub000/internal/platform/auth"
	"github.com/abroroo/medicPro-sub000/internal/platform/db"
	"github.com/abroroo/medicPro-sub000/pkg/apperrors"
	"github.com/abroroo/medicPro-sub000/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Patients – front desk and clinicians
	patients := api.Group("/patients", auth.RequireRole(auth.RoleReceptionist, auth.RoleDoctor, auth.RoleHeadDoctor))
	patients.POST("", h.CreatePatient)
	patients.GET("", h.SearchPatients)
	patients.GET("/:id", h.GetPatient)
	patients.PUT("/:id", h.UpdatePatient)

	// Staff – head doctor only
	staff := api.Group("/staff", auth.RequireRole(auth.RoleHeadDoctor))
	staff.POST("", h.CreateStaff)
	staff.GET("", h.ListStaff)
	staff.GET("/:id", h.GetStaff)
	staff.PATCH("/:id/deactivate", h.DeactivateStaff)
}

// -- Patient Handlers --

func (h *Handler) CreatePatient(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePatient(c.Request().Context(), clinicID, &p); err != nil {
		return apperrors.ToHTTPError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPatient(c.Request().Context(), clinicID, id)
	if err != nil {
		return apperrors.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) SearchPatients(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	q := PatientSearch{
		Query:  c.QueryParam("q"),
		Phone:  c.QueryParam("phone"),
		Gender: c.QueryParam("gender"),
	}
	patients, total, err := h.svc.SearchPatients(c.Request().Context(), clinicID, q, pg.Limit, pg.Offset)
	if err != nil {
		return apperrors.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, pg))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	updated, err := h.svc.UpdatePatient(c.Request().Context(), clinicID, &p)
	if err != nil {
		return apperrors.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

// -- Staff Handlers --

func (h *Handler) CreateStaff(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	var s Staff
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateStaff(c.Request().Context(), clinicID, &s); err != nil {
		return apperrors.ToHTTPError(err)
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) GetStaff(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	s, err := h.svc.GetStaff(c.Request().Context(), clinicID, id)
	if err != nil {
		return apperrors.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) ListStaff(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := StaffFilter{Role: c.QueryParam("role")}
	if v := c.QueryParam("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid active filter")
		}
		f.Active = &active
	}
	staff, total, err := h.svc.ListStaff(c.Request().Context(), clinicID, f, pg.Limit, pg.Offset)
	if err != nil {
		return apperrors.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(staff, total, pg))
}

func (h *Handler) DeactivateStaff(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeactivateStaff(c.Request().Context(), clinicID, id); err != nil {
		return apperrors.ToHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
