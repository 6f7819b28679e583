package visit

import (
	"net/http"
	"time"

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
	visits := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleHeadDoctor, auth.RoleReceptionist))
	visits.POST("/visits", h.CreateVisit)
	visits.GET("/visits", h.ListVisits)
	visits.GET("/visits/:id", h.GetVisit)
	visits.PUT("/visits/:id", h.UpdateVisit)
	visits.DELETE("/visits/:id", h.DeleteVisit)

	// Clinical notes – clinicians only
	notes := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleHeadDoctor))
	notes.POST("/visits/:id/notes", h.CreateNote)
	notes.GET("/visits/:id/notes", h.ListNotes)
	notes.GET("/notes/:id", h.GetNote)
	notes.PUT("/notes/:id", h.UpdateNote)
	notes.DELETE("/notes/:id", h.DeleteNote)
}

func (h *Handler) CreateVisit(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.CreateVisit(c.Request().Context(), clinicID, in)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) GetVisit(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.svc.GetVisit(c.Request().Context(), clinicID, id)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListVisits(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	visits, total, err := h.svc.ListVisits(c.Request().Context(), clinicID, f, pg.Limit, pg.Offset)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(visits, total, pg))
}

func (h *Handler) UpdateVisit(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var p Patch
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.UpdateVisit(c.Request().Context(), clinicID, id, p)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) DeleteVisit(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	deleted, err := h.svc.DeleteVisit(c.Request().Context(), clinicID, id)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	if !deleted {
		return apperrors.ToHTTPError(apperrors.NewNotFoundError("visit"))
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Clinical Note Handlers --

func (h *Handler) CreateNote(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	visitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in NoteInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.DoctorID == uuid.Nil {
		// Doctors writing their own note may omit doctor_id.
		if self, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context())); err == nil {
			in.DoctorID = self
		}
	}
	n, err := h.svc.CreateClinicalNote(c.Request().Context(), clinicID, visitID, in)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) ListNotes(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	visitID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	notes, err := h.svc.ListClinicalNotes(c.Request().Context(), clinicID, visitID)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, notes)
}

func (h *Handler) GetNote(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	n, err := h.svc.GetClinicalNote(c.Request().Context(), clinicID, id)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) UpdateNote(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in NoteInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, err := h.svc.UpdateClinicalNote(c.Request().Context(), clinicID, id, in)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) DeleteNote(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	deleted, err := h.svc.DeleteClinicalNote(c.Request().Context(), clinicID, id)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	if !deleted {
		return apperrors.ToHTTPError(apperrors.NewNotFoundError("clinical note"))
	}
	return c.NoContent(http.StatusNoContent)
}

func filterFromQuery(c echo.Context) (ListFilter, error) {
	var f ListFilter
	for _, p := range []struct {
		name string
		dst  **uuid.UUID
	}{{"patient_id", &f.PatientID}, {"doctor_id", &f.DoctorID}} {
		if raw := c.QueryParam(p.name); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return f, echo.NewHTTPError(http.StatusBadRequest, "invalid "+p.name)
			}
			*p.dst = &id
		}
	}
	if raw := c.QueryParam("status"); raw != "" {
		st, err := ParseStatus(raw)
		if err != nil {
			return f, apperrors.ToHTTPError(err)
		}
		f.Status = &st
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		if raw := c.QueryParam(p.name); raw != "" {
			t, err := parseTime(raw)
			if err != nil {
				return f, echo.NewHTTPError(http.StatusBadRequest, "invalid "+p.name+", expected RFC3339 or YYYY-MM-DD")
			}
			*p.dst = &t
		}
	}
	return f, nil
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
