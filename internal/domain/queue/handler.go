package queue

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/abroroo/medicPro-sub000/internal/platform/auth"
	"github.com/abroroo/medicPro-sub000/internal/platform/db"
	"github.com/abroroo/medicPro-sub000/internal/platform/events"
	"github.com/abroroo/medicPro-sub000/pkg/apperrors"
)

const streamHeartbeat = 20 * time.Second

type Handler struct {
	svc *Service
	sub events.Subscriber
}

// NewHandler wires the queue endpoints. sub may be nil, in which case the
// stream endpoint is not registered.
func NewHandler(svc *Service, sub events.Subscriber) *Handler {
	return &Handler{svc: svc, sub: sub}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Desk actions – reception and clinicians
	write := api.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleDoctor, auth.RoleHeadDoctor))
	write.POST("/queue", h.Admit)
	write.PATCH("/queue/:id/status", h.SetStatus)
	write.POST("/queue/call-next", h.CallNext)

	// Board reads – every clinic role
	read := api.Group("", auth.RequireRole(auth.ClinicRoles...))
	read.GET("/queue/today", h.Today)
	read.GET("/queue/stats", h.Stats)
	read.GET("/queue/:id/events", h.History)
	if h.sub != nil {
		read.GET("/queue/stream", h.Stream)
	}
}

func (h *Handler) Admit(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	var in AdmitInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Admit(c.Request().Context(), clinicID, in)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) SetStatus(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	to, err := ParseStatus(req.Status)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	item, err := h.svc.SetStatus(c.Request().Context(), clinicID, id, to)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) CallNext(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	res, err := h.svc.CallNext(c.Request().Context(), clinicID)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) Today(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	entries, err := h.svc.TodaysQueue(c.Request().Context(), clinicID)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) Stats(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Stats(c.Request().Context(), clinicID)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) History(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	evts, err := h.svc.History(c.Request().Context(), clinicID, id)
	if err != nil {
		return apperrors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, evts)
}

// Stream pushes the clinic's queue events as server-sent events until the
// client disconnects.
func (h *Handler) Stream(c echo.Context) error {
	clinicID, err := db.RequireClinic(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	ch, err := h.sub.Subscribe(ctx, clinicID)
	if err != nil {
		return apperrors.Respond(c, apperrors.NewInternalError("subscribe to queue events", err))
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	w.Flush()

	ticker := time.NewTicker(streamHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			w.Flush()
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", evt.ID, evt.Type, data)
			w.Flush()
		}
	}
}
