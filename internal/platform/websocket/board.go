// Package websocket streams a clinic's queue board to WebSocket clients. The
// clinic is fixed by the authenticated request; clients cannot pick topics.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/abroroo/medicPro-sub000/internal/platform/db"
	"github.com/abroroo/medicPro-sub000/internal/platform/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// BoardHandler upgrades requests to WebSocket connections that receive every
// queue event of the caller's clinic.
type BoardHandler struct {
	sub      events.Subscriber
	upgrader gorillawebsocket.Upgrader
	logger   zerolog.Logger
}

// NewBoardHandler creates a handler. allowedOrigins empty accepts any origin.
func NewBoardHandler(sub events.Subscriber, allowedOrigins []string, logger zerolog.Logger) *BoardHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &BoardHandler{
		sub:    sub,
		logger: logger,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

func (h *BoardHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/queue/ws", h.HandleConnect)
}

func (h *BoardHandler) HandleConnect(c echo.Context) error {
	clinicID, ok := db.ClinicFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "no clinic bound to credentials")
	}

	// The subscription outlives the handler, so it is not tied to the
	// request context.
	ctx, cancel := context.WithCancel(context.Background())
	feed, err := h.sub.Subscribe(ctx, clinicID)
	if err != nil {
		cancel()
		return echo.NewHTTPError(http.StatusServiceUnavailable, "queue events unavailable").SetInternal(err)
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		cancel()
		return err
	}

	h.logger.Debug().Str("clinic_id", clinicID.String()).Msg("queue board connected")

	go h.writePump(ws, feed, cancel)
	go h.readPump(ws, cancel)
	return nil
}

// readPump discards client messages and cancels the subscription once the
// peer goes away.
func (h *BoardHandler) readPump(ws *gorillawebsocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *BoardHandler) writePump(ws *gorillawebsocket.Conn, feed <-chan events.QueueEvent, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		ws.Close()
	}()

	for {
		select {
		case ev, ok := <-feed:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
