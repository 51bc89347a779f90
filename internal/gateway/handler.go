package gateway

import (
	"log/slog"
	"net/http"

	"github.com/eleven-am/careervoice/internal/conversation"
	"github.com/eleven-am/careervoice/internal/shared"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Handler struct {
	manager *conversation.Manager
	log     *slog.Logger
}

func NewHandler(manager *conversation.Manager, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{manager: manager, log: log.With("component", "gateway")}
}

func (h *Handler) Register(g *echo.Group) {
	g.GET("/assistant/ws", h.handleWebSocket)
}

func (h *Handler) handleWebSocket(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		userID = c.QueryParam("user_id")
	}
	if userID == "" {
		return shared.BadRequest("missing_user", "a user identity is required to connect")
	}

	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return err
	}

	conn := NewConn(ws, userID, h.log)
	engine := h.manager.Attach(conn.ID(), userID, conn, conn.Speaker(), conn, conn)

	h.log.Info("client connected", "conn_id", conn.ID(), "user_id", userID)

	go conn.writePump()
	conn.readPump(engine)

	h.manager.Detach(conn.ID())
	h.log.Info("client disconnected", "conn_id", conn.ID())
	return nil
}
