package transcript

import (
	"log/slog"
	"net/http"

	"github.com/eleven-am/careervoice/internal/shared"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	store *Store
	log   *slog.Logger
}

func NewHandler(store *Store, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{store: store, log: log.With("component", "transcript")}
}

func (h *Handler) Register(g *echo.Group) {
	g.GET("/transcripts", h.listSessions)
	g.GET("/transcripts/:sessionID", h.getSession)
}

func (h *Handler) listSessions(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return shared.BadRequest("missing_user", "X-User-ID header is required")
	}

	summaries, err := h.store.ListSessions(c.Request().Context(), userID)
	if err != nil {
		h.log.Error("failed to list sessions", "user_id", userID, "error", err)
		return shared.InternalError("list_failed", "could not list transcripts")
	}

	return c.JSON(http.StatusOK, map[string]any{"sessions": summaries})
}

func (h *Handler) getSession(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return shared.BadRequest("missing_user", "X-User-ID header is required")
	}
	sessionID := c.Param("sessionID")

	turns, err := h.store.ListBySession(c.Request().Context(), userID, sessionID)
	if err != nil {
		h.log.Error("failed to load transcript", "session_id", sessionID, "error", err)
		return shared.InternalError("load_failed", "could not load transcript")
	}
	if len(turns) == 0 {
		return shared.NotFound("transcript_not_found", "transcript not found")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"turns":     turns,
	})
}
