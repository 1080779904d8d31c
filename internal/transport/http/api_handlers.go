package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/meetwire/meetwire/internal/proto"
	"github.com/meetwire/meetwire/internal/store"
)

// APIHandlers provides HTTP handlers for REST API endpoints.
type APIHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(st store.Store, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{store: st, log: logger}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Router builds the gin engine with all REST routes mounted.
func (h *APIHandlers) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", h.Health)
	r.GET("/api/rooms/:room/messages", h.RoomMessages)
	return r
}

// Health reports liveness.
// GET /health
func (h *APIHandlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// RoomMessages returns a room's stored history, oldest first, in the same
// shape the websocket history replay uses.
// GET /api/rooms/:room/messages
func (h *APIHandlers) RoomMessages(c *gin.Context) {
	room := c.Param("room")
	if room == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "room is required"})
		return
	}

	msgs, err := h.store.ListRoomMessages(c.Request.Context(), room)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.log.Error().Err(err).Str("room", room).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]proto.ChatMessageData, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, proto.ChatMessageData{
			ID:               m.ID,
			Identity:         m.Identity,
			Room:             m.Room,
			Kind:             m.Kind,
			Content:          m.Content,
			OriginalName:     m.OriginalName,
			TimestampDisplay: m.CreatedAt.Format("15:04"),
		})
	}
	c.JSON(http.StatusOK, out)
}
