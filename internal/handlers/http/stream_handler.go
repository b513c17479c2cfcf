package http

import (
	"errors"
	"net/http"
	"time"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
	"livegate/internal/core/services"
	"livegate/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
)

type StreamHandler struct {
	states      ports.StateMachine
	rooms       ports.RoomRepository
	store       ports.StreamStore
	gate        ports.AuthGate
	coordinator *services.Coordinator
}

func NewStreamHandler(
	states ports.StateMachine,
	rooms ports.RoomRepository,
	store ports.StreamStore,
	gate ports.AuthGate,
	coordinator *services.Coordinator,
) *StreamHandler {
	return &StreamHandler{
		states:      states,
		rooms:       rooms,
		store:       store,
		gate:        gate,
		coordinator: coordinator,
	}
}

func (h *StreamHandler) SetupRoutes(router *gin.Engine, ids ports.IdentityProvider) {
	api := router.Group("/api/v1")
	{
		api.GET("/streams", middleware.OptionalAuthMiddleware(ids), h.ListStreams)
		api.GET("/streams/:key", middleware.OptionalAuthMiddleware(ids), h.GetStream)
		api.POST("/streams/:key/end", middleware.AuthMiddleware(ids), h.EndStream)
	}
}

type streamSummary struct {
	StreamKey   domain.StreamKey    `json:"stream_key"`
	Status      domain.StreamStatus `json:"status"`
	Owner       domain.UserID       `json:"owner,omitempty"`
	IsPrivate   bool                `json:"is_private"`
	StartedAt   time.Time           `json:"started_at"`
	ViewerCount int                 `json:"viewer_count"`
}

// ListStreams returns the streams that are currently live. Private streams
// appear only for their owner or an admin.
func (h *StreamHandler) ListStreams(c *gin.Context) {
	identity, _ := middleware.IdentityFrom(c)

	summaries := make([]streamSummary, 0)
	for _, key := range h.states.LiveKeys() {
		st, ok := h.states.Current(key)
		if !ok {
			continue
		}
		if st.IsPrivate && !canSeePrivate(identity, st.Owner) {
			continue
		}
		summaries = append(summaries, streamSummary{
			StreamKey:   key,
			Status:      st.Status,
			Owner:       st.Owner,
			IsPrivate:   st.IsPrivate,
			StartedAt:   st.StartedAt,
			ViewerCount: h.rooms.Count(key),
		})
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "streams": summaries})
}

func (h *StreamHandler) GetStream(c *gin.Context) {
	key := domain.StreamKey(c.Param("key"))
	identity, _ := middleware.IdentityFrom(c)

	if st, ok := h.states.Current(key); ok {
		if err := h.gate.AuthorizeView(c.Request.Context(), key, identity); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "access denied"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"stream": streamSummary{
				StreamKey:   key,
				Status:      st.Status,
				Owner:       st.Owner,
				IsPrivate:   st.IsPrivate,
				StartedAt:   st.StartedAt,
				ViewerCount: h.rooms.Count(key),
			},
		})
		return
	}

	record, err := h.store.FindStreamByKey(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrStreamNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "stream not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "lookup failed"})
		return
	}
	if record.IsPrivate && !canSeePrivate(identity, record.Owner) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "stream not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "stream": record})
}

// EndStream force-ends a live stream. Only the owner or an admin may do it.
func (h *StreamHandler) EndStream(c *gin.Context) {
	key := domain.StreamKey(c.Param("key"))
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authentication required"})
		return
	}
	if !identity.CanPublish(key) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "not the stream owner"})
		return
	}

	st := h.coordinator.OnPublishEnd(c.Request.Context(), key)
	if st.Status != domain.StatusEnded && st.Status != domain.StatusError {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "stream is not live"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"stream_key":       key,
		"status":           st.Status,
		"duration_seconds": int64(st.Duration().Seconds()),
	})
}

func canSeePrivate(identity *domain.Identity, owner domain.UserID) bool {
	if identity == nil {
		return false
	}
	return identity.Role == domain.RoleAdmin || identity.ID == owner
}
