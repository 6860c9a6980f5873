package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/tunepack-go/internal/infrastructure"
	"go.uber.org/zap"
)

// PlaylistHandler handles playlist lookup HTTP requests
type PlaylistHandler struct {
	playlists *infrastructure.PlaylistClient
	logger    *zap.Logger
}

// NewPlaylistHandler creates a new playlist handler
func NewPlaylistHandler(playlists *infrastructure.PlaylistClient, logger *zap.Logger) *PlaylistHandler {
	return &PlaylistHandler{
		playlists: playlists,
		logger:    logger,
	}
}

// Search handles GET /api/v1/playlists/search
func (h *PlaylistHandler) Search(c *gin.Context) {
	keywords := c.Query("keywords")
	if keywords == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "keywords parameter is required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	results, err := h.playlists.Search(c.Request.Context(), keywords, limit, offset)
	if err != nil {
		h.logger.Error("Playlist search failed", zap.String("keywords", keywords), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"playlists": results})
}

// Detail handles GET /api/v1/playlists/:id
func (h *PlaylistHandler) Detail(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid playlist id"})
		return
	}

	playlist, err := h.playlists.Detail(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Playlist detail failed", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, playlist)
}
