package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/tunepack-go/internal/app"
	"github.com/yourusername/tunepack-go/internal/domain"
	"github.com/yourusername/tunepack-go/internal/infrastructure"
	"go.uber.org/zap"
)

// BatchHandler handles batch download HTTP requests
type BatchHandler struct {
	orchestrator *app.Orchestrator
	playlists    *infrastructure.PlaylistClient
	logger       *zap.Logger

	mu          sync.RWMutex
	lastSummary *domain.Summary
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(orchestrator *app.Orchestrator, playlists *infrastructure.PlaylistClient, logger *zap.Logger) *BatchHandler {
	return &BatchHandler{
		orchestrator: orchestrator,
		playlists:    playlists,
		logger:       logger,
	}
}

// RecordSummary captures the terminal summary of the most recent batch.
// Wire it into the orchestrator's completion callback.
func (h *BatchHandler) RecordSummary(summary *domain.Summary) {
	h.mu.Lock()
	h.lastSummary = summary
	h.mu.Unlock()
}

// StartBatchRequest represents a request to start a batch download
type StartBatchRequest struct {
	PlaylistID int64   `json:"playlist_id" binding:"required"`
	TrackIDs   []int64 `json:"track_ids,omitempty"`
}

// StartBatch handles POST /api/v1/batches. With no track_ids the whole
// playlist is selected. The batch runs past the request lifetime, so
// it is started on a background context.
func (h *BatchHandler) StartBatch(c *gin.Context) {
	var req StartBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	playlist, err := h.playlists.Detail(c.Request.Context(), req.PlaylistID)
	if err != nil {
		h.logger.Error("Failed to load playlist for batch", zap.Int64("playlist_id", req.PlaylistID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	var selection *domain.TrackSelection
	if len(req.TrackIDs) == 0 {
		selection = domain.SelectAll(playlist.Tracks)
	} else {
		selection = domain.NewTrackSelection()
		wanted := make(map[int64]bool, len(req.TrackIDs))
		for _, id := range req.TrackIDs {
			wanted[id] = true
		}
		for _, track := range playlist.Tracks {
			if wanted[track.ID] {
				selection.Add(track)
			}
		}
	}

	if err := h.orchestrator.Start(context.Background(), selection, playlist.Name); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrBatchInProgress):
			status = http.StatusConflict
		case errors.Is(err, domain.ErrEmptySelection):
			status = http.StatusBadRequest
		case errors.Is(err, domain.ErrArchiverUnavailable):
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"playlist": playlist.Name,
		"selected": selection.Len(),
		"status":   h.orchestrator.Status(),
	})
}

// GetStatus handles GET /api/v1/batches/current
func (h *BatchHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.orchestrator.Status())
}

// GetLastSummary handles GET /api/v1/batches/last
func (h *BatchHandler) GetLastSummary(c *gin.Context) {
	h.mu.RLock()
	summary := h.lastSummary
	h.mu.RUnlock()

	if summary == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no batch has completed yet"})
		return
	}
	c.JSON(http.StatusOK, summary)
}
