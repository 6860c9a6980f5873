package infrastructure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yourusername/tunepack-go/internal/domain"
	"go.uber.org/zap"
)

// Collector is the fetch-and-collect engine: it retrieves the audio
// payload for each download item and inserts it into the archive.
// Items are processed strictly sequentially in selection order, so
// progress reporting stays deterministic and the upstream CDN sees at
// most one connection at a time. A failed item never aborts the batch.
type Collector struct {
	httpClient *http.Client
	userAgent  string
	logger     *zap.Logger
}

// NewCollector creates a new fetch-and-collect engine
func NewCollector(timeout time.Duration, userAgent string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		logger:     logger,
	}
}

// Run fetches every item in state.Items, in order, into the archive.
// After every item, success or failure, state's counters are advanced
// and onProgress fires. Returns the number of succeeded items.
//
// Cancellation is only honored between items; an in-flight fetch runs
// to its timeout.
func (c *Collector) Run(ctx context.Context, state *domain.BatchState, archive domain.Archiver, onProgress func(domain.Progress)) int {
	succeeded := 0

	for _, item := range state.Items {
		state.CurrentID = item.TrackID

		if err := ctx.Err(); err != nil {
			item.MarkFailed(err)
			state.Completed++
			if onProgress != nil {
				onProgress(state.Progress())
			}
			continue
		}

		item.MarkInFlight()

		if err := c.fetchItem(ctx, item, archive); err != nil {
			item.MarkFailed(err)
			c.logger.Warn("Track download failed",
				zap.Int64("track_id", item.TrackID),
				zap.String("title", item.Title),
				zap.Error(err))
		} else {
			item.MarkSucceeded()
			succeeded++
			c.logger.Info("Track downloaded",
				zap.Int64("track_id", item.TrackID),
				zap.String("title", item.Title),
				zap.String("availability", string(item.Availability)))
		}

		state.Completed++
		if onProgress != nil {
			onProgress(state.Progress())
		}
	}

	return succeeded
}

// fetchItem retrieves one item's payload and adds it to the archive
func (c *Collector) fetchItem(ctx context.Context, item *domain.DownloadItem, archive domain.Archiver) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("empty payload")
	}

	if err := archive.Add(item.Filename, data); err != nil {
		return fmt.Errorf("failed to archive: %w", err)
	}
	return nil
}
