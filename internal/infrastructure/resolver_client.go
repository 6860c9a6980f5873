package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/tunepack-go/internal/domain"
	"go.uber.org/zap"
)

// DefaultChunkSize bounds the number of track IDs per upstream request
const DefaultChunkSize = 50

// SongURLClient resolves track IDs into playable URLs through a
// NeteaseCloudMusicApi-compatible upstream. IDs are resolved in
// fixed-size chunks, sequentially; a failed chunk is logged and
// skipped, never retried.
type SongURLClient struct {
	baseURL    string
	httpClient *http.Client
	chunkSize  int
	logger     *zap.Logger
}

// NewSongURLClient creates a new resolver client
func NewSongURLClient(baseURL string, timeout time.Duration, chunkSize int, logger *zap.Logger) *SongURLClient {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SongURLClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		chunkSize:  chunkSize,
		logger:     logger,
	}
}

// Resolve resolves the given track IDs at the requested quality.
// sessionToken may be empty for anonymous resolution. IDs in failed
// chunks are simply absent from the result; the caller treats absence
// as a resolution failure.
func (c *SongURLClient) Resolve(ctx context.Context, ids []int64, quality domain.QualityLevel, sessionToken string) ([]domain.ResolvedTrack, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var resolved []domain.ResolvedTrack
	for start := 0; start < len(ids); start += c.chunkSize {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}

		end := start + c.chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		records, err := c.resolveChunk(ctx, chunk, quality, sessionToken)
		if err != nil {
			c.logger.Warn("Track URL chunk resolution failed",
				zap.Int("chunk_start", start),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err))
			continue
		}
		resolved = append(resolved, records...)
	}

	return resolved, nil
}

// resolveChunk issues one upstream request for up to chunkSize IDs
func (c *SongURLClient) resolveChunk(ctx context.Context, ids []int64, quality domain.QualityLevel, sessionToken string) ([]domain.ResolvedTrack, error) {
	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = strconv.FormatInt(id, 10)
	}
	url := fmt.Sprintf("%s/song/url/v1?id=%s&level=%s", c.baseURL, strings.Join(idStrs, ","), quality)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if sessionToken != "" {
		req.Header.Set("Cookie", sessionToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("upstream returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return parseSongURLBody(body)
}

// parseSongURLBody normalizes the upstream response shapes into
// ResolvedTrack records. The upstream is inconsistent about where the
// success code lives and whether data is an array or a single object;
// every known shape is handled here so nothing duck-typed leaks into
// classification. An unrecognizable body is a chunk failure.
func parseSongURLBody(body []byte) ([]domain.ResolvedTrack, error) {
	var envelope struct {
		Code int             `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unparseable resolver response: %w", err)
	}
	if len(envelope.Data) == 0 {
		return nil, fmt.Errorf("resolver response has no data (code %d)", envelope.Code)
	}

	// data as array of records
	var records []domain.ResolvedTrack
	if err := json.Unmarshal(envelope.Data, &records); err == nil {
		return records, nil
	}

	// data as a single record
	var single domain.ResolvedTrack
	if err := json.Unmarshal(envelope.Data, &single); err == nil && single.ID != 0 {
		return []domain.ResolvedTrack{single}, nil
	}

	// data as a nested envelope
	var nested struct {
		Code int             `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(envelope.Data, &nested); err == nil && len(nested.Data) > 0 {
		if err := json.Unmarshal(nested.Data, &records); err == nil {
			return records, nil
		}
	}

	return nil, fmt.Errorf("unrecognized resolver response shape")
}
