package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/tunepack-go/internal/domain"
	"go.uber.org/zap"
)

// trackPageSize bounds one paged request against the track listing
// endpoint
const trackPageSize = 100

// PlaylistClient fetches playlist metadata from the upstream service.
// A PlaylistCache, when attached, short-circuits detail lookups within
// its TTL.
type PlaylistClient struct {
	baseURL    string
	httpClient *http.Client
	cache      domain.PlaylistCache
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewPlaylistClient creates a new playlist metadata client
func NewPlaylistClient(baseURL string, timeout time.Duration, logger *zap.Logger) *PlaylistClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlaylistClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// WithCache attaches a metadata cache
func (c *PlaylistClient) WithCache(cache domain.PlaylistCache, ttl time.Duration) *PlaylistClient {
	c.cache = cache
	c.cacheTTL = ttl
	return c
}

// upstream JSON shapes

type upstreamTrack struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Fee     int    `json:"fee"`
	Dt      int64  `json:"dt"`
	Artists []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"ar"`
	Album struct {
		Name string `json:"name"`
	} `json:"al"`
}

func (t upstreamTrack) toDomain() *domain.Track {
	track := &domain.Track{
		ID:       t.ID,
		Name:     t.Name,
		Album:    t.Album.Name,
		Duration: t.Dt,
		Fee:      domain.FeeTier(t.Fee),
	}
	for _, a := range t.Artists {
		track.Artists = append(track.Artists, domain.Artist{ID: a.ID, Name: a.Name})
	}
	return track
}

// Search searches playlists by keyword
func (c *PlaylistClient) Search(ctx context.Context, keywords string, limit, offset int) ([]domain.PlaylistSummary, error) {
	if strings.TrimSpace(keywords) == "" {
		return nil, fmt.Errorf("search keywords must not be empty")
	}
	if limit <= 0 {
		limit = 30
	}

	body, err := c.get(ctx, "/search", url.Values{
		"keywords": {keywords},
		"type":     {"1000"}, // playlist search
		"limit":    {strconv.Itoa(limit)},
		"offset":   {strconv.Itoa(offset)},
	})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Result struct {
			Playlists []struct {
				ID          int64  `json:"id"`
				Name        string `json:"name"`
				CoverImgURL string `json:"coverImgUrl"`
				TrackCount  int    `json:"trackCount"`
				PlayCount   int64  `json:"playCount"`
				Creator     struct {
					Nickname string `json:"nickname"`
				} `json:"creator"`
			} `json:"playlists"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unparseable search response: %w", err)
	}

	summaries := make([]domain.PlaylistSummary, 0, len(envelope.Result.Playlists))
	for _, p := range envelope.Result.Playlists {
		summaries = append(summaries, domain.PlaylistSummary{
			ID:         p.ID,
			Name:       p.Name,
			CoverURL:   p.CoverImgURL,
			Creator:    p.Creator.Nickname,
			TrackCount: p.TrackCount,
			PlayCount:  p.PlayCount,
		})
	}
	return summaries, nil
}

// Detail fetches a playlist and all of its tracks, paging through the
// track listing endpoint
func (c *PlaylistClient) Detail(ctx context.Context, id int64) (*domain.Playlist, error) {
	if c.cache != nil {
		cached, err := c.cache.Get(id, c.cacheTTL)
		if err != nil {
			c.logger.Warn("Playlist cache read failed", zap.Int64("playlist_id", id), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	body, err := c.get(ctx, "/playlist/detail", url.Values{"id": {strconv.FormatInt(id, 10)}})
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Playlist struct {
			ID          int64  `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description"`
			CoverImgURL string `json:"coverImgUrl"`
			TrackCount  int    `json:"trackCount"`
			PlayCount   int64  `json:"playCount"`
			Creator     struct {
				Nickname string `json:"nickname"`
			} `json:"creator"`
		} `json:"playlist"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unparseable playlist detail: %w", err)
	}
	if envelope.Playlist.ID == 0 {
		return nil, fmt.Errorf("playlist %d not found", id)
	}

	playlist := &domain.Playlist{
		ID:          envelope.Playlist.ID,
		Name:        envelope.Playlist.Name,
		Description: envelope.Playlist.Description,
		CoverURL:    envelope.Playlist.CoverImgURL,
		Creator:     envelope.Playlist.Creator.Nickname,
		TrackCount:  envelope.Playlist.TrackCount,
		PlayCount:   envelope.Playlist.PlayCount,
	}

	tracks, err := c.allTracks(ctx, id, playlist.TrackCount)
	if err != nil {
		return nil, err
	}
	playlist.Tracks = tracks

	if c.cache != nil {
		if err := c.cache.Put(playlist); err != nil {
			c.logger.Warn("Playlist cache write failed", zap.Int64("playlist_id", id), zap.Error(err))
		}
	}
	return playlist, nil
}

// allTracks pages through the playlist's full track listing
func (c *PlaylistClient) allTracks(ctx context.Context, id int64, trackCount int) ([]*domain.Track, error) {
	var tracks []*domain.Track

	for offset := 0; ; offset += trackPageSize {
		body, err := c.get(ctx, "/playlist/track/all", url.Values{
			"id":     {strconv.FormatInt(id, 10)},
			"limit":  {strconv.Itoa(trackPageSize)},
			"offset": {strconv.Itoa(offset)},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch tracks at offset %d: %w", offset, err)
		}

		var envelope struct {
			Songs []upstreamTrack `json:"songs"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("unparseable track listing: %w", err)
		}

		for _, s := range envelope.Songs {
			tracks = append(tracks, s.toDomain())
		}

		if len(envelope.Songs) < trackPageSize {
			break
		}
		if trackCount > 0 && len(tracks) >= trackCount {
			break
		}
	}

	return tracks, nil
}

// get issues one upstream GET and returns the response body
func (c *PlaylistClient) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("upstream returned HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
