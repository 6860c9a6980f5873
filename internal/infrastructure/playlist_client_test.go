package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlaylistServer(t *testing.T, trackTotal int, hits *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			*hits++
		}
		switch r.URL.Path {
		case "/search":
			assert.Equal(t, "1000", r.URL.Query().Get("type"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"result": map[string]interface{}{
					"playlists": []map[string]interface{}{
						{
							"id": 111, "name": "Morning Coffee", "trackCount": 25,
							"playCount": 90210, "coverImgUrl": "https://img.example.com/111.jpg",
							"creator": map[string]interface{}{"nickname": "djA"},
						},
						{
							"id": 222, "name": "Night Drive", "trackCount": 40,
							"creator": map[string]interface{}{"nickname": "djB"},
						},
					},
				},
			})
		case "/playlist/detail":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"playlist": map[string]interface{}{
					"id": 555, "name": "Big List", "trackCount": trackTotal,
					"creator": map[string]interface{}{"nickname": "curator"},
				},
			})
		case "/playlist/track/all":
			offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			var songs []map[string]interface{}
			for i := offset; i < offset+limit && i < trackTotal; i++ {
				songs = append(songs, map[string]interface{}{
					"id":   i + 1,
					"name": fmt.Sprintf("Track %d", i+1),
					"fee":  0,
					"ar":   []map[string]interface{}{{"id": 1, "name": "Artist"}},
					"al":   map[string]interface{}{"name": "Album"},
					"dt":   180000,
				})
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"songs": songs})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestPlaylistClient_Search(t *testing.T) {
	srv := newPlaylistServer(t, 0, nil)
	defer srv.Close()

	client := NewPlaylistClient(srv.URL, 5*time.Second, nil)
	results, err := client.Search(context.Background(), "coffee", 30, 0)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, int64(111), results[0].ID)
	assert.Equal(t, "Morning Coffee", results[0].Name)
	assert.Equal(t, "djA", results[0].Creator)
	assert.Equal(t, 25, results[0].TrackCount)
}

func TestPlaylistClient_SearchEmptyKeywords(t *testing.T) {
	client := NewPlaylistClient("http://unused", time.Second, nil)
	_, err := client.Search(context.Background(), "   ", 30, 0)
	assert.Error(t, err)
}

func TestPlaylistClient_DetailPagesThroughTracks(t *testing.T) {
	srv := newPlaylistServer(t, 230, nil)
	defer srv.Close()

	client := NewPlaylistClient(srv.URL, 5*time.Second, nil)
	playlist, err := client.Detail(context.Background(), 555)
	require.NoError(t, err)

	assert.Equal(t, "Big List", playlist.Name)
	require.Len(t, playlist.Tracks, 230)
	assert.Equal(t, int64(1), playlist.Tracks[0].ID)
	assert.Equal(t, int64(230), playlist.Tracks[229].ID)
	assert.Equal(t, "Artist", playlist.Tracks[0].ArtistNames())
}

func TestPlaylistClient_DetailUsesCache(t *testing.T) {
	hits := 0
	srv := newPlaylistServer(t, 3, &hits)
	defer srv.Close()

	cache, err := NewSQLitePlaylistCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)

	client := NewPlaylistClient(srv.URL, 5*time.Second, nil).WithCache(cache, time.Minute)

	first, err := client.Detail(context.Background(), 555)
	require.NoError(t, err)
	hitsAfterFirst := hits

	second, err := client.Detail(context.Background(), 555)
	require.NoError(t, err)

	assert.Equal(t, hitsAfterFirst, hits, "second lookup served from cache")
	assert.Equal(t, first.Name, second.Name)
	assert.Len(t, second.Tracks, 3)
}
