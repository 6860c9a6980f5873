package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/tunepack-go/internal/domain"
)

// fakeResolver records the ID chunks it receives and answers each ID
// with a playable URL
type fakeResolver struct {
	chunks   [][]string
	failOn   map[int]bool // chunk index -> respond 500
	lastAuth string
}

func (f *fakeResolver) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idx := len(f.chunks)
		ids := strings.Split(r.URL.Query().Get("id"), ",")
		f.chunks = append(f.chunks, ids)
		f.lastAuth = r.Header.Get("Cookie")

		if f.failOn[idx] {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}

		records := make([]map[string]interface{}, 0, len(ids))
		for _, id := range ids {
			records = append(records, map[string]interface{}{
				"id":   json.Number(id),
				"url":  fmt.Sprintf("https://cdn.example.com/%s.mp3", id),
				"code": 200,
				"fee":  0,
			})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"code": 200, "data": records})
	}
}

func ids(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i + 1)
	}
	return out
}

func TestSongURLClient_ChunksOf50(t *testing.T) {
	fake := &fakeResolver{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewSongURLClient(srv.URL, 5*time.Second, 50, nil)
	resolved, err := client.Resolve(context.Background(), ids(120), domain.QualityExHigh, "")
	require.NoError(t, err)

	// 120 IDs split into chunks of 50, 50, 20
	require.Len(t, fake.chunks, 3)
	assert.Len(t, fake.chunks[0], 50)
	assert.Len(t, fake.chunks[1], 50)
	assert.Len(t, fake.chunks[2], 20)

	// union of chunks covers every ID exactly once
	seen := make(map[string]int)
	for _, chunk := range fake.chunks {
		for _, id := range chunk {
			seen[id]++
		}
	}
	assert.Len(t, seen, 120)
	for id, count := range seen {
		assert.Equalf(t, 1, count, "id %s submitted %d times", id, count)
	}

	assert.Len(t, resolved, 120)
}

func TestSongURLClient_ExactMultipleOfChunkSize(t *testing.T) {
	fake := &fakeResolver{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewSongURLClient(srv.URL, 5*time.Second, 50, nil)
	_, err := client.Resolve(context.Background(), ids(100), domain.QualityExHigh, "")
	require.NoError(t, err)
	assert.Len(t, fake.chunks, 2)
}

func TestSongURLClient_FailedChunkIsSkipped(t *testing.T) {
	fake := &fakeResolver{failOn: map[int]bool{1: true}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewSongURLClient(srv.URL, 5*time.Second, 50, nil)
	resolved, err := client.Resolve(context.Background(), ids(120), domain.QualityExHigh, "")

	// a chunk failure does not abort the batch
	require.NoError(t, err)
	assert.Len(t, fake.chunks, 3)
	assert.Len(t, resolved, 70) // chunks 0 and 2 succeeded

	got := make(map[int64]bool)
	for _, r := range resolved {
		got[r.ID] = true
	}
	assert.True(t, got[1])
	assert.False(t, got[51], "IDs of the failed chunk are absent")
	assert.True(t, got[101])
}

func TestSongURLClient_SessionTokenForwarded(t *testing.T) {
	fake := &fakeResolver{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewSongURLClient(srv.URL, 5*time.Second, 50, nil)
	_, err := client.Resolve(context.Background(), ids(1), domain.QualityExHigh, "MUSIC_U=token123")
	require.NoError(t, err)
	assert.Equal(t, "MUSIC_U=token123", fake.lastAuth)
}

func TestSongURLClient_EmptyInput(t *testing.T) {
	client := NewSongURLClient("http://unused", time.Second, 50, nil)
	resolved, err := client.Resolve(context.Background(), nil, domain.QualityExHigh, "")
	require.NoError(t, err)
	assert.Empty(t, resolved)
}

func TestParseSongURLBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantIDs []int64
		wantErr bool
	}{
		{
			name:    "array data",
			body:    `{"code":200,"data":[{"id":1,"url":"https://cdn.example.com/1.mp3","code":200,"fee":1}]}`,
			wantIDs: []int64{1},
		},
		{
			name:    "single object data",
			body:    `{"code":200,"data":{"id":7,"url":"https://cdn.example.com/7.mp3","code":200}}`,
			wantIDs: []int64{7},
		},
		{
			name:    "nested envelope",
			body:    `{"code":200,"data":{"code":200,"data":[{"id":3,"url":"https://cdn.example.com/3.mp3","code":200}]}}`,
			wantIDs: []int64{3},
		},
		{
			name:    "trial privilege carried through",
			body:    `{"code":200,"data":[{"id":5,"url":"https://cdn.example.com/5.mp3","code":200,"freeTrialPrivilege":{"resConsumable":false,"userConsumable":false}}]}`,
			wantIDs: []int64{5},
		},
		{
			name:    "not json",
			body:    `<html>gateway error</html>`,
			wantErr: true,
		},
		{
			name:    "missing data",
			body:    `{"code":500}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := parseSongURLBody([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			gotIDs := make([]int64, len(records))
			for i, r := range records {
				gotIDs[i] = r.ID
			}
			assert.Equal(t, tt.wantIDs, gotIDs)
		})
	}
}
