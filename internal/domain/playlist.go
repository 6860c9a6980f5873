package domain

// Playlist represents one playlist with its loaded tracks
type Playlist struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty"`
	Creator     string   `json:"creator,omitempty"`
	TrackCount  int      `json:"track_count"`
	PlayCount   int64    `json:"play_count,omitempty"`
	Tracks      []*Track `json:"tracks,omitempty"`
}

// PlaylistSummary is a search result entry, without tracks
type PlaylistSummary struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CoverURL   string `json:"cover_url,omitempty"`
	Creator    string `json:"creator,omitempty"`
	TrackCount int    `json:"track_count"`
	PlayCount  int64  `json:"play_count,omitempty"`
}
