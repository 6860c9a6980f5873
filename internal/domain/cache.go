package domain

import "time"

// CachedPlaylist is one cached upstream playlist payload
type CachedPlaylist struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	Payload   string    `gorm:"type:text"` // JSON-encoded Playlist
	FetchedAt time.Time `gorm:"index"`
}

// Expired reports whether the entry is older than ttl
func (c *CachedPlaylist) Expired(ttl time.Duration) bool {
	return time.Since(c.FetchedAt) > ttl
}

// PlaylistCache defines the interface for playlist metadata caching.
// Only upstream metadata is cached; batch results are never persisted.
type PlaylistCache interface {
	// Get returns the cached playlist, or nil when absent or expired
	Get(id int64, ttl time.Duration) (*Playlist, error)

	// Put stores or replaces the cached playlist
	Put(playlist *Playlist) error

	// Purge deletes entries older than ttl
	Purge(ttl time.Duration) error
}
