package infrastructure

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/tunepack-go/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLitePlaylistCache implements domain.PlaylistCache using SQLite.
// Only upstream playlist metadata is cached; batch outcomes are never
// written here.
type SQLitePlaylistCache struct {
	db *gorm.DB
}

// NewSQLitePlaylistCache creates a new SQLite-backed cache
func NewSQLitePlaylistCache(dbPath string) (*SQLitePlaylistCache, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := db.AutoMigrate(&domain.CachedPlaylist{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cache database: %w", err)
	}

	return &SQLitePlaylistCache{db: db}, nil
}

// Get returns the cached playlist, or nil when absent or expired
func (c *SQLitePlaylistCache) Get(id int64, ttl time.Duration) (*domain.Playlist, error) {
	var entry domain.CachedPlaylist
	err := c.db.First(&entry, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if entry.Expired(ttl) {
		return nil, nil
	}

	var playlist domain.Playlist
	if err := json.Unmarshal([]byte(entry.Payload), &playlist); err != nil {
		// stale or corrupt payload, treat as a miss
		return nil, nil
	}
	return &playlist, nil
}

// Put stores or replaces the cached playlist
func (c *SQLitePlaylistCache) Put(playlist *domain.Playlist) error {
	payload, err := json.Marshal(playlist)
	if err != nil {
		return fmt.Errorf("failed to encode playlist: %w", err)
	}

	entry := domain.CachedPlaylist{
		ID:        playlist.ID,
		Name:      playlist.Name,
		Payload:   string(payload),
		FetchedAt: time.Now(),
	}
	return c.db.Save(&entry).Error
}

// Purge deletes entries older than ttl
func (c *SQLitePlaylistCache) Purge(ttl time.Duration) error {
	cutoff := time.Now().Add(-ttl)
	return c.db.Where("fetched_at < ?", cutoff).Delete(&domain.CachedPlaylist{}).Error
}
