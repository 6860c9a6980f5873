package domain

import "strings"

// FeeTier represents the payment classification of a track
type FeeTier int

const (
	FeeFree        FeeTier = 0 // free playback
	FeeVIP         FeeTier = 1 // requires VIP membership
	FeePaidAlbum   FeeTier = 4 // requires album purchase
	FeeFreeLowQual FeeTier = 8 // free, low quality only
)

// QualityLevel represents the requested audio quality tier
type QualityLevel string

const (
	QualityStandard QualityLevel = "standard"
	QualityHigher   QualityLevel = "higher"
	QualityExHigh   QualityLevel = "exhigh"
	QualityLossless QualityLevel = "lossless"
	QualityHiRes    QualityLevel = "hires"
)

// ValidateQuality checks if the quality level is supported
func ValidateQuality(q QualityLevel) bool {
	switch q {
	case QualityStandard, QualityHigher, QualityExHigh, QualityLossless, QualityHiRes:
		return true
	}
	return false
}

// Artist represents one performing artist of a track
type Artist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Track represents one song entry of a playlist
type Track struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Artists  []Artist `json:"artists"`
	Album    string   `json:"album,omitempty"`
	Duration int64    `json:"duration,omitempty"` // milliseconds
	Fee      FeeTier  `json:"fee"`
}

// IsVIP reports whether the track requires a paid membership for full playback
func (t *Track) IsVIP() bool {
	return t.Fee == FeeVIP || t.Fee == FeePaidAlbum
}

// ArtistNames joins all artist names with ", "
func (t *Track) ArtistNames() string {
	if len(t.Artists) == 0 {
		return "Unknown Artist"
	}
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}

// Filename builds the sanitized archive entry name for the track,
// in the form "Artist1, Artist2 - Title.mp3"
func (t *Track) Filename() string {
	return SanitizeFilename(t.ArtistNames() + " - " + t.Name + ".mp3")
}

// SanitizeFilename replaces characters that are unsafe in filenames
// with underscores. Colliding names are not deduplicated; a later
// archive entry with the same name overwrites the earlier one.
func SanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}
