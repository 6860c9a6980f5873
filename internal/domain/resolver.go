package domain

import "context"

// TrackResolver translates track IDs into playable URLs. IDs that the
// upstream cannot resolve may be absent from the result; the caller
// must treat absence the same as an explicit failure.
type TrackResolver interface {
	// Resolve resolves the given track IDs at the requested quality.
	// sessionToken may be empty for anonymous resolution.
	Resolve(ctx context.Context, ids []int64, quality QualityLevel, sessionToken string) ([]ResolvedTrack, error)
}

// Archiver accumulates named binary entries and serializes them into
// one compressed blob. Finalize may be called at most once.
type Archiver interface {
	Add(name string, data []byte) error
	Finalize() ([]byte, error)
	Len() int
}

// ArchiveFactory creates a fresh archive for one batch. A nil factory
// means the archive capability is unavailable and batch validation
// must reject.
type ArchiveFactory func() Archiver
