package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// BatchPhase represents the current phase of a batch download
type BatchPhase string

const (
	PhaseIdle       BatchPhase = "idle"
	PhaseValidating BatchPhase = "validating"
	PhaseAuthCheck  BatchPhase = "auth_check"
	PhaseResolving  BatchPhase = "resolving"
	PhaseFetching   BatchPhase = "fetching"
	PhaseFinalizing BatchPhase = "finalizing"
	PhaseCompleted  BatchPhase = "completed"
	PhaseAborted    BatchPhase = "aborted"
)

// Batch precondition errors, surfaced synchronously to the caller
var (
	ErrEmptySelection       = errors.New("selection is empty")
	ErrBatchInProgress      = errors.New("a batch download is already in progress")
	ErrArchiverUnavailable  = errors.New("archive capability is not available")
	ErrNoDownloadableTracks = errors.New("no downloadable tracks")
	ErrAllDownloadsFailed   = errors.New("all downloads failed")
)

// ItemOutcome represents the state of one download item
type ItemOutcome string

const (
	ItemPending   ItemOutcome = "pending"
	ItemInFlight  ItemOutcome = "in_flight"
	ItemSucceeded ItemOutcome = "succeeded"
	ItemFailed    ItemOutcome = "failed"
)

// DownloadItem is the unit tracked through the fetch stage. It is
// created when a resolved track classifies as fetchable and discarded
// after the batch finalizes.
type DownloadItem struct {
	TrackID      int64
	Title        string
	Filename     string
	URL          string
	Availability Availability
	Outcome      ItemOutcome
	FailReason   string
}

// MarkInFlight marks the item as currently being fetched
func (it *DownloadItem) MarkInFlight() {
	it.Outcome = ItemInFlight
}

// MarkSucceeded marks the item as fetched and archived
func (it *DownloadItem) MarkSucceeded() {
	it.Outcome = ItemSucceeded
	it.FailReason = ""
}

// MarkFailed marks the item as failed with a captured reason
func (it *DownloadItem) MarkFailed(err error) {
	it.Outcome = ItemFailed
	if err != nil {
		it.FailReason = err.Error()
	}
}

// ItemFailure pairs a track ID with the reason it failed or was excluded
type ItemFailure struct {
	TrackID int64  `json:"track_id"`
	Reason  string `json:"reason"`
}

// Progress is a point-in-time view of a running batch, reported after
// every item regardless of outcome
type Progress struct {
	Completed int   `json:"completed"`
	Total     int   `json:"total"`
	CurrentID int64 `json:"current_id"`
}

// Summary is the terminal report of one batch. The three sets are
// disjoint: excluded tracks were never attempted, failed tracks were
// attempted and did not yield a payload.
type Summary struct {
	BatchID     string        `json:"batch_id"`
	Succeeded   []int64       `json:"succeeded"`
	Failed      []ItemFailure `json:"failed"`
	Excluded    []ItemFailure `json:"excluded"`
	ArchivePath string        `json:"archive_path,omitempty"`
	ArchiveSize int64         `json:"archive_size,omitempty"`
	Err         string        `json:"error,omitempty"`
}

// BatchState is the single mutable object owned by the orchestrator
// for the lifetime of one batch. At most one batch may be active at a
// time; the orchestrator's guard flag enforces this.
type BatchState struct {
	ID           string
	PlaylistName string
	Phase        BatchPhase
	Selection    *TrackSelection
	Items        []*DownloadItem
	Total        int
	Completed    int
	CurrentID    int64
	Excluded     []ItemFailure
	StartedAt    time.Time
}

// NewBatchState snapshots the selection and starts a batch in the
// validating phase
func NewBatchState(selection *TrackSelection, playlistName string) *BatchState {
	return &BatchState{
		ID:           uuid.New().String(),
		PlaylistName: playlistName,
		Phase:        PhaseValidating,
		Selection:    selection.Snapshot(),
		StartedAt:    time.Now(),
	}
}

// Exclude records a track that will never be attempted
func (b *BatchState) Exclude(trackID int64, reason string) {
	b.Excluded = append(b.Excluded, ItemFailure{TrackID: trackID, Reason: reason})
}

// Progress returns the current progress view
func (b *BatchState) Progress() Progress {
	return Progress{Completed: b.Completed, Total: b.Total, CurrentID: b.CurrentID}
}

// Summarize folds the item outcomes into the terminal summary
func (b *BatchState) Summarize() *Summary {
	summary := &Summary{
		BatchID:  b.ID,
		Excluded: b.Excluded,
	}
	for _, it := range b.Items {
		switch it.Outcome {
		case ItemSucceeded:
			summary.Succeeded = append(summary.Succeeded, it.TrackID)
		case ItemFailed:
			summary.Failed = append(summary.Failed, ItemFailure{TrackID: it.TrackID, Reason: it.FailReason})
		}
	}
	return summary
}
