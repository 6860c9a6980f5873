package domain

// TrackSelection is the user's chosen set of tracks for one batch.
// Order is preserved and IDs are unique. A selection is snapshotted
// when a batch starts and is immutable for the duration of that batch.
type TrackSelection struct {
	ids    []int64
	tracks map[int64]*Track
}

// NewTrackSelection creates an empty selection
func NewTrackSelection() *TrackSelection {
	return &TrackSelection{tracks: make(map[int64]*Track)}
}

// Add selects a track. Re-adding an already selected track is a no-op.
func (s *TrackSelection) Add(track *Track) {
	if track == nil {
		return
	}
	if _, ok := s.tracks[track.ID]; ok {
		return
	}
	s.ids = append(s.ids, track.ID)
	s.tracks[track.ID] = track
}

// Remove deselects a track by ID
func (s *TrackSelection) Remove(id int64) {
	if _, ok := s.tracks[id]; !ok {
		return
	}
	delete(s.tracks, id)
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			break
		}
	}
}

// Toggle flips the selection state of a track
func (s *TrackSelection) Toggle(track *Track) {
	if track == nil {
		return
	}
	if _, ok := s.tracks[track.ID]; ok {
		s.Remove(track.ID)
		return
	}
	s.Add(track)
}

// Contains reports whether the track ID is selected
func (s *TrackSelection) Contains(id int64) bool {
	_, ok := s.tracks[id]
	return ok
}

// Len returns the number of selected tracks
func (s *TrackSelection) Len() int {
	return len(s.ids)
}

// IDs returns the selected track IDs in selection order
func (s *TrackSelection) IDs() []int64 {
	out := make([]int64, len(s.ids))
	copy(out, s.ids)
	return out
}

// Track returns the metadata for a selected track ID, or nil
func (s *TrackSelection) Track(id int64) *Track {
	return s.tracks[id]
}

// Tracks returns the selected tracks in selection order
func (s *TrackSelection) Tracks() []*Track {
	out := make([]*Track, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.tracks[id])
	}
	return out
}

// VIPTracks returns the selected tracks that require paid membership
func (s *TrackSelection) VIPTracks() []*Track {
	var vip []*Track
	for _, id := range s.ids {
		if t := s.tracks[id]; t != nil && t.IsVIP() {
			vip = append(vip, t)
		}
	}
	return vip
}

// Snapshot returns an independent copy of the selection. The batch
// orchestrator snapshots at start so later UI changes cannot affect
// an in-flight batch.
func (s *TrackSelection) Snapshot() *TrackSelection {
	copied := NewTrackSelection()
	for _, id := range s.ids {
		copied.Add(s.tracks[id])
	}
	return copied
}

// SelectAll builds a selection covering every given track, in order
func SelectAll(tracks []*Track) *TrackSelection {
	s := NewTrackSelection()
	for _, t := range tracks {
		s.Add(t)
	}
	return s
}
