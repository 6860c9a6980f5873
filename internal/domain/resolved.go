package domain

import "strings"

// Resolver status codes observed from the upstream URL resolution service
const (
	ResolveCodeOK       = 200
	ResolveCodeNotFound = 404
)

// TrialPrivilege describes the free-trial playback allowance reported
// by the resolver for fee-gated tracks
type TrialPrivilege struct {
	ResConsumable  bool `json:"resConsumable"`
	UserConsumable bool `json:"userConsumable"`
}

// Exhausted reports whether neither the resource nor the user has any
// trial allowance left
func (tp *TrialPrivilege) Exhausted() bool {
	return !tp.ResConsumable && !tp.UserConsumable
}

// ResolvedTrack is the resolver's answer for one track ID, normalized
// from the upstream response shapes
type ResolvedTrack struct {
	ID             int64           `json:"id"`
	URL            string          `json:"url"`
	Code           int             `json:"code"`
	Fee            FeeTier         `json:"fee"`
	TrialPrivilege *TrialPrivilege `json:"freeTrialPrivilege,omitempty"`
}

// Availability is the classification of a resolved track
type Availability string

const (
	AvailabilityFull        Availability = "full"
	AvailabilityPreview     Availability = "preview"
	AvailabilityUnavailable Availability = "unavailable"
)

// Unavailability reasons
const (
	ReasonNoURL            = "no playable url"
	ReasonNotFound         = "track not found"
	ReasonTrialExhausted   = "trial exhausted"
	ReasonResolutionFailed = "resolution failed"
)

// Classification is the result of classifying one resolved track
type Classification struct {
	Availability Availability
	Reason       string // set only for AvailabilityUnavailable
}

// Fetchable reports whether a track with this classification should be
// handed to the fetch stage. Preview-only tracks are fetchable; the
// resolver has already substituted a short preview URL for them.
func (c Classification) Fetchable() bool {
	return c.Availability != AvailabilityUnavailable
}

// Classify maps a resolved track to its availability. The rules are
// checked in priority order; authenticated reflects whether the batch
// was resolved with a session token. Pure function, no I/O.
func Classify(rt ResolvedTrack, authenticated bool) Classification {
	if !validTrackURL(rt.URL) {
		return Classification{Availability: AvailabilityUnavailable, Reason: ReasonNoURL}
	}
	if rt.Code == ResolveCodeNotFound {
		return Classification{Availability: AvailabilityUnavailable, Reason: ReasonNotFound}
	}
	if (rt.Fee == FeeVIP || rt.Fee == FeePaidAlbum) && !authenticated {
		return Classification{Availability: AvailabilityPreview}
	}
	if rt.TrialPrivilege != nil && rt.TrialPrivilege.Exhausted() {
		return Classification{Availability: AvailabilityUnavailable, Reason: ReasonTrialExhausted}
	}
	return Classification{Availability: AvailabilityFull}
}

// validTrackURL rejects empty, non-HTTP(S) and implausibly short URLs.
// The upstream occasionally returns the literal strings "null" and
// "undefined" in place of a missing URL.
func validTrackURL(url string) bool {
	if url == "" || url == "null" || url == "undefined" {
		return false
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return false
	}
	return len(url) > 10
}
