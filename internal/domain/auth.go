package domain

import "context"

// LoginStatus is the authentication provider's answer about the
// current session
type LoginStatus struct {
	Authenticated bool   `json:"authenticated"`
	SessionToken  string `json:"-"`
	Nickname      string `json:"nickname,omitempty"`
	UserID        int64  `json:"user_id,omitempty"`
}

// AuthProvider exposes the login state and a login-completion signal
// the orchestrator can wait on while a batch is suspended.
type AuthProvider interface {
	// LoginStatus returns the current authentication state
	LoginStatus(ctx context.Context) (LoginStatus, error)

	// AwaitLogin blocks until a login completes and returns the new
	// status, or fails when ctx is done or the provider's wait window
	// expires
	AwaitLogin(ctx context.Context) (LoginStatus, error)
}

// VipDecision is the user's choice when a selection contains VIP
// tracks and no authenticated session exists
type VipDecision int

const (
	// DecisionLogin suspends the batch until login completes
	DecisionLogin VipDecision = iota
	// DecisionProceed continues anonymously; VIP tracks yield previews
	DecisionProceed
	// DecisionCancel aborts the batch
	DecisionCancel
)

// VipDecider resolves the three-way choice for unauthenticated VIP
// downloads. Implementations range from an interactive prompt to a
// fixed policy.
type VipDecider interface {
	DecideVIP(ctx context.Context, vipTracks []*Track) (VipDecision, error)
}

// VipPolicy is a fixed, non-interactive VipDecider
type VipPolicy VipDecision

// DecideVIP returns the fixed decision
func (p VipPolicy) DecideVIP(ctx context.Context, vipTracks []*Track) (VipDecision, error) {
	return VipDecision(p), nil
}
