// Package auth models the identity provider's session status as seen by the progress engine.
package auth

import "fmt"

// Phase is the coarse state reported by the identity provider
type Phase string

const (
	PhaseLoading         Phase = "loading"
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseAuthenticated   Phase = "authenticated"
)

// Status is a single auth status event
type Status struct {
	Phase  Phase
	UserID string // set only when Phase is PhaseAuthenticated
}

// Loading is the status before the identity provider has answered
func Loading() Status { return Status{Phase: PhaseLoading} }

// Unauthenticated is the signed-out status
func Unauthenticated() Status { return Status{Phase: PhaseUnauthenticated} }

// Authenticated is the signed-in status for userID
func Authenticated(userID string) Status {
	return Status{Phase: PhaseAuthenticated, UserID: userID}
}

// IsAuthenticated reports whether the status carries a signed-in user
func (s Status) IsAuthenticated() bool {
	return s.Phase == PhaseAuthenticated && s.UserID != ""
}

func (s Status) String() string {
	if s.Phase == PhaseAuthenticated {
		return fmt.Sprintf("%s(%s)", s.Phase, s.UserID)
	}
	return string(s.Phase)
}

// Transition is a pair of consecutive settled statuses
type Transition struct {
	Previous Status
	Current  Status
}

// LoggedIn reports an edge from a non-authenticated status into authenticated
func (t Transition) LoggedIn() bool {
	return !t.Previous.IsAuthenticated() && t.Current.IsAuthenticated()
}

// LoggedOut reports an edge from authenticated to unauthenticated.
// The cold-start edge loading -> unauthenticated is not a logout.
func (t Transition) LoggedOut() bool {
	return t.Previous.IsAuthenticated() && t.Current.Phase == PhaseUnauthenticated
}

// SwitchedUser reports an edge between two different signed-in users
func (t Transition) SwitchedUser() bool {
	return t.Previous.IsAuthenticated() && t.Current.IsAuthenticated() &&
		t.Previous.UserID != t.Current.UserID
}

// Tracker remembers the previous and current status. It is not safe for
// concurrent use; callers serialize access.
type Tracker struct {
	previous Status
	current  Status
}

// NewTracker starts in the loading phase
func NewTracker() *Tracker {
	return &Tracker{previous: Loading(), current: Loading()}
}

// Current returns the latest status
func (t *Tracker) Current() Status {
	return t.current
}

// Advance records next and returns the resulting transition.
// Re-entering loading after a settled status is ignored, so the
// settled status stays "previous" for the next real change.
func (t *Tracker) Advance(next Status) Transition {
	if next.Phase == PhaseLoading && t.current.Phase != PhaseLoading {
		return Transition{Previous: t.current, Current: t.current}
	}
	t.previous, t.current = t.current, next
	return Transition{Previous: t.previous, Current: t.current}
}
