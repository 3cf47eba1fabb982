// Package session provides per-user form sessions and the store
// abstraction that owns them.
//
// A session tracks where one user is in the form flow, the values
// collected so far, and the navigation history used for going back. The
// Store interface keeps the stepper independent of where sessions live:
// the in-memory store is the default, the SQLite store externalizes them.
package session

import (
	"context"
	"time"

	"github.com/telkomfield/visitbot/internal/models"
)

// Step records one completed form step in the navigation history.
type Step struct {
	State models.State `json:"state"`
	Field string       `json:"field"`
}

// Session is one user's in-progress or idle form-filling state.
type Session struct {
	UserID    string            `json:"user_id"`
	State     models.State      `json:"state"`
	Values    map[string]string `json:"values"`
	History   []Step            `json:"history"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// New creates an idle session for the given user.
func New(userID string) *Session {
	now := time.Now()
	return &Session{
		UserID:    userID,
		State:     models.StateIdle,
		Values:    make(map[string]string),
		History:   nil,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Reset returns the session to idle with no collected values and no
// history.
func (s *Session) Reset() {
	s.State = models.StateIdle
	s.Values = make(map[string]string)
	s.History = nil
	s.UpdatedAt = time.Now()
}

// Complete records an accepted value for the current step: it stores the
// normalized value under field and pushes the current state onto the
// history in one operation, so the two cannot drift apart. The caller
// advances State afterwards.
func (s *Session) Complete(field, value string) {
	s.Values[field] = value
	s.History = append(s.History, Step{State: s.State, Field: field})
	s.UpdatedAt = time.Now()
}

// Back pops the most recently completed step, clears its stored value, and
// moves the session back to that step's state. Popping and clearing are
// one operation. Returns false if there is no history to go back to.
func (s *Session) Back() (Step, bool) {
	if len(s.History) == 0 {
		return Step{}, false
	}
	last := s.History[len(s.History)-1]
	s.History = s.History[:len(s.History)-1]
	delete(s.Values, last.Field)
	s.State = last.State
	s.UpdatedAt = time.Now()
	return last, true
}

// Active reports whether the session is mid-form.
func (s *Session) Active() bool {
	return s.State != models.StateIdle
}

// Progress returns the number of completed steps.
func (s *Session) Progress() int {
	return len(s.History)
}

// Store manages one session per user identifier. Concurrent mutation of
// the same user's session is not atomic; last write wins.
type Store interface {
	// GetOrCreate returns the user's session, creating an idle one on
	// first contact.
	GetOrCreate(ctx context.Context, userID string) (*Session, error)

	// Save persists the session's current state.
	Save(ctx context.Context, s *Session) error

	// Reset returns the user's session to idle, discarding collected data.
	Reset(ctx context.Context, userID string) error

	// Delete removes the user's session entirely.
	Delete(ctx context.Context, userID string) error

	// ActiveCount returns the number of sessions currently mid-form.
	ActiveCount(ctx context.Context) (int, error)

	// SweepIdle resets sessions that have not been touched since the
	// cutoff, so abandoned forms do not linger mid-state forever.
	// Returns the number of sessions swept.
	SweepIdle(ctx context.Context, cutoff time.Time) (int, error)
}
