package session

import (
	"slices"
	"time"

	"github.com/victornm/bhasha/internal/domain"
)

// WritePolicy decides what happens to a session when a store write fails.
type WritePolicy string

const (
	// FailOpen advances the session anyway and marks it non-durable.
	FailOpen WritePolicy = "fail_open"
	// FailClosed surfaces the persistence error and leaves the session untouched.
	FailClosed WritePolicy = "fail_closed"
)

func (p WritePolicy) Valid() bool {
	return p == FailOpen || p == FailClosed
}

// Session is the per-user context passed to every core call.
// It is reconciled against the store when started and mirrors the user's counters afterwards.
type Session struct {
	domain.Profile
	TotalPoints int
	SolvedCount int
	CreatedAt   time.Time
	Solved      map[string]struct{}
	// Durable is false when some of the session state only exists locally.
	Durable bool
	// Pending holds the points of awards the store never recorded, by prompt.
	Pending map[string]int
}

func New(userID string) *Session {
	return &Session{
		Profile: domain.Profile{UserID: userID},
		Solved:  make(map[string]struct{}),
		Durable: true,
	}
}

// Registered reports whether a profile was submitted for the user.
func (s *Session) Registered() bool {
	return s.DisplayName != ""
}

func (s *Session) HasSolved(promptID string) bool {
	_, ok := s.Solved[promptID]
	return ok
}

// SolvedIDs returns the solved prompt ids in a stable order.
func (s *Session) SolvedIDs() []string {
	ids := make([]string, 0, len(s.Solved))
	for id := range s.Solved {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

// Award moves the counters forward for an accepted submission.
func (s *Session) Award(promptID string, points int) {
	if s.Solved == nil {
		s.Solved = make(map[string]struct{})
	}

	s.TotalPoints += points
	s.SolvedCount++
	s.Solved[promptID] = struct{}{}
}

// AwardPending moves the counters forward for a submission the store failed to record.
func (s *Session) AwardPending(promptID string, points int) {
	s.Award(promptID, points)

	if s.Pending == nil {
		s.Pending = make(map[string]int)
	}
	s.Pending[promptID] = points
	s.Durable = false
}
