// Package progress derives what a user can see from the catalog and the prompts they have solved.
// Nothing here holds state; every view is recomputed from its inputs.
package progress

import (
	"github.com/shopspring/decimal"

	"github.com/victornm/bhasha/internal/domain"
)

type State string

const (
	StateLocked    State = "locked"
	StateAvailable State = "available"
	StateSolved    State = "solved"
)

// Available returns the prompts whose unlock threshold is reached, in catalog order.
func Available(prompts []domain.Prompt, solvedCount int) []domain.Prompt {
	out := make([]domain.Prompt, 0, len(prompts))
	for _, p := range prompts {
		if p.UnlockThreshold <= solvedCount {
			out = append(out, p)
		}
	}

	return out
}

// Next returns the first available prompt not yet solved.
// false means every unlocked prompt is solved, not that the catalog is exhausted.
func Next(available []domain.Prompt, solved map[string]struct{}) (domain.Prompt, bool) {
	for _, p := range available {
		if _, ok := solved[p.ID]; !ok {
			return p, true
		}
	}

	return domain.Prompt{}, false
}

type Entry struct {
	Prompt domain.Prompt
	State  State
}

// Board assigns a state to every prompt of the catalog.
func Board(prompts []domain.Prompt, solvedCount int, solved map[string]struct{}) []Entry {
	out := make([]Entry, 0, len(prompts))
	for _, p := range prompts {
		e := Entry{Prompt: p, State: StateLocked}
		if _, ok := solved[p.ID]; ok {
			e.State = StateSolved
		} else if p.UnlockThreshold <= solvedCount {
			e.State = StateAvailable
		}
		out = append(out, e)
	}

	return out
}

type Summary struct {
	Solved    int
	Available int
	Total     int
	// Percent of the catalog solved, rounded to one decimal place.
	Percent decimal.Decimal
	// NextLocked is the closest prompt still locked, nil when everything is unlocked.
	NextLocked *domain.Prompt
}

func Summarize(prompts []domain.Prompt, solvedCount int, solved map[string]struct{}) Summary {
	s := Summary{
		Solved:    len(solved),
		Available: len(Available(prompts, solvedCount)),
		Total:     len(prompts),
		Percent:   decimal.Zero,
	}

	if s.Total > 0 {
		s.Percent = decimal.NewFromInt(int64(s.Solved)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(s.Total))).
			Round(1)
	}

	for i, p := range prompts {
		if p.UnlockThreshold <= solvedCount {
			continue
		}
		if s.NextLocked == nil || p.UnlockThreshold < s.NextLocked.UnlockThreshold {
			s.NextLocked = &prompts[i]
		}
	}

	return s
}

// SolvedSet builds a lookup set from prompt ids.
func SolvedSet(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}

	return m
}
