package domain

import "time"

const (
	EventNameSubmissionAccepted = "submission.accepted"
	EventNameScoreUpdated       = "score.updated"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

// EventSubmissionAccepted is published once per accepted submission.
type EventSubmissionAccepted struct {
	ResponseID  string
	UserID      string
	PromptID    string
	Modality    Modality
	Points      int
	Durable     bool
	SubmittedAt time.Time
}

func (EventSubmissionAccepted) Name() string { return EventNameSubmissionAccepted }

// EventScoreUpdated carries the user's running totals after an award.
type EventScoreUpdated struct {
	UserID      string
	DisplayName string
	Location    string
	TotalPoints int
	SolvedCount int
	JoinedAt    time.Time
	UpdateTime  time.Time
}

func (EventScoreUpdated) Name() string { return EventNameScoreUpdated }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
	UpdateTime  time.Time
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
