package api

import (
	"time"

	"github.com/victornm/bhasha/internal/domain"
	"github.com/victornm/bhasha/internal/progress"
	"github.com/victornm/bhasha/internal/session"
	"github.com/victornm/bhasha/internal/submission"
)

type (
	ProfileRequest struct {
		DisplayName string `json:"display_name"`
		Location    string `json:"location"`
		Dialect     string `json:"dialect"`
		AgeGroup    string `json:"age_group"`
	}

	TextRequest struct {
		Text string `json:"text"`
	}

	VoiceRequest struct {
		AudioRef        string  `json:"audio_ref"`
		Description     string  `json:"description"`
		DurationSeconds float64 `json:"duration_seconds"`
	}

	ImageRequest struct {
		ImageRefs    []string `json:"image_refs"`
		Description  string   `json:"description"`
		Permission   bool     `json:"permission"`
		Authentic    bool     `json:"authentic"`
		Location     string   `json:"location"`
		Occasion     string   `json:"occasion"`
		Year         int      `json:"year"`
		Significance string   `json:"significance"`
	}

	DraftRequest struct {
		Text string `json:"text"`
	}
)

type (
	User struct {
		UserID      string   `json:"user_id"`
		DisplayName string   `json:"display_name"`
		Location    string   `json:"location"`
		Dialect     string   `json:"dialect"`
		AgeGroup    string   `json:"age_group"`
		TotalPoints int      `json:"total_points"`
		SolvedCount int      `json:"solved_count"`
		Registered  bool     `json:"registered"`
		Durable     bool     `json:"durable"`
		Solved      []string `json:"solved"`
	}

	CurrentPrompt struct {
		Prompt *domain.Prompt `json:"prompt"`
		// Completed is set when every unlocked prompt is solved.
		Completed bool `json:"completed"`
	}

	BoardEntry struct {
		domain.Prompt
		State progress.State `json:"state"`
	}

	Progress struct {
		Solved     int            `json:"solved"`
		Available  int            `json:"available"`
		Total      int            `json:"total"`
		Percent    string         `json:"percent"`
		NextLocked *domain.Prompt `json:"next_locked,omitempty"`
	}

	SubmissionResult struct {
		ResponseID  string `json:"response_id"`
		PromptID    string `json:"prompt_id"`
		Modality    string `json:"modality"`
		Points      int    `json:"points"`
		TotalPoints int    `json:"total_points"`
		SolvedCount int    `json:"solved_count"`
		Durable     bool   `json:"durable"`
	}

	Draft struct {
		Words        int    `json:"words"`
		Characters   int    `json:"characters"`
		Telugu       int    `json:"telugu_characters"`
		Quality      string `json:"quality"`
		MeetsMinimum bool   `json:"meets_minimum"`
		RichScript   bool   `json:"rich_script"`
		MinWords     int    `json:"min_words"`
	}

	Leaderboard struct {
		Entries []LeaderboardEntry `json:"entries"`
	}

	LeaderboardEntry struct {
		Rank        int    `json:"rank"`
		UserID      string `json:"user_id"`
		DisplayName string `json:"display_name"`
		Location    string `json:"location,omitempty"`
		TotalPoints int    `json:"total_points"`
		SolvedCount int    `json:"solved_count"`
	}

	Stats struct {
		TotalResponses int `json:"total_responses"`
		ActiveUsers    int `json:"active_users"`
		TotalPrompts   int `json:"total_prompts"`
	}

	Activity struct {
		DisplayName string    `json:"display_name"`
		PromptID    string    `json:"prompt_id"`
		SubmittedAt time.Time `json:"submitted_at"`
	}
)

func toUser(ss *session.Session) User {
	return User{
		UserID:      ss.UserID,
		DisplayName: ss.DisplayName,
		Location:    ss.Location,
		Dialect:     ss.Dialect,
		AgeGroup:    ss.AgeGroup,
		TotalPoints: ss.TotalPoints,
		SolvedCount: ss.SolvedCount,
		Registered:  ss.Registered(),
		Durable:     ss.Durable,
		Solved:      ss.SolvedIDs(),
	}
}

func toSubmissionResult(r *submission.Result) SubmissionResult {
	return SubmissionResult{
		ResponseID:  r.ResponseID,
		PromptID:    r.PromptID,
		Modality:    string(r.Modality),
		Points:      r.Points,
		TotalPoints: r.TotalPoints,
		SolvedCount: r.SolvedCount,
		Durable:     r.Durable,
	}
}

func toLeaderboard(l *domain.Leaderboard) Leaderboard {
	out := Leaderboard{Entries: make([]LeaderboardEntry, 0, len(l.Entries))}
	for _, e := range l.Entries {
		out.Entries = append(out.Entries, LeaderboardEntry{
			Rank:        e.Rank,
			UserID:      e.UserID,
			DisplayName: e.DisplayName,
			Location:    e.Location,
			TotalPoints: e.TotalPoints,
			SolvedCount: e.SolvedCount,
		})
	}

	return out
}
