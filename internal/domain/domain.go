package domain

import (
	"time"
)

// Prompt represents a single mystery of the catalog.
// Prompts are loaded once at startup and never change afterwards.
type Prompt struct {
	ID              string `yaml:"id" json:"id"`
	Title           string `yaml:"title" json:"title"`
	LocalizedTitle  string `yaml:"localized_title" json:"localized_title"`
	Description     string `yaml:"description" json:"description"`
	Category        string `yaml:"category" json:"category"`
	Difficulty      int    `yaml:"difficulty" json:"difficulty"`
	PointsValue     int    `yaml:"points_value" json:"points_value"`
	UnlockThreshold int    `yaml:"unlock_threshold" json:"unlock_threshold"`
}

// Profile is the user-editable part of a User.
type Profile struct {
	UserID      string
	DisplayName string
	Location    string
	Dialect     string
	AgeGroup    string
}

// User represents a contributor and their cumulative progress.
type User struct {
	Profile
	TotalPoints int
	SolvedCount int
	CreatedAt   time.Time
}

type Modality string

const (
	ModalityText  Modality = "text"
	ModalityVoice Modality = "voice"
	ModalityImage Modality = "image"
)

// Bonus returns the extra points a modality earns on top of the prompt's value.
func (m Modality) Bonus() int {
	switch m {
	case ModalityVoice:
		return 5
	case ModalityImage:
		return 3
	default:
		return 0
	}
}

// Response is implemented by every response variant.
type Response interface {
	Envelope() *ResponseEnvelope
	Modality() Modality
}

type ResponseEnvelope struct {
	ResponseID  string
	UserID      string
	PromptID    string
	SubmittedAt time.Time
}

type TextResponse struct {
	ResponseEnvelope
	Text      string
	WordCount int
}

func (r *TextResponse) Envelope() *ResponseEnvelope { return &r.ResponseEnvelope }
func (*TextResponse) Modality() Modality            { return ModalityText }

type VoiceResponse struct {
	ResponseEnvelope
	AudioPath       string
	DurationSeconds float64
	Description     string
}

func (r *VoiceResponse) Envelope() *ResponseEnvelope { return &r.ResponseEnvelope }
func (*VoiceResponse) Modality() Modality            { return ModalityVoice }

type ImageResponse struct {
	ResponseEnvelope
	ImagePaths  []string
	Description string
}

func (r *ImageResponse) Envelope() *ResponseEnvelope { return &r.ResponseEnvelope }
func (*ImageResponse) Modality() Modality            { return ModalityImage }

// Leaderboard is sorted by points in descending order.
type Leaderboard struct {
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	Rank        int
	UserID      string
	DisplayName string
	Location    string
	TotalPoints int
	SolvedCount int
	// JoinedAt breaks ties between equal totals, earlier first.
	JoinedAt time.Time
}

// Activity is one line of the recent activity feed.
type Activity struct {
	DisplayName string
	PromptID    string
	SubmittedAt time.Time
}

// Stats aggregates collection-wide counters.
type Stats struct {
	TotalResponses int
	ActiveUsers    int
	TotalPrompts   int
}
