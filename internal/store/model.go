package store

import (
	"time"

	"github.com/victornm/bhasha/internal/domain"
)

const (
	mirrorPrefixVoice  = "[VOICE] "
	mirrorPrefixImages = "[IMAGES] "
)

type userRow struct {
	ID          string `gorm:"primaryKey"`
	DisplayName string `gorm:"not null"`
	Location    string
	Dialect     string
	AgeGroup    string
	TotalPoints int       `gorm:"not null;default:0;index"`
	SolvedCount int       `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (userRow) TableName() string { return "users" }

func (r userRow) toDomain() *domain.User {
	return &domain.User{
		Profile: domain.Profile{
			UserID:      r.ID,
			DisplayName: r.DisplayName,
			Location:    r.Location,
			Dialect:     r.Dialect,
			AgeGroup:    r.AgeGroup,
		},
		TotalPoints: r.TotalPoints,
		SolvedCount: r.SolvedCount,
		CreatedAt:   r.CreatedAt,
	}
}

// textResponseRow is the solved-marker table: every accepted submission leaves exactly one row here.
type textResponseRow struct {
	ResponseID   string `gorm:"primaryKey"`
	UserID       string `gorm:"not null;uniqueIndex:idx_text_responses_user_prompt"`
	PromptID     string `gorm:"not null;uniqueIndex:idx_text_responses_user_prompt"`
	ResponseText string
	WordCount    int
	SubmittedAt  time.Time `gorm:"not null;index"`
}

func (textResponseRow) TableName() string { return "text_responses" }

type voiceResponseRow struct {
	ResponseID      string `gorm:"primaryKey"`
	UserID          string `gorm:"not null;index"`
	PromptID        string `gorm:"not null"`
	AudioPath       string
	DurationSeconds float64
	Description     string
	SubmittedAt     time.Time `gorm:"not null"`
}

func (voiceResponseRow) TableName() string { return "voice_responses" }

type imageResponseRow struct {
	ResponseID  string `gorm:"primaryKey"`
	UserID      string `gorm:"not null;index"`
	PromptID    string `gorm:"not null"`
	ImagePath   string
	Description string
	SubmittedAt time.Time `gorm:"not null"`
}

func (imageResponseRow) TableName() string { return "image_responses" }

type activityRow struct {
	DisplayName string
	PromptID    string
	SubmittedAt time.Time
}
