package submission

import (
	"fmt"
	"strings"

	"github.com/victornm/bhasha/internal/domain"
)

// Rejection reasons returned in errors.Error.Reason.
const (
	ReasonNotRegistered       = "NOT_REGISTERED"
	ReasonLocked              = "LOCKED"
	ReasonAlreadySolved       = "ALREADY_SOLVED"
	ReasonTooShort            = "TOO_SHORT"
	ReasonMissingAudio        = "MISSING_AUDIO"
	ReasonMissingConfirmation = "MISSING_CONFIRMATION"
	ReasonMissingDescription  = "MISSING_DESCRIPTION"
	ReasonMissingImages       = "MISSING_IMAGES"
	ReasonTooManyImages       = "TOO_MANY_IMAGES"
	ReasonInvalidYear         = "INVALID_YEAR"
)

// MaxImages is the number of images a single submission may carry.
const MaxImages = 5

const minImageYear = 1950

type TextSubmission struct {
	PromptID string
	Text     string
}

type VoiceSubmission struct {
	PromptID        string
	Description     string
	AudioRef        string
	DurationSeconds float64
}

type ImageSubmission struct {
	PromptID      string
	Description   string
	ImageRefs     []string
	Confirmations Confirmations
	Metadata      ImageMetadata
}

// Confirmations are asserted by the contributor before images are accepted.
type Confirmations struct {
	Permission bool
	Authentic  bool
}

func (c Confirmations) complete() bool {
	return c.Permission && c.Authentic
}

type ImageMetadata struct {
	Location     string
	Occasion     string
	Year         int
	Significance string
}

// describe merges the metadata into the stored description.
func (s ImageSubmission) describe() string {
	m := s.Metadata
	if m == (ImageMetadata{}) {
		return strings.TrimSpace(s.Description)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Description: %s", strings.TrimSpace(s.Description))
	line := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			fmt.Fprintf(&b, "\n%s: %s", k, v)
		}
	}
	line("Location", m.Location)
	line("Occasion", m.Occasion)
	if m.Year != 0 {
		line("Year", fmt.Sprint(m.Year))
	}
	line("Significance", m.Significance)

	return b.String()
}

type Result struct {
	ResponseID  string
	PromptID    string
	Modality    domain.Modality
	Points      int
	TotalPoints int
	SolvedCount int
	// Durable is false when the submission only advanced the session.
	Durable bool
}
