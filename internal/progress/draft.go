package progress

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// MinWords is the shortest text response accepted.
const MinWords = 50

const (
	teluguFirst = '\u0c00'
	teluguLast  = '\u0c7f'
)

var (
	maxQuality     = decimal.NewFromInt(5)
	richScriptRate = decimal.NewFromFloat(0.3)
)

type DraftAnalysis struct {
	Words      int
	Characters int
	Telugu     int
	// Quality is words/MinWords*5 capped at 5.
	Quality decimal.Decimal
	// MeetsMinimum reports whether the draft would be accepted as a text response.
	MeetsMinimum bool
	// RichScript is set when more than 30% of the characters are Telugu script.
	RichScript bool
}

// WordCount splits on whitespace, the same way text submissions are measured.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

func AnalyzeDraft(text string) DraftAnalysis {
	a := DraftAnalysis{
		Words:      WordCount(text),
		Characters: utf8.RuneCountInString(text),
	}

	for _, r := range text {
		if r >= teluguFirst && r <= teluguLast {
			a.Telugu++
		}
	}

	a.Quality = decimal.Min(
		decimal.NewFromInt(int64(a.Words)).Div(decimal.NewFromInt(MinWords)).Mul(maxQuality),
		maxQuality,
	).Round(1)
	a.MeetsMinimum = a.Words >= MinWords
	a.RichScript = a.Characters > 0 &&
		decimal.NewFromInt(int64(a.Telugu)).GreaterThan(decimal.NewFromInt(int64(a.Characters)).Mul(richScriptRate))

	return a
}
