package crisis

import (
	"fmt"
	"strings"

	"crisis-chat/backend/internal/models"
)

// Entry maps a phrase to the crisis level it signals and how sure we are
type Entry struct {
	Phrase     string             `json:"phrase"`
	Level      models.CrisisLevel `json:"level"`
	Confidence float64            `json:"confidence"`
}

// Lexicon is an ordered list of entries. Order only matters for ties.
type Lexicon []Entry

// defaultLexicon covers the English and German phrasing seen on the intake chat
var defaultLexicon = Lexicon{
	// critical: immediate danger to life
	{Phrase: "kill myself", Level: models.CrisisCritical, Confidence: 0.95},
	{Phrase: "end my life", Level: models.CrisisCritical, Confidence: 0.95},
	{Phrase: "going to kill me", Level: models.CrisisCritical, Confidence: 0.95},
	{Phrase: "suicide", Level: models.CrisisCritical, Confidence: 0.9},
	{Phrase: "want to die", Level: models.CrisisCritical, Confidence: 0.9},
	{Phrase: "will kill me", Level: models.CrisisCritical, Confidence: 0.9},
	{Phrase: "has a gun", Level: models.CrisisCritical, Confidence: 0.9},
	{Phrase: "has a knife", Level: models.CrisisCritical, Confidence: 0.9},
	{Phrase: "in danger right now", Level: models.CrisisCritical, Confidence: 0.9},
	{Phrase: "mich umbringen", Level: models.CrisisCritical, Confidence: 0.95},
	{Phrase: "selbstmord", Level: models.CrisisCritical, Confidence: 0.9},

	// high: violence or abuse
	{Phrase: "hurt myself", Level: models.CrisisHigh, Confidence: 0.85},
	{Phrase: "assault", Level: models.CrisisHigh, Confidence: 0.85},
	{Phrase: "hits me", Level: models.CrisisHigh, Confidence: 0.85},
	{Phrase: "beats me", Level: models.CrisisHigh, Confidence: 0.85},
	{Phrase: "abuse", Level: models.CrisisHigh, Confidence: 0.8},
	{Phrase: "violence", Level: models.CrisisHigh, Confidence: 0.8},
	{Phrase: "violent", Level: models.CrisisHigh, Confidence: 0.8},
	{Phrase: "threatened me", Level: models.CrisisHigh, Confidence: 0.8},
	{Phrase: "gewalt", Level: models.CrisisHigh, Confidence: 0.8},
	{Phrase: "stalking", Level: models.CrisisHigh, Confidence: 0.75},

	// medium: fear and distress
	{Phrase: "scared", Level: models.CrisisMedium, Confidence: 0.7},
	{Phrase: "afraid", Level: models.CrisisMedium, Confidence: 0.7},
	{Phrase: "unsafe", Level: models.CrisisMedium, Confidence: 0.7},
	{Phrase: "harass", Level: models.CrisisMedium, Confidence: 0.7},
	{Phrase: "angst", Level: models.CrisisMedium, Confidence: 0.7},
	{Phrase: "threat", Level: models.CrisisMedium, Confidence: 0.65},
	{Phrase: "worried", Level: models.CrisisMedium, Confidence: 0.6},
	{Phrase: "restraining order", Level: models.CrisisMedium, Confidence: 0.6},
	{Phrase: "custody", Level: models.CrisisMedium, Confidence: 0.5},
}

// DefaultLexicon returns a copy of the built-in lexicon
func DefaultLexicon() Lexicon {
	return append(Lexicon(nil), defaultLexicon...)
}

// Validate checks every entry is usable
func (l Lexicon) Validate() error {
	for i, e := range l {
		if strings.TrimSpace(e.Phrase) == "" {
			return fmt.Errorf("lexicon entry %d: empty phrase", i)
		}
		if !e.Level.Valid() {
			return fmt.Errorf("lexicon entry %d (%q): invalid level %q", i, e.Phrase, e.Level)
		}
		if e.Confidence <= 0 || e.Confidence > 1 {
			return fmt.Errorf("lexicon entry %d (%q): confidence %.2f out of range", i, e.Phrase, e.Confidence)
		}
	}
	return nil
}
