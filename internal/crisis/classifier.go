// Package crisis grades message text against a keyword lexicon.
//
// Classification is a pure function of the text: the lexicon entry with the
// highest confidence among all case-insensitive substring matches decides the
// level. Text without any match, including empty text, is low.
package crisis

import (
	"strings"

	"crisis-chat/backend/internal/models"
)

// Assessment is the outcome of classifying one piece of text
type Assessment struct {
	Level      models.CrisisLevel `json:"level"`
	Confidence float64            `json:"confidence"`
	Phrase     string             `json:"phrase,omitempty"`
}

// Matched reports whether any lexicon phrase was found
func (a Assessment) Matched() bool {
	return a.Phrase != ""
}

// Classifier scans text against a fixed lexicon. It is safe for concurrent use.
type Classifier struct {
	entries []Entry
}

// New builds a classifier over the given lexicon
func New(lexicon Lexicon) (*Classifier, error) {
	if err := lexicon.Validate(); err != nil {
		return nil, err
	}

	entries := make([]Entry, len(lexicon))
	for i, e := range lexicon {
		e.Phrase = strings.ToLower(e.Phrase)
		entries[i] = e
	}
	return &Classifier{entries: entries}, nil
}

// NewDefault builds a classifier over the built-in lexicon
func NewDefault() *Classifier {
	c, err := New(defaultLexicon)
	if err != nil {
		panic("crisis: built-in lexicon invalid: " + err.Error())
	}
	return c
}

// Assess returns the level of the highest-confidence match.
// On equal confidence the earlier lexicon entry wins.
func (c *Classifier) Assess(text string) Assessment {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Assessment{Level: models.CrisisLow}
	}

	best := Assessment{Level: models.CrisisLow}
	for _, e := range c.entries {
		if e.Confidence <= best.Confidence {
			continue
		}
		if strings.Contains(normalized, e.Phrase) {
			best = Assessment{Level: e.Level, Confidence: e.Confidence, Phrase: e.Phrase}
		}
	}
	return best
}

// Classify returns only the crisis level for text
func (c *Classifier) Classify(text string) models.CrisisLevel {
	return c.Assess(text).Level
}

// Entries returns a copy of the lexicon the classifier was built with
func (c *Classifier) Entries() Lexicon {
	return append(Lexicon(nil), c.entries...)
}

var defaultClassifier = NewDefault()

// Classify grades text with the built-in lexicon
func Classify(text string) models.CrisisLevel {
	return defaultClassifier.Classify(text)
}
