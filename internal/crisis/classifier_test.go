package crisis

import (
	"testing"

	"crisis-chat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyLevels(t *testing.T) {
	cases := []struct {
		name string
		text string
		want models.CrisisLevel
	}{
		{"no match", "I would like to book a consultation about my lease", models.CrisisLow},
		{"medium", "I am scared, please help", models.CrisisMedium},
		{"high", "my partner hits me when he drinks", models.CrisisHigh},
		{"critical", "I want to kill myself", models.CrisisCritical},
		{"case insensitive", "I WANT TO KILL MYSELF", models.CrisisCritical},
		{"german", "Ich habe Angst vor ihm", models.CrisisMedium},
		{"embedded phrase", "he is going to kill myself", models.CrisisCritical},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.text))
		})
	}
}

func TestClassifyEmptyInput(t *testing.T) {
	assert.Equal(t, models.CrisisLow, Classify(""))
	assert.Equal(t, models.CrisisLow, Classify("   "))
	assert.Equal(t, models.CrisisLow, Classify("\n\t"))
}

func TestClassifyIsDeterministic(t *testing.T) {
	texts := []string{
		"",
		"I am scared of the abuse",
		"please help, he has a knife",
		"just a question about my contract",
	}
	for _, text := range texts {
		first := Classify(text)
		for i := 0; i < 50; i++ {
			require.Equal(t, first, Classify(text), "text %q", text)
		}
	}
}

func TestHighestConfidenceWins(t *testing.T) {
	// scared is medium at 0.7, abuse is high at 0.8
	a := NewDefault().Assess("I am scared because of the abuse")
	assert.Equal(t, models.CrisisHigh, a.Level)
	assert.Equal(t, "abuse", a.Phrase)
	assert.InDelta(t, 0.8, a.Confidence, 1e-9)
}

func TestConfidenceNotSeverityDecides(t *testing.T) {
	c, err := New(Lexicon{
		{Phrase: "knife", Level: models.CrisisCritical, Confidence: 0.4},
		{Phrase: "kitchen", Level: models.CrisisLow, Confidence: 0.9},
	})
	require.NoError(t, err)

	assert.Equal(t, models.CrisisLow, c.Classify("there is a knife in the kitchen"))
	assert.Equal(t, models.CrisisCritical, c.Classify("he showed me a knife"))
}

func TestEqualConfidenceKeepsLexiconOrder(t *testing.T) {
	c, err := New(Lexicon{
		{Phrase: "alpha", Level: models.CrisisMedium, Confidence: 0.5},
		{Phrase: "beta", Level: models.CrisisHigh, Confidence: 0.5},
	})
	require.NoError(t, err)

	a := c.Assess("beta then alpha")
	assert.Equal(t, models.CrisisMedium, a.Level)
	assert.Equal(t, "alpha", a.Phrase)
}

func TestNoMatchHasNoPhrase(t *testing.T) {
	a := NewDefault().Assess("hello")
	assert.False(t, a.Matched())
	assert.Equal(t, models.CrisisLow, a.Level)
	assert.Zero(t, a.Confidence)
}

func TestLexiconValidation(t *testing.T) {
	_, err := New(Lexicon{{Phrase: " ", Level: models.CrisisHigh, Confidence: 0.5}})
	assert.Error(t, err)

	_, err = New(Lexicon{{Phrase: "x", Level: "severe", Confidence: 0.5}})
	assert.Error(t, err)

	_, err = New(Lexicon{{Phrase: "x", Level: models.CrisisHigh, Confidence: 1.5}})
	assert.Error(t, err)

	assert.NoError(t, DefaultLexicon().Validate())
}

func TestEntriesReturnsCopy(t *testing.T) {
	c := NewDefault()
	entries := c.Entries()
	entries[0].Level = models.CrisisLow

	assert.Equal(t, models.CrisisCritical, c.Classify("i want to kill myself"))
}
