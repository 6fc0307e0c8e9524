package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// The dictionary uses specific words to avoid partial collisions (e.g., "he" inside "The")
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	dictionary := []string{"badger", "snake", "mushroom"}
	mod, err := NewModerator(dictionary, replacementChar)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		flagged  bool
	}{
		{
			name:     "Simple word and space preservation",
			input:    "The badger is here",
			expected: "The ****** is here",
			flagged:  true,
		},
		{
			name:     "Multiple occurrences and preserved spacing",
			input:    "badger badger badger",
			expected: "****** ****** ******",
			flagged:  true,
		},
		{
			name:     "Uppercase and internal noise",
			input:    "S-N-A-K-E is a B.A.D.G.E.R",
			expected: "********* is a ***********",
			flagged:  true,
		},
		{
			name:     "Accents and special characters (UTF-8)",
			input:    "Un été avec un badger",
			expected: "Un été avec un ******",
			flagged:  true,
		},
		{
			name:     "Word adjacent to trailing punctuation",
			input:    "I love badger!",
			expected: "I love ******!",
			flagged:  true,
		},
		{
			name:     "Nothing to censor",
			input:    "Chat sessions are amazing",
			expected: "Chat sessions are amazing",
			flagged:  false,
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
			flagged:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, flagged := mod.Censor(tt.input)
			req.Equal(tt.expected, content, "test=%s,", tt.name)
			req.Equal(tt.flagged, flagged)
		})
	}
}

func TestModerator_CornerCases(t *testing.T) {
	req := require.New(t)

	// Given separator-only noise mixed into the dictionary
	dictionary := []string{"...", ",,,", "", "badger"}
	mod, err := NewModerator(dictionary, replacementChar)
	req.NoError(err)

	// Then the real word is censored
	content, flagged := mod.Censor("The badger is safe")
	req.Equal("The ****** is safe", content)
	req.True(flagged)

	// And pure noise stays untouched
	content, flagged = mod.Censor("Hello ...")
	req.Equal("Hello ...", content)
	req.False(flagged)
}

func TestModerator_Rejects_Empty_Dictionary(t *testing.T) {
	req := require.New(t)

	_, err := NewModerator(nil, replacementChar)
	req.Error(err)

	_, err = NewModerator([]string{"...", ""}, replacementChar)
	req.Error(err)
}

func TestLoadWordLists(t *testing.T) {
	req := require.New(t)

	lists, err := LoadWordLists()
	req.NoError(err)
	req.NotEmpty(lists.Words)
	req.Contains(lists.Languages, "en")
	req.Contains(lists.Languages, "fr")
}

func TestDetectLang(t *testing.T) {
	req := require.New(t)

	req.Equal("en", DetectLang("This is clearly a long English sentence about nothing in particular."))
	req.Equal("", DetectLang("ok"))
}
