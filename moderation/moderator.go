package moderation

import (
	"chat-sessions/errors"
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator masks censored words in message text before it is stored or
// fanned out. Matching is case-insensitive and ignores punctuation and
// spacing, so split or decorated words are still caught; the mask is
// applied to the original runes, preserving layout.
type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredRune rune
}

func NewModerator(censoredWords []string, censoredRune rune) (Moderator, error) {
	if len(censoredWords) == 0 {
		return Moderator{}, errors.ErrEmptyWords
	}

	// Words made only of separators fold to nothing and cannot match.
	var patterns [][]rune
	for _, word := range censoredWords {
		folded := foldRunes([]rune(word))
		if len(folded) > 0 {
			patterns = append(patterns, folded)
		}
	}
	if len(patterns) == 0 {
		return Moderator{}, errors.ErrEmptyWords
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{matcher: m, censoredRune: censoredRune}, nil
}

// Censor returns the masked text and whether anything was masked.
func (m *Moderator) Censor(original string) (string, bool) {
	origRunes := []rune(original)
	folded, origIdx := fold(origRunes)
	if len(folded) == 0 {
		return original, false
	}

	spans := m.matcher.MultiPatternSearch(folded, false)
	if len(spans) == 0 {
		return original, false
	}

	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			origRunes[i] = m.censoredRune
		}
	}
	return string(origRunes), true
}

// DetectLang returns the ISO-639-1 code of the text's language, "" when
// detection is inconclusive.
func DetectLang(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}

// fold lowercases and strips separator runes, keeping a map from folded
// positions back to the original rune positions for masking.
func fold(input []rune) ([]rune, []int) {
	folded := make([]rune, 0, len(input))
	origIdx := make([]int, 0, len(input))
	for i, r := range input {
		if isSeparator(r) {
			continue
		}
		folded = append(folded, unicode.ToLower(r))
		origIdx = append(origIdx, i)
	}
	return folded, origIdx
}

func foldRunes(input []rune) []rune {
	folded, _ := fold(input)
	return folded
}

func isSeparator(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
