package moderation

import (
	"fmt"
	"strings"
	"testing"
)

// syntheticWords pads the embedded dictionaries up to n entries so the
// automaton gets built at a realistic production size.
func syntheticWords(tb testing.TB, n int) []string {
	tb.Helper()
	list, err := LoadWordLists()
	if err != nil {
		tb.Fatal(err)
	}
	words := append([]string(nil), list.Words...)
	for i := len(words); i < n; i++ {
		words = append(words, fmt.Sprintf("synthetic%06d", i))
	}
	return words
}

func Benchmark_Moderator_Build_100k_Words(b *testing.B) {
	words := syntheticWords(b, 100_000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := NewModerator(words, '*'); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_Moderator_Censor_Long_Message(b *testing.B) {
	moderator, err := NewModerator(syntheticWords(b, 100_000), '*')
	if err != nil {
		b.Fatal(err)
	}
	message := strings.Repeat("a perfectly ordinary sentence with one synthetic000042 in it ", 20)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		moderator.Censor(message)
	}
}
