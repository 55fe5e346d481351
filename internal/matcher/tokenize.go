package matcher

import (
	"strings"
	"unicode"
)

// minTokenLen excludes short words; only tokens longer than this count
const minTokenLen = 3

// Tokenize lowercases s, splits on every non-alphanumeric rune and keeps
// distinct tokens longer than three characters in first-seen order
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len([]rune(f)) <= minTokenLen || seen[f] {
			continue
		}
		seen[f] = true
		tokens = append(tokens, f)
	}
	return tokens
}

func tokenSet(s string) map[string]struct{} {
	tokens := Tokenize(s)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
