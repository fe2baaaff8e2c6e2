// Package triage matches user queries against static keyword lists.
// It drives two decisions: flagging urgent-care queries and routing a
// query to the agents whose vocabulary it touches. Matching is fuzzy
// about spacing, punctuation, and leet speak so "0verd.ose" still hits.
package triage

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Matcher struct {
	matcher *goahocorasick.Machine
	// originals maps a normalized pattern back to the keyword as loaded,
	// so reported terms stay readable ("chest pain", not "chestpain").
	originals map[string]string
}

// NewMatcher initializes the Aho-Corasick automaton with a normalized version
// of the provided keyword list.
func NewMatcher(keywords []string) (Matcher, error) {
	patterns := make([][]rune, len(keywords))
	originals := make(map[string]string, len(keywords))
	for i, word := range keywords {
		patterns[i] = normalizeRunes([]rune(word))
		originals[string(patterns[i])] = word
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Matcher{}, err
	}
	return Matcher{matcher: m, originals: originals}, nil
}

// Match returns the dictionary keywords found in the input, deduplicated,
// in order of first occurrence. Keywords come back in their normalized form.
func (m *Matcher) Match(input string) []string {
	normalized := normalizeRunes([]rune(input))
	if len(normalized) == 0 {
		return nil
	}

	spans := m.matcher.MultiPatternSearch(normalized, false)
	if len(spans) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(spans))
	var found []string
	for _, span := range spans {
		word := string(span.Word)
		if original, ok := m.originals[word]; ok {
			word = original
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		found = append(found, word)
	}
	return found
}

// normalizeRunes applies simplification and noise removal to a slice of runes.
func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps common Leet speak characters back to their standard
// alphabet counterparts.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

// isNoise identifies characters that should be ignored during the pattern
// matching phase.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
