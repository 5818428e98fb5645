// Package moderation masks configured words before they reach the public
// transcript. The logs are world-readable once served; the room itself is
// not rewritten, only what gets persisted.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Redactor finds word-list matches with an Aho-Corasick automaton built
// once at startup. Matching ignores case and everything that is not a
// letter or digit, so "s.e c r e t" still matches "secret"; the original
// characters of a match are replaced in place.
type Redactor struct {
	matcher     *goahocorasick.Machine
	replacement rune
}

// mapping ties the normalized runes back to their original positions.
type mapping struct {
	normalized []rune
	origIdx    []int
}

func NewRedactor(words []string, replacement rune) (*Redactor, error) {
	if len(words) == 0 {
		return nil, nil
	}
	patterns := make([][]rune, len(words))
	for i, word := range words {
		patterns[i] = normalize(word).normalized
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Redactor{matcher: m, replacement: replacement}, nil
}

// Redact returns text with every word-list match masked. A nil Redactor
// passes text through unchanged so callers need no moderation branch.
func (r *Redactor) Redact(text string) string {
	if r == nil {
		return text
	}
	m := normalize(text)
	if len(m.normalized) == 0 {
		return text
	}

	spans := r.matcher.MultiPatternSearch(m.normalized, false)
	if len(spans) == 0 {
		return text
	}

	runes := []rune(text)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(m.origIdx) {
			continue
		}
		for i := m.origIdx[start]; i <= m.origIdx[end-1]; i++ {
			runes[i] = r.replacement
		}
	}
	return string(runes)
}

func normalize(text string) mapping {
	orig := []rune(text)
	m := mapping{
		normalized: make([]rune, 0, len(orig)),
		origIdx:    make([]int, 0, len(orig)),
	}
	for i, r := range orig {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		m.normalized = append(m.normalized, unicode.ToLower(r))
		m.origIdx = append(m.origIdx, i)
	}
	return m
}
