// Package symptoms normalizes free-text symptom tokens and maps them onto
// the classifier's fixed binary feature space.
package symptoms

import (
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrModelNotReady is returned when no vocabulary is loaded.
var ErrModelNotReady = errors.New("model not ready: symptom vocabulary is empty")

// Normalize canonicalizes a single symptom token: Unicode NFKC, lower-case,
// surrounding whitespace trimmed, and each internal whitespace run replaced
// by a single underscore. "Skin Rash " becomes "skin_rash".
func Normalize(token string) string {
	s := norm.NFKC.String(token)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), "_")
}

// Set is an ordered collection of unique normalized symptom tokens.
// The zero value is an empty set.
type Set struct {
	tokens []string
}

// NewSet normalizes tokens and keeps the first occurrence of each.
// Tokens that normalize to the empty string are dropped.
func NewSet(tokens []string) Set {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		n := Normalize(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return Set{tokens: out}
}

// Tokens returns a copy of the tokens in insertion order.
func (s Set) Tokens() []string {
	out := make([]string, len(s.tokens))
	copy(out, s.tokens)
	return out
}

// Len returns the number of tokens in the set.
func (s Set) Len() int { return len(s.tokens) }

// Vocabulary is the immutable, ordered list of symptom names the classifier
// was trained on. Position i in a Vector corresponds to Names()[i].
type Vocabulary struct {
	names []string
	index map[string]int
}

// NewVocabulary builds a vocabulary. Names are normalized; duplicates keep
// their first position.
func NewVocabulary(names []string) *Vocabulary {
	v := &Vocabulary{index: make(map[string]int, len(names))}
	for _, n := range names {
		key := Normalize(n)
		if key == "" {
			continue
		}
		if _, ok := v.index[key]; ok {
			continue
		}
		v.index[key] = len(v.names)
		v.names = append(v.names, key)
	}
	return v
}

// Len returns the feature dimension. A nil vocabulary has length zero.
func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.names)
}

// Index returns the feature position of a normalized token.
func (v *Vocabulary) Index(token string) (int, bool) {
	if v == nil {
		return 0, false
	}
	i, ok := v.index[token]
	return i, ok
}

// Names returns a copy of the vocabulary in feature order.
func (v *Vocabulary) Names() []string {
	if v == nil {
		return nil
	}
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Vector is a binary presence vector with one slot per vocabulary entry.
type Vector []uint8

// Active returns the indices of the set features.
func (fv Vector) Active() []int {
	var out []int
	for i, b := range fv {
		if b != 0 {
			out = append(out, i)
		}
	}
	return out
}

// Vectorize maps tokens onto the vocabulary by exact match after
// normalization. Tokens outside the vocabulary are returned in unmatched and
// never cause an error. Matched and unmatched preserve input order.
func Vectorize(tokens []string, vocab *Vocabulary) (vec Vector, matched, unmatched []string, err error) {
	if vocab.Len() == 0 {
		return nil, nil, nil, ErrModelNotReady
	}

	set := NewSet(tokens)
	vec = make(Vector, vocab.Len())
	for _, t := range set.tokens {
		if i, ok := vocab.Index(t); ok {
			vec[i] = 1
			matched = append(matched, t)
		} else {
			unmatched = append(unmatched, t)
		}
	}
	return vec, matched, unmatched, nil
}
