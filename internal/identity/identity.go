// Package identity reduces channel display names to stable matching keys.
package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// defaultSuffixes are trailing tokens that mark the same logical channel in a
// different package: picture quality tiers and country codes.
var defaultSuffixes = []string{
	"hd", "fhd", "uhd", "sd", "4k", "hq", "hevc",
	"tr", "us", "usa", "uk", "de", "at", "ch", "fr", "nl", "az", "cy",
}

// Rules holds the suffix tokens StripSuffixes removes. The zero value strips
// nothing; use DefaultRules for the built-in set.
type Rules struct {
	suffixes map[string]struct{}
}

// DefaultRules returns the built-in suffix set.
func DefaultRules() Rules {
	return NewRules(defaultSuffixes...)
}

// NewRules builds a rule set from suffix tokens. Tokens are compared
// case-insensitively; empty tokens are ignored.
func NewRules(suffixes ...string) Rules {
	r := Rules{suffixes: make(map[string]struct{}, len(suffixes))}
	for _, s := range suffixes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			r.suffixes[s] = struct{}{}
		}
	}
	return r
}

// With returns a copy of r extended with extra suffix tokens.
func (r Rules) With(extra ...string) Rules {
	all := make([]string, 0, len(r.suffixes)+len(extra))
	for s := range r.suffixes {
		all = append(all, s)
	}
	return NewRules(append(all, extra...)...)
}

// Suffixes reports the number of suffix tokens in the rule set.
func (r Rules) Suffixes() int { return len(r.suffixes) }

// Normalize lowercases s, folds accented letters to their base letter and
// drops every rune outside [a-z0-9]. It never fails; an empty result is valid.
func Normalize(s string) string {
	s = strings.ToLower(s)
	folded, _, err := transform.String(markStripper(), s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// transform.Transformer values carry state, so each call gets its own chain.
func markStripper() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// StripKnownSuffixes removes trailing quality and country tokens using the
// default rule set, so "Sports HD" and "Sports" normalize identically.
func StripKnownSuffixes(name string) string {
	return DefaultRules().StripSuffixes(name)
}

// StripSuffixes removes trailing suffix tokens from name, repeatedly. The last
// remaining token is never removed, so "HD" alone stays "HD".
func (r Rules) StripSuffixes(name string) string {
	out := strings.TrimSpace(name)
	for len(r.suffixes) > 0 {
		start, end := lastToken(out)
		if start <= 0 {
			return out
		}
		if _, ok := r.suffixes[strings.ToLower(out[start:end])]; !ok {
			return out
		}
		rest := strings.TrimRightFunc(out[:start], isSeparator)
		if !hasToken(rest) {
			return out
		}
		out = rest
	}
	return out
}

// Key is the matching key for a secondary-feed name: suffixes stripped, then
// normalized.
func (r Rules) Key(name string) string {
	return Normalize(r.StripSuffixes(name))
}

// lastToken returns the byte range of the final letter/digit run in s, or
// (-1, -1) when s has none.
func lastToken(s string) (int, int) {
	end := len(strings.TrimRightFunc(s, isSeparator))
	if end == 0 {
		return -1, -1
	}
	start := strings.LastIndexFunc(s[:end], isSeparator) + 1
	return start, end
}

func hasToken(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !isSeparator(r) }) >= 0
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}
