package signals

import (
	"strings"
	"unicode"
)

// tokenize lowercases s and splits it into letter/digit runs
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// normalizedText is text prepared for phrase matching on word boundaries
type normalizedText struct {
	tokens []string
	padded string // " tok1 tok2 ... "
}

func newNormalizedText(s string) normalizedText {
	tokens := tokenize(s)
	return normalizedText{
		tokens: tokens,
		padded: " " + strings.Join(tokens, " ") + " ",
	}
}

// WordCount returns the number of word tokens
func (t normalizedText) WordCount() int {
	return len(t.tokens)
}

type phrase struct {
	tokens []string
	padded string
}

// KeywordSet matches words and multi-word phrases on word boundaries,
// so "app" never matches "approval"
type KeywordSet struct {
	phrases []phrase
}

// NewKeywordSet builds a matcher; blank and duplicate keywords are ignored
func NewKeywordSet(keywords []string) KeywordSet {
	seen := make(map[string]bool, len(keywords))
	set := KeywordSet{phrases: make([]phrase, 0, len(keywords))}
	for _, kw := range keywords {
		tokens := tokenize(kw)
		if len(tokens) == 0 {
			continue
		}
		padded := " " + strings.Join(tokens, " ") + " "
		if seen[padded] {
			continue
		}
		seen[padded] = true
		set.phrases = append(set.phrases, phrase{tokens: tokens, padded: padded})
	}
	return set
}

// Len returns the number of distinct keywords
func (k KeywordSet) Len() int {
	return len(k.phrases)
}

// MatchText reports whether any keyword occurs in s
func (k KeywordSet) MatchText(s string) bool {
	return k.match(newNormalizedText(s))
}

func (k KeywordSet) match(t normalizedText) bool {
	for _, p := range k.phrases {
		if strings.Contains(t.padded, p.padded) {
			return true
		}
	}
	return false
}

// count returns total keyword occurrences in t
func (k KeywordSet) count(t normalizedText) int {
	total := 0
	for _, p := range k.phrases {
		n := len(p.tokens)
		for i := 0; i+n <= len(t.tokens); i++ {
			if t.tokens[i] == p.tokens[0] && equalTokens(t.tokens[i:i+n], p.tokens) {
				total++
			}
		}
	}
	return total
}

func equalTokens(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// matchesFieldFold reports whether a short metadata field such as sector or
// industry contains any keyword at word starts. Each keyword word must begin
// a consecutive field word: "semiconductor" matches "Semiconductors" and
// "oil & gas" matches "Oil & Gas E&P", but "technology" does not match
// "Biotechnology".
func matchesFieldFold(value string, keywords []string) bool {
	fields := tokenize(value)
	if len(fields) == 0 {
		return false
	}
	for _, kw := range keywords {
		if kwTokens := tokenize(kw); len(kwTokens) > 0 && hasWordPrefixRun(fields, kwTokens) {
			return true
		}
	}
	return false
}

func hasWordPrefixRun(fields, kw []string) bool {
	for start := 0; start+len(kw) <= len(fields); start++ {
		matched := true
		for j, k := range kw {
			if !strings.HasPrefix(fields[start+j], k) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}
