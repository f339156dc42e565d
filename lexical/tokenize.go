package lexical

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Normalize applies NFKC normalization, trims whitespace and drops control
// characters other than newlines and tabs.
func Normalize(text string) string {
	normed := strings.TrimSpace(norm.NFKC.String(text))
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, normed)
}

// Tokens returns the lower-cased tokens of two or more word characters,
// in order, with stop words removed when stopWords is true.
func Tokens(text string, stopWords bool) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(Normalize(text)), -1)
	if !stopWords {
		return raw
	}
	out := raw[:0]
	for _, tok := range raw {
		if !IsStopWord(tok) {
			out = append(out, tok)
		}
	}
	return out
}

// Words returns the set of lower-cased words of text, split on anything that
// is not a letter or digit. Used for Jaccard overlap, so single-character
// words and stop words are kept.
func Words(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(Normalize(text)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// ngrams expands tokens into all n-grams with minN <= n <= maxN.
func ngrams(tokens []string, minN, maxN int) []string {
	if len(tokens) == 0 {
		return nil
	}
	out := make([]string, 0, len(tokens)*(maxN-minN+1))
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			if n == 1 {
				out = append(out, tokens[i])
				continue
			}
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

// Fold normalizes and lower-cases text for case-insensitive comparison.
func Fold(text string) string {
	return strings.ToLower(Normalize(text))
}
