package classifier

import (
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// invisible matches zero-width characters used to split words past filters.
var invisible = runes.Predicate(func(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff', '\u00ad':
		return true
	}

	return false
})

// Normalizer folds compatibility characters, strips invisible characters and
// compacts whitespace before text is scored. Case is kept since it carries tone.
// This is not safe for concurrent use.
type Normalizer struct {
	transformer transform.Transformer
}

// NewNormalizer creates a new Normalizer instance.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		transformer: transform.Chain(
			norm.NFKC,
			runes.Remove(invisible),
		),
	}
}

// Normalize returns the cleaned text. The input is returned trimmed when the
// transform fails.
func (n *Normalizer) Normalize(s string) string {
	if s == "" {
		return ""
	}

	result, _, err := transform.String(n.transformer, s)
	if err != nil {
		result = s
	}

	return strings.Join(strings.Fields(result), " ")
}
