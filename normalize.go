package gittables

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Rule identifiers recorded in the vocabulary artifact. An artifact naming
// any other rule cannot be loaded.
const (
	NormalizerNFD          = "nfd"
	NormalizerLowercase    = "lowercase"
	NormalizerStripAccents = "strip_accents"
	PreSplitWhitespace     = "whitespace"
	PreSplitDigits         = "digits"
)

var NormalizerRules = []string{NormalizerNFD, NormalizerLowercase,
	NormalizerStripAccents}
var PreSplitRules = []string{PreSplitWhitespace, PreSplitDigits}

// newNormalizer builds the transform chain. Chains carry internal buffers,
// so every caller gets its own.
//
// Lowercasing may produce a composed rune, so the text is decomposed a second
// time before combining marks are removed; this keeps Normalize idempotent.
func newNormalizer() transform.Transformer {
	return transform.Chain(
		norm.NFD,
		runes.Map(unicode.ToLower),
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
	)
}

// Normalize canonicalizes a line: accented characters are decomposed, their
// combining marks stripped, and the result lowercased.
func Normalize(text string) string {
	normalized, _, err := transform.String(newNormalizer(), text)
	if err != nil {
		// Only reachable on invalid UTF-8, which callers reject beforehand.
		return text
	}
	return normalized
}
