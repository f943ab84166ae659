package gittables

import "unicode"

type runeClass uint8

const (
	classSpace runeClass = iota
	classDigit
	classWord
	classPunct
)

func classify(r rune) runeClass {
	switch {
	case unicode.IsSpace(r):
		return classSpace
	case unicode.IsDigit(r):
		return classDigit
	case r == '_' || unicode.IsLetter(r) || unicode.IsMark(r) ||
		unicode.IsNumber(r):
		return classWord
	default:
		return classPunct
	}
}

// PreSplit breaks a normalized line into segments. A new segment starts
// wherever the character class changes between whitespace, digits, word
// characters and punctuation, so `call911!` becomes `call`, `911`, `!`.
// Whitespace runs are kept as segments of their own. Merges never cross a
// segment boundary.
func PreSplit(text string) []string {
	segments := make([]string, 0, len(text)/4+1)
	start := 0
	var prev runeClass
	for idx, r := range text {
		class := classify(r)
		if idx > 0 && class != prev {
			segments = append(segments, text[start:idx])
			start = idx
		}
		prev = class
	}
	if start < len(text) {
		segments = append(segments, text[start:])
	}
	return segments
}

// Segments applies optional sanitizing, normalization and pre-splitting to a
// single line, the shared front end of training and encoding.
func Segments(line string, sanitize bool) []string {
	if sanitize {
		line = SanitizeLine(line)
	}
	return PreSplit(Normalize(line))
}
