package gittables

import (
	"regexp"
	"strings"
)

var extraWhiteSpace = regexp.MustCompile("[[:space:]]+")

// SanitizeLine drops Windows `\r`, replaces escaped `\n` sequences with a
// space, collapses whitespace runs (tabs included) into single spaces and
// trims the ends.
func SanitizeLine(line string) string {
	line = strings.ReplaceAll(line, "\r", "")
	line = strings.ReplaceAll(line, "\\n", " ")
	line = extraWhiteSpace.ReplaceAllString(line, " ")
	return strings.TrimSpace(line)
}
