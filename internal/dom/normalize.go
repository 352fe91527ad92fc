package dom

import (
	"regexp"
	"strings"
)

var spaceRun = regexp.MustCompile(` {2,}`)

// Normalize canonicalizes text read from the DOM before it is compared with a
// desired value: CRLF and lone CR become LF, non-breaking spaces become
// ordinary spaces, and runs of spaces collapse to one.
//
// The non-breaking space is replaced before runs are collapsed so that
// Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\u00a0", " ")
	return spaceRun.ReplaceAllString(text, " ")
}
