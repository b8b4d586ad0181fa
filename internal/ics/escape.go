package ics

import "strings"

var textEscaper = strings.NewReplacer(
	"\\", "\\\\",
	";", "\\;",
	",", "\\,",
	"\n", "\\n",
)

// Escape escapes an iCalendar TEXT value. CRLF is folded to LF first so a
// Windows line break becomes a single "\n".
//
// strings.Replacer makes one pass over the input, so backslashes added for
// ';', ',' and newlines are never escaped a second time.
func Escape(text string) string {
	if text == "" {
		return ""
	}
	return textEscaper.Replace(strings.ReplaceAll(text, "\r\n", "\n"))
}
