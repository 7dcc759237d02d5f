package indexer

import (
	"strings"
)

// Preprocess normalizes file text before ingestion: it drops a UTF-8 byte order mark,
// replaces invalid UTF-8, converts CRLF and CR line endings to LF, collapses runs of spaces
// and tabs to one space, strips trailing spaces from lines and trims the whole text.
// Line breaks are kept so paragraph structure reaches the chunker.
func Preprocess(text string) string {
	text = strings.TrimPrefix(text, "\uFEFF")
	text = strings.ToValidUTF8(text, "\uFFFD")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	for _, r := range text {
		switch r {
		case ' ', '\t', '\v', '\f', '\u00a0':
			pendingSpace = true
		case '\n':
			pendingSpace = false
			b.WriteRune('\n')
		default:
			if pendingSpace {
				b.WriteRune(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
