package templates

import (
	"strings"
	"unicode/utf8"
)

// TruncateRunes cuts text to at most n runes. Thai text is multi-byte,
// so byte slicing would split characters.
func TruncateRunes(text string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n])
}

// SplitRunes splits text into chunks of at most n runes, preferring to cut
// at the last newline inside each chunk.
func SplitRunes(text string, n int) []string {
	if n <= 0 || text == "" {
		return nil
	}

	runes := []rune(text)
	var chunks []string
	for len(runes) > n {
		cut := n
		for i := n - 1; i > n/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// SafeText drops invalid UTF-8 sequences before text is sent to a client
func SafeText(text string) string {
	return strings.ToValidUTF8(text, "")
}
