package channel

import (
	"strings"
	"unicode/utf8"
)

// SplitText splits text into chunks of at most maxLen bytes. It breaks at
// line boundaries where possible and splits over-long lines on rune
// boundaries. A maxLen <= 0 disables splitting.
func SplitText(text string, maxLen int) []string {
	if maxLen <= 0 || len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimRight(current.String(), "\n"))
			current.Reset()
		}
	}

	for _, line := range strings.Split(text, "\n") {
		lineWithNewline := line + "\n"

		if current.Len()+len(lineWithNewline) > maxLen {
			flush()

			// A single line longer than the limit is force-split.
			if len(line) > maxLen {
				parts := forceSplit(line, maxLen)
				chunks = append(chunks, parts[:len(parts)-1]...)
				current.WriteString(parts[len(parts)-1] + "\n")
				continue
			}
		}
		current.WriteString(lineWithNewline)
	}
	flush()

	return chunks
}

// forceSplit breaks a single line into pieces of at most maxLen bytes
// without cutting a multi-byte rune.
func forceSplit(line string, maxLen int) []string {
	var parts []string
	for len(line) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		if cut == 0 {
			// maxLen is smaller than the leading rune.
			_, cut = utf8.DecodeRuneInString(line)
		}
		parts = append(parts, line[:cut])
		line = line[cut:]
	}
	if len(line) > 0 {
		parts = append(parts, line)
	}
	return parts
}
