package telegram

import (
	"strings"

	"github.com/flemzord/sitewatch/internal/channel"
	"github.com/flemzord/sitewatch/pkg/message"
)

// markdownV2SpecialChars lists all characters that must be escaped in Telegram MarkdownV2.
var markdownV2SpecialChars = strings.NewReplacer(
	`\`, `\\`,
	`_`, `\_`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`(`, `\(`,
	`)`, `\)`,
	`~`, `\~`,
	"`", "\\`",
	`>`, `\>`,
	`#`, `\#`,
	`+`, `\+`,
	`-`, `\-`,
	`=`, `\=`,
	`|`, `\|`,
	`{`, `\{`,
	`}`, `\}`,
	`.`, `\.`,
	`!`, `\!`,
)

// EscapeMarkdownV2 escapes all special characters for Telegram MarkdownV2 format.
func EscapeMarkdownV2(text string) string {
	return markdownV2SpecialChars.Replace(text)
}

// FormatMarkdownV2 converts notification markup to MarkdownV2: **bold**
// spans become *bold* and everything else is escaped. Bold spans never
// cross a line.
func FormatMarkdownV2(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		var b strings.Builder
		for _, span := range message.ParseSpans(line) {
			if span.Bold {
				b.WriteByte('*')
				b.WriteString(EscapeMarkdownV2(span.Text))
				b.WriteByte('*')
				continue
			}
			b.WriteString(EscapeMarkdownV2(span.Text))
		}
		lines[i] = b.String()
	}
	return strings.Join(lines, "\n")
}

// formatChunks formats text and splits the result into messages of at most
// maxLen bytes. Lines are never cut after formatting, so no chunk ends
// inside an escape sequence or a bold span.
func formatChunks(text string, maxLen int) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		formatted := FormatMarkdownV2(line)
		if len(formatted) <= maxLen {
			lines = append(lines, formatted)
			continue
		}
		// Escaping at most doubles a line.
		for _, piece := range channel.SplitText(line, max(maxLen/2, 1)) {
			lines = append(lines, FormatMarkdownV2(piece))
		}
	}
	return channel.SplitText(strings.Join(lines, "\n"), maxLen)
}
