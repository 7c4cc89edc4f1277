package message

import "strings"

// Span is a run of text with a single style.
type Span struct {
	Text string
	Bold bool
}

// ParseSpans splits text on "**" markers into alternating plain and bold
// spans. An unmatched trailing marker is kept as literal text.
func ParseSpans(text string) []Span {
	parts := strings.Split(text, "**")
	if len(parts)%2 == 0 {
		// Odd number of markers: glue the dangling one back on.
		last := len(parts) - 1
		parts[last-1] = parts[last-1] + "**" + parts[last]
		parts = parts[:last]
	}

	spans := make([]Span, 0, len(parts))
	for i, p := range parts {
		if p == "" {
			continue
		}
		spans = append(spans, Span{Text: p, Bold: i%2 == 1})
	}
	return spans
}

// PlainText returns text with all bold markers removed.
func PlainText(text string) string {
	var b strings.Builder
	for _, s := range ParseSpans(text) {
		b.WriteString(s.Text)
	}
	return b.String()
}
