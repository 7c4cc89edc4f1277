package channel

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitText_FitsInOne(t *testing.T) {
	t.Parallel()

	text := "Job **news**:\nFound 1 new links:\nhttps://example.com/a"
	got := SplitText(text, 4096)
	if len(got) != 1 || got[0] != text {
		t.Errorf("SplitText = %q", got)
	}
	if got := SplitText(text, 0); len(got) != 1 {
		t.Errorf("maxLen 0 should disable splitting, got %d chunks", len(got))
	}
}

func TestSplitText_LineBoundaries(t *testing.T) {
	t.Parallel()

	lines := []string{"aaaaaaaa", "bbbbbbbb", "cccccccc", "dddddddd"}
	got := SplitText(strings.Join(lines, "\n"), 20)

	want := []string{"aaaaaaaa\nbbbbbbbb", "cccccccc\ndddddddd"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("SplitText = %q, want %q", got, want)
	}
}

func TestSplitText_LongLine(t *testing.T) {
	t.Parallel()

	text := "head\n" + strings.Repeat("x", 25) + "\ntail"
	got := SplitText(text, 10)

	for i, c := range got {
		if len(c) > 10 {
			t.Errorf("chunk %d has %d bytes", i, len(c))
		}
	}
	if joined := strings.Join(got, ""); strings.Count(joined, "x") != 25 {
		t.Errorf("content lost: %q", got)
	}
	if got[0] != "head" || got[len(got)-1] != "tail" {
		t.Errorf("chunks = %q", got)
	}
}

func TestSplitText_RuneBoundaries(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("é", 20) // 40 bytes
	got := SplitText(text, 7)

	var total int
	for i, c := range got {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d is not valid UTF-8: %q", i, c)
		}
		if len(c) > 7 {
			t.Errorf("chunk %d has %d bytes", i, len(c))
		}
		total += utf8.RuneCountInString(c)
	}
	if total != 20 {
		t.Errorf("got %d runes, want 20", total)
	}
}

func TestAllowList(t *testing.T) {
	t.Parallel()

	var nilList *AllowList
	if !nilList.Allows("anything") {
		t.Error("nil list should allow all")
	}
	if !NewAllowList(nil).Allows("anything") {
		t.Error("empty list should allow all")
	}

	a := NewAllowList([]string{" -100123 ", "Room"})
	tests := []struct {
		target string
		want   bool
	}{
		{"-100123", true},
		{"room", true},
		{"ROOM", true},
		{"-999", false},
	}
	for _, tt := range tests {
		if got := a.Allows(tt.target); got != tt.want {
			t.Errorf("Allows(%q) = %v, want %v", tt.target, got, tt.want)
		}
	}
}
