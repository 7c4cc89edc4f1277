package channel

import "strings"

// AllowList restricts the targets a channel may deliver to. A nil or
// empty AllowList allows every target.
type AllowList struct {
	targets map[string]struct{}
}

// NewAllowList creates an AllowList with O(1) lookups. Entries are trimmed
// and lowercased at construction time.
func NewAllowList(targets []string) *AllowList {
	a := &AllowList{targets: make(map[string]struct{}, len(targets))}
	for _, t := range targets {
		if n := normalize(t); n != "" {
			a.targets[n] = struct{}{}
		}
	}
	return a
}

// Allows reports whether target may receive messages.
func (a *AllowList) Allows(target string) bool {
	if a == nil || len(a.targets) == 0 {
		return true
	}
	_, ok := a.targets[normalize(target)]
	return ok
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
