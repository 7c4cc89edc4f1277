package core

import "strings"

// ModuleID identifies a module as "<namespace>.<name>", for example
// "store.sqlite" or "channel.telegram".
type ModuleID string

// Namespace returns the part before the first dot.
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// Name returns the part after the first dot, or "" if there is none.
func (id ModuleID) Name() string {
	_, name, _ := strings.Cut(string(id), ".")
	return name
}

// valid reports whether both namespace and name are non-empty.
func (id ModuleID) valid() bool {
	return id.Namespace() != "" && id.Name() != ""
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	ID ModuleID

	// New returns a fresh, unconfigured instance.
	New func() Module
}

// Module is implemented by every pluggable component. The optional
// lifecycle interfaces live in lifecycle.go.
type Module interface {
	ModuleInfo() ModuleInfo
}
