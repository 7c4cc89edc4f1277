package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

var (
	modules   = make(map[ModuleID]ModuleInfo)
	modulesMu sync.RWMutex
)

// RegisterModule records a module so it can be loaded by ID. It panics on
// an empty or malformed ID, a nil constructor, or a duplicate registration.
// Intended to be called from init functions.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if !info.ID.valid() {
		panic(fmt.Sprintf("module ID %q must have the form namespace.name", info.ID))
	}
	if info.New == nil {
		panic(fmt.Sprintf("module %s: New function must not be nil", info.ID))
	}

	modulesMu.Lock()
	defer modulesMu.Unlock()

	if _, exists := modules[info.ID]; exists {
		panic(fmt.Sprintf("module already registered: %s", info.ID))
	}
	modules[info.ID] = info
}

// GetModule returns the ModuleInfo for id.
func GetModule(id string) (ModuleInfo, bool) {
	modulesMu.RLock()
	defer modulesMu.RUnlock()
	info, ok := modules[ModuleID(id)]
	return info, ok
}

// GetModules returns all registered modules sorted by ID.
func GetModules() []ModuleInfo {
	return filterModules(func(ModuleID) bool { return true })
}

// GetModulesByNamespace returns the modules of one namespace, sorted by ID
// ("channel" yields channel.discord, channel.telegram).
func GetModulesByNamespace(namespace string) []ModuleInfo {
	return filterModules(func(id ModuleID) bool { return id.Namespace() == namespace })
}

func filterModules(keep func(ModuleID) bool) []ModuleInfo {
	modulesMu.RLock()
	defer modulesMu.RUnlock()

	var result []ModuleInfo
	for id, info := range modules {
		if keep(id) {
			result = append(result, info)
		}
	}
	slices.SortFunc(result, func(a, b ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

// resetRegistry clears the registry. Only for testing.
func resetRegistry() {
	modulesMu.Lock()
	defer modulesMu.Unlock()
	modules = make(map[ModuleID]ModuleInfo)
}
