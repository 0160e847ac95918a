package ekcore

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]*Descriptor{}
)

// Register makes a core available by its descriptor id. Cores call it from
// init. Registering the same id twice panics.
func Register(desc *Descriptor) {
	if desc == nil || desc.ID == "" {
		panic("ekcore: Register called with nil descriptor or empty id")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, dup := registry[desc.ID]; dup {
		panic(fmt.Sprintf("ekcore: core %q registered twice", desc.ID))
	}
	registry[desc.ID] = desc
}

// Lookup returns the registered descriptor with the given id.
func Lookup(id string) (*Descriptor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[id]
	return d, ok
}

// Descriptors returns every registered descriptor sorted by id.
func Descriptors() []*Descriptor {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]*Descriptor, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
