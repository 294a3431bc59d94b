package worker

import (
	"sync"

	"github.com/flare-signals/signal-engine/internal/compiler"
	"github.com/flare-signals/signal-engine/internal/registry"
	"github.com/flare-signals/signal-engine/internal/signaldsl"
)

// CompiledCache is the per-process compiled-condition cache keyed by
// signal id + definition hash (spec.md §3 Lifecycle, §5 "the
// compiled-condition cache... mutated under a simple map lock").
type CompiledCache struct {
	mu      sync.Mutex
	entries map[string]*compiler.CompiledSignal
}

// NewCompiledCache builds an empty cache.
func NewCompiledCache() *CompiledCache {
	return &CompiledCache{entries: make(map[string]*compiler.CompiledSignal)}
}

// GetOrCompile returns the cached compiled form for def if its definition
// hash still matches, recompiling and caching under the new hash when the
// definition has changed. Entries for earlier hashes are not evicted.
func (c *CompiledCache) GetOrCompile(def *signaldsl.SignalDefinition, reg *registry.Registry) (*compiler.CompiledSignal, error) {
	hash, err := def.DefinitionHash()
	if err != nil {
		return nil, err
	}
	key := def.ID + ":" + hash

	c.mu.Lock()
	if cached, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	compiled, err := compiler.Compile(def, reg)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = compiled
	c.mu.Unlock()
	return compiled, nil
}
