// Package registry is the single source of truth for which
// (entity_type, field) and (event_type, field) tuples a
// protocol's fetcher supports (spec.md §4.4). The table is immutable after
// construction; registration failures at startup are fatal.
package registry

import "fmt"

// Kind categorizes a metric entry.
type Kind string

const (
	KindState        Kind = "state"
	KindEvent        Kind = "event"
	KindComputed     Kind = "computed"
	KindChainedEvent Kind = "chained-event"
)

// NumericSemantics documents how a metric's raw on-chain value maps to the
// float64 the evaluator operates on (e.g. fixed-point decimals, wei scale).
type NumericSemantics struct {
	// Decimals is the number of fixed-point decimals the fetcher must divide
	// out before returning a scalar (e.g. 18 for a WAD-scaled Morpho rate).
	Decimals int
	// Description is a short human-readable note on the value's meaning.
	Description string
}

// MetricDef describes one legal (entity_type|event_type, field) tuple for a
// protocol.
type MetricDef struct {
	Protocol         string
	Kind             Kind
	EntityOrEventType string
	Field            string
	Semantics        NumericSemantics
}

type key struct {
	protocol string
	kind     Kind
	typ      string
	field    string
}

// Registry is an immutable, process-wide metric catalog.
type Registry struct {
	entries map[key]*MetricDef
}

// New builds a Registry from the given entries. It is fatal (panics) to
// register the same (protocol, kind, type, field) tuple twice, since that
// indicates a startup-time configuration bug, not a runtime condition any
// caller can recover from.
func New(entries []*MetricDef) *Registry {
	r := &Registry{entries: make(map[key]*MetricDef, len(entries))}
	for _, e := range entries {
		if e.Protocol == "" || e.EntityOrEventType == "" || e.Field == "" {
			panic(fmt.Sprintf("registry: incomplete metric entry %+v", e))
		}
		k := key{protocol: e.Protocol, kind: e.Kind, typ: e.EntityOrEventType, field: e.Field}
		if _, exists := r.entries[k]; exists {
			panic(fmt.Sprintf("registry: duplicate metric entry for %+v", k))
		}
		r.entries[k] = e
	}
	return r
}

// Get looks up a single metric definition.
func (r *Registry) Get(protocol string, kind Kind, typ, field string) (*MetricDef, bool) {
	e, ok := r.entries[key{protocol: protocol, kind: kind, typ: typ, field: field}]
	return e, ok
}

// IsValid reports whether the tuple resolves to a registered metric.
func (r *Registry) IsValid(protocol string, kind Kind, typ, field string) bool {
	_, ok := r.Get(protocol, kind, typ, field)
	return ok
}

// ByProtocol returns every metric registered for a protocol.
func (r *Registry) ByProtocol(protocol string) []*MetricDef {
	var out []*MetricDef
	for _, e := range r.entries {
		if e.Protocol == protocol {
			out = append(out, e)
		}
	}
	return out
}

// ByKind returns every metric registered for a protocol+kind pair.
func (r *Registry) ByKind(protocol string, kind Kind) []*MetricDef {
	var out []*MetricDef
	for _, e := range r.entries {
		if e.Protocol == protocol && e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
