// Package connectors provides the data source and sink adapters used by the
// execution engine, and the rules that decide which adapter a step uses.
//
// Every adapter reads into or writes from a connector.RowSet. Adapters that
// are declared but not live (relational databases) report ErrNotImplemented
// so the engine can simulate them instead.
package connectors

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

// Kind identifies a connector implementation.
type Kind string

// Connector kinds.
const (
	KindGoogleSheets Kind = "google_sheets"
	KindMySQL        Kind = "mysql"
	KindPostgreSQL   Kind = "postgresql"
	KindUnknown      Kind = ""
)

// ErrNotImplemented is returned by declared connectors that cannot move data yet.
var ErrNotImplemented = errors.New("connector not implemented")

// ReadResult is what a source adapter produced.
type ReadResult struct {
	Rows     *connector.RowSet `json:"rows"`
	Schema   []string          `json:"headers"`
	RowCount int               `json:"rowCount"`
}

// WriteResult is what a destination adapter wrote.
type WriteResult struct {
	RowsWritten  int    `json:"rowsWritten"`
	UpdatedCells int    `json:"updatedCells"`
	SheetName    string `json:"sheetName,omitempty"`
	Location     string `json:"location"`
}

// Adapter moves rows between a row-set and an external system.
type Adapter interface {
	Kind() Kind
	// Live reports whether the adapter really performs I/O.
	Live() bool
	Read(ctx context.Context, cfg SourceConfig) (*ReadResult, error)
	Write(ctx context.Context, cfg DestinationConfig, rows *connector.RowSet) (*WriteResult, error)
}

// Registry maps connector kinds to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[Kind]Adapter
}

// NewRegistry creates a registry holding the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[Kind]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for its kind.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Kind()] = a
}

// Get returns the adapter for kind.
func (r *Registry) Get(kind Kind) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[kind]
	return a, ok
}

// HasLive reports whether kind resolves to a live adapter.
func (r *Registry) HasLive(kind Kind) bool {
	a, ok := r.Get(kind)
	return ok && a.Live()
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Kind, 0, len(r.adapters))
	for k := range r.adapters {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
