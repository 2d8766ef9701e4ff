package connectors

import (
	"context"
	"fmt"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/errhandling"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

// RelationalAdapter declares a relational database connector that cannot
// move data yet. Pipelines touching it run in simulated mode.
type RelationalAdapter struct {
	kind Kind
}

var _ Adapter = (*RelationalAdapter)(nil)

// NewRelationalAdapter returns the placeholder adapter for a relational kind.
func NewRelationalAdapter(kind Kind) *RelationalAdapter {
	return &RelationalAdapter{kind: kind}
}

// Kind implements Adapter.
func (r *RelationalAdapter) Kind() Kind { return r.kind }

// Live implements Adapter.
func (r *RelationalAdapter) Live() bool { return false }

// Read implements Adapter.
func (r *RelationalAdapter) Read(_ context.Context, cfg SourceConfig) (*ReadResult, error) {
	return nil, errhandling.Connector(string(r.kind)+".read",
		fmt.Sprintf("reading table %q", cfg.Table), ErrNotImplemented)
}

// Write implements Adapter.
func (r *RelationalAdapter) Write(_ context.Context, cfg DestinationConfig, _ *connector.RowSet) (*WriteResult, error) {
	return nil, errhandling.Connector(string(r.kind)+".write",
		fmt.Sprintf("writing table %q", cfg.Table), ErrNotImplemented)
}

// DefaultRegistry wires the live Sheets adapter and the declared relational ones.
func DefaultRegistry(sheets *SheetsAdapter) *Registry {
	return NewRegistry(
		sheets,
		NewRelationalAdapter(KindMySQL),
		NewRelationalAdapter(KindPostgreSQL),
	)
}
