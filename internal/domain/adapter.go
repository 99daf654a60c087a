package domain

import "context"

// Adapter is the capability set every data backend implements. All
// failures are *DataAccessError values. ExecuteQuery must reject any
// statement that is not a read-only selection before touching the
// backend; that check is part of the contract, not adapter-specific
// behavior.
type Adapter interface {
	// Connect opens the backend described by config. Config keys are
	// backend specific; a failed connect is a connection error.
	Connect(ctx context.Context, config map[string]any) error

	// Disconnect releases the connection. Idempotent: calling it with
	// no active connection is a no-op.
	Disconnect() error

	// ExecuteQuery runs a validated read-only query and returns the
	// normalized result.
	ExecuteQuery(ctx context.Context, q QueryObject) (QueryResult, error)

	// GetSchemaInformation describes the named entity, or every entity
	// in the adapter's default scope when entity is empty.
	GetSchemaInformation(ctx context.Context, entity string) (SchemaInfo, error)
}

// AdapterFactory maps a sink type tag to a fresh adapter instance.
// Unknown types are configuration errors. Each call returns a new,
// unconnected adapter; instances are never shared across requests.
type AdapterFactory interface {
	New(sinkType string) (Adapter, error)
}
