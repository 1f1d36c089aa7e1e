// Package remote defines the narrow client surface the materializer needs
// from the remote query engine, and provides the Trino implementation.
package remote

import (
	"context"
	"fmt"
)

// Column describes one column reported by the remote engine.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Query is a running remote query: column metadata plus a lazy, single-pass
// row stream. Next returns io.EOF after the last row.
type Query interface {
	Columns() []Column
	Next() ([]any, error)
	Close() error
}

// Client submits queries to the remote engine.
type Client interface {
	Submit(ctx context.Context, query string) (Query, error)

	// WithSchema returns a client identical to this one but bound to a
	// different default schema. Used when the local session's search_path
	// overrides the configured schema.
	WithSchema(schema string) Client
}

// QueryError reports a query rejected or failed by the remote engine.
// Callers use errors.As against this type to distinguish remote failures
// from local database failures.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("remote query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
