// Package pgexec provides the narrow PostgreSQL execution surface the
// materializer needs: plain and parameterized statement execution, reusable
// prepared statements, catalog cursors, session settings, and a nested
// transaction scope that can always be rolled back.
package pgexec

import "context"

// Rows is a lazy cursor over a statement result.
type Rows interface {
	// Columns returns the result column names.
	Columns() ([]string, error)

	// TypeIdentifiers returns the driver's internal type identifier for each
	// result column, in column order. With the pgx stdlib driver this is the
	// upper-cased type name for built-in types and the numeric type OID for
	// anything the driver does not recognize (notably information_schema
	// domain types).
	TypeIdentifiers() ([]string, error)

	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Stmt is a prepared statement reusable across executions.
type Stmt interface {
	Exec(ctx context.Context, args ...any) error
	Close() error
}

// Scope is a nested transaction scope. Rollback unwinds every statement
// executed inside the scope and is safe to call more than once; Commit makes
// them permanent within the enclosing scope.
type Scope interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Executor is the capability interface over the local PostgreSQL session.
// Implementations are not safe for concurrent use; each materialization call
// owns its session for the call's duration.
type Executor interface {
	// Exec runs a statement, optionally with bound parameters.
	Exec(ctx context.Context, statement string, args ...any) error

	// Prepare creates a reusable prepared statement.
	Prepare(ctx context.Context, statement string) (Stmt, error)

	// Query opens a cursor over a SELECT.
	Query(ctx context.Context, statement string, args ...any) (Rows, error)

	// BeginNested opens a nested transaction scope. The scope must support
	// true rollback of catalog mutations; if the backend cannot provide that
	// the call fails rather than degrade.
	BeginNested(ctx context.Context) (Scope, error)

	// SessionTimeZone returns the session's current time zone setting.
	SessionTimeZone(ctx context.Context) (string, error)

	// SearchPathSchemas returns the session's search_path as an ordered list
	// of schema names.
	SearchPathSchemas(ctx context.Context) ([]string, error)
}
