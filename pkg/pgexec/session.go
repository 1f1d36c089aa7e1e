package pgexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// dbHandle is the subset of *sql.Conn and *sql.Tx the session uses, so
// statements route through the innermost open transaction.
type dbHandle interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Session implements Executor over a single database connection. The
// materializer relies on connection affinity: temporary tables, role changes
// and transaction scopes are all connection-local in PostgreSQL.
type Session struct {
	conn       *sql.Conn
	tx         *sql.Tx
	savepoints []string
}

// NewSession checks a dedicated connection out of the pool and wraps it.
func NewSession(ctx context.Context, db *sql.DB) (*Session, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	return &Session{conn: conn}, nil
}

// Close returns the underlying connection to the pool.
func (s *Session) Close() error {
	return s.conn.Close()
}

func (s *Session) handle() dbHandle {
	if s.tx != nil {
		return s.tx
	}
	return s.conn
}

// Exec runs a statement, optionally with bound parameters.
func (s *Session) Exec(ctx context.Context, statement string, args ...any) error {
	if _, err := s.handle().ExecContext(ctx, statement, args...); err != nil {
		return statementErr(statement, err)
	}
	return nil
}

// Prepare creates a reusable prepared statement bound to the session's
// current transaction state.
func (s *Session) Prepare(ctx context.Context, statement string) (Stmt, error) {
	st, err := s.handle().PrepareContext(ctx, statement)
	if err != nil {
		return nil, statementErr(statement, err)
	}
	return &sessionStmt{stmt: st, text: statement}, nil
}

// Query opens a cursor over a SELECT.
func (s *Session) Query(ctx context.Context, statement string, args ...any) (Rows, error) {
	rows, err := s.handle().QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, statementErr(statement, err)
	}
	return &sessionRows{rows: rows}, nil
}

// BeginNested opens a nested transaction scope. At the top level it begins a
// transaction on the connection; inside an open transaction it establishes a
// savepoint, which PostgreSQL rolls back independently of the outer
// transaction.
func (s *Session) BeginNested(ctx context.Context) (Scope, error) {
	if s.tx == nil {
		tx, err := s.conn.BeginTx(ctx, nil)
		if err != nil {
			return nil, statementErr("begin", err)
		}
		s.tx = tx
		return &nestedScope{session: s}, nil
	}

	name := "mirror_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	stmt := "savepoint " + pq.QuoteIdentifier(name)
	if _, err := s.tx.ExecContext(ctx, stmt); err != nil {
		return nil, statementErr(stmt, err)
	}
	s.savepoints = append(s.savepoints, name)
	return &nestedScope{session: s, savepoint: name}, nil
}

// SessionTimeZone returns the session's current time zone setting.
func (s *Session) SessionTimeZone(ctx context.Context) (string, error) {
	var tz string
	if err := s.handle().QueryRowContext(ctx, "show timezone").Scan(&tz); err != nil {
		return "", statementErr("show timezone", err)
	}
	return tz, nil
}

// SearchPathSchemas returns the session's search_path as an ordered list of
// schema names.
func (s *Session) SearchPathSchemas(ctx context.Context) ([]string, error) {
	const stmt = "select ('{' || current_setting('search_path') || '}')::text[]"
	var schemas pq.StringArray
	if err := s.handle().QueryRowContext(ctx, stmt).Scan(&schemas); err != nil {
		return nil, statementErr(stmt, err)
	}
	return []string(schemas), nil
}

// nestedScope unwinds either a whole connection-level transaction or a single
// savepoint, depending on the nesting depth it was opened at.
type nestedScope struct {
	session   *Session
	savepoint string
	done      bool
}

// Commit makes the scope's statements permanent within the enclosing scope.
func (n *nestedScope) Commit(ctx context.Context) error {
	if n.done {
		return nil
	}
	n.done = true

	if n.savepoint == "" {
		tx := n.session.tx
		n.session.tx = nil
		n.session.savepoints = nil
		if err := tx.Commit(); err != nil {
			return statementErr("commit", err)
		}
		return nil
	}

	n.popSavepoint()
	stmt := "release savepoint " + pq.QuoteIdentifier(n.savepoint)
	if _, err := n.session.tx.ExecContext(ctx, stmt); err != nil {
		return statementErr(stmt, err)
	}
	return nil
}

// Rollback unwinds the scope. It is idempotent so it can run in a defer on
// every exit path and still be called explicitly.
func (n *nestedScope) Rollback(ctx context.Context) error {
	if n.done {
		return nil
	}
	n.done = true

	if n.savepoint == "" {
		tx := n.session.tx
		n.session.tx = nil
		n.session.savepoints = nil
		if err := tx.Rollback(); err != nil {
			return statementErr("rollback", err)
		}
		return nil
	}

	n.popSavepoint()
	quoted := pq.QuoteIdentifier(n.savepoint)
	stmt := "rollback to savepoint " + quoted
	if _, err := n.session.tx.ExecContext(ctx, stmt); err != nil {
		return statementErr(stmt, err)
	}
	stmt = "release savepoint " + quoted
	if _, err := n.session.tx.ExecContext(ctx, stmt); err != nil {
		return statementErr(stmt, err)
	}
	return nil
}

func (n *nestedScope) popSavepoint() {
	sp := n.session.savepoints
	for i := len(sp) - 1; i >= 0; i-- {
		if sp[i] == n.savepoint {
			n.session.savepoints = sp[:i]
			return
		}
	}
}

type sessionStmt struct {
	stmt *sql.Stmt
	text string
}

func (s *sessionStmt) Exec(ctx context.Context, args ...any) error {
	if _, err := s.stmt.ExecContext(ctx, args...); err != nil {
		return statementErr(s.text, err)
	}
	return nil
}

func (s *sessionStmt) Close() error {
	return s.stmt.Close()
}

type sessionRows struct {
	rows *sql.Rows
}

func (r *sessionRows) Columns() ([]string, error) {
	return r.rows.Columns()
}

func (r *sessionRows) TypeIdentifiers() ([]string, error) {
	types, err := r.rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(types))
	for i, t := range types {
		ids[i] = t.DatabaseTypeName()
	}
	return ids, nil
}

func (r *sessionRows) Next() bool { return r.rows.Next() }

func (r *sessionRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }

func (r *sessionRows) Err() error { return r.rows.Err() }

func (r *sessionRows) Close() error { return r.rows.Close() }
