package mirror

import (
	"context"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/txn2/trino-materialize/pkg/cache"
)

// psq builds catalog lookups with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// SchemaRename records the outcome of one best-effort schema holder rename.
// A rename that collides with an existing schema is skipped, not fatal.
type SchemaRename struct {
	Schema string
	Holder string
	Err    error
}

// applyAndRun mutates the local catalog into the mirrored shape, runs the
// caller's query against it, and captures the result. The whole mutation
// happens inside a nested transaction scope that is rolled back on every exit
// path, so the outer session's catalog is unchanged afterwards.
func (m *Mirror) applyAndRun(ctx context.Context, key cache.Key, loginUser, query string) (result *cache.QueryResult, err error) {
	scope, err := m.exec.BeginNested(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening mirror scope: %w", err)
	}
	defer func() {
		rbErr := scope.Rollback(ctx)
		if rbErr == nil {
			return
		}
		if err == nil {
			result = nil
			err = fmt.Errorf("unwinding mirror scope: %w", rbErr)
			return
		}
		// A failed unwind means mirror state may have escaped the scope.
		slog.Warn("mirror scope rollback failed", "error", rbErr)
	}()

	// Clean up mirror state left behind by unrelated prior activity.
	if err = m.dropForeignSchemas(ctx); err != nil {
		return nil, err
	}

	if _, err = m.renameSchemaHolders(ctx, m.cache.SchemaNames()); err != nil {
		return nil, err
	}

	for _, statement := range m.cache.Statements() {
		if err = m.exec.Exec(ctx, statement); err != nil {
			return nil, err
		}
	}

	// The holders are all renamed or empty now; drop the staging containers
	// so only the mirrored shape remains visible.
	if err = m.exec.Exec(ctx, "drop schema "+StagingSchema+" cascade"); err != nil {
		return nil, err
	}
	if err = m.dropSchemaHolders(ctx); err != nil {
		return nil, err
	}

	// Catalog tools key the database identity off pg_database; make it match
	// the subject schema for the scope's duration.
	if key.Schema != "" {
		if err = m.exec.Exec(ctx, "update pg_database set datname="+pq.QuoteLiteral(key.Schema)+
			" where datname=current_database()"); err != nil {
			return nil, err
		}
	}

	if err = m.exec.Exec(ctx, "set role to "+pq.QuoteIdentifier(loginUser)); err != nil {
		return nil, err
	}

	result, err = m.capture(ctx, query)
	return result, err
}

// dropForeignSchemas drops every local schema that is neither reserved nor a
// schema holder.
func (m *Mirror) dropForeignSchemas(ctx context.Context) error {
	query, args, err := psq.Select("n.nspname").
		From("pg_catalog.pg_namespace n").
		Where(sq.NotEq{"n.nspname": reservedSchemas}).
		Where(sq.Expr("n.nspname not like ?", schemaHolderPrefix+"%")).
		Where(sq.Expr("n.nspname !~ '^pg_toast'")).
		ToSql()
	if err != nil {
		return fmt.Errorf("building schema lookup: %w", err)
	}

	names, err := m.schemaNames(ctx, query, args...)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := m.exec.Exec(ctx, "drop schema "+pq.QuoteIdentifier(name)+" cascade"); err != nil {
			return err
		}
	}
	return nil
}

// renameSchemaHolders renames the pre-provisioned schema holders into the
// discovered schema names. Each rename runs in its own nested scope so a
// collision with a pre-existing schema rolls back alone and the remaining
// schemas still mirror; a failed rename keeps its holder for the next name.
func (m *Mirror) renameSchemaHolders(ctx context.Context, schemaNames []string) ([]SchemaRename, error) {
	results := make([]SchemaRename, 0, len(schemaNames))
	holderID := 0
	for _, name := range schemaNames {
		holder := SchemaHolderName(holderID)

		scope, err := m.exec.BeginNested(ctx)
		if err != nil {
			return results, fmt.Errorf("opening rename scope: %w", err)
		}

		statement := "alter schema " + holder + " rename to " + pq.QuoteIdentifier(name)
		if execErr := m.exec.Exec(ctx, statement); execErr != nil {
			if rbErr := scope.Rollback(ctx); rbErr != nil {
				return results, fmt.Errorf("unwinding rename scope: %w", rbErr)
			}
			slog.Warn("schema holder rename skipped",
				"schema", pq.QuoteIdentifier(name), "holder", holder, "error", execErr)
			results = append(results, SchemaRename{Schema: name, Holder: holder, Err: execErr})
			continue
		}
		if err := scope.Commit(ctx); err != nil {
			return results, fmt.Errorf("keeping rename scope: %w", err)
		}

		results = append(results, SchemaRename{Schema: name, Holder: holder})
		holderID++
	}
	return results, nil
}

// dropSchemaHolders drops the schema holders that were not consumed by a
// rename.
func (m *Mirror) dropSchemaHolders(ctx context.Context) error {
	query, args, err := psq.Select("n.nspname").
		From("pg_catalog.pg_namespace n").
		Where(sq.Expr("n.nspname like ?", schemaHolderPrefix+"%")).
		ToSql()
	if err != nil {
		return fmt.Errorf("building holder lookup: %w", err)
	}

	names, err := m.schemaNames(ctx, query, args...)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := m.exec.Exec(ctx, "drop schema "+pq.QuoteIdentifier(name)); err != nil {
			return err
		}
	}
	return nil
}

// schemaNames materializes a single-column catalog lookup. The cursor is
// drained before any DDL runs because both share one connection.
func (m *Mirror) schemaNames(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := m.exec.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning schema name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading schema names: %w", err)
	}
	return names, nil
}

// capture runs the caller's query and copies out column names, canonical
// column types and all rows, so the result survives the scope rollback.
func (m *Mirror) capture(ctx context.Context, query string) (*cache.QueryResult, error) {
	rows, err := m.exec.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columnNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}
	typeIdentifiers, err := rows.TypeIdentifiers()
	if err != nil {
		return nil, fmt.Errorf("reading result column types: %w", err)
	}

	var data [][]any
	for rows.Next() {
		values := make([]any, len(columnNames))
		ptrs := make([]any, len(columnNames))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading result rows: %w", err)
	}

	// Release the cursor before the type lookup; both share the connection.
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("closing result cursor: %w", err)
	}

	columnTypes, err := m.oids.Resolve(ctx, m.exec, typeIdentifiers)
	if err != nil {
		return nil, err
	}

	return &cache.QueryResult{
		ColumnNames: columnNames,
		ColumnTypes: columnTypes,
		Rows:        data,
	}, nil
}
