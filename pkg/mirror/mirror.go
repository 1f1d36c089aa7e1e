// Package mirror reproduces the remote engine's catalog shape as local
// PostgreSQL schemas and tables for the duration of a single query. It
// discovers the remote catalog, renames pre-provisioned holder objects into
// the discovered identities inside a nested transaction scope, runs the
// caller's query against the mirrored catalog, and rolls the scope back
// unconditionally so nothing of the mirror outlives the call.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/txn2/trino-materialize/pkg/cache"
	"github.com/txn2/trino-materialize/pkg/pgexec"
	"github.com/txn2/trino-materialize/pkg/remote"
	"github.com/txn2/trino-materialize/pkg/sqlbuild"
	"github.com/txn2/trino-materialize/pkg/typemap"
)

// catalogColumnsQuery discovers the whole remote catalog shape in one pass.
const catalogColumnsQuery = "select table_schema, table_name, column_name, is_nullable, data_type" +
	" from information_schema.columns"

// Mirror runs the catalog mirroring protocol against one remote client and
// one local session. Not safe for concurrent use.
type Mirror struct {
	client remote.Client
	exec   pgexec.Executor
	cache  *cache.SchemaCache
	oids   *typemap.OIDMap
}

// New creates a Mirror. The cache and OID map are owned by the caller so
// their lifetime can span many calls.
func New(client remote.Client, exec pgexec.Executor, schemaCache *cache.SchemaCache, oids *typemap.OIDMap) *Mirror {
	return &Mirror{client: client, exec: exec, cache: schemaCache, oids: oids}
}

// Run executes query against the mirrored catalog and returns its captured
// result. The schema plan is recomputed when the cache key mismatches or the
// TTL elapsed; the catalog is only mutated (and rolled back) when the query
// result itself is not cached.
func (m *Mirror) Run(ctx context.Context, key cache.Key, loginUser, query string) (*cache.QueryResult, error) {
	if !m.cache.IsValid(key) {
		schemas, err := m.discover(ctx)
		if err != nil {
			return nil, err
		}
		schemaNames, statements := plan(loginUser, schemas)
		m.cache.Populate(key, schemaNames, statements)
	}

	if result, ok := m.cache.LookupQuery(query); ok {
		return result, nil
	}

	result, err := m.applyAndRun(ctx, key, loginUser, query)
	if err != nil {
		return nil, err
	}
	m.cache.StoreQuery(query, result)
	return result, nil
}

// discover queries the remote information schema and groups the rows into
// schema -> table -> columns, skipping any name too long to mirror.
func (m *Mirror) discover(ctx context.Context) (map[string]map[string][]remote.Column, error) {
	q, err := m.client.Submit(ctx, catalogColumnsQuery)
	if err != nil {
		return nil, fmt.Errorf("discovering remote catalog: %w", err)
	}
	defer func() { _ = q.Close() }()

	schemas := make(map[string]map[string][]remote.Column)
	for {
		row, err := q.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading remote catalog: %w", err)
		}
		if len(row) < 5 {
			return nil, fmt.Errorf("remote catalog row has %d fields, want 5", len(row))
		}

		schemaName := asString(row[0])
		tableName := asString(row[1])
		columnName := asString(row[2])
		nullable := strings.EqualFold(asString(row[3]), "YES")
		columnType := asString(row[4])

		if len(schemaName) > maxIdentifierLen {
			slog.Warn("schema skipped because its name exceeds the identifier length limit",
				"schema", schemaName, "limit", maxIdentifierLen)
			continue
		}

		tables, ok := schemas[schemaName]
		if !ok {
			tables = make(map[string][]remote.Column)
			schemas[schemaName] = tables
		}

		if len(tableName) > maxIdentifierLen {
			slog.Warn("table skipped because its name exceeds the identifier length limit",
				"schema", schemaName, "table", tableName, "limit", maxIdentifierLen)
			continue
		}

		// A table whose columns are all skipped gets no entry at all: it is
		// left out of the plan and consumes no holder, rather than being
		// mirrored as an empty table.
		if len(columnName) > maxIdentifierLen {
			slog.Warn("column skipped because its name exceeds the identifier length limit",
				"schema", schemaName, "table", tableName, "column", columnName, "limit", maxIdentifierLen)
			continue
		}

		tables[tableName] = append(tables[tableName], remote.Column{
			Name:     columnName,
			Type:     columnType,
			Nullable: nullable,
		})
	}

	return schemas, nil
}

// plan turns the discovered catalog shape into the ordered statement sequence
// that mirrors it: role provisioning, a grant on the holders before they
// move, then per table a move into the target schema, a rename to the real
// name, and the column additions. Schemas and tables are sorted so holder
// assignment is stable across runs.
func plan(loginUser string, schemas map[string]map[string][]remote.Column) (schemaNames, statements []string) {
	// Restricted login role matching the caller's identity, created only if
	// absent.
	statements = append(statements,
		"do $$ begin if not exists (select * from pg_catalog.pg_roles where rolname="+
			pq.QuoteLiteral(loginUser)+") then create role "+pq.QuoteIdentifier(loginUser)+
			" with login; end if; end $$")
	statements = append(statements,
		"grant select on all tables in schema "+StagingSchema+" to "+pq.QuoteIdentifier(loginUser))

	holderID := 0
	for _, schemaName := range sortedKeys(schemas) {
		if isSystemSchema(schemaName) {
			continue
		}
		schemaNames = append(schemaNames, schemaName)

		tables := schemas[schemaName]
		for _, tableName := range sortedKeys(tables) {
			columns := tables[tableName]

			columnNames := make([]string, len(columns))
			columnTypes := make([]string, len(columns))
			notNulls := make([]bool, len(columns))
			for i, column := range columns {
				columnNames[i] = column.Name
				columnTypes[i] = typemap.TableType(column.Type)
				notNulls[i] = !column.Nullable
			}

			statements = append(statements,
				"alter table "+StagingSchema+"."+TableHolderName(holderID)+
					" set schema "+pq.QuoteIdentifier(schemaName))
			statements = append(statements,
				"alter table "+pq.QuoteIdentifier(schemaName)+"."+TableHolderName(holderID)+
					" rename to "+pq.QuoteIdentifier(tableName))
			if len(columns) > 0 {
				statements = append(statements,
					sqlbuild.AlterTableAddColumns(schemaName, tableName, columnNames, columnTypes, notNulls))
			}

			holderID++
		}
	}

	return schemaNames, statements
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
