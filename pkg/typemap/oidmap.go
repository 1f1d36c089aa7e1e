package typemap

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/txn2/trino-materialize/pkg/pgexec"
)

// psq builds catalog lookup queries with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// OIDMap resolves the driver's column type identifiers to canonical
// PostgreSQL type names. Built-in types arrive as upper-cased names; types
// the driver does not know (information_schema domains among them) arrive as
// numeric OIDs and are looked up in pg_catalog.pg_type. The mapping only
// grows: PostgreSQL never reassigns an OID, so entries are cached for the
// process lifetime.
type OIDMap struct {
	names map[string]string
}

// NewOIDMap creates an empty type identifier mapping.
func NewOIDMap() *OIDMap {
	return &OIDMap{names: make(map[string]string)}
}

// Resolve translates one type identifier per result column into canonical
// type names, querying pg_catalog.pg_type for identifiers not seen before.
func (m *OIDMap) Resolve(ctx context.Context, exec pgexec.Executor, identifiers []string) ([]string, error) {
	var missing []int64
	for _, id := range identifiers {
		if _, ok := m.names[id]; ok {
			continue
		}
		if oid, err := strconv.ParseInt(id, 10, 64); err == nil {
			missing = append(missing, oid)
			continue
		}
		m.names[id] = InfoSchemaType(strings.ToLower(id))
	}

	if len(missing) > 0 {
		if err := m.load(ctx, exec, missing); err != nil {
			return nil, err
		}
	}

	resolved := make([]string, len(identifiers))
	for i, id := range identifiers {
		name, ok := m.names[id]
		if !ok {
			// OID absent from pg_type; store so the lookup is not repeated.
			name = "text"
			m.names[id] = name
		}
		resolved[i] = name
	}
	return resolved, nil
}

func (m *OIDMap) load(ctx context.Context, exec pgexec.Executor, oids []int64) error {
	query, args, err := psq.Select("oid", "typname").
		From("pg_catalog.pg_type").
		Where(sq.Eq{"oid": oids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building pg_type lookup: %w", err)
	}

	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("loading type names: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			oid  int64
			name string
		)
		if err := rows.Scan(&oid, &name); err != nil {
			return fmt.Errorf("scanning pg_type row: %w", err)
		}
		m.names[strconv.FormatInt(oid, 10)] = InfoSchemaType(name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading pg_type rows: %w", err)
	}
	return nil
}
