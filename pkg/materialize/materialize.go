// Package materialize provides the two entry points of the module: running a
// remote query into a local temporary table, and running a query against the
// mirrored remote catalog into a local temporary table.
package materialize

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/txn2/trino-materialize/pkg/cache"
	"github.com/txn2/trino-materialize/pkg/identifier"
	"github.com/txn2/trino-materialize/pkg/loader"
	"github.com/txn2/trino-materialize/pkg/mirror"
	"github.com/txn2/trino-materialize/pkg/pgexec"
	"github.com/txn2/trino-materialize/pkg/remote"
	"github.com/txn2/trino-materialize/pkg/sqlbuild"
	"github.com/txn2/trino-materialize/pkg/typemap"
)

// Config tunes materialization behavior.
type Config struct {
	// BatchSize is the number of rows per INSERT batch.
	BatchSize int `yaml:"batch_size"`

	// CacheTTL is how long a discovered schema plan stays valid.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// Now overrides the cache clock. Nil means time.Now.
	Now func() time.Time `yaml:"-"`
}

func applyDefaults(cfg Config) Config {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = loader.DefaultBatchSize
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	return cfg
}

// Materializer sequences discovery, DDL construction and bulk loading for one
// remote/local session pair. It owns the schema cache and the type identifier
// map across calls. Not safe for concurrent use; each call assumes it owns
// the local session for its duration.
//
// Failures keep their origin: errors from the remote engine match
// *remote.QueryError and errors from the local database match
// *pgexec.StatementError under errors.As.
type Materializer struct {
	client    remote.Client
	exec      pgexec.Executor
	key       cache.Key
	mirror    *mirror.Mirror
	batchSize int
}

// New creates a Materializer for the session identified by key.
func New(client remote.Client, exec pgexec.Executor, key cache.Key, cfg Config) *Materializer {
	cfg = applyDefaults(cfg)
	schemaCache := cache.New(cfg.CacheTTL, cfg.Now)
	return &Materializer{
		client:    client,
		exec:      exec,
		key:       key,
		mirror:    mirror.New(client, exec, schemaCache, typemap.NewOIDMap()),
		batchSize: cfg.BatchSize,
	}
}

// Remote runs query on the remote engine and loads its full result into a
// local temporary table named resultTable, replacing any previous table of
// that name.
func (m *Materializer) Remote(ctx context.Context, resultTable, query string) error {
	client := m.client
	searchPath, err := m.exec.SearchPathSchemas(ctx)
	if err != nil {
		return err
	}
	if len(searchPath) > 0 && !isDefaultSearchPath(searchPath) {
		// search_path was changed explicitly; the first schema wins. The
		// derived client owns a connection pool of its own, released here.
		client = client.WithSchema(searchPath[0])
		if closer, ok := client.(io.Closer); ok {
			defer func() { _ = closer.Close() }()
		}
	}

	q, err := client.Submit(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = q.Close() }()

	columns := q.Columns()
	columnNames := make([]string, len(columns))
	columnTypes := make([]string, len(columns))
	for i, column := range columns {
		columnNames[i] = column.Name
		columnTypes[i] = typemap.ResultType(column.Type)
	}
	columnNames = identifier.Dedupe(columnNames)

	return m.load(ctx, resultTable, columnNames, columnTypes, q)
}

// Mirrored runs query against the mirrored remote catalog and loads its
// captured result into a local temporary table named resultTable. The catalog
// mutations performed to answer the query never outlive the call.
func (m *Materializer) Mirrored(ctx context.Context, loginUser, resultTable, query string) error {
	result, err := m.mirror.Run(ctx, m.key, loginUser, query)
	if err != nil {
		return err
	}

	columnNames := identifier.Dedupe(result.ColumnNames)
	return m.load(ctx, resultTable, columnNames, result.ColumnTypes, loader.NewSliceSource(result.Rows))
}

func (m *Materializer) load(ctx context.Context, resultTable string, columnNames, columnTypes []string, source loader.RowSource) error {
	if err := m.exec.Exec(ctx, sqlbuild.DropTableIfExists(resultTable)); err != nil {
		return err
	}
	if err := m.exec.Exec(ctx, sqlbuild.CreateTempTable(resultTable, columnNames, columnTypes)); err != nil {
		return err
	}
	if err := loader.Load(ctx, m.exec, sqlbuild.InsertInto(resultTable, columnNames), m.batchSize, columnTypes, source); err != nil {
		return fmt.Errorf("loading %s: %w", resultTable, err)
	}
	return nil
}

// isDefaultSearchPath reports whether the session still has PostgreSQL's
// stock search_path.
func isDefaultSearchPath(searchPath []string) bool {
	return len(searchPath) == 2 && searchPath[0] == "$user" && searchPath[1] == "public"
}
