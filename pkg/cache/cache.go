// Package cache holds the schema plan and query results discovered from the
// remote catalog, so repeated catalog queries within the TTL window skip
// remote discovery. The cache assumes a single logical session per process;
// it carries no locking of its own.
package cache

import "time"

// DefaultTTL is how long a schema plan stays valid.
const DefaultTTL = 60 * time.Second

// Key identifies the remote session a cached plan belongs to. Any field
// changing invalidates the whole entry.
type Key struct {
	Server  string
	User    string
	Catalog string
	Schema  string
}

// QueryResult is a fully captured query result: deduplication has not been
// applied to ColumnNames yet, ColumnTypes are canonical PostgreSQL type
// names, and Rows are in result order.
type QueryResult struct {
	ColumnNames []string
	ColumnTypes []string
	Rows        [][]any
}

// SchemaCache is the two-level cache: the schema-name list and mirror
// statement plan at level one, query results nested under it at level two.
// Repopulating level one discards level two.
type SchemaCache struct {
	key         Key
	schemaNames []string
	statements  []string
	expireAt    time.Time
	populated   bool

	queries map[string]*QueryResult

	ttl time.Duration
	now func() time.Time
}

// New creates a cache with the given TTL. A zero ttl uses DefaultTTL; a nil
// clock uses time.Now.
func New(ttl time.Duration, now func() time.Time) *SchemaCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &SchemaCache{ttl: ttl, now: now}
}

// IsValid reports whether the cached plan belongs to key and has not expired.
func (c *SchemaCache) IsValid(key Key) bool {
	return c.populated && c.key == key && c.now().Before(c.expireAt)
}

// Populate replaces the cached plan atomically, stamps a fresh expiry, and
// clears the nested query cache.
func (c *SchemaCache) Populate(key Key, schemaNames, statements []string) {
	c.key = key
	c.schemaNames = schemaNames
	c.statements = statements
	c.expireAt = c.now().Add(c.ttl)
	c.populated = true
	c.queries = make(map[string]*QueryResult)
}

// SchemaNames returns the cached remote schema names.
func (c *SchemaCache) SchemaNames() []string { return c.schemaNames }

// Statements returns the cached catalog-mutation statement sequence.
func (c *SchemaCache) Statements() []string { return c.statements }

// LookupQuery returns the cached result for a query text, if present. Only
// meaningful right after Populate or a true IsValid within the same call.
func (c *SchemaCache) LookupQuery(query string) (*QueryResult, bool) {
	r, ok := c.queries[query]
	return r, ok
}

// StoreQuery caches the result of a query text under the current plan.
func (c *SchemaCache) StoreQuery(query string, result *QueryResult) {
	c.queries[query] = result
}
