package remote

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/trinodb/trino-go-client/trino"
)

const (
	// defaultPlainPort is the default port when SSL is disabled.
	defaultPlainPort = 8080

	// defaultSSLPort is the default port when SSL is enabled.
	defaultSSLPort = 443

	// defaultSource identifies this tool to the Trino coordinator.
	defaultSource = "trino-materialize"
)

// Config holds Trino connection settings.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Catalog  string `yaml:"catalog"`
	Schema   string `yaml:"schema"`
	SSL      bool   `yaml:"ssl"`
	Source   string `yaml:"source"`
	TimeZone string `yaml:"time_zone"`
}

func applyDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		if cfg.SSL {
			cfg.Port = defaultSSLPort
		} else {
			cfg.Port = defaultPlainPort
		}
	}
	if cfg.Source == "" {
		cfg.Source = defaultSource
	}
	return cfg
}

// TrinoClient implements Client over the Trino database/sql driver. One
// TrinoClient maps to one (server, user, catalog, schema, time zone) binding.
type TrinoClient struct {
	cfg        Config
	httpClient string
	db         *sql.DB
}

// NewTrinoClient validates cfg and binds a client to it. The underlying pool
// is opened lazily on first Submit. When a time zone is configured the
// protocol HTTP client is registered here, once, so clients derived with
// WithSchema share it rather than grow the driver's client registry.
func NewTrinoClient(cfg Config) (*TrinoClient, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("trino host is required")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("trino user is required")
	}
	cfg = applyDefaults(cfg)

	client := &TrinoClient{cfg: cfg}
	if cfg.TimeZone != "" {
		// The session time zone rides on the client protocol header, which
		// the driver exposes through a custom HTTP client.
		name := "tz-" + uuid.NewString()
		if err := trino.RegisterCustomClient(name, &http.Client{
			Transport: &timeZoneTransport{base: http.DefaultTransport, zone: cfg.TimeZone},
			Timeout:   defaultHTTPTimeout,
		}); err != nil {
			return nil, fmt.Errorf("registering trino http client: %w", err)
		}
		client.httpClient = name
	}
	return client, nil
}

// WithSchema returns a client bound to a different default schema. The
// derived client shares the parent's registered HTTP client but opens its own
// connection pool; callers release it with Close.
func (c *TrinoClient) WithSchema(schema string) Client {
	cfg := c.cfg
	cfg.Schema = schema
	return &TrinoClient{cfg: cfg, httpClient: c.httpClient}
}

// Close releases the connection pool.
func (c *TrinoClient) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *TrinoClient) open() error {
	if c.db != nil {
		return nil
	}

	dsnCfg := trino.Config{
		ServerURI:        c.serverURI(),
		Source:           c.cfg.Source,
		Catalog:          c.cfg.Catalog,
		Schema:           c.cfg.Schema,
		CustomClientName: c.httpClient,
	}

	dsn, err := dsnCfg.FormatDSN()
	if err != nil {
		return fmt.Errorf("formatting trino dsn: %w", err)
	}

	db, err := sql.Open("trino", dsn)
	if err != nil {
		return fmt.Errorf("opening trino connection: %w", err)
	}
	c.db = db
	return nil
}

// defaultHTTPTimeout bounds a single protocol round trip, not the query.
const defaultHTTPTimeout = 2 * time.Minute

func (c *TrinoClient) serverURI() string {
	scheme := "http"
	if c.cfg.SSL {
		scheme = "https"
	}
	u := url.URL{
		Scheme: scheme,
		User:   url.User(c.cfg.User),
		Host:   c.cfg.Host + ":" + strconv.Itoa(c.cfg.Port),
	}
	return u.String()
}

// Submit starts a query and reads its column metadata. Rows stream lazily
// through the returned Query.
func (c *TrinoClient) Submit(ctx context.Context, query string) (Query, error) {
	if err := c.open(); err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}

	types, err := rows.ColumnTypes()
	if err != nil {
		_ = rows.Close()
		return nil, &QueryError{Query: query, Err: err}
	}

	columns := make([]Column, len(types))
	for i, t := range types {
		nullable, _ := t.Nullable()
		columns[i] = Column{
			Name:     t.Name(),
			Type:     normalizeType(t.DatabaseTypeName()),
			Nullable: nullable,
		}
	}

	return &trinoQuery{query: query, rows: rows, columns: columns}, nil
}

// normalizeType lowercases the driver's type name and drops type parameters,
// matching the bare names the type mapper keys on.
func normalizeType(name string) string {
	name = strings.ToLower(name)
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	return name
}

type trinoQuery struct {
	query   string
	rows    *sql.Rows
	columns []Column
}

func (q *trinoQuery) Columns() []Column { return q.columns }

func (q *trinoQuery) Next() ([]any, error) {
	if !q.rows.Next() {
		if err := q.rows.Err(); err != nil {
			return nil, &QueryError{Query: q.query, Err: err}
		}
		return nil, io.EOF
	}

	values := make([]any, len(q.columns))
	ptrs := make([]any, len(q.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := q.rows.Scan(ptrs...); err != nil {
		return nil, &QueryError{Query: q.query, Err: err}
	}
	return values, nil
}

func (q *trinoQuery) Close() error {
	return q.rows.Close()
}

type timeZoneTransport struct {
	base http.RoundTripper
	zone string
}

func (t *timeZoneTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("X-Trino-Time-Zone", t.zone)
	return t.base.RoundTrip(clone)
}
