// Package main provides the trino-materialize command line tool.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"gopkg.in/yaml.v3"

	"github.com/txn2/trino-materialize/pkg/cache"
	"github.com/txn2/trino-materialize/pkg/materialize"
	"github.com/txn2/trino-materialize/pkg/pgexec"
	"github.com/txn2/trino-materialize/pkg/provision"
	"github.com/txn2/trino-materialize/pkg/remote"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath       string
	provisionSchemas int
	provisionTables  int
	migrate          bool
	query            string
	table            string
	mirrored         bool
	loginUser        string
	showVersion      bool
}

func parseFlags() options {
	opts := options{}
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.IntVar(&opts.provisionSchemas, "provision-schemas", 0, "Create N schema holders and exit")
	flag.IntVar(&opts.provisionTables, "provision-tables", 0, "Create N table holders and exit")
	flag.BoolVar(&opts.migrate, "migrate", false, "Apply the staging schema baseline")
	flag.StringVar(&opts.query, "query", "", "Query to materialize")
	flag.StringVar(&opts.table, "table", "result", "Target temporary table name")
	flag.BoolVar(&opts.mirrored, "mirror", false, "Run the query against the mirrored catalog")
	flag.StringVar(&opts.loginUser, "login-user", "", "Login role for mirrored queries (defaults to trino user)")
	flag.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	flag.Parse()
	return opts
}

// fileConfig is the yaml configuration file layout.
type fileConfig struct {
	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`
	Trino       remote.Config      `yaml:"trino"`
	Materialize materialize.Config `yaml:"materialize"`
}

func loadConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := &fileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
	}
	return cfg, nil
}

func run() error {
	opts := parseFlags()

	if opts.showVersion {
		fmt.Printf("trino-materialize version %s\n", version)
		return nil
	}

	if opts.configPath == "" {
		return fmt.Errorf("-config is required")
	}
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()

	db, err := sql.Open("pgx", cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("opening postgres: %w", err)
	}
	defer func() { _ = db.Close() }()

	if opts.migrate {
		if err := provision.Migrate(db); err != nil {
			return err
		}
	}

	session, err := pgexec.NewSession(ctx, db)
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	if opts.provisionSchemas > 0 || opts.provisionTables > 0 {
		return provisionHolders(ctx, session, opts)
	}

	if opts.query == "" {
		return fmt.Errorf("-query is required")
	}
	return materializeQuery(ctx, cfg, session, opts)
}

func provisionHolders(ctx context.Context, session *pgexec.Session, opts options) error {
	if opts.provisionSchemas > 0 {
		if err := provision.CreateSchemaHolders(ctx, session, opts.provisionSchemas); err != nil {
			return err
		}
	}
	if opts.provisionTables > 0 {
		if err := provision.CreateTableHolders(ctx, session, opts.provisionTables); err != nil {
			return err
		}
	}
	return nil
}

func materializeQuery(ctx context.Context, cfg *fileConfig, session *pgexec.Session, opts options) error {
	// The remote session runs in the local session's time zone so temporal
	// values materialize consistently.
	if cfg.Trino.TimeZone == "" {
		tz, err := session.SessionTimeZone(ctx)
		if err != nil {
			return err
		}
		cfg.Trino.TimeZone = tz
	}

	client, err := remote.NewTrinoClient(cfg.Trino)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	key := cache.Key{
		Server:  cfg.Trino.Host,
		User:    cfg.Trino.User,
		Catalog: cfg.Trino.Catalog,
		Schema:  cfg.Trino.Schema,
	}
	m := materialize.New(client, session, key, cfg.Materialize)

	if opts.mirrored {
		loginUser := opts.loginUser
		if loginUser == "" {
			loginUser = cfg.Trino.User
		}
		if err := m.Mirrored(ctx, loginUser, opts.table, opts.query); err != nil {
			return err
		}
	} else {
		if err := m.Remote(ctx, opts.table, opts.query); err != nil {
			return err
		}
	}

	return printTable(ctx, session, opts.table)
}

func printTable(ctx context.Context, session *pgexec.Session, table string) error {
	rows, err := session.Query(ctx, "select * from "+pq.QuoteIdentifier(table))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}
	fmt.Println(strings.Join(columns, "\t"))

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		fields := make([]string, len(values))
		for i, v := range values {
			fields[i] = fmt.Sprint(v)
		}
		fmt.Println(strings.Join(fields, "\t"))
	}
	return rows.Err()
}
