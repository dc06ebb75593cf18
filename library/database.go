package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPGX      = "pgx"
	DriverPostgres = "postgres"
)

// Database is the persistence boundary. Every exported mutating method runs
// in a single transaction.
type Database struct {
	db  *sqlx.DB
	gq  goqu.DialectWrapper
	now func() time.Time

	postgres bool // RETURNING and row locks
}

// Option configures a Database.
type Option func(*Database)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Database) { d.now = now }
}

// WithMaxOpenConns caps the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(d *Database) {
		if n > 0 {
			d.db.SetMaxOpenConns(n)
		}
	}
}

// Open connects to the database behind driver/dsn. Schema migrations are not
// applied; call Migrate.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Database, error) {
	var dialect string
	switch driver {
	case DriverSQLite:
		dialect = "sqlite3"
		var err error
		if dsn, err = sqliteDSN(dsn); err != nil {
			return nil, err
		}
	case DriverPGX, DriverPostgres:
		dialect = "postgres"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	d := &Database{
		db:       db,
		gq:       goqu.Dialect(dialect),
		now:      time.Now,
		postgres: dialect == "postgres",
	}
	for _, opt := range opts {
		opt(d)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return d, nil
}

// NewDatabase opens (or creates) the SQLite database at dbPath and applies
// schema migrations.
func NewDatabase(dbPath string, opts ...Option) (*Database, error) {
	ctx := context.Background()
	d, err := Open(ctx, DriverSQLite, dbPath, opts...)
	if err != nil {
		return nil, err
	}
	if err := d.Migrate(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// sqliteDSN turns a path or file: URI into a DSN with the pragmas the store
// relies on. Foreign keys drive the delete cascades, and IMMEDIATE
// transactions take the write lock at BEGIN, which serializes the
// read-check-write sequence of lending. Both are forced; a caller-supplied
// busy timeout is kept.
func sqliteDSN(dsn string) (string, error) {
	path, rawQuery, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", fmt.Errorf("parse sqlite dsn: %w", err)
	}
	if !strings.HasPrefix(dsn, "file:") && query.Get("mode") != "memory" {
		// Ensure directory exists so first-run succeeds.
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("create db dir: %w", err)
			}
		}
	}

	query.Del("_fk")
	query.Set("_foreign_keys", "1")
	query.Set("_txlock", "immediate")
	if query.Get("_busy_timeout") == "" && query.Get("_timeout") == "" {
		query.Set("_busy_timeout", "5000")
	}
	return "file:" + path + "?" + query.Encode(), nil
}

// Close closes the connection pool.
func (d *Database) Close() error { return d.db.Close() }

// Ping checks the connection, used by readiness probes.
func (d *Database) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

// Now is the store's clock, UTC and truncated to microseconds so values
// survive a round trip through every backend unchanged.
func (d *Database) Now() time.Time { return d.now().UTC().Truncate(time.Microsecond) }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

// Migrate creates the schema if it is missing or older than this build.
func (d *Database) Migrate(ctx context.Context) error {
	if !d.postgres {
		// WAL improves write concurrency.
		if _, err := d.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("enable WAL: %w", err)
		}
	}

	if _, err := d.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	var current string
	err := d.getx(ctx, d.db, &current, d.from("meta").Select("value").Where(goqu.C("key").Eq("schema_version")))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v, _ := strconv.Atoi(current); v >= schemaVersion {
		return nil
	}

	stmts := sqliteSchema
	if d.postgres {
		stmts = postgresSchema
	}

	return d.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration: %w", err)
			}
		}
		if _, err := d.execx(ctx, tx, d.delete("meta").Where(goqu.C("key").Eq("schema_version"))); err != nil {
			return err
		}
		_, err := d.execx(ctx, tx, d.insert("meta").Rows(goqu.Record{
			"key":   "schema_version",
			"value": strconv.Itoa(schemaVersion),
		}))
		return err
	})
}

// ---------------------------------------------------------------------------
// Query helpers
// ---------------------------------------------------------------------------

type sqlBuilder interface {
	ToSQL() (string, []interface{}, error)
}

func (d *Database) from(table interface{}) *goqu.SelectDataset {
	return d.gq.From(table).Prepared(true)
}

func (d *Database) insert(table string) *goqu.InsertDataset {
	return d.gq.Insert(table).Prepared(true)
}

func (d *Database) update(table string) *goqu.UpdateDataset {
	return d.gq.Update(table).Prepared(true)
}

func (d *Database) delete(table string) *goqu.DeleteDataset {
	return d.gq.Delete(table).Prepared(true)
}

// forUpdate locks the selected rows on backends with row-level locking.
// SQLite transactions already hold the database write lock.
func (d *Database) forUpdate(ds *goqu.SelectDataset) *goqu.SelectDataset {
	if d.postgres {
		return ds.ForUpdate(exp.Wait)
	}
	return ds
}

func (d *Database) getx(ctx context.Context, q sqlx.QueryerContext, dest interface{}, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return sqlx.GetContext(ctx, q, dest, query, args...)
}

func (d *Database) selectx(ctx context.Context, q sqlx.QueryerContext, dest interface{}, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return sqlx.SelectContext(ctx, q, dest, query, args...)
}

func (d *Database) execx(ctx context.Context, e sqlx.ExecerContext, b sqlBuilder) (sql.Result, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return e.ExecContext(ctx, query, args...)
}

// execAffected runs b and returns the number of rows it touched.
func (d *Database) execAffected(ctx context.Context, e sqlx.ExecerContext, b sqlBuilder) (int64, error) {
	res, err := d.execx(ctx, e, b)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// insertID runs an insert and yields the generated id.
func (d *Database) insertID(ctx context.Context, q sqlx.ExtContext, ds *goqu.InsertDataset) (int64, error) {
	if d.postgres {
		var id int64
		if err := d.getx(ctx, q, &id, ds.Returning("id")); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := d.execx(ctx, q, ds)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// inTx runs fn in a transaction, committing only if fn succeeds.
func (d *Database) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// count runs a COUNT(*) over ds.
func (d *Database) count(ctx context.Context, q sqlx.QueryerContext, ds *goqu.SelectDataset) (int, error) {
	var n int
	if err := d.getx(ctx, q, &n, ds.Select(goqu.COUNT("*"))); err != nil {
		return 0, err
	}
	return n, nil
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func ptr[T any](v T) *T { return &v }
