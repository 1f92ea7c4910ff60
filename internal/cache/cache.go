// Package cache stores compiled bytecode keyed by a hash of its source,
// in any of the SQL databases the tools can reach.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"bies/internal/bytecode"
)

// keyVersion changes whenever the compiler output for the same source
// may change, which orphans older entries.
const keyVersion = "bies-1"

// Cache is safe for concurrent use; database/sql pools the connections.
type Cache struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// Entry describes one cached compilation.
type Entry struct {
	ID           string
	File         string
	Functions    int
	Instructions int
	Hits         int64
	Created      time.Time
}

// Open connects to the database named by driver and dsn and creates the
// cache table when missing. Accepted drivers: sqlite (or sqlite3),
// postgres (or postgresql), mysql, sqlserver (or mssql).
func Open(ctx context.Context, driver, dsn string) (*Cache, error) {
	d, err := lookupDialect(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s cache", d.name)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "ping %s cache", d.name)
	}

	db.SetMaxOpenConns(d.maxOpen)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	c := &Cache{db: db, dialect: d, now: time.Now}
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create cache table")
	}
	return c, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Driver is the normalized driver name.
func (c *Cache) Driver() string {
	return c.dialect.name
}

// Key hashes source text into the lookup key.
func Key(source string) string {
	sum := sha256.Sum256([]byte(keyVersion + "\x00" + source))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached bytecode for source, counting the hit.
func (c *Cache) Get(ctx context.Context, source string) (*bytecode.Code, bool, error) {
	key := Key(source)
	var text string
	err := c.db.QueryRowContext(ctx,
		c.dialect.bind("SELECT bytecode FROM bies_cache WHERE source_hash = ?"), key).Scan(&text)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "read cache entry")
	}

	code, err := bytecode.ParseString(text, "cache:"+key[:12])
	if err != nil {
		// A damaged entry is treated as a miss and dropped.
		if _, derr := c.db.ExecContext(ctx, c.dialect.bind("DELETE FROM bies_cache WHERE source_hash = ?"), key); derr != nil {
			return nil, false, errors.Wrap(derr, "drop damaged cache entry")
		}
		return nil, false, nil
	}

	if _, err := c.db.ExecContext(ctx,
		c.dialect.bind("UPDATE bies_cache SET hits = hits + 1 WHERE source_hash = ?"), key); err != nil {
		return nil, false, errors.Wrap(err, "count cache hit")
	}
	return code, true, nil
}

// Put stores code as the compilation of source, replacing any earlier
// entry for the same source. It returns the new entry's id.
func (c *Cache) Put(ctx context.Context, file, source string, code *bytecode.Code) (string, error) {
	key := Key(source)
	id := uuid.NewString()

	err := c.transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, c.dialect.bind("DELETE FROM bies_cache WHERE source_hash = ?"), key); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, c.dialect.bind(
			`INSERT INTO bies_cache (id, source_hash, file, bytecode, functions, instructions, hits, created_unix)
			 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`),
			id, key, file, bytecode.Format(code), code.Len(), code.InstructionCount(), c.now().Unix())
		return err
	})
	if err != nil {
		return "", errors.Wrap(err, "write cache entry")
	}
	return id, nil
}

// transaction runs fn inside a transaction and commits when it succeeds.
func (c *Cache) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(rbErr, "rollback after %v", err)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

// List returns every entry, newest first.
func (c *Cache) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT id, file, functions, instructions, hits, created_unix FROM bies_cache ORDER BY created_unix DESC, file")
	if err != nil {
		return nil, errors.Wrap(err, "list cache entries")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.ID, &e.File, &e.Functions, &e.Instructions, &e.Hits, &created); err != nil {
			return nil, errors.Wrap(err, "scan cache entry")
		}
		e.Created = time.Unix(created, 0)
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "list cache entries")
}

// Clear removes every entry and reports how many there were.
func (c *Cache) Clear(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM bies_cache")
	if err != nil {
		return 0, errors.Wrap(err, "clear cache")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "clear cache")
}

// dialect holds what differs between the supported databases.
type dialect struct {
	name    string
	driver  string
	maxOpen int
	schema  string
	// placeholder renders the n-th (1-based) bind parameter.
	placeholder func(n int) string
}

// bind rewrites the '?' placeholders of query for the dialect.
func (d dialect) bind(query string) string {
	if d.placeholder == nil {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const columns = `(
	id VARCHAR(36) NOT NULL PRIMARY KEY,
	source_hash VARCHAR(64) NOT NULL UNIQUE,
	file VARCHAR(255) NOT NULL,
	bytecode %s NOT NULL,
	functions INTEGER NOT NULL,
	instructions INTEGER NOT NULL,
	hits BIGINT NOT NULL,
	created_unix BIGINT NOT NULL
)`

var dialects = map[string]dialect{
	"sqlite": {
		name: "sqlite", driver: "sqlite", maxOpen: 1,
		schema: "CREATE TABLE IF NOT EXISTS bies_cache " + fmt.Sprintf(columns, "TEXT"),
	},
	"postgres": {
		name: "postgres", driver: "postgres", maxOpen: 10,
		schema:      "CREATE TABLE IF NOT EXISTS bies_cache " + fmt.Sprintf(columns, "TEXT"),
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	},
	"mysql": {
		name: "mysql", driver: "mysql", maxOpen: 10,
		schema: "CREATE TABLE IF NOT EXISTS bies_cache " + fmt.Sprintf(columns, "LONGTEXT"),
	},
	"sqlserver": {
		name: "sqlserver", driver: "sqlserver", maxOpen: 10,
		schema:      "IF OBJECT_ID('bies_cache', 'U') IS NULL CREATE TABLE bies_cache " + fmt.Sprintf(columns, "NVARCHAR(MAX)"),
		placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
	},
}

func lookupDialect(driver string) (dialect, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return dialects["sqlite"], nil
	case "postgres", "postgresql":
		return dialects["postgres"], nil
	case "mysql":
		return dialects["mysql"], nil
	case "sqlserver", "mssql":
		return dialects["sqlserver"], nil
	}
	return dialect{}, errors.Errorf("unsupported cache driver: %s", driver)
}
