// Package sqlite implements settings.Medium as rows of a SQLite table.
// Several stores can share one database by using different scopes.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"settings-lite/internal/settings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultScope groups entries unless WithScope says otherwise.
const DefaultScope = "default"

// Medium stores settings in the settings table of a SQLite database.
type Medium struct {
	db    *sql.DB
	scope string
}

// Option configures a Medium.
type Option func(*Medium)

// WithScope sets the scope column value for this Medium's rows.
func WithScope(scope string) Option {
	return func(m *Medium) { m.scope = scope }
}

// Open opens (or creates) the database at path and runs pending migrations.
// Pass ":memory:" for a private in-memory database.
func Open(path string, opts ...Option) (*Medium, error) {
	m := &Medium{scope: DefaultScope}
	for _, opt := range opts {
		opt(m)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting journal mode: %w", err)
		}
	}

	m.db = db
	if err := m.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return m, nil
}

// migrate applies embedded migrations that have not been recorded yet.
func (m *Medium) migrate() error {
	if _, err := m.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := m.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := m.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

// parseMigrationVersion extracts the leading number from "001_settings.sql".
func parseMigrationVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("invalid migration filename %q", name)
	}
	v, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, fmt.Errorf("invalid migration version in %q: %w", name, err)
	}
	return v, nil
}

// Load reads every row in the scope.
func (m *Medium) Load(ctx context.Context) (map[string]settings.Value, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT key, kind, codec, encoding, value FROM settings WHERE scope = ?", m.scope)
	if err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]settings.Value)
	for rows.Next() {
		var key string
		var r settings.Record
		if err := rows.Scan(&key, &r.Kind, &r.Codec, &r.Encoding, &r.Value); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		v, err := settings.FromRecord(r)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		out[key] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating settings: %w", err)
	}
	return out, nil
}

// Save replaces the rows of the scope in a single transaction.
func (m *Medium) Save(ctx context.Context, entries map[string]settings.Value) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE scope = ?", m.scope); err != nil {
		return fmt.Errorf("clearing settings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO settings (scope, key, kind, codec, encoding, value) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for k, v := range entries {
		if !v.IsValid() {
			return fmt.Errorf("key %q: cannot store %s value", k, v.Kind())
		}
		r := v.Record()
		if _, err := stmt.ExecContext(ctx, m.scope, k, r.Kind, r.Codec, r.Encoding, r.Value); err != nil {
			return fmt.Errorf("inserting %q: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing settings: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (m *Medium) Close() error {
	return m.db.Close()
}

// Compile-time check that Medium implements settings.Medium.
var _ settings.Medium = (*Medium)(nil)
