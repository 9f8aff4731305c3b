package storage

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is embedded in the on-disk filename, matching §6's
// persisted-state layout (<data_dir>/sundial-sqlite-<email>.v<VERSION>.db).
const SchemaVersion = 2

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS bucket (
	key INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT UNIQUE NOT NULL,
	created TEXT NOT NULL,
	name TEXT,
	type TEXT NOT NULL,
	client TEXT NOT NULL,
	hostname TEXT NOT NULL,
	datastr TEXT NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS event (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	bucket_fk INTEGER NOT NULL,
	timestamp TEXT NOT NULL,
	duration REAL NOT NULL,
	datastr TEXT NOT NULL DEFAULT '{}',
	app TEXT,
	title TEXT,
	url TEXT,
	application_name TEXT,
	server_sync_status INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_event_bucket_timestamp ON event(bucket_fk, timestamp);
CREATE TABLE IF NOT EXISTS setting (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	code TEXT UNIQUE NOT NULL,
	value_text TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS application (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT NOT NULL,
	name TEXT UNIQUE,
	url TEXT UNIQUE,
	alias TEXT,
	is_blocked INTEGER NOT NULL DEFAULT 0,
	is_ignore_idle_time INTEGER NOT NULL DEFAULT 0,
	color TEXT,
	created_at TEXT,
	updated_at TEXT,
	criteria TEXT
);
`

func createTables(db *sql.DB) error {
	_, err := db.Exec(createTablesSQL)
	if err != nil {
		return fmt.Errorf("storage: create tables: %w", err)
	}
	return nil
}

// migrate introspects the table layout and adds any column a pre-v2
// database is missing. Migrations are idempotent and additive only.
//
// Per the resolved open question (§9, DESIGN.md), a successful migration
// always reports changed=true, whether or not a column was actually added.
func migrate(db *sql.DB) (changed bool, err error) {
	if err := ensureColumn(db, "bucket", "datastr", "TEXT NOT NULL DEFAULT '{}'"); err != nil {
		return false, fmt.Errorf("storage: migrate bucket.datastr: %w", err)
	}
	if err := ensureColumn(db, "event", "server_sync_status", "INTEGER NOT NULL DEFAULT 0"); err != nil {
		return false, fmt.Errorf("storage: migrate event.server_sync_status: %w", err)
	}
	return true, nil
}

func ensureColumn(db *sql.DB, table, column, ddl string) error {
	has, err := hasColumn(db, table, column)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, ddl))
	return err
}

func hasColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notnull    int
			dfltValue  any
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &primaryKey); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
