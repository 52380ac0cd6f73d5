package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:giftpractice.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/giftpractice?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS test_history (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  timestamp TEXT NOT NULL,
  date TEXT NOT NULL,
  time TEXT NOT NULL,
  gift_file TEXT NOT NULL,
  categories_json TEXT NOT NULL,
  total_questions INTEGER NOT NULL,
  correct INTEGER NOT NULL,
  wrong INTEGER NOT NULL,
  percentage REAL NOT NULL,
  wrong_question_ids_json TEXT NOT NULL,
  details_json TEXT
);

CREATE INDEX IF NOT EXISTS test_history_timestamp ON test_history (timestamp);
CREATE INDEX IF NOT EXISTS test_history_gift_file ON test_history (gift_file);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS test_history (
  id BIGSERIAL PRIMARY KEY,
  timestamp TEXT NOT NULL,
  date TEXT NOT NULL,
  time TEXT NOT NULL,
  gift_file TEXT NOT NULL,
  categories_json TEXT NOT NULL,
  total_questions INTEGER NOT NULL,
  correct INTEGER NOT NULL,
  wrong INTEGER NOT NULL,
  percentage DOUBLE PRECISION NOT NULL,
  wrong_question_ids_json TEXT NOT NULL,
  details_json TEXT
);

CREATE INDEX IF NOT EXISTS test_history_timestamp ON test_history (timestamp);
CREATE INDEX IF NOT EXISTS test_history_gift_file ON test_history (gift_file);
`
