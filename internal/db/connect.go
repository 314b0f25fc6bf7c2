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
			dsn = "file:reshuffle.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/reshuffle?sslmode=disable"
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
	if driver == DriverSQLite {
		// one writer; keeps the delete-then-insert re-score atomic under sqlite locking
		db.SetMaxOpenConns(1)
	}

	if err := EnsureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func EnsureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	default:
		return fmt.Errorf("unsupported driver: %s", driver)
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS subjects (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  title TEXT NOT NULL UNIQUE,
  case_genitive TEXT NOT NULL DEFAULT '',
  case_dative TEXT NOT NULL DEFAULT '',
  case_accusative TEXT NOT NULL DEFAULT '',
  case_instrumental TEXT NOT NULL DEFAULT '',
  case_prepositional TEXT NOT NULL DEFAULT '',
  inst_title TEXT NOT NULL DEFAULT 'Instructions for work performance',
  inst_content TEXT NOT NULL DEFAULT '',
  is_active INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS parts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  subject_id INTEGER NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
  title TEXT NOT NULL,
  answer_type TEXT NOT NULL,
  task_count INTEGER NOT NULL,
  total_difficulty INTEGER NOT NULL DEFAULT 0,
  inst_content TEXT NOT NULL DEFAULT '',
  UNIQUE (subject_id, title)
);

CREATE TABLE IF NOT EXISTS tasks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  part_id INTEGER NOT NULL REFERENCES parts(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  difficulty INTEGER NOT NULL,
  content TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS tasks_part_position ON tasks(part_id, position);

CREATE TABLE IF NOT EXISTS options (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  task_id INTEGER NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
  content TEXT NOT NULL,
  is_answer INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS doc_headers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  content TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS archives (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  subject_id INTEGER NOT NULL,
  subject_title TEXT NOT NULL,
  exam_date TEXT NOT NULL,
  prefix TEXT NOT NULL UNIQUE,
  amount INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS verified_works (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  archive_id TEXT NOT NULL REFERENCES archives(id) ON DELETE CASCADE,
  unique_key TEXT NOT NULL,
  user_id TEXT NOT NULL,
  score INTEGER NOT NULL,
  total INTEGER NOT NULL,
  fallback INTEGER NOT NULL DEFAULT 0,
  image_alias TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  UNIQUE (archive_id, unique_key)
);

CREATE TABLE IF NOT EXISTS event_log (
  offset INTEGER PRIMARY KEY AUTOINCREMENT,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS subjects (
  id BIGSERIAL PRIMARY KEY,
  title TEXT NOT NULL UNIQUE,
  case_genitive TEXT NOT NULL DEFAULT '',
  case_dative TEXT NOT NULL DEFAULT '',
  case_accusative TEXT NOT NULL DEFAULT '',
  case_instrumental TEXT NOT NULL DEFAULT '',
  case_prepositional TEXT NOT NULL DEFAULT '',
  inst_title TEXT NOT NULL DEFAULT 'Instructions for work performance',
  inst_content TEXT NOT NULL DEFAULT '',
  is_active BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS parts (
  id BIGSERIAL PRIMARY KEY,
  subject_id BIGINT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
  title TEXT NOT NULL,
  answer_type TEXT NOT NULL,
  task_count INTEGER NOT NULL,
  total_difficulty INTEGER NOT NULL DEFAULT 0,
  inst_content TEXT NOT NULL DEFAULT '',
  UNIQUE (subject_id, title)
);

CREATE TABLE IF NOT EXISTS tasks (
  id BIGSERIAL PRIMARY KEY,
  part_id BIGINT NOT NULL REFERENCES parts(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  difficulty INTEGER NOT NULL,
  content TEXT NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS tasks_part_position ON tasks(part_id, position);

CREATE TABLE IF NOT EXISTS options (
  id BIGSERIAL PRIMARY KEY,
  task_id BIGINT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
  content TEXT NOT NULL,
  is_answer BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS doc_headers (
  id BIGSERIAL PRIMARY KEY,
  content TEXT NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS archives (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  subject_id BIGINT NOT NULL,
  subject_title TEXT NOT NULL,
  exam_date TEXT NOT NULL,
  prefix TEXT NOT NULL UNIQUE,
  amount INTEGER NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS verified_works (
  id BIGSERIAL PRIMARY KEY,
  archive_id TEXT NOT NULL REFERENCES archives(id) ON DELETE CASCADE,
  unique_key TEXT NOT NULL,
  user_id TEXT NOT NULL,
  score INTEGER NOT NULL,
  total INTEGER NOT NULL,
  fallback BOOLEAN NOT NULL DEFAULT FALSE,
  image_alias TEXT NOT NULL,
  created_at BIGINT NOT NULL,
  UNIQUE (archive_id, unique_key)
);

CREATE TABLE IF NOT EXISTS event_log (
  "offset" BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
