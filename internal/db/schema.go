package db

import "database/sql"

// SchemaSQL is the complete schema for the operation journal.
//
// This is the single source of truth for the database schema. Tests
// use it via GetSchemaSQL() instead of hardcoding CREATE TABLE
// statements, so any repository code referencing a column that does
// not exist here fails immediately with "no such column".
const SchemaSQL = `
-- Journal (append-only record of lifecycle operations)
CREATE TABLE IF NOT EXISTS journal (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
	stream_id TEXT NOT NULL,
	operation TEXT NOT NULL,
	outcome TEXT NOT NULL,
	detail TEXT,
	actor TEXT
);

CREATE INDEX IF NOT EXISTS idx_journal_stream_id ON journal(stream_id);
CREATE INDEX IF NOT EXISTS idx_journal_timestamp ON journal(timestamp);
`

// InitSchema creates the schema if it does not exist. The journal is a
// local cache of operation history, so a fresh file just gets the
// current schema with no migration ceremony.
func InitSchema(database *sql.DB) error {
	_, err := database.Exec(SchemaSQL)
	return err
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
