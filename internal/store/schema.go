package store

// SchemaVersion is the current queue database schema version
const SchemaVersion = 3

const schema = `
-- Pending submissions awaiting delivery
CREATE TABLE IF NOT EXISTS pending_forms (
    id TEXT NOT NULL PRIMARY KEY,
    payload TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    retry_count INTEGER NOT NULL DEFAULT 0,
    last_error TEXT DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_retry_at DATETIME,
    created_offline INTEGER NOT NULL DEFAULT 0
);

-- Schema info table for version tracking
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_pending_forms_status ON pending_forms(status);
CREATE INDEX IF NOT EXISTS idx_pending_forms_created ON pending_forms(created_at);
`

// Migration defines a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations is the list of all database migrations in order
var Migrations = []Migration{
	// Version 1 is the initial schema - no migration needed
	{
		Version:     2,
		Description: "Add last_retry_at for retry diagnostics",
		SQL:         `ALTER TABLE pending_forms ADD COLUMN last_retry_at DATETIME;`,
	},
	{
		Version:     3,
		Description: "Add created_offline flag recorded at enqueue time",
		SQL:         `ALTER TABLE pending_forms ADD COLUMN created_offline INTEGER NOT NULL DEFAULT 0;`,
	},
}
