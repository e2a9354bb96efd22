package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/marcus/fieldsync/internal/models"
	_ "modernc.org/sqlite"
)

const dbFile = ".fieldsync/queue.db"

// Store wraps the queue database connection
type Store struct {
	conn    *sql.DB
	baseDir string
}

// Open opens the queue database and runs any pending migrations
func Open(baseDir string) (*Store, error) {
	dbPath := filepath.Join(baseDir, dbFile)

	// Check if db exists
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("queue database not found: run 'fieldsync init' first")
	}

	return open(baseDir, dbPath, false)
}

// Initialize creates the queue database and runs migrations
func Initialize(baseDir string) (*Store, error) {
	dbPath := filepath.Join(baseDir, dbFile)

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create queue dir: %w", err)
	}

	return open(baseDir, dbPath, true)
}

func open(baseDir, dbPath string, create bool) (*Store, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}

	// Enable WAL mode for concurrent reads while writes are serialized
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout as fallback protection (500ms, matches lock timeout)
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Slightly faster writes, still safe with WAL
	conn.Exec("PRAGMA synchronous=NORMAL")

	if create {
		if _, err := conn.Exec(schema); err != nil {
			conn.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	s := &Store{conn: conn, baseDir: baseDir}

	// Run any pending migrations
	if _, err := s.RunMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.conn.Close()
}

// BaseDir returns the base directory for the queue
func (s *Store) BaseDir() string {
	return s.baseDir
}

// withWriteLock executes fn while holding an exclusive write lock.
// This prevents concurrent writes from multiple processes.
func (s *Store) withWriteLock(fn func() error) error {
	locker := newWriteLocker(s.baseDir)
	if err := locker.acquire(defaultTimeout); err != nil {
		return err
	}
	defer locker.release()
	return fn()
}

// columnExists checks whether a column exists on a table
func (s *Store) columnExists(table, column string) (bool, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s);", table)
	rows, err := s.conn.Query(query)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}

	return false, rows.Err()
}

// GetSchemaVersion returns the current schema version from the database
func (s *Store) GetSchemaVersion() (int, error) {
	var version string
	err := s.conn.QueryRow("SELECT value FROM schema_info WHERE key = 'version'").Scan(&version)
	if err == sql.ErrNoRows {
		// No version set, assume version 0 (pre-migration)
		return 0, nil
	}
	if err != nil {
		// Table might not exist yet
		return 0, nil
	}
	var v int
	fmt.Sscanf(version, "%d", &v)
	return v, nil
}

// setSchemaVersionInternal sets schema version without acquiring lock (for use during init)
func (s *Store) setSchemaVersionInternal(version int) error {
	_, err := s.conn.Exec(`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`,
		fmt.Sprintf("%d", version))
	return err
}

// RunMigrations runs any pending database migrations
func (s *Store) RunMigrations() (int, error) {
	// Quick check without lock - if already at current version, skip
	currentVersion, _ := s.GetSchemaVersion()
	if currentVersion >= SchemaVersion {
		return 0, nil
	}

	// Need to run migrations - acquire lock
	var migrationsRun int
	err := s.withWriteLock(func() error {
		var err error
		migrationsRun, err = s.runMigrationsInternal()
		return err
	})
	return migrationsRun, err
}

// runMigrationsInternal runs migrations without acquiring lock (for use during init)
func (s *Store) runMigrationsInternal() (int, error) {
	// Ensure schema_info table exists
	_, err := s.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_info (key TEXT PRIMARY KEY, value TEXT NOT NULL)`)
	if err != nil {
		return 0, fmt.Errorf("create schema_info: %w", err)
	}

	currentVersion, err := s.GetSchemaVersion()
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}

	migrationColumns := map[int]string{
		2: "last_retry_at",
		3: "created_offline",
	}

	migrationsRun := 0
	for _, migration := range Migrations {
		if migration.Version <= currentVersion {
			continue
		}
		// A fresh database created from the full schema already has the
		// migrated columns; skip the ALTER and just record the version.
		if col, ok := migrationColumns[migration.Version]; ok {
			exists, err := s.columnExists("pending_forms", col)
			if err != nil {
				return migrationsRun, fmt.Errorf("check column %s: %w", col, err)
			}
			if exists {
				if err := s.setSchemaVersionInternal(migration.Version); err != nil {
					return migrationsRun, fmt.Errorf("set version %d: %w", migration.Version, err)
				}
				migrationsRun++
				continue
			}
		}
		if _, err := s.conn.Exec(migration.SQL); err != nil {
			return migrationsRun, fmt.Errorf("migration %d (%s): %w", migration.Version, migration.Description, err)
		}
		if err := s.setSchemaVersionInternal(migration.Version); err != nil {
			return migrationsRun, fmt.Errorf("set version %d: %w", migration.Version, err)
		}
		migrationsRun++
	}

	// If no migrations and version is 0, set to current schema version
	if currentVersion == 0 {
		if err := s.setSchemaVersionInternal(SchemaVersion); err != nil {
			return migrationsRun, err
		}
	}

	return migrationsRun, nil
}

// Put upserts a submission record. The id is the dedup key: writing the
// same id twice keeps a single row.
func (s *Store) Put(rec *models.SubmissionRecord) error {
	err := s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			INSERT INTO pending_forms (id, payload, status, retry_count, last_error, created_at, last_retry_at, created_offline)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				payload = excluded.payload,
				status = excluded.status,
				retry_count = excluded.retry_count,
				last_error = excluded.last_error,
				last_retry_at = excluded.last_retry_at,
				created_offline = excluded.created_offline
		`, rec.ID, string(rec.Payload), rec.Status, rec.RetryCount, rec.LastError,
			rec.CreatedAt, rec.LastRetryAt, rec.CreatedOffline)
		return err
	})
	if err != nil {
		return &StorageError{Op: "put", ID: rec.ID, Err: err}
	}
	return nil
}

// Get retrieves a submission record by ID.
// Accepts bare IDs without the fr- prefix.
func (s *Store) Get(id string) (*models.SubmissionRecord, error) {
	id = NormalizeID(id)
	rec, err := scanRecord(s.conn.QueryRow(`
		SELECT id, payload, status, retry_count, last_error, created_at, last_retry_at, created_offline
		FROM pending_forms WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, &StorageError{Op: "get", ID: id, Err: err}
	}
	return rec, nil
}

// GetAll returns every queued record ordered by creation time
func (s *Store) GetAll() ([]*models.SubmissionRecord, error) {
	rows, err := s.conn.Query(`
		SELECT id, payload, status, retry_count, last_error, created_at, last_retry_at, created_offline
		FROM pending_forms ORDER BY created_at
	`)
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}
	defer rows.Close()

	var recs []*models.SubmissionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &StorageError{Op: "get", Err: err}
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Delete removes a record. Deleting an absent ID is not an error:
// delivery and discard paths race benignly on the same row.
func (s *Store) Delete(id string) error {
	id = NormalizeID(id)
	err := s.withWriteLock(func() error {
		_, err := s.conn.Exec(`DELETE FROM pending_forms WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return &StorageError{Op: "delete", ID: id, Err: err}
	}
	return nil
}

// Count returns the number of queued records
func (s *Store) Count() (int, error) {
	var count int
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM pending_forms`).Scan(&count)
	if err != nil {
		return 0, &StorageError{Op: "get", Err: err}
	}
	return count, nil
}

// CountByStatus returns record counts grouped by status
func (s *Store) CountByStatus() (map[models.Status]int, error) {
	rows, err := s.conn.Query(`SELECT status, COUNT(*) FROM pending_forms GROUP BY status`)
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var status models.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, &StorageError{Op: "get", Err: err}
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.SubmissionRecord, error) {
	var rec models.SubmissionRecord
	var payload string
	var lastRetryAt sql.NullTime

	err := row.Scan(&rec.ID, &payload, &rec.Status, &rec.RetryCount,
		&rec.LastError, &rec.CreatedAt, &lastRetryAt, &rec.CreatedOffline)
	if err != nil {
		return nil, err
	}

	rec.Payload = []byte(payload)
	if lastRetryAt.Valid {
		t := lastRetryAt.Time
		rec.LastRetryAt = &t
	}
	return &rec, nil
}
