package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Empty file (pre-schema)
// 1 - Initial record tables
// 2 - Owner indexes on card_history and congrats_history
const currentSchemaVersion = 2

// DefaultPageSize bounds every batched read.
const DefaultPageSize = 200

// maxPageSize keeps IN (...) lookups below SQLite's host parameter limit.
const maxPageSize = 900

// Role identifies which of the two store files a Store was opened for.
type Role string

const (
	RoleLocal  Role = "local"
	RoleRemote Role = "remote"
)

// Fixed file names inside the data directory. The two roles never share a file.
const (
	LocalFileName  = "local.sqlite"
	RemoteFileName = "remote-sync.sqlite"
)

// FileName returns the store file name for the role.
func (r Role) FileName() string {
	if r == RoleRemote {
		return RemoteFileName
	}
	return LocalFileName
}

// Store provides durable storage for kindred records.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db       *sqlx.DB
	path     string
	pageSize int
}

// Option configures a Store.
type Option func(*Store)

// WithPageSize sets the page size of batched reads.
// Values outside 1..900 fall back to the nearest bound.
func WithPageSize(n int) Option {
	return func(s *Store) {
		switch {
		case n < 1:
			s.pageSize = 1
		case n > maxPageSize:
			s.pageSize = maxPageSize
		default:
			s.pageSize = n
		}
	}
}

// Open creates or opens a SQLite store file at the given path.
// Applies required pragmas and migrations automatically.
//
// Every failure is a *StoreOpenError. Incompatible is set when the file was
// written by a newer schema or is not a SQLite database at all.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	// Open database (creates file if doesn't exist)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &StoreOpenError{Path: path, Reason: "open database", Err: err}
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, classifyOpenError(path, "connect to database", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, classifyOpenError(path, "apply pragmas", err)
	}

	if err := checkVersion(db); err != nil {
		db.Close()
		return nil, classifyOpenError(path, "check schema version", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, classifyOpenError(path, "apply schema", err)
	}

	s := New(db, opts...)
	s.path = path
	return s, nil
}

// OpenRole opens the store file of the given role inside dir, creating dir
// if needed.
func OpenRole(dir string, role Role, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, &StoreOpenError{Path: dir, Reason: "create data directory", Err: err}
	}
	return Open(filepath.Join(dir, role.FileName()), opts...)
}

// New wraps an already opened database without applying pragmas or schema.
// The database can be a real one or a mock within unit tests.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:       sqlx.NewDb(db, "sqlite3"),
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the database connection.
// Should be called when the store is no longer needed.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the file the store was opened from, or "" for wrapped databases.
func (s *Store) Path() string {
	return s.path
}

// PageSize returns the bound used for batched reads.
func (s *Store) PageSize() int {
	return s.pageSize
}

// DB returns the underlying sqlx.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// checkVersion rejects files written by a newer schema than this binary knows.
func checkVersion(db *sql.DB) error {
	version, err := userVersion(db)
	if err != nil {
		return err
	}
	if version > currentSchemaVersion {
		return &versionError{found: version, supported: currentSchemaVersion}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	version, err := userVersion(db)
	if err != nil {
		return err
	}

	if version < 2 {
		if err := migrateToV2(db); err != nil {
			return err
		}
	}

	// Set version after all migrations
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV2 indexes history owners; restoreRelationships and owner
// lookups filter on these columns.
func migrateToV2(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_card_history_contact ON card_history(contact_id);
		CREATE INDEX IF NOT EXISTS idx_card_history_holiday ON card_history(holiday_id);
		CREATE INDEX IF NOT EXISTS idx_congrats_history_contact ON congrats_history(contact_id);
		CREATE INDEX IF NOT EXISTS idx_congrats_history_holiday ON congrats_history(holiday_id);
	`)
	if err != nil {
		return fmt.Errorf("migrate to v2: %w", err)
	}
	return nil
}

func userVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

// classifyOpenError wraps err into a StoreOpenError, flagging the failures a
// reset of the file can cure.
func classifyOpenError(path, reason string, err error) *StoreOpenError {
	oe := &StoreOpenError{Path: path, Reason: reason, Err: err}

	var ve *versionError
	if errors.As(err, &ve) {
		oe.Incompatible = true
		return oe
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrNotADB, sqlite3.ErrCorrupt:
			oe.Incompatible = true
		}
	}
	return oe
}

type versionError struct {
	found, supported int
}

func (e *versionError) Error() string {
	return fmt.Sprintf("schema version %d is newer than supported version %d", e.found, e.supported)
}
