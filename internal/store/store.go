package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Empty file, nothing created yet
// 1 - documents, fragments, idx_fragments_document_id
const currentSchemaVersion = 1

// bootstrapMu serializes schema creation across every DB in the process.
var bootstrapMu sync.Mutex

// validSynchronous lists the accepted PRAGMA synchronous values.
var validSynchronous = map[string]bool{
	"OFF":    true,
	"NORMAL": true,
	"FULL":   true,
	"EXTRA":  true,
}

// DB is a fragment store over one SQLite file.
// T is the logical timestamp type stamped on fragments.
type DB[T Timestamp[T]] struct {
	db      *sql.DB
	path    string
	parse   ParseFunc[T]
	logger  *slog.Logger
	metrics *Metrics
}

type options struct {
	logger        *slog.Logger
	metrics       *Metrics
	busyTimeoutMS int
	synchronous   string
}

// Option configures a DB at open time.
type Option func(*options)

// WithLogger sets the logger for bootstrap and transaction events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics attaches Prometheus collectors created by NewMetrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds.
func WithBusyTimeout(ms int) Option {
	return func(o *options) {
		o.busyTimeoutMS = ms
	}
}

// WithSynchronous sets PRAGMA synchronous (OFF, NORMAL, FULL or EXTRA).
func WithSynchronous(mode string) Option {
	return func(o *options) {
		o.synchronous = strings.ToUpper(mode)
	}
}

func defaultOptions() options {
	return options{
		logger:        slog.New(slog.DiscardHandler),
		busyTimeoutMS: 5000,
		synchronous:   "NORMAL",
	}
}

// Open creates or opens a fragment store at the given path.
// Applies required pragmas and creates the schema on first use.
//
// parse reads stored timestamps back; it is used by every fragment query.
//
// Open fails with a SCHEMA_MISMATCH error if the file was written by a newer
// schema or its tables do not have the expected layout.
func Open[T Timestamp[T]](path string, parse ParseFunc[T], opts ...Option) (*DB[T], error) {
	if parse == nil {
		return nil, errors.New("open store: nil timestamp parser")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if !validSynchronous[o.synchronous] {
		return nil, fmt.Errorf("open store: invalid synchronous mode %q", o.synchronous)
	}

	// Open database (creates file if doesn't exist)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time. With a single connection,
	// concurrent transactions wait for the pool instead of failing SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db, o); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := bootstrap(db, o.logger, path); err != nil {
		db.Close()
		return nil, err
	}

	return &DB[T]{
		db:      db,
		path:    path,
		parse:   parse,
		logger:  o.logger,
		metrics: o.metrics,
	}, nil
}

// OpenNamed opens the store called name inside dataDir, creating the
// directory if needed. The file is <dataDir>/<name>.db.
func OpenNamed[T Timestamp[T]](dataDir, name string, parse ParseFunc[T], opts ...Option) (*DB[T], error) {
	if err := ValidateName(name); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("open store: create data dir: %w", err)
	}
	return Open(PathFor(dataDir, name), parse, opts...)
}

// PathFor returns the database file used for a named store.
func PathFor(dataDir, name string) string {
	return filepath.Join(dataDir, name+".db")
}

// ValidateName checks that a store name can be used as a file name.
func ValidateName(name string) error {
	switch {
	case name == "":
		return errors.New("store name is empty")
	case name == "." || name == "..":
		return fmt.Errorf("store name %q is reserved", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("store name %q contains a path separator", name)
	}
	return nil
}

// Close closes the database connection.
func (d *DB[T]) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Path returns the database file path.
func (d *DB[T]) Path() string {
	return d.path
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB, o options) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA synchronous = %s", o.synchronous),
		fmt.Sprintf("PRAGMA busy_timeout = %d", o.busyTimeoutMS),
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// bootstrap creates the schema if user_version says it is missing, then
// verifies the table layout. Safe to call on every open.
func bootstrap(db *sql.DB, logger *slog.Logger, path string) error {
	bootstrapMu.Lock()
	defer bootstrapMu.Unlock()

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version > currentSchemaVersion {
		return &Error{
			Code: ErrCodeSchemaMismatch,
			Op:   "open store",
			Key:  path,
			Err:  fmt.Errorf("schema version %d is newer than supported version %d", version, currentSchemaVersion),
		}
	}

	if version < currentSchemaVersion {
		if err := createSchema(db); err != nil {
			return err
		}
		logger.Info("created store schema", "path", path, "version", currentSchemaVersion)
	}

	return verifySchema(db, path)
}

// createSchema applies schema.sql and stamps user_version in one transaction.
func createSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("create schema: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create schema: commit: %w", err)
	}
	return nil
}

// verifySchema selects every contract column so a foreign table with the
// same name is reported instead of failing later.
func verifySchema(db *sql.DB, path string) error {
	probes := []string{
		"SELECT id, metadata FROM documents LIMIT 0",
		"SELECT document_id, timestamp, payload FROM fragments LIMIT 0",
	}
	for _, probe := range probes {
		rows, err := db.Query(probe)
		if err != nil {
			return &Error{Code: ErrCodeSchemaMismatch, Op: "open store", Key: path, Err: err}
		}
		rows.Close()
	}

	// Any plain index leading with document_id serves per-document scans,
	// whatever its name.
	var indexes int
	err := db.QueryRow(`
		SELECT COUNT(*)
		FROM pragma_index_list('fragments') AS il, pragma_index_info(il.name) AS ii
		WHERE il."unique" = 0 AND il.partial = 0
		  AND ii.seqno = 0 AND ii.name = 'document_id'
	`).Scan(&indexes)
	if err != nil {
		return &Error{Code: ErrCodeSchemaMismatch, Op: "open store", Key: path, Err: err}
	}
	if indexes == 0 {
		return &Error{
			Code: ErrCodeSchemaMismatch,
			Op:   "open store",
			Key:  path,
			Err:  errors.New("fragments has no index on document_id"),
		}
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (d *DB[T]) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := d.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
