package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"autoinspect/internal/database/migrations"
	"autoinspect/internal/inspection"
	"autoinspect/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements inspection.Database using SQLite.
type SQLiteDatabase struct {
	db    *sql.DB
	path  string
	clock inspection.Clock
}

// NewSQLiteDatabase opens a SQLite database and brings its schema up to date.
// path can be a file path or ":memory:". clock may be nil.
func NewSQLiteDatabase(path string, clock inspection.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return NewSQLiteDatabaseFromDB(db, path, clock), nil
}

// NewSQLiteDatabaseFromDB wraps an existing, already migrated connection.
func NewSQLiteDatabaseFromDB(db *sql.DB, path string, clock inspection.Clock) *SQLiteDatabase {
	if clock == nil {
		clock = inspection.RealClock{}
	}
	return &SQLiteDatabase{db: db, path: path, clock: clock}
}

// OpenConnection opens and configures a SQLite connection.
// An in-memory database lives in a single connection, so the pool is
// limited to one.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return db, nil
}

// Operation log

func (s *SQLiteDatabase) CreateOperation(operation string, parameters string) (*model.Operation, error) {
	started := s.clock.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO operations (operation, parameters, started_at, status) VALUES (?, ?, ?, 'running')`,
		operation, parameters, started,
	)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}
	return &model.Operation{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  started,
		Status:     "running",
	}, nil
}

func (s *SQLiteDatabase) FinishOperation(id int64, status string) error {
	res, err := s.db.Exec(
		`UPDATE operations SET finished_at = ?, status = ? WHERE id = ?`,
		s.clock.Now().UTC(), status, id,
	)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finishing operation: no operation with id %d", id)
	}
	return nil
}

func (s *SQLiteDatabase) ListOperations(limit int) ([]*model.Operation, error) {
	rows, err := s.db.Query(
		`SELECT id, operation, parameters, started_at, finished_at, status
		 FROM operations ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*model.Operation
	for rows.Next() {
		var op model.Operation
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.StartedAt, &op.FinishedAt, &op.Status); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

func (s *SQLiteDatabase) MaxOperationID() (int64, error) {
	var id int64
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM operations`).Scan(&id); err != nil {
		return 0, fmt.Errorf("getting max operation id: %w", err)
	}
	return id, nil
}

// Submission history

const submissionColumns = `id, operation_id, inspection_id, fingerprint, color_tag, uploads, archive_key, encrypted, submitted_at`

func (s *SQLiteDatabase) CreateSubmission(sub *model.Submission) error {
	var opID sql.NullInt64
	if sub.OperationID != 0 {
		opID = sql.NullInt64{Int64: sub.OperationID, Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO submissions (`+submissionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, opID, sub.InspectionID, sub.Fingerprint, sub.ColorTag, sub.Uploads,
		sub.ArchiveKey, sub.Encrypted, sub.SubmittedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating submission: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindSubmission(id string) (*model.Submission, error) {
	row := s.db.QueryRow(`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding submission: %w", err)
	}
	return sub, nil
}

func (s *SQLiteDatabase) ListSubmissions(inspectionID string) ([]*model.Submission, error) {
	rows, err := s.db.Query(
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE inspection_id = ? ORDER BY submitted_at DESC, rowid DESC`, inspectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	defer rows.Close()

	var subs []*model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning submission: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	return subs, nil
}

func (s *SQLiteDatabase) LatestSubmission(inspectionID string) (*model.Submission, error) {
	row := s.db.QueryRow(
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE inspection_id = ? ORDER BY submitted_at DESC, rowid DESC LIMIT 1`, inspectionID,
	)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding latest submission: %w", err)
	}
	return sub, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (*model.Submission, error) {
	var (
		sub  model.Submission
		opID sql.NullInt64
		at   time.Time
	)
	err := row.Scan(&sub.ID, &opID, &sub.InspectionID, &sub.Fingerprint, &sub.ColorTag,
		&sub.Uploads, &sub.ArchiveKey, &sub.Encrypted, &at)
	if err != nil {
		return nil, err
	}
	sub.OperationID = opID.Int64
	sub.SubmittedAt = at
	return &sub, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
// destPath must not exist.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ inspection.Database = (*SQLiteDatabase)(nil)
