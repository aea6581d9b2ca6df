package inspection

import "autoinspect/internal/model"

// Database records local operations and successful submissions.
type Database interface {
	// Operation log

	// CreateOperation starts a new operation record.
	CreateOperation(operation string, parameters string) (*model.Operation, error)

	// FinishOperation stamps the end time and final status of an operation.
	FinishOperation(id int64, status string) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(limit int) ([]*model.Operation, error)

	// MaxOperationID returns the highest operation ID, or 0 if there are none.
	MaxOperationID() (int64, error)

	// Submission history

	// CreateSubmission records a successful submission.
	CreateSubmission(sub *model.Submission) error

	// FindSubmission returns a submission by ID, or nil if not found.
	FindSubmission(id string) (*model.Submission, error)

	// ListSubmissions returns all submissions of an inspection, newest first.
	ListSubmissions(inspectionID string) ([]*model.Submission, error)

	// LatestSubmission returns the newest submission of an inspection, or nil.
	LatestSubmission(inspectionID string) (*model.Submission, error)

	// CheckMigrations verifies the schema is up to date.
	CheckMigrations() error

	// BackupTo writes a complete copy of the database to destPath.
	BackupTo(destPath string) error

	// Close closes the database connection.
	Close() error
}
