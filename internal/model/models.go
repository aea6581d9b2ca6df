package model

import (
	"database/sql"
	"time"
)

// Operation is one CLI command run that touched the local database.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string // "running", "success" or "error"
}

// Submission is one inspection report the portal accepted.
type Submission struct {
	ID           string // receipt UUID
	OperationID  int64  // 0 when submitted outside a recorded operation
	InspectionID string
	Fingerprint  string // xxh3 of the submitted content, hex
	ColorTag     int
	Uploads      int
	ArchiveKey   string // empty when the receipt was not archived
	Encrypted    bool
	SubmittedAt  time.Time
}
