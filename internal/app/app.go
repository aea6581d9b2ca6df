package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"autoinspect/internal/archive"
	"autoinspect/internal/config"
	"autoinspect/internal/database"
	"autoinspect/internal/encryption"
	"autoinspect/internal/fs"
	"autoinspect/internal/inspection"
	"autoinspect/internal/metrics"
	"autoinspect/internal/model"
	"autoinspect/internal/portal"
)

// InspectApp is the application layer between the CLI and inspection.Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw CLI input, and manages the DB lifecycle on Close.
type InspectApp struct {
	cfg         *config.Config
	db          inspection.Database
	archive     inspection.Archive // nil when archiving is off
	encryptor   inspection.Encryptor
	attachments *fs.AttachmentLoader
	service     *inspection.Service
	logger      inspection.Logger
	op          *Operation
	logFile     *os.File
}

// NewInspectApp creates a fully wired InspectApp from the given config.
// operation identifies the CLI command being run (e.g. "Submit", "History").
// The caller must call Close when done.
func NewInspectApp(ctx context.Context, cfg *config.Config, operation string) (*InspectApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client, err := portal.New(portal.Options{
		BaseURL:     cfg.Portal.BaseURL,
		Token:       cfg.Portal.Token,
		InspectorID: cfg.InspectorID,
		ReportPath:  cfg.Portal.ReportPath,
		TaskPath:    cfg.Portal.TaskPath,
		Timeout:     time.Duration(cfg.Portal.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("creating portal client: %w", err)
	}

	arch, err := archive.NewArchiveFromConfig(ctx, cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.InspectorID, inspection.RealClock{})
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	// A newer snapshot in the archive means this machine missed submissions.
	if arch != nil {
		remoteVersion, err := arch.GetMetadataVersion(cfg.InspectorID, "db")
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("checking archived metadata version: %w", err)
		}
		localMax, err := db.MaxOperationID()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("checking local metadata version: %w", err)
		}
		if remoteVersion > localMax {
			db.Close()
			return nil, fmt.Errorf("local database is behind archive (local=%d, archive=%d): restore it or re-initialize", localMax, remoteVersion)
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	backend, err := newMetricsBackend(cfg.Metrics)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating metrics backend: %w", err)
	}
	metrics.SetBackend(backend)

	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	svc := inspection.NewService(db, arch, client, enc, logger, inspection.RealClock{}, inspection.UUIDGenerator{})

	return &InspectApp{
		cfg:         cfg,
		db:          db,
		archive:     arch,
		encryptor:   enc,
		attachments: fs.NewAttachmentLoader(cfg.Attachments),
		service:     svc,
		logger:      logger,
		op:          NewOperation(operation, ""),
		logFile:     logFile,
	}, nil
}

// persistOperation saves the operation to the database, giving it an auto-increment ID.
// This should only be called for commands that record something.
func (a *InspectApp) persistOperation(parameters string) error {
	if a.op.Persisted() {
		return nil
	}
	a.op.Parameters = parameters
	dbOp, err := a.db.CreateOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// SubmitOptions is the raw CLI input of a submit run.
type SubmitOptions struct {
	InspectionID string
	// Fresh skips loading the stored report; the form starts from defaults.
	Fresh   bool
	Handoff *inspection.Handoff
	Edits   []inspection.Edit
	// Attachments maps a field name to the file or directory paths given for it.
	Attachments map[string][]string
	ColorTag    *inspection.ColorTag
}

// Submit reads the attachment files, then edits and submits the form.
func (a *InspectApp) Submit(ctx context.Context, opts SubmitOptions) (*inspection.Receipt, error) {
	if strings.TrimSpace(opts.InspectionID) == "" {
		return nil, errors.New("inspection id required")
	}
	if err := a.persistOperation(opts.InspectionID); err != nil {
		return nil, err
	}

	refs, err := a.attachments.LoadFields(ctx, opts.Attachments)
	if err != nil {
		return nil, a.op.Fail(fmt.Errorf("loading attachments: %w", err))
	}

	receipt, err := a.service.Submit(ctx, inspection.SubmitRequest{
		InspectionID: opts.InspectionID,
		OperationID:  a.op.ID,
		Resume:       !opts.Fresh,
		Handoff:      opts.Handoff,
		Edits:        opts.Edits,
		Attachments:  refs,
		ColorTag:     opts.ColorTag,
	})
	return receipt, a.op.Fail(err)
}

// Show loads the stored report of an inspection.
func (a *InspectApp) Show(ctx context.Context, inspectionID string) (*inspection.FormState, []inspection.LoadWarning, error) {
	return a.service.Show(ctx, inspectionID)
}

// Task fetches a task detail.
func (a *InspectApp) Task(ctx context.Context, taskID string) (*inspection.Task, error) {
	return a.service.Task(ctx, taskID)
}

// GetHistory returns the most recent operations.
func (a *InspectApp) GetHistory(limit int) ([]*model.Operation, error) {
	return a.service.History(limit)
}

// Submissions returns the local submission history of an inspection.
func (a *InspectApp) Submissions(inspectionID string) ([]*model.Submission, error) {
	return a.service.Submissions(inspectionID)
}

// Receipt reads an archived receipt. passphrase is only called when the
// receipt is encrypted.
func (a *InspectApp) Receipt(receiptID string, passphrase func() (string, error)) (*inspection.Receipt, error) {
	sub, err := a.service.FindSubmission(receiptID)
	if err != nil {
		return nil, err
	}

	var dec inspection.DecryptionContext
	if sub != nil && sub.Encrypted {
		if a.encryptor == nil {
			return nil, fmt.Errorf("receipt %s is encrypted but no encryption is configured", receiptID)
		}
		pass, err := passphrase()
		if err != nil {
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		dec, err = a.encryptor.Unlock(pass)
		if err != nil {
			return nil, fmt.Errorf("unlocking private key: %w", err)
		}
	}
	return a.service.Receipt(receiptID, dec)
}

// CheckArchive verifies the configured archive is reachable.
func (a *InspectApp) CheckArchive() error {
	if a.archive == nil {
		return errors.New("no archive configured")
	}
	return a.archive.ValidateSetup()
}

// Close finalizes the operation and closes all resources.
// For persisted operations: finishes the operation record, snapshots the DB, and archives it.
// For non-persisted operations: just closes the database.
func (a *InspectApp) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.op.Persisted() {
		if err := a.db.FinishOperation(a.op.ID, a.op.Status); err != nil {
			keep(fmt.Errorf("finishing operation: %w", err))
		}

		var snapshot string
		if a.archive != nil {
			path, err := a.snapshotDatabase()
			keep(err)
			snapshot = path
		}

		if err := a.db.Close(); err != nil {
			keep(fmt.Errorf("closing database: %w", err))
		}

		// The snapshot is versioned by operation ID.
		if snapshot != "" {
			keep(a.uploadMetadata(snapshot, a.op.ID))
		}
	} else {
		if err := a.db.Close(); err != nil {
			keep(fmt.Errorf("closing database: %w", err))
		}
	}

	if err := metrics.Flush(); err != nil {
		a.logger.Warn("flushing metrics failed", "error", err)
	}
	metrics.Reset()

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// snapshotDatabase copies the DB to a new temp file and returns its path.
func (a *InspectApp) snapshotDatabase() (string, error) {
	dir, err := os.MkdirTemp("", "inspect-db-backup-*")
	if err != nil {
		return "", fmt.Errorf("creating temp dir for db backup: %w", err)
	}
	// VACUUM INTO refuses to overwrite, so the target must not exist yet.
	path := filepath.Join(dir, "inspect.db")
	if err := a.db.BackupTo(path); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("backing up database: %w", err)
	}
	return path, nil
}

// uploadMetadata stores the DB snapshot in the archive and removes its temp dir.
func (a *InspectApp) uploadMetadata(path string, version int64) error {
	defer os.RemoveAll(filepath.Dir(path))

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening db backup for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat db backup: %w", err)
	}

	if err := a.archive.PutMetadata(a.cfg.InspectorID, "db", f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading metadata to archive: %w", err)
	}
	return nil
}
