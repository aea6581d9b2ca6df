package inspection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"autoinspect/internal/metrics"
	"autoinspect/internal/model"
)

const metricsJob = "inspect"

// Service coordinates form sessions with the local history, the receipt
// archive and metrics for the CLI.
type Service struct {
	database  Database
	archive   Archive
	portal    Portal
	encryptor Encryptor
	logger    Logger
	clock     Clock
	idgen     IDGenerator
}

// NewService creates a Service. archive and encryptor may be nil: receipts
// are then not archived, or archived in plaintext.
func NewService(database Database, archive Archive, portal Portal, encryptor Encryptor, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		database:  database,
		archive:   archive,
		portal:    portal,
		encryptor: encryptor,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
	}
}

// Edit is one field assignment in raw text form.
type Edit struct {
	Field string
	Value string
}

// SubmitRequest describes one non-interactive edit-and-submit run.
type SubmitRequest struct {
	InspectionID string
	OperationID  int64
	Resume       bool
	Handoff      *Handoff
	Edits        []Edit
	Attachments  map[string][]AttachmentRef
	ColorTag     *ColorTag
}

// UploadSummary describes one uploaded file in a receipt.
type UploadSummary struct {
	Part string `json:"part"`
	Name string `json:"name"`
	Size int    `json:"size"`
}

// Receipt records what a successful submission sent.
type Receipt struct {
	ID           string                 `json:"id"`
	InspectionID string                 `json:"inspection_id"`
	SubmittedAt  time.Time              `json:"submitted_at"`
	Fingerprint  string                 `json:"fingerprint"`
	ColorTag     ColorTag               `json:"color_tag_indication"`
	DamageNotes  string                 `json:"demage_notes"`
	RustNotes    string                 `json:"rust_notes"`
	Documents    map[Category]*Document `json:"documents"`
	Uploads      []UploadSummary        `json:"uploads"`
}

// Show loads the stored report of an inspection without submitting.
func (s *Service) Show(ctx context.Context, inspectionID string) (*FormState, []LoadWarning, error) {
	start := s.clock.Now()
	session := NewSession(inspectionID, s.portal, s.logger)
	warnings, err := session.Open(ctx, OpenOptions{Resume: true})
	metrics.RecordStep(metricsJob, "load", err, s.clock.Now().Sub(start))
	if err != nil {
		return nil, nil, err
	}
	metrics.RecordCount(metricsJob, "load_warnings", int64(len(warnings)))
	return session.Form(), warnings, nil
}

// Task fetches a task detail, the source of a form handoff.
func (s *Service) Task(ctx context.Context, taskID string) (*Task, error) {
	task, err := s.portal.FetchTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("fetching task %s: %w", taskID, err)
	}
	return task, nil
}

// Submit opens a form, applies the requested edits and attachments, submits
// it and records the result. A failed resume load aborts the run rather than
// overwriting the stored report with defaults.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Receipt, error) {
	session := NewSession(req.InspectionID, s.portal, s.logger)

	start := s.clock.Now()
	warnings, err := session.Open(ctx, OpenOptions{Resume: req.Resume, Handoff: req.Handoff})
	metrics.RecordStep(metricsJob, "load", err, s.clock.Now().Sub(start))
	if err != nil {
		return nil, err
	}
	metrics.RecordCount(metricsJob, "load_warnings", int64(len(warnings)))

	form := session.Form()
	for _, e := range req.Edits {
		if err := form.SetString(e.Field, e.Value); err != nil {
			return nil, fmt.Errorf("setting %s: %w", e.Field, err)
		}
		if _, known := LookupField(e.Field); !known {
			s.logger.Warn("field has no mapping and will not be sent", "field", e.Field)
		}
	}
	for field, refs := range req.Attachments {
		if _, known := LookupField(field); !known {
			return nil, fmt.Errorf("attaching to %s: %w", field, ErrUnknownField)
		}
		if err := form.SetAttachment(field, refs); err != nil {
			return nil, fmt.Errorf("attaching to %s: %w", field, err)
		}
	}
	if req.ColorTag != nil {
		form.SetColorTag(*req.ColorTag)
	}

	start = s.clock.Now()
	payload, err := session.Submit(ctx)
	metrics.RecordStep(metricsJob, "submit", err, s.clock.Now().Sub(start))
	if err != nil {
		return nil, err
	}
	metrics.RecordCount(metricsJob, "uploads", int64(len(payload.Uploads)))

	receipt := s.newReceipt(req.InspectionID, payload)

	latest, err := s.database.LatestSubmission(req.InspectionID)
	if err != nil {
		s.logger.Warn("reading submission history failed", "inspection", req.InspectionID, "error", err)
	} else if latest != nil && latest.Fingerprint == receipt.Fingerprint {
		s.logger.Info("content unchanged since previous submission", "inspection", req.InspectionID, "previous", latest.ID)
	}

	sub := &model.Submission{
		ID:           receipt.ID,
		OperationID:  req.OperationID,
		InspectionID: req.InspectionID,
		Fingerprint:  receipt.Fingerprint,
		ColorTag:     int(receipt.ColorTag),
		Uploads:      len(receipt.Uploads),
		SubmittedAt:  receipt.SubmittedAt,
	}

	// The portal has accepted the report; archive failures are logged only.
	if key, encrypted, err := s.archiveReceipt(receipt); err != nil {
		s.logger.Error("archiving receipt failed", "receipt", receipt.ID, "error", err)
	} else {
		sub.ArchiveKey = key
		sub.Encrypted = encrypted
	}

	if err := s.database.CreateSubmission(sub); err != nil {
		return receipt, fmt.Errorf("recording submission: %w", err)
	}
	return receipt, nil
}

func (s *Service) newReceipt(inspectionID string, p *Payload) *Receipt {
	r := &Receipt{
		ID:           s.idgen.New(),
		InspectionID: inspectionID,
		SubmittedAt:  s.clock.Now().UTC(),
		Fingerprint:  strconv.FormatUint(p.Fingerprint(), 16),
		ColorTag:     p.ColorTag,
		DamageNotes:  p.DamageNotes,
		RustNotes:    p.RustNotes,
		Documents:    p.Documents,
		Uploads:      make([]UploadSummary, 0, len(p.Uploads)),
	}
	for _, u := range p.Uploads {
		r.Uploads = append(r.Uploads, UploadSummary{Part: u.Part, Name: u.Name, Size: len(u.Data)})
	}
	return r
}

// archiveReceipt stores the receipt JSON, encrypted when an encryptor is
// configured. It returns the archive key, or "" when there is no archive.
func (s *Service) archiveReceipt(r *Receipt) (string, bool, error) {
	if s.archive == nil {
		return "", false, nil
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", false, fmt.Errorf("encoding receipt: %w", err)
	}

	key := receiptKey(r.InspectionID, r.ID)
	encrypted := s.encryptor != nil && s.encryptor.IsConfigured()
	if encrypted {
		var buf bytes.Buffer
		if err := s.encryptor.Encrypt(bytes.NewReader(data), &buf); err != nil {
			return "", false, fmt.Errorf("encrypting receipt: %w", err)
		}
		data = buf.Bytes()
		key += ".age"
	}

	if err := s.archive.PutReceipt(key, bytes.NewReader(data), int64(len(data))); err != nil {
		return "", false, fmt.Errorf("storing receipt: %w", err)
	}
	s.logger.Debug("receipt archived", "key", key, "encrypted", encrypted)
	return key, encrypted, nil
}

func receiptKey(inspectionID, receiptID string) string {
	return "receipts/" + inspectionID + "/" + receiptID + ".json"
}

// History returns the most recent operations.
func (s *Service) History(limit int) ([]*model.Operation, error) {
	ops, err := s.database.ListOperations(limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// Submissions returns the local submission history of an inspection.
func (s *Service) Submissions(inspectionID string) ([]*model.Submission, error) {
	subs, err := s.database.ListSubmissions(inspectionID)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	return subs, nil
}

// FindSubmission returns a recorded submission, or nil.
func (s *Service) FindSubmission(id string) (*model.Submission, error) {
	sub, err := s.database.FindSubmission(id)
	if err != nil {
		return nil, fmt.Errorf("finding submission: %w", err)
	}
	return sub, nil
}

// Receipt reads an archived receipt back. dec is only used for encrypted
// receipts and may be nil otherwise.
func (s *Service) Receipt(receiptID string, dec DecryptionContext) (*Receipt, error) {
	sub, err := s.FindSubmission(receiptID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("no submission with receipt %s", receiptID)
	}
	if sub.ArchiveKey == "" || s.archive == nil {
		return nil, fmt.Errorf("receipt %s was not archived", receiptID)
	}

	var buf bytes.Buffer
	if err := s.archive.GetReceipt(sub.ArchiveKey, &buf); err != nil {
		return nil, fmt.Errorf("reading receipt: %w", err)
	}

	data := buf.Bytes()
	if sub.Encrypted {
		if dec == nil {
			return nil, fmt.Errorf("receipt %s is encrypted: unlock required", receiptID)
		}
		var plain bytes.Buffer
		if err := dec.Decrypt(bytes.NewReader(data), &plain); err != nil {
			return nil, fmt.Errorf("decrypting receipt: %w", err)
		}
		data = plain.Bytes()
	}

	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding receipt: %w", err)
	}
	return &r, nil
}
