package inspection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	ErrSubmitInFlight = errors.New("a submission is already in flight")
	ErrNotLoaded      = errors.New("form not loaded")
	ErrAlreadyOpen    = errors.New("form already open")
)

// Portal is the back-office API the form reads from and submits to.
type Portal interface {
	FetchReport(ctx context.Context, inspectionID string) (*Record, error)
	SubmitReport(ctx context.Context, inspectionID string, body *Body) error
	FetchTask(ctx context.Context, taskID string) (*Task, error)
}

// State is the lifecycle position of a form session.
type State int

const (
	NotLoaded State = iota
	Editing
	Submitted
)

func (s State) String() string {
	switch s {
	case NotLoaded:
		return "not-loaded"
	case Editing:
		return "editing"
	case Submitted:
		return "submitted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// OpenOptions control how a form session starts.
type OpenOptions struct {
	// Resume loads the stored report from the portal.
	Resume bool
	// Handoff pre-seeds the color tag on a first visit.
	Handoff *Handoff
}

// Session owns the editing state of one inspection form. Only one Submit
// may run at a time; a concurrent call fails with ErrSubmitInFlight.
type Session struct {
	inspectionID string
	portal       Portal
	logger       Logger

	busy atomic.Bool

	mu      sync.Mutex
	state   State
	form    *FormState
	handoff *Handoff
}

// NewSession creates a session for an inspection. Call Open before editing.
func NewSession(inspectionID string, portal Portal, logger Logger) *Session {
	return &Session{
		inspectionID: inspectionID,
		portal:       portal,
		logger:       logger,
	}
}

// Open moves the session to Editing. When opts.Resume is set the stored
// report is loaded; a fetch failure is returned but leaves the form usable
// with defaults.
func (s *Session) Open(ctx context.Context, opts OpenOptions) ([]LoadWarning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != NotLoaded {
		return nil, ErrAlreadyOpen
	}

	form := NewFormState()
	if opts.Handoff != nil {
		form.SetColorTag(opts.Handoff.ColorTag())
	}
	s.form = form
	s.handoff = opts.Handoff
	s.state = Editing

	if !opts.Resume {
		s.logger.Debug("form opened without stored report", "inspection", s.inspectionID, "color", form.ColorTag())
		return nil, nil
	}

	rec, err := s.portal.FetchReport(ctx, s.inspectionID)
	if err != nil {
		s.logger.Warn("loading stored report failed, form starts from defaults", "inspection", s.inspectionID, "error", err)
		return nil, fmt.Errorf("fetching inspection report %s: %w", s.inspectionID, err)
	}

	warnings := LoadInto(form, rec, s.logger)
	s.logger.Info("stored report loaded", "inspection", s.inspectionID, "sections", len(rec.Sections), "warnings", len(warnings))
	return warnings, nil
}

// Submit sends the current form. On failure the form, its pending
// attachments and the handoff are left as they were so the caller can
// retry. There are no automatic retries.
func (s *Session) Submit(ctx context.Context) (*Payload, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrSubmitInFlight
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	if s.state == NotLoaded {
		s.mu.Unlock()
		return nil, ErrNotLoaded
	}
	payload := BuildPayload(s.form)
	s.mu.Unlock()

	body, err := payload.Encode()
	if err != nil {
		return nil, fmt.Errorf("assembling submission: %w", err)
	}

	if err := s.portal.SubmitReport(ctx, s.inspectionID, body); err != nil {
		s.logger.Error("submission failed", "inspection", s.inspectionID, "error", err)
		return nil, fmt.Errorf("submitting inspection report %s: %w", s.inspectionID, err)
	}

	s.mu.Lock()
	s.form.markPersisted(payload.Uploads)
	s.handoff = nil
	s.state = Submitted
	s.mu.Unlock()

	s.logger.Info("inspection report submitted", "inspection", s.inspectionID, "uploads", len(payload.Uploads), "color", payload.ColorTag)
	return payload, nil
}

// InspectionID returns the inspection this session edits.
func (s *Session) InspectionID() string { return s.inspectionID }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Form returns the editing state, or nil before Open.
func (s *Session) Form() *FormState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

// Handoff returns the navigation state still in effect, or nil once a
// submission has succeeded.
func (s *Session) Handoff() *Handoff {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handoff
}
