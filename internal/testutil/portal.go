package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"sync"

	"autoinspect/internal/inspection"
)

// FakeSubmission is one accepted SubmitReport call.
type FakeSubmission struct {
	InspectionID string
	Body         *inspection.Body
}

// FakePortal is an in-memory inspection.Portal.
type FakePortal struct {
	mu          sync.Mutex
	reports     map[string]*inspection.Record
	tasks       map[string]*inspection.Task
	submissions []FakeSubmission

	// FetchErr and SubmitErr, when set, are returned by every call.
	FetchErr  error
	SubmitErr error

	// BeforeSubmit runs at the start of SubmitReport. A test can block in
	// it to hold a submission in flight.
	BeforeSubmit func(ctx context.Context) error
}

var _ inspection.Portal = (*FakePortal)(nil)

func NewFakePortal() *FakePortal {
	return &FakePortal{
		reports: make(map[string]*inspection.Record),
		tasks:   make(map[string]*inspection.Task),
	}
}

// AddReport makes rec available to FetchReport under rec.ID.
func (p *FakePortal) AddReport(rec *inspection.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports[rec.ID] = rec
}

func (p *FakePortal) AddTask(task *inspection.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks[task.ID] = task
}

func (p *FakePortal) FetchReport(ctx context.Context, inspectionID string) (*inspection.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FetchErr != nil {
		return nil, p.FetchErr
	}
	rec, ok := p.reports[inspectionID]
	if !ok {
		return nil, fmt.Errorf("report %s not found", inspectionID)
	}
	return rec, nil
}

func (p *FakePortal) FetchTask(ctx context.Context, taskID string) (*inspection.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FetchErr != nil {
		return nil, p.FetchErr
	}
	task, ok := p.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s not found", taskID)
	}
	return task, nil
}

func (p *FakePortal) SubmitReport(ctx context.Context, inspectionID string, body *inspection.Body) error {
	if p.BeforeSubmit != nil {
		if err := p.BeforeSubmit(ctx); err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SubmitErr != nil {
		return p.SubmitErr
	}
	p.submissions = append(p.submissions, FakeSubmission{InspectionID: inspectionID, Body: body})
	return nil
}

// Submissions returns the accepted submissions in call order.
func (p *FakePortal) Submissions() []FakeSubmission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]FakeSubmission(nil), p.submissions...)
}

// FilePart is a binary part of a decoded multipart body.
type FilePart struct {
	Name        string
	Filename    string
	ContentType string
	Data        []byte
}

// Multipart is a decoded multipart/form-data body.
type Multipart struct {
	Order  []string          // part names in wire order
	Fields map[string]string // non-file parts
	Files  []FilePart
}

// DecodeMultipart parses a body produced by Payload.Encode.
func DecodeMultipart(body *inspection.Body) (*Multipart, error) {
	mediaType, params, err := mime.ParseMediaType(body.ContentType)
	if err != nil {
		return nil, fmt.Errorf("parsing content type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil, fmt.Errorf("unexpected content type %q", mediaType)
	}

	out := &Multipart{Fields: make(map[string]string)}
	r := multipart.NewReader(bytes.NewReader(body.Data), params["boundary"])
	for {
		part, err := r.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading part: %w", err)
		}
		data, err := io.ReadAll(part)
		if err != nil {
			return nil, fmt.Errorf("reading part %s: %w", part.FormName(), err)
		}

		out.Order = append(out.Order, part.FormName())
		if part.FileName() != "" {
			out.Files = append(out.Files, FilePart{
				Name:        part.FormName(),
				Filename:    part.FileName(),
				ContentType: part.Header.Get("Content-Type"),
				Data:        data,
			})
			continue
		}
		out.Fields[part.FormName()] = string(data)
	}
	return out, nil
}
