package inspection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Flag is a boolean the backend may send as true/false, 0/1 or "0"/"1".
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch strings.ToLower(s) {
	case "true", "1":
		*f = true
	case "false", "0", "", "null":
		*f = false
	default:
		return fmt.Errorf("invalid flag %s", data)
	}
	return nil
}

// RequestFlags are the parent inspection request's color markers.
type RequestFlags struct {
	HasRed   Flag `json:"has_red"`
	HasGreen Flag `json:"has_green"`
}

// ColorTag resolves the flags into a color tag.
func (r RequestFlags) ColorTag() ColorTag {
	return ResolveColorTag(bool(r.HasGreen), bool(r.HasRed))
}

// requestSection names the parent request object in load warnings.
const requestSection Category = "request_id"

// Record is an inspection report as the portal returns it. Sections holds
// the raw JSON document of every category that was non-null.
type Record struct {
	ID          string
	Sections    map[Category][]byte
	DamageNotes string
	RustNotes   string
	Request     *RequestFlags
	// RequestErr is set when request_id was present but unreadable;
	// Request is then nil.
	RequestErr error
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding inspection record: %w", err)
	}

	rec := Record{Sections: make(map[Category][]byte)}
	for key, val := range raw {
		val = bytes.TrimSpace(val)
		switch {
		case key == "id":
			rec.ID = scalarString(val)
		case key == "demage_notes":
			rec.DamageNotes = scalarString(val)
		case key == "rust_notes":
			rec.RustNotes = scalarString(val)
		case key == "request_id":
			if isNull(val) || len(val) == 0 || val[0] != '{' {
				continue
			}
			var flags RequestFlags
			if err := json.Unmarshal(val, &flags); err != nil {
				rec.RequestErr = fmt.Errorf("decoding request flags: %w", err)
				continue
			}
			rec.Request = &flags
		case isCategory(key):
			if isNull(val) {
				continue
			}
			rec.Sections[Category(key)] = sectionBytes(val)
		}
	}
	*r = rec
	return nil
}

// MarshalJSON emits the record in the portal's shape, with category
// documents as JSON-encoded strings.
func (r Record) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"id":           r.ID,
		"demage_notes": r.DamageNotes,
		"rust_notes":   r.RustNotes,
	}
	for _, c := range Categories {
		if b, ok := r.Sections[c]; ok {
			out[string(c)] = string(b)
		} else {
			out[string(c)] = nil
		}
	}
	if r.Request != nil {
		out["request_id"] = map[string]bool{
			"has_red":   bool(r.Request.HasRed),
			"has_green": bool(r.Request.HasGreen),
		}
	}
	return json.Marshal(out)
}

// sectionBytes unwraps a category value. The backend sends documents as
// JSON-encoded strings; plain objects are accepted too. Anything that does
// not unwrap is kept as-is so the per-category parse reports it.
func sectionBytes(val json.RawMessage) []byte {
	if len(val) > 0 && val[0] == '"' {
		var s string
		if err := json.Unmarshal(val, &s); err == nil {
			return []byte(s)
		}
	}
	return append([]byte(nil), val...)
}

func scalarString(val json.RawMessage) string {
	if isNull(val) {
		return ""
	}
	var s string
	if err := json.Unmarshal(val, &s); err == nil {
		return s
	}
	return string(val)
}

func isNull(val json.RawMessage) bool {
	return len(val) == 0 || bytes.Equal(val, []byte("null"))
}

// Task is the portal's task detail, the entry point to an inspection form.
type Task struct {
	ID           string        `json:"id"`
	InspectionID string        `json:"inspection_id"`
	Status       string        `json:"status"`
	Request      *RequestFlags `json:"request_id,omitempty"`
}

func (t *Task) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID           json.RawMessage `json:"id"`
		InspectionID json.RawMessage `json:"inspection_id"`
		Status       json.RawMessage `json:"status"`
		Request      *RequestFlags   `json:"request_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding task: %w", err)
	}
	*t = Task{
		ID:           scalarString(raw.ID),
		InspectionID: scalarString(raw.InspectionID),
		Status:       scalarString(raw.Status),
		Request:      raw.Request,
	}
	return nil
}

// Handoff returns the navigation state to open this task's form with.
func (t *Task) Handoff() *Handoff {
	if t.Request == nil {
		return nil
	}
	return &Handoff{HasRed: bool(t.Request.HasRed), HasGreen: bool(t.Request.HasGreen)}
}

// Handoff carries the parent request's flags from the task view into a
// first visit of the inspection form.
type Handoff struct {
	HasRed   bool
	HasGreen bool
}

// ColorTag resolves the handoff flags. With neither flag set the form
// starts green.
func (h Handoff) ColorTag() ColorTag {
	if !h.HasRed && !h.HasGreen {
		return ColorGreen
	}
	return ResolveColorTag(h.HasGreen, h.HasRed)
}
