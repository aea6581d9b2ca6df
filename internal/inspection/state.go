package inspection

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/text/unicode/norm"
)

// Origin tells whether an attachment still has to be uploaded.
type Origin int

const (
	OriginNew Origin = iota
	OriginPersisted
)

func (o Origin) String() string {
	if o == OriginPersisted {
		return "persisted"
	}
	return "new"
}

// AttachmentRef is one file attached to a field.
type AttachmentRef struct {
	Origin Origin
	Name   string
	URL    string // set for persisted refs
	Data   []byte // set for new refs until they are uploaded

	seq uint64 // identifies a new ref across copies
}

var attachmentSeq atomic.Uint64

// NewAttachment returns a pending upload.
func NewAttachment(name string, data []byte) AttachmentRef {
	return AttachmentRef{Origin: OriginNew, Name: DisplayName(name), Data: data, seq: attachmentSeq.Add(1)}
}

// PersistedAttachment returns a ref to a file the portal already stores.
func PersistedAttachment(rawURL string) AttachmentRef {
	name := lastSegment(rawURL)
	if u, err := url.PathUnescape(name); err == nil {
		name = u
	}
	return AttachmentRef{Origin: OriginPersisted, Name: DisplayName(name), URL: rawURL}
}

// Size returns the pending blob size; persisted refs report 0.
func (a AttachmentRef) Size() int {
	return len(a.Data)
}

// DisplayName NFC-normalizes a file name so names typed on different
// platforms compare equal.
func DisplayName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

func lastSegment(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.EscapedPath()
	}
	p = strings.TrimRight(p, "/")
	if p == "" {
		return rawURL
	}
	return path.Base(p)
}

// FormState is the flat editing state of one inspection form.
type FormState struct {
	values      map[string]Value
	attachments map[string][]AttachmentRef
	changed     map[string]bool
}

// NewFormState returns a state holding every field's default.
func NewFormState() *FormState {
	s := &FormState{
		values:      make(map[string]Value, len(fieldTable)),
		attachments: make(map[string][]AttachmentRef),
		changed:     make(map[string]bool),
	}
	for _, f := range fieldTable {
		if f.Kind != KindImage {
			s.values[f.Name] = f.Default
		}
	}
	return s
}

// Get returns the value of a field.
func (s *FormState) Get(name string) (Value, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Set stores a value, coercing it to the field's kind. Names with no field
// mapping are kept but never sent.
func (s *FormState) Set(name string, v Value) error {
	f, ok := LookupField(name)
	if !ok {
		s.values[name] = v
		s.changed[name] = true
		return nil
	}
	cv, err := coerce(f, v)
	if err != nil {
		return err
	}
	s.values[name] = cv
	s.changed[name] = true
	return nil
}

// SetString is Set for raw text input.
func (s *FormState) SetString(name, raw string) error {
	return s.Set(name, Text(raw))
}

// SetAttachment replaces the attachment list of a field.
func (s *FormState) SetAttachment(name string, refs []AttachmentRef) error {
	if f, ok := LookupField(name); ok && f.Kind != KindImage {
		return fmt.Errorf("%w: %s is a %s field", ErrInvalidValue, name, f.Kind)
	}
	s.attachments[name] = append([]AttachmentRef(nil), refs...)
	s.changed[name] = true
	return nil
}

// Attachments returns a copy of the attachment list of a field.
func (s *FormState) Attachments(name string) []AttachmentRef {
	return append([]AttachmentRef(nil), s.attachments[name]...)
}

// ColorTag returns the current color tag.
func (s *FormState) ColorTag() ColorTag {
	if n, ok := s.values[FieldColorTag].Int(); ok && n == int(ColorRed) {
		return ColorRed
	}
	return ColorGreen
}

// SetColorTag sets the color tag.
func (s *FormState) SetColorTag(c ColorTag) {
	s.values[FieldColorTag] = Code(int(c))
}

// Names returns the names of every stored value, sorted.
func (s *FormState) Names() []string {
	names := make([]string, 0, len(s.values))
	for n := range s.values {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Changed returns the fields edited through Set or SetAttachment, sorted.
func (s *FormState) Changed() []string {
	names := make([]string, 0, len(s.changed))
	for n := range s.changed {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PendingUploads counts new attachments across all fields.
func (s *FormState) PendingUploads() int {
	n := 0
	for _, refs := range s.attachments {
		for _, r := range refs {
			if r.Origin == OriginNew {
				n++
			}
		}
	}
	return n
}

// markPersisted flips the new attachments that went out in sent to
// persisted and drops their blobs. Refs added after the payload was built
// stay pending.
func (s *FormState) markPersisted(sent []Upload) {
	uploaded := make(map[uint64]bool, len(sent))
	for _, u := range sent {
		uploaded[u.seq] = true
	}
	for name, refs := range s.attachments {
		for i := range refs {
			if refs[i].Origin == OriginNew && uploaded[refs[i].seq] {
				refs[i].Origin = OriginPersisted
				refs[i].Data = nil
			}
		}
		s.attachments[name] = refs
	}
}

// put stores an already-coerced value without marking it changed.
func (s *FormState) put(name string, v Value) {
	s.values[name] = v
}

func (s *FormState) putAttachments(name string, refs []AttachmentRef) {
	s.attachments[name] = refs
}
