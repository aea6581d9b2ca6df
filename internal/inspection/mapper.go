package inspection

import (
	"fmt"
	"strings"
)

// LoadWarning reports a part of a record that could not be loaded.
// Key is empty when the whole category was skipped.
type LoadWarning struct {
	Category Category
	Key      string
	Err      error
}

func (w LoadWarning) String() string {
	if w.Key == "" {
		return fmt.Sprintf("%s: %v", w.Category, w.Err)
	}
	return fmt.Sprintf("%s.%s: %v", w.Category, w.Key, w.Err)
}

// Load returns a fresh state populated from rec.
func Load(rec *Record, logger Logger) (*FormState, []LoadWarning) {
	state := NewFormState()
	return state, LoadInto(state, rec, logger)
}

// LoadInto copies every mapped value of rec into state. A category whose
// document does not parse is skipped and the rest still load; values that do
// not fit their field keep the field's current value.
func LoadInto(state *FormState, rec *Record, logger Logger) []LoadWarning {
	var warnings []LoadWarning

	for _, c := range Categories {
		raw, ok := rec.Sections[c]
		if !ok {
			continue
		}
		doc, err := ParseDocument(raw)
		if err != nil {
			logger.Warn("category document unreadable, using defaults", "inspection", rec.ID, "category", c, "error", err)
			warnings = append(warnings, LoadWarning{Category: c, Err: fmt.Errorf("parsing document: %w", err)})
			continue
		}
		warnings = append(warnings, loadDocument(state, c, doc, rec.ID, logger)...)
	}

	state.put(FieldDamageNotes, Text(rec.DamageNotes))
	state.put(FieldRustNotes, Text(rec.RustNotes))

	if rec.RequestErr != nil {
		logger.Warn("request flags unreadable, keeping color tag", "inspection", rec.ID, "error", rec.RequestErr)
		warnings = append(warnings, LoadWarning{Category: requestSection, Err: rec.RequestErr})
	}
	if rec.Request != nil {
		if rec.Request.HasGreen && rec.Request.HasRed {
			logger.Warn("request carries both color flags, using green", "inspection", rec.ID)
		}
		state.SetColorTag(rec.Request.ColorTag())
	}

	return warnings
}

func loadDocument(state *FormState, c Category, doc *Document, id string, logger Logger) []LoadWarning {
	var warnings []LoadWarning

	for _, f := range CategoryFields(c) {
		if f.Kind == KindImage {
			u := strings.TrimSpace(doc.Images[f.Key])
			if u != "" {
				state.putAttachments(f.Name, []AttachmentRef{PersistedAttachment(u)})
			}
			continue
		}

		v, ok := doc.Lookup(f.Namespace, f.Key)
		if !ok || (f.Kind == KindFlag && !v.IsCode() && strings.TrimSpace(v.String()) == "") {
			continue
		}
		cv, err := coerce(f, v)
		if err != nil {
			logger.Warn("value does not fit field, keeping default", "inspection", id, "category", c, "key", f.Key, "error", err)
			warnings = append(warnings, LoadWarning{Category: c, Key: f.Key, Err: err})
			continue
		}
		state.put(f.Name, cv)
	}

	for _, ke := range doc.Skipped {
		if ke.Key == "" {
			logger.Warn("namespace unreadable, keeping defaults", "inspection", id, "category", c, "namespace", ke.Namespace, "error", ke.Err)
			warnings = append(warnings, LoadWarning{Category: c, Key: string(ke.Namespace), Err: ke})
			continue
		}
		if _, ok := fieldForWire(c, ke.Namespace, ke.Key); !ok {
			logger.Debug("dropping unmapped key", "inspection", id, "category", c, "key", string(ke.Namespace)+"."+ke.Key, "error", ke.Err)
			continue
		}
		logger.Warn("value unreadable, keeping default", "inspection", id, "category", c, "key", ke.Key, "error", ke.Err)
		warnings = append(warnings, LoadWarning{Category: c, Key: ke.Key, Err: ke})
	}

	for _, k := range doc.UnknownKeys(c) {
		logger.Debug("dropping unmapped key", "inspection", id, "category", c, "key", k)
	}
	return warnings
}

// BuildPayload regroups a flat state into category documents plus the
// uploads still pending. Every mapped key is emitted, defaulted when unset.
// Persisted attachments are not re-sent.
func BuildPayload(state *FormState) *Payload {
	p := &Payload{
		Documents: make(map[Category]*Document, len(Categories)),
		ColorTag:  state.ColorTag(),
	}
	for _, c := range Categories {
		p.Documents[c] = &Document{}
	}

	for _, f := range fieldTable {
		if f.Namespace == NSTop {
			continue
		}
		if f.Kind == KindImage {
			for _, ref := range state.attachments[f.Name] {
				if ref.Origin != OriginNew {
					continue
				}
				p.Uploads = append(p.Uploads, Upload{
					Field: f.Name,
					Part:  f.PartName(),
					Name:  ref.Name,
					Data:  ref.Data,
					seq:   ref.seq,
				})
			}
			continue
		}
		v, ok := state.values[f.Name]
		if !ok {
			v = f.Default
		}
		p.Documents[f.Category].Put(f.Namespace, f.Key, v)
	}

	if v, ok := state.values[FieldDamageNotes]; ok {
		p.DamageNotes = v.String()
	}
	if v, ok := state.values[FieldRustNotes]; ok {
		p.RustNotes = v.String()
	}
	return p
}
