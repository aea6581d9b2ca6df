package inspection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Answer is a radio or monitor value. The backend sends yes/no questions as
// integers and enumerated ones as strings; Answer keeps whichever it got.
// Booleans become 0/1 and integral floats become integers. Other numbers are
// kept as text so the field coercion can reject them.
type Answer struct {
	Value
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.isCode {
		return []byte(strconv.Itoa(a.code)), nil
	}
	return json.Marshal(a.text)
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0:
		return fmt.Errorf("empty answer")
	case bytes.Equal(data, []byte("null")):
		*a = Answer{Text("")}
		return nil
	case bytes.Equal(data, []byte("true")):
		*a = Answer{Code(1)}
		return nil
	case bytes.Equal(data, []byte("false")):
		*a = Answer{Code(0)}
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Answer{Text(s)}
		return nil
	case data[0] == '{' || data[0] == '[':
		return fmt.Errorf("answer must be a number, string or boolean, got %s", data)
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("answer must be a number, string or boolean: %w", err)
	}
	if i, err := n.Int64(); err == nil && i >= math.MinInt32 && i <= math.MaxInt32 {
		*a = Answer{Code(int(i))}
		return nil
	}
	if f, err := n.Float64(); err == nil && f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32 {
		*a = Answer{Code(int(f))}
		return nil
	}
	*a = Answer{Text(n.String())}
	return nil
}

// Measure is a numeric measurement. It is encoded as a JSON number when it
// holds one and as a string otherwise ("" when empty).
type Measure string

func (m Measure) MarshalJSON() ([]byte, error) {
	s := strings.TrimSpace(string(m))
	if isJSONNumber(s) {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

func (m *Measure) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = Measure(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("measure must be a number or string, got %s", data)
	}
	*m = Measure(n.String())
	return nil
}

// isJSONNumber reports whether s is a literal JSON number. ParseFloat also
// takes ".5", "+5", "NaN" and "Inf", which JSON does not.
func isJSONNumber(s string) bool {
	if s == "" || !(s[0] == '-' || (s[0] >= '0' && s[0] <= '9')) {
		return false
	}
	return json.Valid([]byte(s))
}

// KeyError is one namespace entry that could not be decoded. Key is empty
// when the whole namespace was unreadable.
type KeyError struct {
	Namespace Namespace
	Key       string
	Err       error
}

func (e KeyError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Namespace, e.Err)
	}
	return fmt.Sprintf("%s.%s: %v", e.Namespace, e.Key, e.Err)
}

// Document is one category's sub-document.
type Document struct {
	Radio     map[string]Answer  `json:"radio,omitempty"`
	Text      map[string]string  `json:"text,omitempty"`
	Input     map[string]Measure `json:"input,omitempty"`
	Images    map[string]string  `json:"images,omitempty"`
	OBDIICode map[string]string  `json:"obdii_code,omitempty"`
	Monitor   map[string]Answer  `json:"monitor,omitempty"`

	// Skipped lists entries left out while decoding, sorted.
	Skipped []KeyError `json:"-"`
}

// ParseDocument decodes a category document. Only a document that is not a
// JSON object fails; entries that do not decode are listed in Skipped.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

var documentNamespaces = []Namespace{NSRadio, NSText, NSInput, NSImages, NSOBDIICode, NSMonitor}

func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}

	doc := Document{}
	for _, ns := range documentNamespaces {
		val, ok := raw[string(ns)]
		if !ok || isNull(bytes.TrimSpace(val)) {
			continue
		}
		var entries map[string]json.RawMessage
		dec := json.NewDecoder(bytes.NewReader(val))
		dec.UseNumber()
		if err := dec.Decode(&entries); err != nil {
			doc.Skipped = append(doc.Skipped, KeyError{Namespace: ns, Err: fmt.Errorf("not an object: %w", err)})
			continue
		}
		for key, entry := range entries {
			if err := doc.decodeEntry(ns, key, entry); err != nil {
				doc.Skipped = append(doc.Skipped, KeyError{Namespace: ns, Key: key, Err: err})
			}
		}
	}
	sort.Slice(doc.Skipped, func(i, j int) bool {
		if doc.Skipped[i].Namespace != doc.Skipped[j].Namespace {
			return doc.Skipped[i].Namespace < doc.Skipped[j].Namespace
		}
		return doc.Skipped[i].Key < doc.Skipped[j].Key
	})
	*d = doc
	return nil
}

func (d *Document) decodeEntry(ns Namespace, key string, val json.RawMessage) error {
	switch ns {
	case NSRadio, NSMonitor:
		var a Answer
		if err := a.UnmarshalJSON(val); err != nil {
			return err
		}
		d.Put(ns, key, a.Value)
	case NSInput:
		var m Measure
		if err := m.UnmarshalJSON(val); err != nil {
			return err
		}
		d.Put(ns, key, Text(string(m)))
	case NSText, NSOBDIICode:
		s, err := textEntry(val)
		if err != nil {
			return err
		}
		d.Put(ns, key, Text(s))
	case NSImages:
		val = bytes.TrimSpace(val)
		if isNull(val) {
			d.Put(ns, key, Text(""))
			return nil
		}
		var s string
		if err := json.Unmarshal(val, &s); err != nil {
			return fmt.Errorf("image must be a URL string, got %s", val)
		}
		d.Put(ns, key, Text(s))
	}
	return nil
}

// textEntry accepts strings, numbers and booleans as text.
func textEntry(val json.RawMessage) (string, error) {
	val = bytes.TrimSpace(val)
	switch {
	case isNull(val):
		return "", nil
	case val[0] == '"':
		var s string
		if err := json.Unmarshal(val, &s); err != nil {
			return "", err
		}
		return s, nil
	case val[0] == '{' || val[0] == '[':
		return "", fmt.Errorf("text must be a string, got %s", val)
	}
	return string(val), nil
}

// Lookup returns the raw value stored under ns/key and whether it is present.
func (d *Document) Lookup(ns Namespace, key string) (Value, bool) {
	switch ns {
	case NSRadio:
		a, ok := d.Radio[key]
		return a.Value, ok
	case NSMonitor:
		a, ok := d.Monitor[key]
		return a.Value, ok
	case NSText:
		s, ok := d.Text[key]
		return Text(s), ok
	case NSOBDIICode:
		s, ok := d.OBDIICode[key]
		return Text(s), ok
	case NSInput:
		m, ok := d.Input[key]
		return Text(string(m)), ok
	case NSImages:
		s, ok := d.Images[key]
		return Text(s), ok
	}
	return Value{}, false
}

// Put stores v under ns/key, allocating the namespace map as needed.
func (d *Document) Put(ns Namespace, key string, v Value) {
	switch ns {
	case NSRadio:
		if d.Radio == nil {
			d.Radio = make(map[string]Answer)
		}
		d.Radio[key] = Answer{v}
	case NSMonitor:
		if d.Monitor == nil {
			d.Monitor = make(map[string]Answer)
		}
		d.Monitor[key] = Answer{v}
	case NSText:
		if d.Text == nil {
			d.Text = make(map[string]string)
		}
		d.Text[key] = v.String()
	case NSOBDIICode:
		if d.OBDIICode == nil {
			d.OBDIICode = make(map[string]string)
		}
		d.OBDIICode[key] = v.String()
	case NSInput:
		if d.Input == nil {
			d.Input = make(map[string]Measure)
		}
		d.Input[key] = Measure(v.String())
	case NSImages:
		if d.Images == nil {
			d.Images = make(map[string]string)
		}
		d.Images[key] = v.String()
	}
}

// UnknownKeys lists "namespace.key" entries with no field mapping in c.
func (d *Document) UnknownKeys(c Category) []string {
	var out []string
	check := func(ns Namespace, keys []string) {
		for _, k := range keys {
			if _, ok := fieldForWire(c, ns, k); !ok {
				out = append(out, string(ns)+"."+k)
			}
		}
	}
	check(NSRadio, keysOf(d.Radio))
	check(NSMonitor, keysOf(d.Monitor))
	check(NSText, keysOf(d.Text))
	check(NSOBDIICode, keysOf(d.OBDIICode))
	check(NSInput, keysOf(d.Input))
	check(NSImages, keysOf(d.Images))
	sort.Strings(out)
	return out
}

func keysOf[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
