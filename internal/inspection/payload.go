package inspection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// Upload is one pending attachment blob.
type Upload struct {
	Field string // form field name
	Part  string // multipart field name
	Name  string // file name sent to the portal
	Data  []byte

	seq uint64
}

// Payload is everything one submission sends.
type Payload struct {
	Documents   map[Category]*Document
	Uploads     []Upload
	DamageNotes string
	RustNotes   string
	ColorTag    ColorTag
}

// Green returns the "green" part value.
func (p *Payload) Green() string {
	if p.ColorTag == ColorGreen {
		return "1"
	}
	return "0"
}

// Red returns the "red" part value.
func (p *Payload) Red() string {
	if p.ColorTag == ColorRed {
		return "1"
	}
	return "0"
}

// Body is an encoded multipart request body.
type Body struct {
	Data        []byte
	ContentType string
}

// Encode writes the payload as multipart/form-data: one JSON part per
// category, one file part per upload, then the top-level fields.
func (p *Payload) Encode() (*Body, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, c := range Categories {
		doc, ok := p.Documents[c]
		if !ok {
			doc = &Document{}
		}
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encoding %s document: %w", c, err)
		}
		if err := writer.WriteField(string(c), string(b)); err != nil {
			return nil, fmt.Errorf("writing %s part: %w", c, err)
		}
	}

	for _, u := range p.Uploads {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(u.Part), escapeQuotes(u.Name)))
		h.Set("Content-Type", http.DetectContentType(u.Data))
		part, err := writer.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("creating %s part: %w", u.Part, err)
		}
		if _, err := part.Write(u.Data); err != nil {
			return nil, fmt.Errorf("writing %s part: %w", u.Part, err)
		}
	}

	fields := []struct{ name, value string }{
		{"demage_notes", p.DamageNotes},
		{"rust_notes", p.RustNotes},
		{"green", p.Green()},
		{"red", p.Red()},
		{"color_tag_indication", strconv.Itoa(int(p.ColorTag))},
	}
	for _, f := range fields {
		if err := writer.WriteField(f.name, f.value); err != nil {
			return nil, fmt.Errorf("writing %s part: %w", f.name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}
	return &Body{Data: buf.Bytes(), ContentType: writer.FormDataContentType()}, nil
}

// Fingerprint hashes the submitted content. Uploads contribute their part,
// name and size so identical re-submits hash equal.
func (p *Payload) Fingerprint() uint64 {
	h := xxh3.New()
	for _, c := range Categories {
		b, _ := json.Marshal(p.Documents[c])
		fmt.Fprintf(h, "%s=%s\n", c, b)
	}
	for _, u := range p.Uploads {
		fmt.Fprintf(h, "upload %s %s %d\n", u.Part, u.Name, len(u.Data))
	}
	fmt.Fprintf(h, "notes %q %q\ncolor %d\n", p.DamageNotes, p.RustNotes, p.ColorTag)
	return h.Sum64()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
