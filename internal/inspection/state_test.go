package inspection

import (
	"errors"
	"reflect"
	"testing"
)

func TestFormState_Set(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		in      Value
		want    Value
		wantErr error
	}{
		{name: "flag from text", field: "bodyDamage", in: Text("yes"), want: Code(1)},
		{name: "flag out of range", field: "bodyDamage", in: Code(2), wantErr: ErrInvalidValue},
		{name: "choice normalized", field: "mechTransmission", in: Text(" Slip "), want: Text("slip")},
		{name: "choice rejected", field: "mechTransmission", in: Text("broken"), wantErr: ErrInvalidValue},
		{name: "measure", field: "tireTreadRearLeft", in: Text("7.25"), want: Text("7.25")},
		{name: "measure rejected", field: "tireTreadRearLeft", in: Text("deep"), wantErr: ErrInvalidValue},
		{name: "color tag label", field: FieldColorTag, in: Text("red"), want: Code(1)},
		{name: "unmapped name kept as is", field: "inspectorMood", in: Text("fine"), want: Text("fine")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewFormState()
			before, _ := s.Get(tt.field)

			err := s.Set(tt.field, tt.in)
			got, _ := s.Get(tt.field)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Set() error = %v, want %v", err, tt.wantErr)
				}
				if !got.Equal(before) {
					t.Errorf("failed Set changed value to %#v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Get() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestFormState_GetDefaults(t *testing.T) {
	s := NewFormState()

	if v, ok := s.Get("glassDamaged"); !ok || !v.Equal(Code(0)) {
		t.Errorf("glassDamaged = %#v, %v", v, ok)
	}
	if v, ok := s.Get("driveShifting"); !ok || v.String() != "ok" {
		t.Errorf("driveShifting = %#v, %v", v, ok)
	}
	if _, ok := s.Get("bodyDamageImage"); ok {
		t.Error("image field has a scalar value")
	}
	if _, ok := s.Get("noSuchField"); ok {
		t.Error("unknown field reported as present")
	}
	if len(s.Changed()) != 0 {
		t.Errorf("fresh state has changes: %v", s.Changed())
	}
}

func TestFormState_SetAttachment(t *testing.T) {
	s := NewFormState()

	if err := s.SetAttachment("bodyDamage", []AttachmentRef{NewAttachment("a.jpg", []byte("x"))}); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("SetAttachment() on a flag error = %v, want ErrInvalidValue", err)
	}

	refs := []AttachmentRef{
		PersistedAttachment("https://cdn.example.com/r/1/old.jpg"),
		NewAttachment("new.jpg", []byte("jpegdata")),
	}
	if err := s.SetAttachment("bodyDamageImage", refs); err != nil {
		t.Fatalf("SetAttachment() error = %v", err)
	}

	refs[1].Name = "mutated.jpg"
	got := s.Attachments("bodyDamageImage")
	if len(got) != 2 || got[1].Name != "new.jpg" {
		t.Fatalf("Attachments() = %+v, stored list aliases caller slice", got)
	}
	got[0].Name = "mutated.jpg"
	if s.Attachments("bodyDamageImage")[0].Name != "old.jpg" {
		t.Error("Attachments() returned the stored slice")
	}

	if n := s.PendingUploads(); n != 1 {
		t.Errorf("PendingUploads() = %d, want 1", n)
	}
	if !reflect.DeepEqual(s.Changed(), []string{"bodyDamageImage"}) {
		t.Errorf("Changed() = %v", s.Changed())
	}
}

func TestFormState_MarkPersisted(t *testing.T) {
	s := NewFormState()
	s.SetAttachment("seatDamageImage", []AttachmentRef{
		NewAttachment("seat.jpg", []byte("1234")),
		NewAttachment("seat2.jpg", []byte("5678")),
	})

	s.markPersisted(BuildPayload(s).Uploads)

	if n := s.PendingUploads(); n != 0 {
		t.Errorf("PendingUploads() after markPersisted = %d", n)
	}
	for _, r := range s.Attachments("seatDamageImage") {
		if r.Origin != OriginPersisted || r.Data != nil {
			t.Errorf("ref %q = %v with %d bytes", r.Name, r.Origin, r.Size())
		}
	}
	if len(BuildPayload(s).Uploads) != 0 {
		t.Error("persisted refs were queued for upload")
	}
}

func TestFormState_MarkPersistedOnlySent(t *testing.T) {
	s := NewFormState()
	s.SetAttachment("seatDamageImage", []AttachmentRef{NewAttachment("seat.jpg", []byte("1234"))})
	sent := BuildPayload(s).Uploads

	// Added while the first payload was in flight.
	refs := append(s.Attachments("seatDamageImage"), NewAttachment("late.jpg", []byte("5678")))
	s.SetAttachment("seatDamageImage", refs)
	s.SetAttachment("dentsImage", []AttachmentRef{NewAttachment("dent.jpg", []byte("9"))})

	s.markPersisted(sent)

	if n := s.PendingUploads(); n != 2 {
		t.Fatalf("PendingUploads() = %d, want 2", n)
	}
	got := s.Attachments("seatDamageImage")
	if got[0].Origin != OriginPersisted || got[0].Data != nil {
		t.Errorf("sent ref = %v with %d bytes, want persisted", got[0].Origin, got[0].Size())
	}
	if got[1].Origin != OriginNew || string(got[1].Data) != "5678" {
		t.Errorf("late ref = %v %q, want pending", got[1].Origin, got[1].Data)
	}
	names := map[string]bool{}
	for _, u := range BuildPayload(s).Uploads {
		names[u.Name] = true
	}
	if len(names) != 2 || !names["late.jpg"] || !names["dent.jpg"] {
		t.Errorf("next payload uploads = %v, want late.jpg and dent.jpg", names)
	}
}

func TestFormState_ColorTag(t *testing.T) {
	s := NewFormState()
	if s.ColorTag() != ColorGreen {
		t.Errorf("default ColorTag() = %v", s.ColorTag())
	}
	s.SetColorTag(ColorRed)
	if s.ColorTag() != ColorRed {
		t.Errorf("ColorTag() = %v, want red", s.ColorTag())
	}
	if err := s.SetString(FieldColorTag, "green"); err != nil {
		t.Fatal(err)
	}
	if s.ColorTag() != ColorGreen {
		t.Errorf("ColorTag() = %v, want green", s.ColorTag())
	}
}

func TestAttachmentNames(t *testing.T) {
	tests := []struct {
		name string
		ref  AttachmentRef
		want string
	}{
		{name: "new trimmed", ref: NewAttachment("  dash.png ", nil), want: "dash.png"},
		{name: "new normalized", ref: NewAttachment("cafe\u0301.jpg", nil), want: "caf\u00e9.jpg"},
		{name: "persisted from url", ref: PersistedAttachment("https://cdn.example.com/a/b/tire.jpg?sig=1"), want: "tire.jpg"},
		{name: "persisted escaped", ref: PersistedAttachment("https://cdn.example.com/a/rear%20rim.jpg"), want: "rear rim.jpg"},
		{name: "persisted trailing slash", ref: PersistedAttachment("https://cdn.example.com/a/frame.jpg/"), want: "frame.jpg"},
		{name: "persisted bare path", ref: PersistedAttachment("media/x.jpg"), want: "x.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.ref.Name != tt.want {
				t.Errorf("Name = %q, want %q", tt.ref.Name, tt.want)
			}
		})
	}
}
