package inspection

import (
	"errors"
	"testing"
)

func mustField(t *testing.T, name string) Field {
	t.Helper()
	f, ok := LookupField(name)
	if !ok {
		t.Fatalf("no field %q", name)
	}
	return f
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		in      Value
		want    Value
		wantErr error
	}{
		{name: "flag code", field: "bodyDamage", in: Code(1), want: Code(1)},
		{name: "flag yes", field: "bodyDamage", in: Text("Yes"), want: Code(1)},
		{name: "flag false", field: "bodyDamage", in: Text("false"), want: Code(0)},
		{name: "flag out of range", field: "bodyDamage", in: Code(2), wantErr: ErrInvalidValue},
		{name: "flag garbage", field: "bodyDamage", in: Text("maybe"), wantErr: ErrInvalidValue},
		{name: "choice lowercased", field: "mechTransmission", in: Text(" Delayed "), want: Text("delayed")},
		{name: "choice unknown", field: "mechTransmission", in: Text("broken"), wantErr: ErrInvalidValue},
		{name: "monitor empty default", field: "monitorEvap", in: Text(""), want: Text("")},
		{name: "monitor ready", field: "monitorEvap", in: Text("ready"), want: Text("ready")},
		{name: "text keeps content", field: "bodyDamageNote", in: Text("scratch on door"), want: Text("scratch on door")},
		{name: "text from code", field: "bodyDamageNote", in: Code(3), want: Text("3")},
		{name: "measure number", field: "tireTreadFrontLeft", in: Text(" 4.5 "), want: Text("4.5")},
		{name: "measure empty", field: "tireTreadFrontLeft", in: Text(""), want: Text("")},
		{name: "measure not numeric", field: "tireTreadFrontLeft", in: Text("deep"), wantErr: ErrInvalidValue},
		{name: "measure leading dot", field: "tireTreadFrontLeft", in: Text(".5"), want: Text("0.5")},
		{name: "measure trailing dot", field: "tireTreadFrontLeft", in: Text("5."), want: Text("5")},
		{name: "measure plus sign", field: "tireTreadFrontLeft", in: Text("+5"), want: Text("5")},
		{name: "measure exponent", field: "mechOdometerReading", in: Text("1e3"), want: Text("1000")},
		{name: "measure NaN", field: "tireTreadFrontLeft", in: Text("NaN"), wantErr: ErrInvalidValue},
		{name: "measure Inf", field: "tireTreadFrontLeft", in: Text("Inf"), wantErr: ErrInvalidValue},
		{name: "measure negative Inf", field: "tireTreadFrontLeft", in: Text("-inf"), wantErr: ErrInvalidValue},
		{name: "color red label", field: FieldColorTag, in: Text("red"), want: Code(1)},
		{name: "color code", field: FieldColorTag, in: Code(0), want: Code(0)},
		{name: "color invalid code", field: FieldColorTag, in: Code(5), wantErr: ErrInvalidValue},
		{name: "image rejected", field: "bodyDamageImage", in: Text("x.jpg"), wantErr: ErrImageField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerce(mustField(t, tt.field), tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("coerce() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("coerce() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("coerce() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestResolveColorTag(t *testing.T) {
	tests := []struct {
		hasGreen, hasRed bool
		want             ColorTag
	}{
		{hasGreen: true, hasRed: false, want: ColorGreen},
		{hasGreen: false, hasRed: true, want: ColorRed},
		{hasGreen: true, hasRed: true, want: ColorGreen},
		{hasGreen: false, hasRed: false, want: ColorRed},
	}
	for _, tt := range tests {
		if got := ResolveColorTag(tt.hasGreen, tt.hasRed); got != tt.want {
			t.Errorf("ResolveColorTag(green=%v, red=%v) = %v, want %v", tt.hasGreen, tt.hasRed, got, tt.want)
		}
	}
}

func TestHandoff_ColorTag(t *testing.T) {
	tests := []struct {
		name string
		h    Handoff
		want ColorTag
	}{
		{name: "neither flag starts green", h: Handoff{}, want: ColorGreen},
		{name: "red only", h: Handoff{HasRed: true}, want: ColorRed},
		{name: "green only", h: Handoff{HasGreen: true}, want: ColorGreen},
		{name: "both prefer green", h: Handoff{HasRed: true, HasGreen: true}, want: ColorGreen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.h.ColorTag(); got != tt.want {
				t.Errorf("ColorTag() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseColorTag(t *testing.T) {
	for in, want := range map[string]ColorTag{"green": ColorGreen, "RED": ColorRed, "0": ColorGreen, " 1 ": ColorRed} {
		got, err := ParseColorTag(in)
		if err != nil || got != want {
			t.Errorf("ParseColorTag(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
	if _, err := ParseColorTag("amber"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("ParseColorTag(amber) error = %v, want ErrInvalidValue", err)
	}
}

func TestValue_String(t *testing.T) {
	if Code(7).String() != "7" || Text("ok").String() != "ok" {
		t.Error("Value.String() mismatch")
	}
	if Code(0).Equal(Text("0")) {
		t.Error("Code(0) should not equal Text(\"0\")")
	}
}
