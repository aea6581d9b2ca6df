package inspection

import (
	"testing"
)

func TestFieldTable_WireKeysUnique(t *testing.T) {
	seen := make(map[string]string)
	for _, f := range fieldTable {
		var key string
		if f.Namespace == NSTop {
			key = "top:" + f.Key
		} else {
			key = string(f.Category) + ":" + string(f.Namespace) + ":" + f.Key
		}
		if other, dup := seen[key]; dup {
			t.Errorf("fields %s and %s share wire key %s", other, f.Name, key)
		}
		seen[key] = f.Name
	}
}

func TestFieldTable_UploadPartsUnique(t *testing.T) {
	seen := make(map[string]string)
	for _, f := range fieldTable {
		if f.Kind != KindImage {
			continue
		}
		part := f.PartName()
		if other, dup := seen[part]; dup {
			t.Errorf("image fields %s and %s share part %s", other, f.Name, part)
		}
		seen[part] = f.Name
	}
}

func TestFieldTable_DefaultsCoerce(t *testing.T) {
	for _, f := range fieldTable {
		if f.Kind == KindImage {
			continue
		}
		got, err := coerce(f, f.Default)
		if err != nil {
			t.Errorf("%s: default %q does not coerce: %v", f.Name, f.Default, err)
			continue
		}
		if !got.Equal(f.Default) {
			t.Errorf("%s: coerce(default) = %q, want %q", f.Name, got, f.Default)
		}
	}
}

func TestFieldTable_EveryCategoryMapped(t *testing.T) {
	for _, c := range Categories {
		if len(CategoryFields(c)) == 0 {
			t.Errorf("category %s has no fields", c)
		}
	}
}

func TestLookupField(t *testing.T) {
	tests := []struct {
		name      string
		wantCat   Category
		wantNS    Namespace
		wantKey   string
		wantKind  Kind
		wantFound bool
	}{
		{name: "bodyDamage", wantCat: Exterior, wantNS: NSRadio, wantKey: "body_demage", wantKind: KindFlag, wantFound: true},
		{name: "glassDamaged", wantCat: Exterior, wantNS: NSRadio, wantKey: "glass_demage", wantKind: KindFlag, wantFound: true},
		{name: "mechTransmission", wantCat: Mechanical, wantNS: NSRadio, wantKey: "transmission", wantKind: KindChoice, wantFound: true},
		{name: "mechObdiiCodes", wantCat: Mechanical, wantNS: NSOBDIICode, wantKey: "codes", wantKind: KindText, wantFound: true},
		{name: "monitorEvap", wantCat: WarningLights, wantNS: NSMonitor, wantKey: "evap", wantKind: KindChoice, wantFound: true},
		{name: "tireTreadFrontLeft", wantCat: Wheels, wantNS: NSInput, wantKey: "front_left_tread", wantKind: KindMeasure, wantFound: true},
		{name: FieldColorTag, wantNS: NSTop, wantKey: "color_tag_indication", wantKind: KindColorTag, wantFound: true},
		{name: "noSuchField"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := LookupField(tt.name)
			if ok != tt.wantFound {
				t.Fatalf("LookupField(%q) found = %v, want %v", tt.name, ok, tt.wantFound)
			}
			if !ok {
				return
			}
			if f.Category != tt.wantCat || f.Namespace != tt.wantNS || f.Key != tt.wantKey || f.Kind != tt.wantKind {
				t.Errorf("LookupField(%q) = %+v", tt.name, f)
			}
		})
	}
}

func TestField_PartName(t *testing.T) {
	f, _ := LookupField("bodyDamageImage")
	if got := f.PartName(); got != "exterior_body_demage" {
		t.Errorf("PartName() = %q, want exterior_body_demage", got)
	}
	f, _ = LookupField(FieldDamageNotes)
	if got := f.PartName(); got != "demage_notes" {
		t.Errorf("PartName() = %q, want demage_notes", got)
	}
}

func TestFieldNames_Sorted(t *testing.T) {
	names := FieldNames()
	if len(names) != len(fieldTable) {
		t.Fatalf("len(FieldNames()) = %d, want %d", len(names), len(fieldTable))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("FieldNames() not sorted at %d: %q >= %q", i, names[i-1], names[i])
		}
	}
}
