package inspection

import (
	"fmt"
	"sort"
)

// Category names one grouped sub-document of an inspection record.
// The names are the backend's wire keys, misspellings included.
type Category string

const (
	Exterior      Category = "exterior"
	Interior      Category = "interior"
	Mechanical    Category = "mechanical"
	Wheels        Category = "wheels"
	WarningLights Category = "warning_lights"
	Frame         Category = "frame"
	Drivability   Category = "drivability"
	DamageAndRust Category = "demage_and_rust"
)

// Categories lists every category in the order they are sent.
var Categories = []Category{
	Exterior, Interior, Mechanical, Wheels, WarningLights, Frame, Drivability, DamageAndRust,
}

// Namespace is a key group inside a category document.
type Namespace string

const (
	NSRadio     Namespace = "radio"
	NSText      Namespace = "text"
	NSInput     Namespace = "input"
	NSImages    Namespace = "images"
	NSOBDIICode Namespace = "obdii_code"
	NSMonitor   Namespace = "monitor"

	// NSTop marks fields sent as top-level multipart parts rather than
	// inside a category document.
	NSTop Namespace = ""
)

// Kind is the value type of a field.
type Kind int

const (
	KindFlag Kind = iota
	KindChoice
	KindText
	KindMeasure
	KindImage
	KindColorTag
)

func (k Kind) String() string {
	switch k {
	case KindFlag:
		return "flag"
	case KindChoice:
		return "choice"
	case KindText:
		return "text"
	case KindMeasure:
		return "measure"
	case KindImage:
		return "image"
	case KindColorTag:
		return "color"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field describes one editable form field and where it lives on the wire.
type Field struct {
	Name      string // flat form field name
	Category  Category
	Namespace Namespace
	Key       string // key inside the namespace, or the top-level part name
	Kind      Kind
	Default   Value
	Choices   []string // allowed labels for KindChoice
}

// PartName returns the multipart field name used for this field's uploads
// or, for top-level fields, its own part.
func (f Field) PartName() string {
	if f.Namespace == NSTop {
		return f.Key
	}
	return string(f.Category) + "_" + f.Key
}

// Top-level field names.
const (
	FieldDamageNotes = "damageNotes"
	FieldRustNotes   = "rustNotes"
	FieldColorTag    = "colorTagIndication"
)

var (
	okDelayed    = []string{"ok", "delayed", "slip"}
	okOdometer   = []string{"ok", "inoperable", "replaced"}
	okShifting   = []string{"ok", "rough", "delayed"}
	monitorState = []string{"ready", "not_ready", "unsupported"}
)

func flag(c Category, key, name string) Field {
	return Field{Name: name, Category: c, Namespace: NSRadio, Key: key, Kind: KindFlag, Default: Code(0)}
}

func choice(c Category, ns Namespace, key, name, def string, choices []string) Field {
	return Field{Name: name, Category: c, Namespace: ns, Key: key, Kind: KindChoice, Default: Text(def), Choices: choices}
}

func note(c Category, key, name string) Field {
	return Field{Name: name, Category: c, Namespace: NSText, Key: key, Kind: KindText, Default: Text("")}
}

func measure(c Category, key, name string) Field {
	return Field{Name: name, Category: c, Namespace: NSInput, Key: key, Kind: KindMeasure, Default: Text("")}
}

func image(c Category, key, name string) Field {
	return Field{Name: name, Category: c, Namespace: NSImages, Key: key, Kind: KindImage}
}

var fieldTable = []Field{
	flag(Exterior, "body_demage", "bodyDamage"),
	flag(Exterior, "glass_demage", "glassDamaged"),
	flag(Exterior, "paint_demage", "paintDamage"),
	flag(Exterior, "lights_demage", "lightsDamaged"),
	flag(Exterior, "mirror_demage", "mirrorDamaged"),
	flag(Exterior, "bumper_demage", "bumperDamaged"),
	flag(Exterior, "hail_demage", "hailDamage"),
	flag(Exterior, "aftermarket_parts", "aftermarketParts"),
	note(Exterior, "body_demage", "bodyDamageNote"),
	note(Exterior, "glass_demage", "glassDamageNote"),
	note(Exterior, "paint_demage", "paintDamageNote"),
	image(Exterior, "body_demage", "bodyDamageImage"),
	image(Exterior, "glass_demage", "glassDamageImage"),

	flag(Interior, "seat_demage", "seatDamage"),
	flag(Interior, "dashboard_demage", "dashboardDamage"),
	flag(Interior, "headliner_demage", "headlinerDamage"),
	flag(Interior, "carpet_demage", "carpetDamage"),
	flag(Interior, "odor", "interiorOdor"),
	flag(Interior, "ac_working", "acWorking"),
	flag(Interior, "infotainment_working", "infotainmentWorking"),
	flag(Interior, "power_windows", "powerWindows"),
	note(Interior, "seat_demage", "seatDamageNote"),
	note(Interior, "odor", "interiorOdorNote"),
	image(Interior, "seat_demage", "seatDamageImage"),
	image(Interior, "dashboard_demage", "dashboardDamageImage"),

	flag(Mechanical, "cold_start", "mechColdStart"),
	flag(Mechanical, "engine_noise", "mechEngineNoise"),
	flag(Mechanical, "oil_leak", "mechOilLeak"),
	flag(Mechanical, "coolant_leak", "mechCoolantLeak"),
	flag(Mechanical, "exhaust_smoke", "mechExhaustSmoke"),
	flag(Mechanical, "check_engine", "mechCheckEngine"),
	choice(Mechanical, NSRadio, "transmission", "mechTransmission", "ok", okDelayed),
	choice(Mechanical, NSRadio, "odometer", "mechOdometer", "ok", okOdometer),
	note(Mechanical, "engine_noise", "mechEngineNoiseNote"),
	note(Mechanical, "transmission", "mechTransmissionNote"),
	measure(Mechanical, "odometer_reading", "mechOdometerReading"),
	{Name: "mechObdiiCodes", Category: Mechanical, Namespace: NSOBDIICode, Key: "codes", Kind: KindText, Default: Text("")},
	image(Mechanical, "engine_bay", "mechEngineBayImage"),
	image(Mechanical, "oil_leak", "mechOilLeakImage"),

	flag(Wheels, "tire_demage", "tireDamage"),
	flag(Wheels, "rim_demage", "rimDamage"),
	flag(Wheels, "mismatched_tires", "mismatchedTires"),
	flag(Wheels, "spare_tire", "spareTire"),
	measure(Wheels, "front_left_tread", "tireTreadFrontLeft"),
	measure(Wheels, "front_right_tread", "tireTreadFrontRight"),
	measure(Wheels, "rear_left_tread", "tireTreadRearLeft"),
	measure(Wheels, "rear_right_tread", "tireTreadRearRight"),
	note(Wheels, "tire_demage", "tireDamageNote"),
	image(Wheels, "tire_demage", "tireDamageImage"),
	image(Wheels, "rim_demage", "rimDamageImage"),

	flag(WarningLights, "check_engine_light", "warningCheckEngine"),
	flag(WarningLights, "abs_light", "warningAbs"),
	flag(WarningLights, "airbag_light", "warningAirbag"),
	flag(WarningLights, "tpms_light", "warningTpms"),
	flag(WarningLights, "battery_light", "warningBattery"),
	flag(WarningLights, "oil_pressure_light", "warningOilPressure"),
	flag(WarningLights, "traction_light", "warningTraction"),
	choice(WarningLights, NSMonitor, "catalyst", "monitorCatalyst", "", monitorState),
	choice(WarningLights, NSMonitor, "evap", "monitorEvap", "", monitorState),
	choice(WarningLights, NSMonitor, "o2_sensor", "monitorO2Sensor", "", monitorState),
	note(WarningLights, "check_engine_light", "warningCheckEngineNote"),
	image(WarningLights, "dashboard", "warningDashboardImage"),

	flag(Frame, "frame_demage", "frameDamage"),
	flag(Frame, "unibody_repair", "unibodyRepair"),
	flag(Frame, "rust_perforation", "frameRustPerforation"),
	flag(Frame, "welding_signs", "frameWeldingSigns"),
	flag(Frame, "flood_signs", "frameFloodSigns"),
	note(Frame, "frame_demage", "frameDamageNote"),
	image(Frame, "frame_demage", "frameDamageImage"),

	flag(Drivability, "steering_pull", "driveSteeringPull"),
	flag(Drivability, "brake_noise", "driveBrakeNoise"),
	flag(Drivability, "suspension_noise", "driveSuspensionNoise"),
	flag(Drivability, "vibration", "driveVibration"),
	flag(Drivability, "cruise_control", "driveCruiseControl"),
	choice(Drivability, NSRadio, "shifting", "driveShifting", "ok", okShifting),
	note(Drivability, "steering_pull", "driveSteeringPullNote"),
	note(Drivability, "brake_noise", "driveBrakeNoiseNote"),

	flag(DamageAndRust, "surface_rust", "surfaceRust"),
	flag(DamageAndRust, "structural_rust", "structuralRust"),
	flag(DamageAndRust, "dents", "dents"),
	flag(DamageAndRust, "scratches", "scratches"),
	flag(DamageAndRust, "previous_accident", "previousAccident"),
	note(DamageAndRust, "surface_rust", "surfaceRustNote"),
	note(DamageAndRust, "previous_accident", "previousAccidentNote"),
	image(DamageAndRust, "surface_rust", "surfaceRustImage"),
	image(DamageAndRust, "dents", "dentsImage"),

	{Name: FieldDamageNotes, Namespace: NSTop, Key: "demage_notes", Kind: KindText, Default: Text("")},
	{Name: FieldRustNotes, Namespace: NSTop, Key: "rust_notes", Kind: KindText, Default: Text("")},
	{Name: FieldColorTag, Namespace: NSTop, Key: "color_tag_indication", Kind: KindColorTag, Default: Code(int(ColorGreen))},
}

type wireKey struct {
	category  Category
	namespace Namespace
	key       string
}

var (
	fieldsByName = make(map[string]*Field, len(fieldTable))
	fieldsByWire = make(map[wireKey]*Field, len(fieldTable))
)

func init() {
	for i := range fieldTable {
		f := &fieldTable[i]
		if _, dup := fieldsByName[f.Name]; dup {
			panic("inspection: duplicate field name " + f.Name)
		}
		fieldsByName[f.Name] = f
		if f.Namespace != NSTop {
			fieldsByWire[wireKey{f.Category, f.Namespace, f.Key}] = f
		}
	}
}

// Fields returns a copy of the full field table.
func Fields() []Field {
	out := make([]Field, len(fieldTable))
	copy(out, fieldTable)
	return out
}

// LookupField returns the descriptor for a flat field name.
func LookupField(name string) (Field, bool) {
	f, ok := fieldsByName[name]
	if !ok {
		return Field{}, false
	}
	return *f, true
}

// CategoryFields returns the fields belonging to one category.
func CategoryFields(c Category) []Field {
	var out []Field
	for _, f := range fieldTable {
		if f.Category == c && f.Namespace != NSTop {
			out = append(out, f)
		}
	}
	return out
}

// FieldNames returns every field name, sorted.
func FieldNames() []string {
	names := make([]string, 0, len(fieldTable))
	for _, f := range fieldTable {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func fieldForWire(c Category, ns Namespace, key string) (*Field, bool) {
	f, ok := fieldsByWire[wireKey{c, ns, key}]
	return f, ok
}

func isCategory(s string) bool {
	for _, c := range Categories {
		if string(c) == s {
			return true
		}
	}
	return false
}
