package sketch

import (
	"encoding/json"
	"testing"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// triangleDoc is a small valid document used across parse and validate tests:
// three points, three lines, a fixed base, one driven distance.
const triangleDoc = `{
  "schema": "slvs-json/1",
  "units": "mm",
  "parameters": {"base": 100},
  "entities": [
    {"type": "point", "id": "p1", "at": [0, 0, 0]},
    {"type": "point", "id": "p2", "at": ["$base", 0, 0]},
    {"type": "point", "id": "p3", "at": [50, 80, 0]},
    {"type": "line", "id": "ab", "p1": "p1", "p2": "p2"},
    {"type": "line", "id": "bc", "p1": "p2", "p2": "p3"},
    {"type": "line", "id": "ca", "p1": "p3", "p2": "p1"}
  ],
  "constraints": [
    {"type": "fixed", "entity": "p1"},
    {"type": "fixed", "entity": "p2"},
    {"type": "distance", "between": ["p2", "p3"], "value": "$base"},
    {"type": "distance", "between": ["p3", "p1"], "value": 100}
  ]
}`

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

func TestParseTriangle(t *testing.T) {
	doc := mustParse(t, triangleDoc)

	if len(doc.Entities) != 6 {
		t.Fatalf("parsed %d entities, want 6", len(doc.Entities))
	}
	if len(doc.Constraints) != 4 {
		t.Fatalf("parsed %d constraints, want 4", len(doc.Constraints))
	}

	p2 := doc.Entities[1]
	if p2.Kind != KindPoint || p2.ID != "p2" {
		t.Errorf("entities[1] = %s %q, want point p2", p2.Kind, p2.ID)
	}
	if !p2.At[0].IsRef() || p2.At[0].RefName() != "base" {
		t.Errorf("p2.at[0] = %v, want reference to base", p2.At[0])
	}

	d := doc.Constraints[2]
	if d.Kind != Distance {
		t.Fatalf("constraints[2] kind = %s, want distance", d.Kind)
	}
	got, err := doc.Parameters.Resolve(*d.Value)
	if err != nil || got != 100 {
		t.Errorf("distance value resolved to (%v, %v), want (100, nil)", got, err)
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	doc := mustParse(t, `{"schema": "slvs-json/1", "entities": [], "constraints": []}`)
	if doc.Units != "mm" {
		t.Errorf("units = %q, want default mm", doc.Units)
	}
	if doc.Parameters == nil {
		t.Error("parameters not initialized to an empty table")
	}
}

func TestParseUnsupportedSchema(t *testing.T) {
	_, err := Parse([]byte(`{"schema": "slvs-json/2", "entities": [], "constraints": []}`))
	if !IsKind(err, ErrUnsupportedSchema) {
		t.Errorf("error = %v, want kind unsupported_schema", err)
	}
}

func TestParseUnknownEntityType(t *testing.T) {
	src := `{
	  "schema": "slvs-json/1",
	  "entities": [{"type": "spline", "id": "s1"}],
	  "constraints": []
	}`
	_, err := Parse([]byte(src))
	if !IsKind(err, ErrUnsupportedVariant) {
		t.Errorf("error = %v, want kind unsupported_variant", err)
	}
}

func TestParseUnknownConstraintType(t *testing.T) {
	src := `{
	  "schema": "slvs-json/1",
	  "entities": [],
	  "constraints": [{"type": "gravity"}]
	}`
	_, err := Parse([]byte(src))
	if !IsKind(err, ErrUnsupportedVariant) {
		t.Errorf("error = %v, want kind unsupported_variant", err)
	}
}

func TestParseCircleCenterForms(t *testing.T) {
	src := `{
	  "schema": "slvs-json/1",
	  "entities": [
	    {"type": "point", "id": "c", "at": [5, 5, 0]},
	    {"type": "circle", "id": "inline", "center": [1, 2, 0], "diameter": 10},
	    {"type": "circle", "id": "byref", "center": "c", "diameter": "$d"}
	  ],
	  "constraints": [],
	  "parameters": {"d": 20}
	}`
	doc := mustParse(t, src)

	inline := doc.Entities[1]
	if inline.Center.IsRef() {
		t.Error("inline center parsed as a reference")
	}
	at, err := doc.Parameters.ResolveVec(inline.Center.At)
	if err != nil || at[0] != 1 || at[1] != 2 {
		t.Errorf("inline center = %v (%v), want [1 2 0]", at, err)
	}

	byref := doc.Entities[2]
	if !byref.Center.IsRef() || byref.Center.Ref != "c" {
		t.Errorf("byref center = %+v, want reference to c", byref.Center)
	}
	d, err := doc.Parameters.Resolve(byref.Diameter)
	if err != nil || d != 20 {
		t.Errorf("byref diameter = (%v, %v), want (20, nil)", d, err)
	}
}

// ---------------------------------------------------------------------------
// Round trips
// ---------------------------------------------------------------------------

func TestDocumentRoundTrip(t *testing.T) {
	doc := mustParse(t, triangleDoc)

	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	back, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse of marshaled document failed: %v", err)
	}

	if len(back.Entities) != len(doc.Entities) {
		t.Fatalf("round trip lost entities: %d != %d", len(back.Entities), len(doc.Entities))
	}
	for i := range doc.Entities {
		if back.Entities[i].ID != doc.Entities[i].ID || back.Entities[i].Kind != doc.Entities[i].Kind {
			t.Errorf("entity %d changed: %s %q -> %s %q", i,
				doc.Entities[i].Kind, doc.Entities[i].ID,
				back.Entities[i].Kind, back.Entities[i].ID)
		}
	}
	for i := range doc.Constraints {
		if back.Constraints[i].Kind != doc.Constraints[i].Kind {
			t.Errorf("constraint %d changed kind: %s -> %s", i,
				doc.Constraints[i].Kind, back.Constraints[i].Kind)
		}
	}
}

func TestEntityMarshalOmitsUnsetFields(t *testing.T) {
	e := Entity{ID: "p1", Kind: KindPoint, At: NumVec(1, 2, 3)}
	out, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(out, &raw); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"center", "diameter", "module", "teeth"} {
		if _, present := raw[field]; present {
			t.Errorf("point marshals unset field %q: %s", field, out)
		}
	}
}

func TestConstraintRefs(t *testing.T) {
	tests := []struct {
		name string
		c    Constraint
		want []string
	}{
		{"distance", Constraint{Kind: Distance, Between: []string{"a", "b"}}, []string{"a", "b"}},
		{"fixed", Constraint{Kind: Fixed, Entity: "p1"}, []string{"p1"}},
		{"mesh", Constraint{Kind: Mesh, Gear1: "sun", Gear2: "planet"}, []string{"sun", "planet"}},
		{"symmetric", Constraint{Kind: Symmetric, A: "p1", B: "p2", About: "axis"}, []string{"p1", "p2", "axis"}},
		{"midpoint workplane", Constraint{Kind: Midpoint, Point: "m", Line: "l", Workplane: "xy"}, []string{"m", "l", "xy"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.c.Refs()
			if len(got) != len(tt.want) {
				t.Fatalf("Refs() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Refs()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
