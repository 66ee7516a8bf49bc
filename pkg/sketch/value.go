package sketch

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Value is a number-or-reference appearing in entity coordinates and
// constraint values. In the document it is either a JSON number or a
// string like "$spacing" naming a parameter.
type Value struct {
	num   float64
	expr  string
	isRef bool
	set   bool
}

// Num returns a literal Value.
func Num(v float64) Value {
	return Value{num: v, set: true}
}

// Ref returns a Value referencing the named parameter.
func Ref(name string) Value {
	return Value{expr: "$" + strings.TrimPrefix(name, "$"), isRef: true, set: true}
}

// IsSet reports whether the value was present in the document.
func (v Value) IsSet() bool { return v.set }

// IsRef reports whether the value is a parameter reference.
func (v Value) IsRef() bool { return v.isRef }

// Raw returns the literal number, or 0 for references.
func (v Value) Raw() float64 { return v.num }

// RefName returns the referenced parameter name without the leading $,
// or "" for literals.
func (v Value) RefName() string {
	if !v.isRef {
		return ""
	}
	return strings.TrimPrefix(v.expr, "$")
}

func (v Value) String() string {
	if v.isRef {
		return v.expr
	}
	return fmt.Sprintf("%g", v.num)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var num float64
	if err := json.Unmarshal(b, &num); err == nil {
		*v = Num(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = Value{expr: s, isRef: true, set: true}
		return nil
	}
	return fmt.Errorf("value must be a number or a $name string, got %s", string(b))
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.isRef {
		return json.Marshal(v.expr)
	}
	return json.Marshal(v.num)
}

// Vec is a list of coordinate values (2 for workplane-relative points,
// 3 for free points and normals).
type Vec []Value

// NumVec builds a Vec of literals.
func NumVec(vals ...float64) Vec {
	out := make(Vec, len(vals))
	for i, f := range vals {
		out[i] = Num(f)
	}
	return out
}
