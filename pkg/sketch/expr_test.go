package sketch

import (
	"errors"
	"testing"
)

func TestResolveLiteral(t *testing.T) {
	p := Params{}
	got, err := p.Resolve(Num(42.5))
	if err != nil {
		t.Fatalf("Resolve(42.5) returned error: %v", err)
	}
	if got != 42.5 {
		t.Errorf("Resolve(42.5) = %v, want 42.5", got)
	}
}

func TestResolveReference(t *testing.T) {
	p := Params{"spacing": 30}

	tests := []struct {
		name string
		v    Value
		want float64
	}{
		{"dollar prefix", Ref("spacing"), 30},
		{"already prefixed", Ref("$spacing"), 30},
		{"unset zero", Value{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Resolve(tt.v)
			if err != nil {
				t.Fatalf("Resolve(%v) returned error: %v", tt.v, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestResolveNumericString(t *testing.T) {
	// A bare numeric string is treated as a literal, not a parameter name.
	var v Value
	if err := v.UnmarshalJSON([]byte(`"12.5"`)); err != nil {
		t.Fatal(err)
	}
	got, err := Params{}.Resolve(v)
	if err != nil {
		t.Fatalf("Resolve(%q) returned error: %v", "12.5", err)
	}
	if got != 12.5 {
		t.Errorf("Resolve(%q) = %v, want 12.5", "12.5", got)
	}
}

func TestResolveUnknownParameter(t *testing.T) {
	p := Params{"spacing": 30}
	_, err := p.Resolve(Ref("missing"))
	if err == nil {
		t.Fatal("Resolve($missing) succeeded, want unknown_parameter error")
	}
	if !IsKind(err, ErrUnknownParameter) {
		t.Errorf("Resolve($missing) error = %v, want kind unknown_parameter", err)
	}
	var se *Error
	if errors.As(err, &se) && se.Ref != "missing" {
		t.Errorf("error names parameter %q, want %q", se.Ref, "missing")
	}
}

func TestCoord3ZeroFillsZ(t *testing.T) {
	p := Params{}
	got, err := p.Coord3(NumVec(3, 4))
	if err != nil {
		t.Fatal(err)
	}
	want := [3]float64{3, 4, 0}
	if got != want {
		t.Errorf("Coord3([3 4]) = %v, want %v", got, want)
	}
}

func TestResolveVecPropagatesError(t *testing.T) {
	p := Params{}
	_, err := p.ResolveVec(Vec{Num(1), Ref("nope")})
	if !IsKind(err, ErrUnknownParameter) {
		t.Errorf("ResolveVec error = %v, want kind unknown_parameter", err)
	}
}
