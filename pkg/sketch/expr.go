package sketch

import "strconv"

// Params is the document's named parameter table. Resolution is pure
// substitution: a value is either a literal or a single named reference.
// Arithmetic expressions are deliberately not supported.
type Params map[string]float64

// Resolve returns the numeric value of v. Literals resolve to themselves.
// A "$name" reference resolves through the table; a bare numeric string
// parses as a literal. Anything else fails with an unknown_parameter
// error naming the missing symbol.
func (p Params) Resolve(v Value) (float64, error) {
	if !v.set {
		return 0, nil
	}
	if !v.isRef {
		return v.num, nil
	}
	name := v.expr
	if len(name) > 0 && name[0] == '$' {
		name = name[1:]
	}
	if val, ok := p[name]; ok {
		return val, nil
	}
	if f, err := strconv.ParseFloat(v.expr, 64); err == nil {
		return f, nil
	}
	return 0, errUnknownParameter(name)
}

// ResolveVec resolves every component of a coordinate vector.
func (p Params) ResolveVec(vec Vec) ([]float64, error) {
	out := make([]float64, len(vec))
	for i, v := range vec {
		f, err := p.Resolve(v)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// Coord3 resolves a coordinate vector to exactly three components,
// zero-filling a missing z.
func (p Params) Coord3(vec Vec) ([3]float64, error) {
	var out [3]float64
	vals, err := p.ResolveVec(vec)
	if err != nil {
		return out, err
	}
	for i := 0; i < len(vals) && i < 3; i++ {
		out[i] = vals[i]
	}
	return out, nil
}
