package engine

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/snoble/slvsx/pkg/sketch"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms script source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: equal-length -> equal_length
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpEntityRef wraps a declared entity id so builtins can accept either a
// bound reference or a plain id string.
type sexpEntityRef struct {
	id   string
	kind sketch.EntityKind
}

func (r *sexpEntityRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %q)", r.kind, r.id)
}
func (r *sexpEntityRef) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
// Keyword names are normalized to underscore form so :pressure-angle and
// :pressure_angle select the same argument.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			name = strings.ReplaceAll(name, "-", "_")
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value; treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_x) and plain strings ("x").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toBool extracts a bool from a SexpBool.
func toBool(s zygo.Sexp) (bool, error) {
	if b, ok := s.(*zygo.SexpBool); ok {
		return b.Val, nil
	}
	return false, fmt.Errorf("expected bool, got %T (%s)", s, s.SexpString(nil))
}

// toValue converts a numeric Sexp or "$name" parameter reference into a
// sketch.Value, matching the document wire form.
func toValue(s zygo.Sexp) (sketch.Value, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return sketch.Num(float64(v.Val)), nil
	case *zygo.SexpFloat:
		return sketch.Num(v.Val), nil
	case *zygo.SexpStr:
		if strings.HasPrefix(v.S, "$") {
			return sketch.Ref(v.S[1:]), nil
		}
	}
	return sketch.Value{}, fmt.Errorf("expected number or \"$param\" reference, got %T (%s)", s, s.SexpString(nil))
}

// toVec converts a Lisp list or array of values into a sketch.Vec.
func toVec(s zygo.Sexp) (sketch.Vec, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	vec := make(sketch.Vec, 0, len(items))
	for i, item := range items {
		v, err := toValue(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		vec = append(vec, v)
	}
	return vec, nil
}

// toEntityID extracts an entity id from either a bound reference or a
// plain string.
func toEntityID(s zygo.Sexp) (string, error) {
	switch v := s.(type) {
	case *sexpEntityRef:
		return v.id, nil
	case *zygo.SexpStr:
		if !strings.HasPrefix(v.S, kwPrefix) {
			return v.S, nil
		}
	}
	return "", fmt.Errorf("expected entity reference, got %T (%s)", s, s.SexpString(nil))
}

// toCenter accepts either coordinates (list/array) or a point reference.
func toCenter(s zygo.Sexp) (sketch.CenterRef, error) {
	switch v := s.(type) {
	case *sexpEntityRef:
		return sketch.CenterRef{Ref: v.id}, nil
	case *zygo.SexpStr:
		if !strings.HasPrefix(v.S, kwPrefix) {
			return sketch.CenterRef{Ref: v.S}, nil
		}
	case *zygo.SexpPair, *zygo.SexpArray:
		vec, err := toVec(s)
		if err != nil {
			return sketch.CenterRef{}, err
		}
		return sketch.CenterRef{At: vec}, nil
	}
	return sketch.CenterRef{}, fmt.Errorf("expected coordinates or point reference, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Document builder
// ---------------------------------------------------------------------------

// docBuilder accumulates the document a script declares. Builtins append to
// it during evaluation; finish applies defaults and hands it off. Ids are
// taken verbatim from the script, so repeated evaluation of the same source
// yields the same document.
type docBuilder struct {
	doc sketch.Document
}

func newDocBuilder() *docBuilder {
	return &docBuilder{doc: sketch.Document{Schema: sketch.SchemaVersion}}
}

func (b *docBuilder) addEntity(e sketch.Entity) *sexpEntityRef {
	b.doc.Entities = append(b.doc.Entities, e)
	return &sexpEntityRef{id: e.ID, kind: e.Kind}
}

func (b *docBuilder) addConstraint(c sketch.Constraint) {
	b.doc.Constraints = append(b.doc.Constraints, c)
}

func (b *docBuilder) setParam(name string, value float64) {
	if b.doc.Parameters == nil {
		b.doc.Parameters = sketch.Params{}
	}
	b.doc.Parameters[name] = value
}

func (b *docBuilder) finish() *sketch.Document {
	doc := b.doc
	sketch.ApplyDefaults(&doc)
	return &doc
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the document DSL builtins into a zygomys
// environment. The builtins populate the provided builder during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *docBuilder) {

	// -----------------------------------------------------------------------
	// (units "mm") or (units :in)
	// -----------------------------------------------------------------------
	env.AddFunction("units", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("units requires a unit label")
		}
		u, err := toKeywordString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("units: %w", err)
		}
		b.doc.Units = u
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (param "width" 100)
	// -----------------------------------------------------------------------
	env.AddFunction("param", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 2 {
			return zygo.SexpNull, fmt.Errorf("param requires a name and a value")
		}
		pname, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("param: name: %w", err)
		}
		val, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("param: %s: %w", pname, err)
		}
		b.setParam(pname, val)
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (point "a" 0 0 0) or (point "a" :at [0 0 "$h"])
	// -----------------------------------------------------------------------
	env.AddFunction("point", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		id, at, err := idAndCoords(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("point: %w", err)
		}
		return b.addEntity(sketch.Entity{ID: id, Kind: sketch.KindPoint, At: at}), nil
	})

	// -----------------------------------------------------------------------
	// (point2d "a" 10 20 :workplane "xy")
	// -----------------------------------------------------------------------
	env.AddFunction("point2d", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		id, at, err := idAndCoords(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("point2d: %w", err)
		}
		e := sketch.Entity{ID: id, Kind: sketch.KindPoint2D, At: at}
		if v, ok := pa.kw["workplane"]; ok {
			wp, err := toEntityID(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("point2d: workplane: %w", err)
			}
			e.Workplane = wp
		}
		return b.addEntity(e), nil
	})

	// -----------------------------------------------------------------------
	// (line "ab" a b)
	// -----------------------------------------------------------------------
	env.AddFunction("line", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 3 {
			return zygo.SexpNull, fmt.Errorf("line requires an id and two point references")
		}
		id, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("line: id: %w", err)
		}
		p1, err := toEntityID(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("line: p1: %w", err)
		}
		p2, err := toEntityID(pa.positional[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("line: p2: %w", err)
		}
		e := sketch.Entity{ID: id, Kind: sketch.KindLine, P1: p1, P2: p2}
		if v, ok := pa.kw["workplane"]; ok {
			wp, err := toEntityID(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("line: workplane: %w", err)
			}
			e.Workplane = wp
		}
		return b.addEntity(e), nil
	})

	// -----------------------------------------------------------------------
	// (circle "c1" :center [0 0 0] :diameter 20)
	// (circle "c2" :center ctr :diameter "$d" :normal [0 0 1])
	// -----------------------------------------------------------------------
	env.AddFunction("circle", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("circle requires an id")
		}
		id, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("circle: id: %w", err)
		}
		e := sketch.Entity{ID: id, Kind: sketch.KindCircle}
		if v, ok := pa.kw["center"]; ok {
			ctr, err := toCenter(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("circle: center: %w", err)
			}
			e.Center = ctr
		}
		if v, ok := pa.kw["diameter"]; ok {
			d, err := toValue(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("circle: diameter: %w", err)
			}
			e.Diameter = d
		}
		if v, ok := pa.kw["normal"]; ok {
			n, err := toVec(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("circle: normal: %w", err)
			}
			e.Normal = n
		}
		return b.addEntity(e), nil
	})

	// -----------------------------------------------------------------------
	// (arc "a1" :center [0 0 0] :start p1 :end p2)
	// -----------------------------------------------------------------------
	env.AddFunction("arc", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("arc requires an id")
		}
		id, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("arc: id: %w", err)
		}
		e := sketch.Entity{ID: id, Kind: sketch.KindArc}
		if v, ok := pa.kw["center"]; ok {
			ctr, err := toCenter(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("arc: center: %w", err)
			}
			e.Center = ctr
		}
		if v, ok := pa.kw["start"]; ok {
			p, err := toEntityID(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("arc: start: %w", err)
			}
			e.Start = p
		}
		if v, ok := pa.kw["end"]; ok {
			p, err := toEntityID(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("arc: end: %w", err)
			}
			e.End = p
		}
		if v, ok := pa.kw["normal"]; ok {
			n, err := toVec(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("arc: normal: %w", err)
			}
			e.Normal = n
		}
		return b.addEntity(e), nil
	})

	// -----------------------------------------------------------------------
	// (plane "xy" :origin [0 0 0] :normal [0 0 1])
	// -----------------------------------------------------------------------
	env.AddFunction("plane", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("plane requires an id")
		}
		id, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("plane: id: %w", err)
		}
		e := sketch.Entity{ID: id, Kind: sketch.KindPlane}
		if v, ok := pa.kw["origin"]; ok {
			o, err := toVec(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("plane: origin: %w", err)
			}
			e.Origin = o
		}
		if v, ok := pa.kw["normal"]; ok {
			n, err := toVec(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("plane: normal: %w", err)
			}
			e.Normal = n
		}
		return b.addEntity(e), nil
	})

	// -----------------------------------------------------------------------
	// (gear "sun" :center [0 0 0] :teeth 20 :module 2
	//             :pressure-angle 20 :phase 0 :internal true)
	// -----------------------------------------------------------------------
	env.AddFunction("gear", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("gear requires an id")
		}
		id, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("gear: id: %w", err)
		}
		e := sketch.Entity{ID: id, Kind: sketch.KindGear}
		if v, ok := pa.kw["center"]; ok {
			ctr, err := toCenter(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("gear: center: %w", err)
			}
			e.Center = ctr
		}
		if v, ok := pa.kw["teeth"]; ok {
			t, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("gear: teeth: %w", err)
			}
			e.Teeth = int(t)
		}
		if v, ok := pa.kw["module"]; ok {
			m, err := toValue(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("gear: module: %w", err)
			}
			e.Module = m
		}
		if v, ok := pa.kw["pressure_angle"]; ok {
			p, err := toValue(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("gear: pressure-angle: %w", err)
			}
			e.PressureAngle = p
		}
		if v, ok := pa.kw["phase"]; ok {
			p, err := toValue(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("gear: phase: %w", err)
			}
			e.Phase = p
		}
		if v, ok := pa.kw["internal"]; ok {
			f, err := toBool(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("gear: internal: %w", err)
			}
			e.Internal = f
		}
		return b.addEntity(e), nil
	})

	registerConstraintBuiltins(env, b)
}

// registerConstraintBuiltins installs the constraint forms. Each builtin
// appends one constraint; the optional :workplane keyword applies to all of
// them and is handled once in the registrar.
func registerConstraintBuiltins(env *zygo.Zlisp, b *docBuilder) {
	register := func(name string, build func(pa kwArgs) (sketch.Constraint, error)) {
		env.AddFunction(name, func(env *zygo.Zlisp, fname string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			c, err := build(pa)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
			}
			if v, ok := pa.kw["workplane"]; ok {
				wp, err := toEntityID(v)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: workplane: %w", name, err)
				}
				c.Workplane = wp
			}
			b.addConstraint(c)
			return zygo.SexpNull, nil
		})
	}

	// (fixed e) pins every coordinate; (fixed e :axis :x) pins only x.
	register("fixed", func(pa kwArgs) (sketch.Constraint, error) {
		if len(pa.positional) < 1 {
			return sketch.Constraint{}, fmt.Errorf("requires an entity reference")
		}
		id, err := toEntityID(pa.positional[0])
		if err != nil {
			return sketch.Constraint{}, err
		}
		c := sketch.Constraint{Kind: sketch.Fixed, Entity: id}
		if v, ok := pa.kw["axis"]; ok {
			axis, err := toKeywordString(v)
			if err != nil {
				return sketch.Constraint{}, fmt.Errorf("axis: %w", err)
			}
			c.Axis = axis
		}
		return c, nil
	})

	// (distance a b 100) and (angle l1 l2 90)
	valued := func(kind sketch.ConstraintKind) func(pa kwArgs) (sketch.Constraint, error) {
		return func(pa kwArgs) (sketch.Constraint, error) {
			if len(pa.positional) < 3 {
				return sketch.Constraint{}, fmt.Errorf("requires two entities and a value")
			}
			a, err := toEntityID(pa.positional[0])
			if err != nil {
				return sketch.Constraint{}, err
			}
			bID, err := toEntityID(pa.positional[1])
			if err != nil {
				return sketch.Constraint{}, err
			}
			v, err := toValue(pa.positional[2])
			if err != nil {
				return sketch.Constraint{}, fmt.Errorf("value: %w", err)
			}
			return sketch.Constraint{Kind: kind, Between: []string{a, bID}, Value: &v}, nil
		}
	}
	register("distance", valued(sketch.Distance))
	register("angle", valued(sketch.Angle))

	// (coincident a b ...), (parallel l1 l2), (equal-length l1 l2 ...)
	listed := func(kind sketch.ConstraintKind, min int) func(pa kwArgs) (sketch.Constraint, error) {
		return func(pa kwArgs) (sketch.Constraint, error) {
			if len(pa.positional) < min {
				return sketch.Constraint{}, fmt.Errorf("requires at least %d entity references", min)
			}
			ids := make([]string, 0, len(pa.positional))
			for i, p := range pa.positional {
				id, err := toEntityID(p)
				if err != nil {
					return sketch.Constraint{}, fmt.Errorf("entity %d: %w", i, err)
				}
				ids = append(ids, id)
			}
			return sketch.Constraint{Kind: kind, Entities: ids}, nil
		}
	}
	register("coincident", listed(sketch.Coincident, 2))
	register("parallel", listed(sketch.Parallel, 2))
	register("equal_length", listed(sketch.EqualLength, 2))

	// (perpendicular l1 l2), (equal-radius c1 c2), (tangent c l),
	// (symmetric-horizontal a b), (symmetric-vertical a b)
	paired := func(kind sketch.ConstraintKind) func(pa kwArgs) (sketch.Constraint, error) {
		return func(pa kwArgs) (sketch.Constraint, error) {
			a, bID, err := twoIDs(pa)
			if err != nil {
				return sketch.Constraint{}, err
			}
			return sketch.Constraint{Kind: kind, A: a, B: bID}, nil
		}
	}
	register("perpendicular", paired(sketch.Perpendicular))
	register("equal_radius", paired(sketch.EqualRadius))
	register("tangent", paired(sketch.Tangent))
	register("symmetric_horizontal", paired(sketch.SymmetricHorizontal))
	register("symmetric_vertical", paired(sketch.SymmetricVertical))

	// (symmetric a b :about axis-line)
	register("symmetric", func(pa kwArgs) (sketch.Constraint, error) {
		a, bID, err := twoIDs(pa)
		if err != nil {
			return sketch.Constraint{}, err
		}
		v, ok := pa.kw["about"]
		if !ok {
			return sketch.Constraint{}, fmt.Errorf("requires an :about axis line")
		}
		about, err := toEntityID(v)
		if err != nil {
			return sketch.Constraint{}, fmt.Errorf("about: %w", err)
		}
		return sketch.Constraint{Kind: sketch.Symmetric, A: a, B: bID, About: about}, nil
	})

	// (horizontal l), (vertical l)
	single := func(kind sketch.ConstraintKind) func(pa kwArgs) (sketch.Constraint, error) {
		return func(pa kwArgs) (sketch.Constraint, error) {
			if len(pa.positional) < 1 {
				return sketch.Constraint{}, fmt.Errorf("requires an entity reference")
			}
			id, err := toEntityID(pa.positional[0])
			if err != nil {
				return sketch.Constraint{}, err
			}
			return sketch.Constraint{Kind: kind, A: id}, nil
		}
	}
	register("horizontal", single(sketch.Horizontal))
	register("vertical", single(sketch.Vertical))

	// (point-on-line p l), (midpoint p l)
	pointLine := func(kind sketch.ConstraintKind) func(pa kwArgs) (sketch.Constraint, error) {
		return func(pa kwArgs) (sketch.Constraint, error) {
			p, l, err := twoIDs(pa)
			if err != nil {
				return sketch.Constraint{}, err
			}
			return sketch.Constraint{Kind: kind, Point: p, Line: l}, nil
		}
	}
	register("point_on_line", pointLine(sketch.PointOnLine))
	register("midpoint", pointLine(sketch.Midpoint))

	// (point-on-circle p c)
	register("point_on_circle", func(pa kwArgs) (sketch.Constraint, error) {
		p, c, err := twoIDs(pa)
		if err != nil {
			return sketch.Constraint{}, err
		}
		return sketch.Constraint{Kind: sketch.PointOnCircle, Point: p, Circle: c}, nil
	})

	// (diameter c 20)
	register("diameter", func(pa kwArgs) (sketch.Constraint, error) {
		if len(pa.positional) < 2 {
			return sketch.Constraint{}, fmt.Errorf("requires a circle reference and a value")
		}
		id, err := toEntityID(pa.positional[0])
		if err != nil {
			return sketch.Constraint{}, err
		}
		v, err := toValue(pa.positional[1])
		if err != nil {
			return sketch.Constraint{}, fmt.Errorf("value: %w", err)
		}
		return sketch.Constraint{Kind: sketch.Diameter, Circle: id, Value: &v}, nil
	})

	// (mesh sun planet1)
	register("mesh", func(pa kwArgs) (sketch.Constraint, error) {
		g1, g2, err := twoIDs(pa)
		if err != nil {
			return sketch.Constraint{}, err
		}
		return sketch.Constraint{Kind: sketch.Mesh, Gear1: g1, Gear2: g2}, nil
	})
}

// twoIDs extracts exactly two leading entity references.
func twoIDs(pa kwArgs) (string, string, error) {
	if len(pa.positional) < 2 {
		return "", "", fmt.Errorf("requires two entity references")
	}
	a, err := toEntityID(pa.positional[0])
	if err != nil {
		return "", "", err
	}
	b, err := toEntityID(pa.positional[1])
	if err != nil {
		return "", "", err
	}
	return a, b, nil
}

// idAndCoords parses the shared point form: a leading id followed by either
// positional coordinates or an :at list.
func idAndCoords(pa kwArgs) (string, sketch.Vec, error) {
	if len(pa.positional) < 1 {
		return "", nil, fmt.Errorf("requires an id")
	}
	id, err := toString(pa.positional[0])
	if err != nil {
		return "", nil, fmt.Errorf("id: %w", err)
	}
	if v, ok := pa.kw["at"]; ok {
		at, err := toVec(v)
		if err != nil {
			return "", nil, fmt.Errorf("at: %w", err)
		}
		return id, at, nil
	}
	at := make(sketch.Vec, 0, len(pa.positional)-1)
	for i, p := range pa.positional[1:] {
		v, err := toValue(p)
		if err != nil {
			return "", nil, fmt.Errorf("coordinate %d: %w", i, err)
		}
		at = append(at, v)
	}
	return id, at, nil
}
