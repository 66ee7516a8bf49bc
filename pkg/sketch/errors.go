package sketch

import (
	"errors"
	"fmt"
)

// ErrorKind classifies document errors. All of these are detected before
// any solver invocation; solver-side failures are reported as a result
// status, not as errors.
type ErrorKind int

const (
	ErrUnsupportedSchema ErrorKind = iota
	ErrUnknownParameter
	ErrUnresolvedReference
	ErrUnknownEntity
	ErrWorkplaneRequired
	ErrIncompatibleGearMesh
	ErrUnsupportedVariant
	ErrInvalidDocument
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnsupportedSchema:
		return "unsupported_schema"
	case ErrUnknownParameter:
		return "unknown_parameter"
	case ErrUnresolvedReference:
		return "unresolved_reference"
	case ErrUnknownEntity:
		return "unknown_entity"
	case ErrWorkplaneRequired:
		return "workplane_required"
	case ErrIncompatibleGearMesh:
		return "incompatible_gear_mesh"
	case ErrUnsupportedVariant:
		return "unsupported_variant"
	case ErrInvalidDocument:
		return "invalid_document"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is a structured document error naming the offending logical id
// and field where known.
type Error struct {
	Kind    ErrorKind
	ID      string // logical entity/constraint id, if any
	Field   string // offending field, if any
	Ref     string // missing reference or parameter name, if any
	Message string
}

func (e *Error) Error() string {
	s := "[" + e.Kind.String() + "]"
	if e.ID != "" {
		s += " " + e.ID
		if e.Field != "" {
			s += "." + e.Field
		}
		s += ":"
	} else if e.Field != "" {
		s += " " + e.Field + ":"
	}
	s += " " + e.Message
	return s
}

// IsKind reports whether err is (or wraps) a sketch Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

func errUnknownParameter(name string) *Error {
	return &Error{
		Kind:    ErrUnknownParameter,
		Ref:     name,
		Message: fmt.Sprintf("parameter %q is not defined", name),
	}
}

func errUnresolvedReference(id, field, ref string) *Error {
	return &Error{
		Kind:    ErrUnresolvedReference,
		ID:      id,
		Field:   field,
		Ref:     ref,
		Message: fmt.Sprintf("reference %q does not name a declared entity", ref),
	}
}
