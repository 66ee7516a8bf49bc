// Package solver defines the flat numeric system the compiler lowers
// documents into: free parameters, typed entities over those parameters,
// and typed constraints over those entities. The representation mirrors
// SolveSpace's solver tables, so a system can be handed either to the
// native libslvs binding (pkg/solver/slvs, behind the slvs build tag) or
// to the pure-Go Gauss-Newton backend (pkg/solver/gaussnewton) without
// translation.
package solver
