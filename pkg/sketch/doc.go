// Package sketch defines the declarative constraint-document model:
// entities (points, lines, circles, arcs, planes, gears), constraints
// between them, named parameters with $name substitution, and the
// structural validation run before any lowering or solving.
package sketch
