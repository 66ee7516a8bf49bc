// Package compile turns a validated document into a lowered solver
// system, orchestrates the solve, and decodes the solved params back
// into document-shaped geometry.
//
// Lowering runs in two entity passes (param-owning entities first, then
// referencing entities) followed by a constraint pass, so document order
// never matters for correctness but fully determines handle numbering.
package compile
