// Package bundle wraps a plain map[string]any or []any as a tree of
// reactive cells: every member is backed by its own *reactive.Cell[any],
// nested maps/slices are promoted into nested bundles, and an aggregate
// cell ripples whenever the bundle's own shape changes (a member added,
// removed, or replaced).
//
// Go has no interception hooks equivalent to a host object's get/set
// traps, so the proxy-style surface is rendered here as an explicit method
// DSL (Get/Set/Delete/Has for objects, At/Push/Pop/... for arrays) rather
// than field access.
package bundle
