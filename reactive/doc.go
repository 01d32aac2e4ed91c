// Package reactive implements a small dependency-tracking graph of cells.
//
// A Cell holds either a stored value or a definition — a pure function
// that computes a value from other cells. Reading a cell's value
// automatically records an edge to whichever cell is currently being
// evaluated; writing a cell ripples staleness to every cell that
// transitively depends on it. Stale cells are recomputed lazily on read,
// or eagerly on a background scheduler when marked eager.
package reactive
