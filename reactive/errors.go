package reactive

import "errors"

// ErrSelfReference is cached on a Cell whose definition reads itself,
// directly or transitively, during its own evaluation.
var ErrSelfReference = errors.New("reactive: self-reference detected")
