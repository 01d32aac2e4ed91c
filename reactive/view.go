package reactive

import "fmt"

// ReadOnlyView is a frozen projection of a Cell: it exposes the value and
// getter but no mutator. It shares its source Cell's lifetime and
// identity (Cell.ReadOnly always returns the same *ReadOnlyView).
type ReadOnlyView[T any] struct {
	c *Cell[T]
}

// Rv delegates to the source Cell's Rv.
func (v *ReadOnlyView[T]) Rv() (T, error) { return v.c.Rv() }

// Getter returns the same cached closure as the source Cell's Getter.
func (v *ReadOnlyView[T]) Getter() func() (T, error) { return v.c.Getter() }

// Err returns the source Cell's cached error.
func (v *ReadOnlyView[T]) Err() error { return v.c.Err() }

// IsReadOnly is always true for a view.
func (v *ReadOnlyView[T]) IsReadOnly() bool { return true }

// ReactiveKind implements Kinded.
func (v *ReadOnlyView[T]) ReactiveKind() Kind { return CellKind }

func (v *ReadOnlyView[T]) readUntyped() (any, error) { return v.c.readUntyped() }

// ReadAny implements AnyReadable.
func (v *ReadOnlyView[T]) ReadAny() (any, error) { return v.c.ReadAny() }

func (v *ReadOnlyView[T]) String() string {
	val, err := v.Rv()
	if err != nil {
		return fmt.Sprintf("<error: %v>", err)
	}
	return fmt.Sprintf("%v", val)
}
