package bundle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cellwire/cellgraph/reactive"
)

// At reads an array bundle member by index.
func (b *Bundle) At(i int) (any, error) {
	if b.shape != ArrayShape {
		return nil, ErrWrongShape
	}
	if i < 0 || i >= len(b.elems) {
		return nil, ErrIndexRange
	}
	return b.elems[i].Rv()
}

// SetAt assigns value into an existing array bundle index, per the same
// promotion/wiring rule as Set.
func (b *Bundle) SetAt(i int, value any) error {
	if b.shape != ArrayShape {
		return ErrWrongShape
	}
	if i < 0 || i >= len(b.elems) {
		return ErrIndexRange
	}
	b.assignMember(b.elems[i], value)
	b.bumpAggregate()
	return nil
}

// Len returns the array bundle's current length as a plain int, without
// going through the reactive length cell (use Length() to track it).
func (b *Bundle) Len() int { return len(b.elems) }

// CellAt returns the underlying cell at index i, and whether it exists.
func (b *Bundle) CellAt(i int) (*reactive.Cell[any], bool) {
	if i < 0 || i >= len(b.elems) {
		return nil, false
	}
	return b.elems[i], true
}

// CellSlice returns a snapshot copy of the array bundle's member cells.
func (b *Bundle) CellSlice() ([]*reactive.Cell[any], error) {
	if b.shape != ArrayShape {
		return nil, ErrWrongShape
	}
	out := make([]*reactive.Cell[any], len(b.elems))
	copy(out, b.elems)
	return out, nil
}

func (b *Bundle) newMemberCell(value any) *reactive.Cell[any] {
	resolved, err := b.resolveMemberValue(value)
	if err != nil {
		resolved = nil
	}
	return reactive.New(b.rt, reactive.Options[any]{Value: resolved})
}

func (b *Bundle) syncLengthLocked() {
	if b.length != nil {
		b.length.Wv(len(b.elems))
	}
}

// --- mutating operations, each run inside a single batch so the aggregate
// and length cells only ripple once per call ------------------------------

// Push appends values to an array bundle and returns the new length.
func (b *Bundle) Push(values ...any) (int, error) {
	if b.shape != ArrayShape {
		return 0, ErrWrongShape
	}
	return reactive.Batch(b.rt, func() int {
		for _, v := range values {
			b.elems = append(b.elems, b.newMemberCell(v))
		}
		b.syncLengthLocked()
		b.bumpAggregate()
		return len(b.elems)
	}), nil
}

// Pop removes and returns the last element of an array bundle.
func (b *Bundle) Pop() (any, error) {
	if b.shape != ArrayShape {
		return nil, ErrWrongShape
	}
	if len(b.elems) == 0 {
		return nil, nil
	}
	return reactive.Batch(b.rt, func() any {
		last := b.elems[len(b.elems)-1]
		b.elems = b.elems[:len(b.elems)-1]
		b.syncLengthLocked()
		b.bumpAggregate()
		v, _ := last.Rv()
		last.ClearDef()
		return v
	}), nil
}

// Shift removes and returns the first element of an array bundle.
func (b *Bundle) Shift() (any, error) {
	if b.shape != ArrayShape {
		return nil, ErrWrongShape
	}
	if len(b.elems) == 0 {
		return nil, nil
	}
	return reactive.Batch(b.rt, func() any {
		first := b.elems[0]
		b.elems = b.elems[1:]
		b.syncLengthLocked()
		b.bumpAggregate()
		v, _ := first.Rv()
		first.ClearDef()
		return v
	}), nil
}

// Unshift prepends values to an array bundle and returns the new length.
func (b *Bundle) Unshift(values ...any) (int, error) {
	if b.shape != ArrayShape {
		return 0, ErrWrongShape
	}
	return reactive.Batch(b.rt, func() int {
		prefix := make([]*reactive.Cell[any], len(values))
		for i, v := range values {
			prefix[i] = b.newMemberCell(v)
		}
		b.elems = append(prefix, b.elems...)
		b.syncLengthLocked()
		b.bumpAggregate()
		return len(b.elems)
	}), nil
}

// Splice removes deleteCount elements starting at start and inserts
// values in their place, returning the snapshotted values removed.
func (b *Bundle) Splice(start, deleteCount int, values ...any) ([]any, error) {
	if b.shape != ArrayShape {
		return nil, ErrWrongShape
	}
	return reactive.Batch(b.rt, func() []any {
		start, deleteCount = clampSplice(len(b.elems), start, deleteCount)
		removed := make([]any, deleteCount)
		removedCells := make([]*reactive.Cell[any], deleteCount)
		for i := 0; i < deleteCount; i++ {
			c := b.elems[start+i]
			v, _ := c.Rv()
			removed[i] = v
			removedCells[i] = c
		}
		inserted := make([]*reactive.Cell[any], len(values))
		for i, v := range values {
			inserted[i] = b.newMemberCell(v)
		}
		tail := append([]*reactive.Cell[any]{}, b.elems[start+deleteCount:]...)
		b.elems = append(b.elems[:start], append(inserted, tail...)...)
		for _, c := range removedCells {
			c.ClearDef()
		}
		b.syncLengthLocked()
		b.bumpAggregate()
		return removed
	}), nil
}

func clampSplice(n, start, deleteCount int) (int, int) {
	if start < 0 {
		start += n
		if start < 0 {
			start = 0
		}
	}
	if start > n {
		start = n
	}
	if deleteCount < 0 {
		deleteCount = 0
	}
	if start+deleteCount > n {
		deleteCount = n - start
	}
	return start, deleteCount
}

// Sort reorders an array bundle's elements in place per less.
func (b *Bundle) Sort(less func(a, b any) bool) error {
	if b.shape != ArrayShape {
		return ErrWrongShape
	}
	reactive.BatchVoid(b.rt, func() {
		values := make([]any, len(b.elems))
		for i, c := range b.elems {
			values[i], _ = c.Rv()
		}
		sort.SliceStable(values, func(i, j int) bool { return less(values[i], values[j]) })
		for i, v := range values {
			b.elems[i].Wv(v)
		}
		b.bumpAggregate()
	})
	return nil
}

// --- non-mutating operations: each returns a new Bundle -------------------

func (b *Bundle) snapshotValues() ([]any, error) {
	if b.shape != ArrayShape {
		return nil, ErrWrongShape
	}
	out := make([]any, len(b.elems))
	for i, c := range b.elems {
		v, err := c.Rv()
		if err != nil {
			return nil, err
		}
		out[i] = snapshotValue(v)
	}
	return out, nil
}

func (b *Bundle) fromValues(values []any) (*Bundle, error) {
	return New(b.rt, values, Options{Shallow: b.shallow})
}

// Map produces a new array bundle of fn applied to each element.
func (b *Bundle) Map(fn func(v any, i int) any) (*Bundle, error) {
	values, err := b.snapshotValues()
	if err != nil {
		return nil, err
	}
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = fn(v, i)
	}
	return b.fromValues(out)
}

// Filter produces a new array bundle of the elements for which fn is
// true.
func (b *Bundle) Filter(fn func(v any, i int) bool) (*Bundle, error) {
	values, err := b.snapshotValues()
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(values))
	for i, v := range values {
		if fn(v, i) {
			out = append(out, v)
		}
	}
	return b.fromValues(out)
}

// Concat produces a new array bundle with others' elements appended.
func (b *Bundle) Concat(others ...*Bundle) (*Bundle, error) {
	values, err := b.snapshotValues()
	if err != nil {
		return nil, err
	}
	for _, o := range others {
		ov, err := o.snapshotValues()
		if err != nil {
			return nil, err
		}
		values = append(values, ov...)
	}
	return b.fromValues(values)
}

// Flat flattens nested array bundles up to depth levels deep into a new
// array bundle.
func (b *Bundle) Flat(depth int) (*Bundle, error) {
	values, err := b.snapshotValues()
	if err != nil {
		return nil, err
	}
	return b.fromValues(flattenValues(values, depth))
}

func flattenValues(values []any, depth int) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		if depth > 0 {
			if nested, ok := v.([]any); ok {
				out = append(out, flattenValues(nested, depth-1)...)
				continue
			}
		}
		out = append(out, v)
	}
	return out
}

// FlatMap applies fn to each element and flattens one level of any
// []any results into a new array bundle.
func (b *Bundle) FlatMap(fn func(v any, i int) any) (*Bundle, error) {
	values, err := b.snapshotValues()
	if err != nil {
		return nil, err
	}
	mapped := make([]any, len(values))
	for i, v := range values {
		mapped[i] = fn(v, i)
	}
	return b.fromValues(flattenValues(mapped, 1))
}

// Slice produces a new array bundle over [start, end) of this one's
// current snapshotted values.
func (b *Bundle) Slice(start, end int) (*Bundle, error) {
	values, err := b.snapshotValues()
	if err != nil {
		return nil, err
	}
	n := len(values)
	start, _ = clampSplice(n, start, 0)
	if end < 0 {
		end += n
	}
	if end > n {
		end = n
	}
	if end < start {
		end = start
	}
	return b.fromValues(values[start:end])
}

// Join concatenates the string representation of every element with sep.
func (b *Bundle) Join(sep string) (string, error) {
	values, err := b.snapshotValues()
	if err != nil {
		return "", err
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = stringifyValue(v)
	}
	return strings.Join(parts, sep), nil
}

func stringifyValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if str, ok := v.(interface{ String() string }); ok {
		return str.String()
	}
	return fmt.Sprintf("%v", v)
}

// ToReversed produces a new array bundle with elements in reverse order.
func (b *Bundle) ToReversed() (*Bundle, error) {
	values, err := b.snapshotValues()
	if err != nil {
		return nil, err
	}
	out := make([]any, len(values))
	for i, v := range values {
		out[len(values)-1-i] = v
	}
	return b.fromValues(out)
}

// ToSorted produces a new array bundle sorted per less, leaving this one
// untouched.
func (b *Bundle) ToSorted(less func(a, b any) bool) (*Bundle, error) {
	values, err := b.snapshotValues()
	if err != nil {
		return nil, err
	}
	out := append([]any{}, values...)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return b.fromValues(out)
}

// ToSpliced produces a new array bundle with the splice applied, leaving
// this one untouched.
func (b *Bundle) ToSpliced(start, deleteCount int, values ...any) (*Bundle, error) {
	snap, err := b.snapshotValues()
	if err != nil {
		return nil, err
	}
	start, deleteCount = clampSplice(len(snap), start, deleteCount)
	out := append([]any{}, snap[:start]...)
	out = append(out, values...)
	out = append(out, snap[start+deleteCount:]...)
	return b.fromValues(out)
}
