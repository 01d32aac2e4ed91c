package bundle

import (
	"errors"
	"fmt"

	"github.com/cellwire/cellgraph/reactive"
)

// Shape distinguishes the two flavours of bundle: object (keyed) and
// array (ordered, index-addressed).
type Shape int

const (
	ObjectShape Shape = iota
	ArrayShape
)

// ErrWrongShape is returned by an object accessor called on an array
// bundle, or vice versa.
var ErrWrongShape = errors.New("bundle: wrong shape for this accessor")

// ErrIndexRange is returned by an array accessor given an out-of-range
// index.
var ErrIndexRange = errors.New("bundle: index out of range")

// Options configures a new Bundle.
type Options struct {
	// Shallow disables automatic promotion of nested map[string]any/[]any
	// member values into nested bundles: they are stored as plain values
	// instead.
	Shallow bool
}

// Bundle is a reactive proxy over a nested object or array. Every member
// is an independent *reactive.Cell[any]; reading a
// member through Get/At evaluates that cell (and so participates in
// dependency tracking exactly like any other cell read); writing through
// Set/SetAt or a mutating array method assigns into the underlying cell
// and ripples the bundle's aggregate cell.
type Bundle struct {
	rt      *reactive.Runtime
	shallow bool
	shape   Shape

	fields map[string]*reactive.Cell[any]
	elems  []*reactive.Cell[any]

	length    *reactive.Cell[int]
	aggregate *reactive.Cell[int]
}

// New promotes initial (a map[string]any or []any) into a Bundle.
func New(rt *reactive.Runtime, initial any, opts Options) (*Bundle, error) {
	switch v := initial.(type) {
	case map[string]any:
		return newObjectBundle(rt, v, opts)
	case []any:
		return newArrayBundle(rt, v, opts)
	default:
		return nil, fmt.Errorf("bundle: initial value must be map[string]any or []any, got %T", initial)
	}
}

func newObjectBundle(rt *reactive.Runtime, initial map[string]any, opts Options) (*Bundle, error) {
	b := &Bundle{
		rt:        rt,
		shallow:   opts.Shallow,
		shape:     ObjectShape,
		fields:    make(map[string]*reactive.Cell[any], len(initial)),
		aggregate: reactive.New(rt, reactive.Options[int]{Value: 0}),
	}
	for k, v := range initial {
		resolved, err := b.resolveMemberValue(v)
		if err != nil {
			return nil, err
		}
		b.fields[k] = reactive.New(rt, reactive.Options[any]{Value: resolved})
	}
	return b, nil
}

func newArrayBundle(rt *reactive.Runtime, initial []any, opts Options) (*Bundle, error) {
	b := &Bundle{
		rt:        rt,
		shallow:   opts.Shallow,
		shape:     ArrayShape,
		elems:     make([]*reactive.Cell[any], 0, len(initial)),
		aggregate: reactive.New(rt, reactive.Options[int]{Value: 0}),
	}
	for _, v := range initial {
		resolved, err := b.resolveMemberValue(v)
		if err != nil {
			return nil, err
		}
		b.elems = append(b.elems, reactive.New(rt, reactive.Options[any]{Value: resolved}))
	}
	b.length = reactive.New(rt, reactive.Options[int]{Value: len(b.elems)})
	return b, nil
}

// resolveMemberValue implements member promotion: a
// nested map/slice becomes a nested bundle (unless shallow), a value
// that can itself be read reactively is left as-is so the caller can wire
// it as a definition source via Set, everything else is stored verbatim.
func (b *Bundle) resolveMemberValue(v any) (any, error) {
	if b.shallow {
		return v, nil
	}
	switch v.(type) {
	case map[string]any, []any:
		return New(b.rt, v, Options{Shallow: b.shallow})
	default:
		return v, nil
	}
}

// ReactiveKind implements reactive.Kinded, letting reactive.TypeOf and
// reactive.Fv distinguish a bundle from a scalar cell without an import
// cycle.
func (b *Bundle) ReactiveKind() reactive.Kind { return reactive.BundleKind }

// ReactiveSnapshot implements the unexported snapshotter contract that
// reactive.Fv(v, true) relies on.
func (b *Bundle) ReactiveSnapshot() any { return b.Snapshot() }

// Aggregate returns the bundle's aggregate cell (`p.__`): any consumer
// that reads it becomes stale whenever a member is added, removed, or
// replaced.
func (b *Bundle) Aggregate() *reactive.Cell[int] { return b.aggregate }

// Length returns the array bundle's reactive length cell, or nil for an
// object bundle.
func (b *Bundle) Length() *reactive.Cell[int] { return b.length }

// Shape reports whether this is an object or array bundle.
func (b *Bundle) Shape() Shape { return b.shape }

func (b *Bundle) bumpAggregate() {
	b.aggregate.WvFn(func(prev int) int { return prev + 1 })
}

// --- object accessors (p.member / p._ / p.__ / p._bundle()) --------------

// Cell returns the underlying cell for key, and whether it exists. This
// is the `_` operator: p._.member is Cell(member).
func (b *Bundle) Cell(key string) (*reactive.Cell[any], bool) {
	c, ok := b.fields[key]
	return c, ok
}

// Cells returns a snapshot copy of the object bundle's member cells.
func (b *Bundle) Cells() (map[string]*reactive.Cell[any], error) {
	if b.shape != ObjectShape {
		return nil, ErrWrongShape
	}
	out := make(map[string]*reactive.Cell[any], len(b.fields))
	for k, c := range b.fields {
		out[k] = c
	}
	return out, nil
}

// Has reports whether key is a current member of an object bundle.
func (b *Bundle) Has(key string) bool {
	_, ok := b.fields[key]
	return ok
}

// Get reads an object bundle member by key.
func (b *Bundle) Get(key string) (any, error) {
	if b.shape != ObjectShape {
		return nil, ErrWrongShape
	}
	c, ok := b.fields[key]
	if !ok {
		return nil, nil
	}
	return c.Rv()
}

// Set assigns value into the member named key, promoting plain nested
// maps/slices into nested bundles and wiring a reactive.AnyReadable value
// (a Cell or ReadOnlyView) as a tracking definition rather than a
// one-shot copy. A *Bundle value is not AnyReadable and is stored as the
// member's value.
func (b *Bundle) Set(key string, value any) error {
	if b.shape != ObjectShape {
		return ErrWrongShape
	}
	c, existed := b.fields[key]
	if !existed {
		c = reactive.New(b.rt, reactive.Options[any]{Value: nil})
		b.fields[key] = c
	}
	b.assignMember(c, value)
	b.bumpAggregate()
	return nil
}

// Delete removes key from an object bundle and ripples the aggregate
// cell.
func (b *Bundle) Delete(key string) error {
	if b.shape != ObjectShape {
		return ErrWrongShape
	}
	removed, ok := b.fields[key]
	if !ok {
		return nil
	}
	delete(b.fields, key)
	removed.ClearDef()
	b.bumpAggregate()
	return nil
}

// assignMember installs value onto c, either as a tracking definition (if
// value exposes AnyReadable) or, after promotion, as a concrete value.
func (b *Bundle) assignMember(c *reactive.Cell[any], value any) {
	if reader, ok := value.(reactive.AnyReadable); ok {
		c.SetDef(func(any) (any, error) { return reader.ReadAny() })
		return
	}
	resolved, err := b.resolveMemberValue(value)
	if err != nil {
		c.Wv(nil)
		return
	}
	c.Wv(resolved)
}

// Snapshot returns a deep, non-reactive plain-value copy of the bundle
// (`p._bundle()`): nested bundles are recursively flattened back into
// map[string]any / []any, and reads are performed untracked so building a
// snapshot never creates spurious dependency edges.
func (b *Bundle) Snapshot() any {
	return reactive.Untracked(b.rt, func() any { return b.snapshotLocked() })
}

func (b *Bundle) snapshotLocked() any {
	switch b.shape {
	case ArrayShape:
		out := make([]any, len(b.elems))
		for i, c := range b.elems {
			v, _ := c.Rv()
			out[i] = snapshotValue(v)
		}
		return out
	default:
		out := make(map[string]any, len(b.fields))
		for k, c := range b.fields {
			v, _ := c.Rv()
			out[k] = snapshotValue(v)
		}
		return out
	}
}

func snapshotValue(v any) any {
	if nb, ok := v.(*Bundle); ok {
		return nb.snapshotLocked()
	}
	return v
}
