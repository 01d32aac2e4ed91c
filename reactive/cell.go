package reactive

import (
	"fmt"
	"reflect"

	mapset "github.com/deckarep/golang-set/v2"
)

// DefinitionFunc computes a Cell's value from its own previous value,
// reading whatever other cells it needs along the way (those reads are
// what the tracker turns into provider/consumer edges). An error return
// is cached on the Cell and surfaced to every subsequent reader until the
// definition is reassigned.
type DefinitionFunc[T any] func(prev T) (T, error)

// CompareFunc decides whether assigning newValue in place of oldValue is
// an observable change. The default is reflect.DeepEqual-based strict
// inequality.
type CompareFunc[T any] func(oldValue, newValue T) bool

// Compare wraps either a CompareFunc or a constant boolean. A constant
// true always notifies consumers; a constant false never does, no matter
// what reflect.DeepEqual would say.
type Compare[T any] struct {
	fn       CompareFunc[T]
	isConst  bool
	constVal bool
}

// CompareWith wraps a custom comparator.
func CompareWith[T any](fn CompareFunc[T]) Compare[T] {
	return Compare[T]{fn: fn}
}

// CompareConst forces (or forbids) notification regardless of value.
func CompareConst[T any](always bool) Compare[T] {
	return Compare[T]{isConst: true, constVal: always}
}

func (c Compare[T]) changed(old, next T) bool {
	if c.isConst {
		return c.constVal
	}
	if c.fn != nil {
		return c.fn(old, next)
	}
	return !reflect.DeepEqual(old, next)
}

// Options configures a new Cell. Exactly one of Value/Def/FromCell should
// be meaningful; Def takes precedence over Value if both are set, and
// FromCell takes precedence over Def.
type Options[T any] struct {
	Value    T
	Def      DefinitionFunc[T]
	FromCell *Cell[T]
	Eager    bool
	Compare  *Compare[T]
}

// Cell is one reactive node: a stored value or a definition, the set of
// cells it read during its last evaluation (providers), the set of cells
// that read it during theirs (consumers), and a tri-state readiness.
type Cell[T any] struct {
	rt *Runtime

	value T
	err   error
	def   DefinitionFunc[T]

	compare Compare[T]
	eager   bool

	providers mapset.Set[node]
	consumers mapset.Set[node]

	state      Readiness
	evaluating bool

	tier         int
	scheduled    bool

	getterFn func() (T, error)
	setterFn func(T)
	roView   *ReadOnlyView[T]
}

// New creates a Cell on rt per opts.
func New[T any](rt *Runtime, opts Options[T]) *Cell[T] {
	c := &Cell[T]{
		rt:        rt,
		providers: mapset.NewThreadUnsafeSet[node](),
		consumers: mapset.NewThreadUnsafeSet[node](),
		state:     Ready,
	}
	if opts.Compare != nil {
		c.compare = *opts.Compare
	}
	c.eager = opts.Eager

	rt.mu.Lock()
	defer rt.mu.Unlock()

	switch {
	case opts.FromCell != nil:
		c.installDefFromCell(opts.FromCell)
	case opts.Def != nil:
		c.def = opts.Def
		c.state = Stale
		if c.eager {
			rt.queueEval(c, 1)
		}
	default:
		c.value = opts.Value
		c.state = Ready
	}
	return c
}

// --- node interface ------------------------------------------------------

func (c *Cell[T]) readiness() Readiness      { return c.state }
func (c *Cell[T]) isEager() bool             { return c.eager }
func (c *Cell[T]) hasConsumers() bool        { return c.consumers.Cardinality() > 0 }
func (c *Cell[T]) addProviderNode(n node)    { c.providers.Add(n) }
func (c *Cell[T]) addConsumerNode(n node)    { c.consumers.Add(n) }
func (c *Cell[T]) removeConsumerNode(n node) { c.consumers.Remove(n) }

func (c *Cell[T]) detachProviders() {
	for p := range c.providers.Iter() {
		p.removeConsumerNode(c)
	}
	c.providers.Clear()
}

func (c *Cell[T]) tierState() (int, bool)        { return c.tier, c.scheduled }
func (c *Cell[T]) setTierState(tier int, sch bool) { c.tier, c.scheduled = tier, sch }

// resolveNode must be called WITHOUT rt.mu held: it may invoke a user
// definition function, which itself calls Rv() on other cells and must be
// able to acquire rt.mu again on the way in.
func (c *Cell[T]) resolveNode() {
	_, _ = c.Rv()
}

func (c *Cell[T]) rippleNode(distance int) { c.ripple(distance) }

// --- reading ---------------------------------------------------------------

// Rv reads the Cell's value: returns the stored value, evaluates the
// definition (recording provider/consumer edges as it goes), or returns
// the cached error from the last failed evaluation.
//
// rt.mu is held only for the bookkeeping segments (dequeue, edge capture,
// readiness transitions) and is deliberately released before invoking any
// user-supplied definition function, so that the nested Rv() calls a
// definition makes on its own providers can acquire the (non-reentrant)
// mutex in turn. See DESIGN.md for the concurrency tradeoff this implies.
func (c *Cell[T]) Rv() (T, error) {
	c.rt.mu.Lock()
	c.rt.dequeue(c)
	c.rt.trackEdge(c)

	if c.state == MaybeStale {
		providers := make([]node, 0, c.providers.Cardinality())
		for p := range c.providers.Iter() {
			providers = append(providers, p)
		}
		c.rt.mu.Unlock()
		for _, p := range providers {
			p.resolveNode()
		}
		c.rt.mu.Lock()
		if c.state != Stale {
			c.state = Ready
		}
	}

	if c.state == Stale {
		c.rt.mu.Unlock()
		return c.recompute()
	}

	defer c.rt.mu.Unlock()
	if c.err != nil {
		var zero T
		return zero, c.err
	}
	return c.value, nil
}

func (c *Cell[T]) readUntyped() (any, error) {
	return c.Rv()
}

// ReadAny reads the cell's value boxed as any, implementing AnyReadable so
// a caller that only knows it holds "some reactive cell" (such as a
// bundle member binding to an external cell) can read it without knowing T.
func (c *Cell[T]) ReadAny() (any, error) {
	v, err := c.Rv()
	return v, err
}

// recompute must be called with rt.mu NOT held.
func (c *Cell[T]) recompute() (T, error) {
	c.rt.mu.Lock()

	if c.evaluating {
		c.err = ErrSelfReference
		c.state = Ready
		c.rt.mu.Unlock()
		var zero T
		return zero, ErrSelfReference
	}
	if c.def == nil {
		// No definition: nothing to recompute, just surface the stored
		// value (can happen if SetDef was given a nil definition, which
		// marks the cell stale).
		c.state = Ready
		v, err := c.value, c.err
		c.rt.mu.Unlock()
		return v, err
	}

	c.detachProviders()

	prevEvaluator := c.rt.currentEvaluator
	c.rt.currentEvaluator = c
	c.evaluating = true
	prevValue := c.value
	c.rt.mu.Unlock()

	next, defErr := c.def(prevValue)

	c.rt.mu.Lock()
	c.evaluating = false
	c.rt.currentEvaluator = prevEvaluator

	if defErr != nil {
		c.err = defErr
		c.state = Ready
		c.ripple(0)
		notify := c.eager && !c.hasConsumers() && c.rt.OnError != nil
		c.rt.mu.Unlock()
		if notify {
			c.rt.OnError(c, defErr)
		}
		var zero T
		return zero, defErr
	}

	c.setNotifyLocked(next)
	val := c.value
	c.rt.mu.Unlock()
	return val, nil
}

// --- writing -----------------------------------------------------------

// Wv assigns a concrete value, clearing any existing definition and
// detaching all providers.
func (c *Cell[T]) Wv(v T) {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	c.clearDefLocked()
	c.setNotifyLocked(v)
}

// WvFn assigns the result of fn applied to the current value (reading it
// untracked so that assigning from a derived value doesn't itself create
// a spurious dependency), clearing any existing definition.
func (c *Cell[T]) WvFn(fn func(prev T) T) {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	prev := c.value
	c.clearDefLocked()
	c.setNotifyLocked(fn(prev))
}

func (c *Cell[T]) clearDefLocked() {
	if c.def != nil {
		c.detachProviders()
		c.def = nil
	}
}

func (c *Cell[T]) setNotifyLocked(v T) {
	changed := c.compare.changed(c.value, v)
	c.value = v
	c.state = Ready
	c.err = nil
	if changed {
		c.ripple(0)
	}
}

// ripple propagates staleness starting at this cell with the given
// distance and enqueues the cell if appropriate: a distance of 0 means the
// cell's own value just changed, 1 means an immediate provider changed, and
// 2+ means a more distant provider changed (downgrading a Ready consumer to
// MaybeStale rather than Stale, so it can skip recomputation entirely if
// none of its providers actually produced a new value).
func (c *Cell[T]) ripple(distance int) {
	propagate := distance == 0

	switch {
	case distance == 0:
		// our own value changed: unconditional propagation, state stays Ready.
	case distance == 1:
		if c.state != Stale {
			wasReady := c.state == Ready
			c.state = Stale
			propagate = wasReady
		}
	default:
		if c.state == Ready {
			c.state = MaybeStale
			propagate = true
		}
	}

	if propagate {
		next := distance + 1
		for cons := range c.consumers.Iter() {
			cons.rippleNode(next)
		}
	}

	c.rt.queueEval(c, distance)
}

// --- definition / chainable mutators ------------------------------------

// SetDef installs fn as the Cell's definition and marks the cell stale,
// scheduling it if it is eager or has consumers. The stored value is kept
// and passed to fn as prev when the cell next recomputes.
func (c *Cell[T]) SetDef(fn DefinitionFunc[T]) *Cell[T] {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	c.detachProviders()
	c.def = fn
	c.err = nil
	c.ripple(1)
	return c
}

// SetDefFromCell adopts other's getter as this Cell's definition, so this
// Cell always tracks other's value.
func (c *Cell[T]) SetDefFromCell(other *Cell[T]) *Cell[T] {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	c.installDefFromCell(other)
	return c
}

func (c *Cell[T]) installDefFromCell(other *Cell[T]) {
	c.detachProviders()
	c.def = func(T) (T, error) { return other.Rv() }
	c.err = nil
	c.ripple(1)
}

// ClearDef drops the definition entirely and resets the value to the zero
// value of T, as if the cell had never had a definition assigned.
func (c *Cell[T]) ClearDef() *Cell[T] {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	c.detachProviders()
	c.def = nil
	var zero T
	c.setNotifyLocked(zero)
	return c
}

// Set is a chainable alias for Wv.
func (c *Cell[T]) Set(v T) *Cell[T] {
	c.Wv(v)
	return c
}

// SetWith is a chainable alias for WvFn.
func (c *Cell[T]) SetWith(fn func(prev T) T) *Cell[T] {
	c.WvFn(fn)
	return c
}

// SetEager toggles the eager flag and, if now eager and stale, schedules
// the cell for background recomputation.
func (c *Cell[T]) SetEager(eager bool) *Cell[T] {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	c.eager = eager
	if eager && c.state != Ready {
		c.rt.queueEval(c, 1)
	}
	return c
}

// Unready forces the cell stale (if it has a definition) and schedules
// it, without changing its definition or cached value.
func (c *Cell[T]) Unready() *Cell[T] {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	if c.def != nil {
		c.ripple(1)
	}
	return c
}

// --- accessors -----------------------------------------------------------

// Eager reports whether the cell is marked eager.
func (c *Cell[T]) Eager() bool {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	return c.eager
}

// Err returns the cached error from the last failed evaluation, if any.
func (c *Cell[T]) Err() error {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	return c.err
}

// CompareFn returns the cell's comparator.
func (c *Cell[T]) CompareFn() Compare[T] {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	return c.compare
}

// Getter returns a stable closure over Rv: the same object is returned on
// every call, per the identity guarantee consumers rely on when wiring UI
// bindings.
func (c *Cell[T]) Getter() func() (T, error) {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	if c.getterFn == nil {
		c.getterFn = func() (T, error) { return c.Rv() }
	}
	return c.getterFn
}

// Setter returns a stable closure over Wv.
func (c *Cell[T]) Setter() func(T) {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	if c.setterFn == nil {
		c.setterFn = func(v T) { c.Wv(v) }
	}
	return c.setterFn
}

// ReadOnly returns a stable read-only projection of this Cell.
func (c *Cell[T]) ReadOnly() *ReadOnlyView[T] {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	if c.roView == nil {
		c.roView = &ReadOnlyView[T]{c: c}
	}
	return c.roView
}

// ReactiveKind implements Kinded.
func (c *Cell[T]) ReactiveKind() Kind { return CellKind }

// IsReadOnly is always false for a Cell.
func (c *Cell[T]) IsReadOnly() bool { return false }

// MustRv reads the cell's value, panicking if the last evaluation cached
// an error. Intended for tests and call sites that have already
// established the cell cannot be in an error state.
func (c *Cell[T]) MustRv() T {
	v, err := c.Rv()
	if err != nil {
		panic(err)
	}
	return v
}

// HasConsumer reports whether other is currently registered as a
// consumer of c (i.e. other read c during its last evaluation). other
// must be a *Cell[U] for some U.
func (c *Cell[T]) HasConsumer(other node) bool {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	return c.consumers.Contains(other)
}

// HasProvider reports whether other is currently registered as a
// provider of c (i.e. c read other during its last evaluation). other
// must be a *Cell[U] for some U.
func (c *Cell[T]) HasProvider(other node) bool {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	return c.providers.Contains(other)
}

func (c *Cell[T]) String() string {
	v, err := c.Rv()
	if err != nil {
		return fmt.Sprintf("<error: %v>", err)
	}
	return fmt.Sprintf("%v", v)
}
