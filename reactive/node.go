package reactive

// Readiness is the tri-state recomputation status of a Cell.
type Readiness int

const (
	// Ready means the cached value is current; no recomputation needed.
	Ready Readiness = iota
	// Stale means the Cell must recompute before its value can be trusted.
	Stale
	// MaybeStale means recomputation is required only if one of the
	// Cell's providers actually changed; resolved by reading providers.
	MaybeStale
)

func (r Readiness) String() string {
	switch r {
	case Ready:
		return "ready"
	case Stale:
		return "stale"
	case MaybeStale:
		return "maybe-stale"
	default:
		return "unknown"
	}
}

// Kind distinguishes reactive value flavours for TypeOf.
type Kind int

const (
	// CellKind tags a *Cell[T].
	CellKind Kind = 1
	// BundleKind tags a reactive bundle proxy.
	BundleKind Kind = 2
)

// Kinded is implemented by every reactive value (Cell, ReadOnlyView,
// and — from the bundle package — the bundle proxy) so that TypeOf can
// classify an arbitrary value without a package import cycle.
type Kinded interface {
	ReactiveKind() Kind
}

// untypedReader is implemented by *Cell[T] and *ReadOnlyView[T] so that Fv
// can walk a chain of cells without knowing their concrete type parameter.
type untypedReader interface {
	readUntyped() (any, error)
}

// snapshotter is implemented by the bundle package's proxy type so that
// Fv(v, true) can unwrap a bundle to a plain value without reactive
// importing bundle (which imports reactive).
type snapshotter interface {
	ReactiveSnapshot() any
}

// AnyReadable is implemented by every *Cell[T] and *ReadOnlyView[T]
// regardless of T. It lets a caller wire an external cell of any type
// parameter as a tracking definition source without needing to know that
// type parameter itself.
type AnyReadable interface {
	ReadAny() (any, error)
}

// node is the type-erased interface every *Cell[T] satisfies so that the
// scheduler and ripple machinery can operate over a heterogeneous graph of
// differently-typed cells.
type node interface {
	readiness() Readiness
	isEager() bool
	hasConsumers() bool

	addProviderNode(n node)
	removeConsumerNode(n node)
	addConsumerNode(n node)
	detachProviders()

	tierState() (tier int, scheduled bool)
	setTierState(tier int, scheduled bool)

	// rippleNode propagates staleness starting at this node with the
	// given distance (0 = own value changed, 1 = immediate producer
	// changed, >=2 = more distant producer changed).
	rippleNode(distance int)

	// resolveNode forces the node to recompute if necessary, discarding
	// the resulting value and any error (used while walking providers of
	// a maybe-stale cell, and while the scheduler drains a tier).
	resolveNode()
}
