package reactive

import (
	"runtime"
	"sync"
	"time"
)

// DefaultSliceTime is the default wall-clock budget the scheduler runner
// gives itself before yielding back to other goroutines.
const DefaultSliceTime = 5 * time.Millisecond

// Runtime is the tracker and scheduler for one reactive graph: the
// currently-evaluating cell (for automatic edge capture), the
// untracked/batch depth counters, and the three priority tiers of stale
// cells waiting to be recomputed.
//
// A Runtime is an ordinary value, not a hidden global: callers construct
// one per program (or one per test, for isolation) and pass it explicitly
// to every Cell they create, rather than reaching for package-level state.
type Runtime struct {
	mu sync.Mutex

	currentEvaluator node
	untrackDepth     int
	evalWaitDepth    int

	tiers [3][]node

	runnerRunning bool
	idleWaiters   []chan struct{}

	// SliceTime is the wall-clock budget the runner drains tier 0 for
	// before yielding. Zero means DefaultSliceTime.
	SliceTime time.Duration

	// OnError is invoked when an eager, consumer-less cell's definition
	// fails, whether the cell was evaluated by the scheduler or by a
	// direct read; a direct reader also receives the error as usual.
	OnError func(cell any, err error)
}

// NewRuntime constructs an isolated reactive runtime. onError may be nil.
func NewRuntime(onError func(cell any, err error)) *Runtime {
	return &Runtime{
		SliceTime: DefaultSliceTime,
		OnError:   onError,
	}
}

func (rt *Runtime) sliceTime() time.Duration {
	if rt.SliceTime <= 0 {
		return DefaultSliceTime
	}
	return rt.SliceTime
}

// --- tracker -----------------------------------------------------------

// trackEdge records, if tracking is active, that n was read while cur is
// evaluating: cur becomes n's consumer, n becomes cur's provider. Must be
// called with rt.mu held.
func (rt *Runtime) trackEdge(n node) {
	if rt.untrackDepth > 0 {
		return
	}
	cur := rt.currentEvaluator
	if cur == nil || cur == n {
		return
	}
	n.addConsumerNode(cur)
	cur.addProviderNode(n)
}

// Untracked runs fn with dependency tracking suspended: reads performed
// inside fn do not create provider edges, even for an actively evaluating
// cell. Untracked calls nest via a depth counter, not a stack.
func Untracked[R any](rt *Runtime, fn func() R) R {
	rt.mu.Lock()
	rt.untrackDepth++
	rt.mu.Unlock()
	defer func() {
		rt.mu.Lock()
		rt.untrackDepth--
		rt.mu.Unlock()
	}()
	return fn()
}

// Batch runs fn with recomputation deferred: ripples accumulate but no
// cell is recomputed until fn returns, at which point the scheduler is
// armed. Nested batches are tolerated via a depth counter.
func Batch[R any](rt *Runtime, fn func() R) R {
	rt.mu.Lock()
	rt.evalWaitDepth++
	rt.mu.Unlock()
	defer func() {
		rt.mu.Lock()
		rt.evalWaitDepth--
		rt.armRunnerLocked()
		if rt.isIdleLocked() {
			rt.notifyIdleLocked()
		}
		rt.mu.Unlock()
	}()
	return fn()
}

// UntrackedVoid is Untracked for side-effecting functions that return
// nothing.
func UntrackedVoid(rt *Runtime, fn func()) {
	Untracked(rt, func() struct{} { fn(); return struct{}{} })
}

// BatchVoid is Batch for side-effecting functions that return nothing.
func BatchVoid(rt *Runtime, fn func()) {
	Batch(rt, func() struct{} { fn(); return struct{}{} })
}

// Fv ("fetch value") walks v while it is a reactive cell, reading its
// value at each step, and — if unwrapBundle is true and the final value
// exposes a snapshot — returns that deep plain-value snapshot instead.
func Fv(v any, unwrapBundle bool) (any, error) {
	for {
		r, ok := v.(untypedReader)
		if !ok {
			break
		}
		nv, err := r.readUntyped()
		if err != nil {
			return nil, err
		}
		v = nv
	}
	if unwrapBundle {
		if s, ok := v.(snapshotter); ok {
			return s.ReactiveSnapshot(), nil
		}
	}
	return v, nil
}

// TypeOf reports whether v is a Cell, a read-only view of one, or a
// bundle, and false if it is neither.
func TypeOf(v any) (Kind, bool) {
	k, ok := v.(Kinded)
	if !ok {
		return 0, false
	}
	return k.ReactiveKind(), true
}

// Run arms the scheduler runner if it isn't already running and there is
// work to do. It is idempotent: at most one runner goroutine is ever in
// flight for a given Runtime.
func (rt *Runtime) Run() {
	rt.mu.Lock()
	rt.armRunnerLocked()
	rt.mu.Unlock()
}

// Wait returns a channel that is closed once every scheduler tier is
// empty and no batch is in progress. If the runtime is already idle the
// returned channel is closed immediately.
func (rt *Runtime) Wait() <-chan struct{} {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.isIdleLocked() {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	ch := make(chan struct{})
	rt.idleWaiters = append(rt.idleWaiters, ch)
	return ch
}

func (rt *Runtime) isIdleLocked() bool {
	return !rt.runnerRunning &&
		rt.evalWaitDepth == 0 &&
		len(rt.tiers[0]) == 0 && len(rt.tiers[1]) == 0 && len(rt.tiers[2]) == 0
}

func (rt *Runtime) notifyIdleLocked() {
	for _, ch := range rt.idleWaiters {
		close(ch)
	}
	rt.idleWaiters = nil
}

// --- scheduler -----------------------------------------------------------

// queueEval enqueues n at the tier dictated by distance (clamped to 2),
// unless it is already scheduled at an equal-or-lower tier. Must be
// called with rt.mu held.
func (rt *Runtime) queueEval(n node, distance int) {
	if n.readiness() == Ready {
		return
	}
	if !n.isEager() && !n.hasConsumers() {
		return
	}
	tier := distance
	if tier > 2 {
		tier = 2
	}
	if tier < 0 {
		tier = 0
	}
	curTier, scheduled := n.tierState()
	if scheduled {
		if curTier <= tier {
			return
		}
		rt.removeFromTier(curTier, n)
	}
	n.setTierState(tier, true)
	rt.tiers[tier] = append(rt.tiers[tier], n)
	rt.armRunnerLocked()
}

// dequeue removes n from whichever tier it is in, if any. Must be called
// with rt.mu held.
func (rt *Runtime) dequeue(n node) {
	tier, scheduled := n.tierState()
	if !scheduled {
		return
	}
	rt.removeFromTier(tier, n)
	n.setTierState(0, false)
}

func (rt *Runtime) removeFromTier(tier int, n node) {
	q := rt.tiers[tier]
	for i, other := range q {
		if other == n {
			rt.tiers[tier] = append(q[:i], q[i+1:]...)
			return
		}
	}
}

func (rt *Runtime) popTier(tier int) node {
	q := rt.tiers[tier]
	if len(q) == 0 {
		return nil
	}
	n := q[0]
	rt.tiers[tier] = q[1:]
	n.setTierState(0, false)
	return n
}

func (rt *Runtime) armRunnerLocked() {
	if rt.runnerRunning {
		return
	}
	if rt.evalWaitDepth != 0 {
		return
	}
	if len(rt.tiers[0]) == 0 && len(rt.tiers[1]) == 0 && len(rt.tiers[2]) == 0 {
		return
	}
	rt.runnerRunning = true
	go rt.runLoop()
}

// runLoop is the cooperative scheduler task. It drains tier 0 fully
// (yielding periodically once the slice budget elapses), then processes
// exactly one cell from tier 1 (or, only when tier 1 is empty, one from
// tier 2), and repeats until
// all tiers are empty or a batch raises evalWaitDepth above zero.
func (rt *Runtime) runLoop() {
	for {
		rt.mu.Lock()
		if rt.evalWaitDepth != 0 {
			rt.runnerRunning = false
			rt.mu.Unlock()
			return
		}

		start := time.Now()
		for len(rt.tiers[0]) > 0 {
			n := rt.popTier(0)
			rt.mu.Unlock()
			n.resolveNode()
			rt.mu.Lock()

			if rt.evalWaitDepth != 0 {
				rt.runnerRunning = false
				rt.mu.Unlock()
				return
			}
			if time.Since(start) > rt.sliceTime() {
				rt.mu.Unlock()
				runtime.Gosched()
				rt.mu.Lock()
				start = time.Now()
			}
		}

		if len(rt.tiers[1]) > 0 {
			n := rt.popTier(1)
			rt.mu.Unlock()
			n.resolveNode()
			rt.mu.Lock()
		} else if len(rt.tiers[2]) > 0 {
			n := rt.popTier(2)
			rt.mu.Unlock()
			n.resolveNode()
			rt.mu.Lock()
		}

		if len(rt.tiers[0]) == 0 && len(rt.tiers[1]) == 0 && len(rt.tiers[2]) == 0 {
			rt.runnerRunning = false
			rt.notifyIdleLocked()
			rt.mu.Unlock()
			return
		}
		rt.mu.Unlock()
	}
}
