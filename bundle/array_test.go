package bundle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellwire/cellgraph/bundle"
	"github.com/cellwire/cellgraph/reactive"
)

func TestArrayPushPopShiftUnshift(t *testing.T) {
	rt := reactive.NewRuntime(nil)
	b, err := bundle.New(rt, []any{1, 2, 3}, bundle.Options{})
	require.NoError(t, err)

	n, err := b.Push(4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	v, err := b.Pop()
	require.NoError(t, err)
	assert.Equal(t, 4, v)

	v, err = b.Shift()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	n, err = b.Unshift(0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	snap := b.Snapshot().([]any)
	assert.Equal(t, []any{0, 2, 3}, snap)
}

// Pop, Shift, and Splice must detach the removed elements' outbound
// provider edges so an external provider doesn't keep an unreachable cell
// registered as a consumer. Each case wires the provider in via SetAt
// (which, like Set, tracks an AnyReadable value as a definition) at the
// position the mutating op will remove.
func TestArrayRemovalDetachesExternalProviderEdge(t *testing.T) {
	rt := reactive.NewRuntime(nil)
	src := reactive.New(rt, reactive.Options[int]{Value: 1})

	popB, err := bundle.New(rt, []any{0}, bundle.Options{})
	require.NoError(t, err)
	require.NoError(t, popB.SetAt(0, src))
	_, err = popB.At(0)
	require.NoError(t, err)
	member, ok := popB.CellAt(0)
	require.True(t, ok)
	assert.True(t, src.HasConsumer(member))
	_, err = popB.Pop()
	require.NoError(t, err)
	assert.False(t, src.HasConsumer(member))

	shiftB, err := bundle.New(rt, []any{0, 0}, bundle.Options{})
	require.NoError(t, err)
	require.NoError(t, shiftB.SetAt(0, src))
	_, err = shiftB.At(0)
	require.NoError(t, err)
	member, ok = shiftB.CellAt(0)
	require.True(t, ok)
	assert.True(t, src.HasConsumer(member))
	_, err = shiftB.Shift()
	require.NoError(t, err)
	assert.False(t, src.HasConsumer(member))

	spliceB, err := bundle.New(rt, []any{0, 0, 0}, bundle.Options{})
	require.NoError(t, err)
	require.NoError(t, spliceB.SetAt(1, src))
	_, err = spliceB.At(1)
	require.NoError(t, err)
	member, ok = spliceB.CellAt(1)
	require.True(t, ok)
	assert.True(t, src.HasConsumer(member))
	_, err = spliceB.Splice(1, 1)
	require.NoError(t, err)
	assert.False(t, src.HasConsumer(member))
}

func TestArraySplice(t *testing.T) {
	rt := reactive.NewRuntime(nil)
	b, err := bundle.New(rt, []any{1, 2, 3, 4, 5}, bundle.Options{})
	require.NoError(t, err)

	removed, err := b.Splice(1, 2, "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, []any{2, 3}, removed)

	snap := b.Snapshot().([]any)
	assert.Equal(t, []any{1, "a", "b", "c", 4, 5}, snap)
}

func TestArraySort(t *testing.T) {
	rt := reactive.NewRuntime(nil)
	b, err := bundle.New(rt, []any{3, 1, 2}, bundle.Options{})
	require.NoError(t, err)

	require.NoError(t, b.Sort(func(a, x any) bool { return a.(int) < x.(int) }))
	snap := b.Snapshot().([]any)
	assert.Equal(t, []any{1, 2, 3}, snap)
}

func TestArrayMapFilterReturnsNewBundle(t *testing.T) {
	rt := reactive.NewRuntime(nil)
	b, err := bundle.New(rt, []any{1, 2, 3, 4}, bundle.Options{})
	require.NoError(t, err)

	doubled, err := b.Map(func(v any, i int) any { return v.(int) * 2 })
	require.NoError(t, err)
	assert.Equal(t, []any{2, 4, 6, 8}, doubled.Snapshot())

	evens, err := b.Filter(func(v any, i int) bool { return v.(int)%2 == 0 })
	require.NoError(t, err)
	assert.Equal(t, []any{2, 4}, evens.Snapshot())

	// the original must be untouched by non-mutating operations.
	assert.Equal(t, []any{1, 2, 3, 4}, b.Snapshot())
}

func TestArrayToReversedToSortedToSpliced(t *testing.T) {
	rt := reactive.NewRuntime(nil)
	b, err := bundle.New(rt, []any{1, 2, 3}, bundle.Options{})
	require.NoError(t, err)

	rev, err := b.ToReversed()
	require.NoError(t, err)
	assert.Equal(t, []any{3, 2, 1}, rev.Snapshot())

	spliced, err := b.ToSpliced(1, 1, "x")
	require.NoError(t, err)
	assert.Equal(t, []any{1, "x", 3}, spliced.Snapshot())

	assert.Equal(t, []any{1, 2, 3}, b.Snapshot())
}

func TestArrayJoinConcatFlat(t *testing.T) {
	rt := reactive.NewRuntime(nil)
	a, err := bundle.New(rt, []any{1, 2}, bundle.Options{})
	require.NoError(t, err)
	c, err := bundle.New(rt, []any{3, 4}, bundle.Options{})
	require.NoError(t, err)

	joined, err := a.Join(",")
	require.NoError(t, err)
	assert.Equal(t, "1,2", joined)

	cat, err := a.Concat(c)
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3, 4}, cat.Snapshot())

	nested, err := bundle.New(rt, []any{1, []any{2, 3}, 4}, bundle.Options{})
	require.NoError(t, err)
	flat, err := nested.Flat(1)
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3, 4}, flat.Snapshot())
}

// seed scenario 6: an eager cell summing a bundle's elements recomputes
// exactly once more after a batched push.
func TestEagerCellOverBundleSum(t *testing.T) {
	rt := reactive.NewRuntime(nil)
	p, err := bundle.New(rt, []any{1, 2, 3}, bundle.Options{})
	require.NoError(t, err)

	calls := 0
	s := reactive.New(rt, reactive.Options[int]{Eager: true, Def: func(int) (int, error) {
		calls++
		if _, err := p.Aggregate().Rv(); err != nil {
			return 0, err
		}
		sum := 0
		for _, v := range p.Snapshot().([]any) {
			sum += v.(int)
		}
		return sum, nil
	}})

	<-rt.Wait()
	v, err := s.Rv()
	require.NoError(t, err)
	assert.Equal(t, 6, v)
	assert.Equal(t, 1, calls)

	reactive.BatchVoid(rt, func() {
		_, _ = p.Push(4)
	})

	select {
	case <-rt.Wait():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for scheduler to settle")
	}
	v, err = s.Rv()
	require.NoError(t, err)
	assert.Equal(t, 10, v)
	assert.Equal(t, 2, calls)
}
