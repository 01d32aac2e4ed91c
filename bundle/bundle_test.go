package bundle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellwire/cellgraph/bundle"
	"github.com/cellwire/cellgraph/reactive"
)

func TestObjectGetSetAndAggregate(t *testing.T) {
	rt := reactive.NewRuntime(nil)
	b, err := bundle.New(rt, map[string]any{"x": 1}, bundle.Options{})
	require.NoError(t, err)

	v, err := b.Get("x")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	before, err := b.Aggregate().Rv()
	require.NoError(t, err)

	require.NoError(t, b.Set("x", 2))
	v, err = b.Get("x")
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	after, err := b.Aggregate().Rv()
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestObjectDeleteRipplesAggregate(t *testing.T) {
	rt := reactive.NewRuntime(nil)
	b, err := bundle.New(rt, map[string]any{"x": 1, "y": 2}, bundle.Options{})
	require.NoError(t, err)

	before, err := b.Aggregate().Rv()
	require.NoError(t, err)

	require.NoError(t, b.Delete("x"))
	assert.False(t, b.Has("x"))

	after, err := b.Aggregate().Rv()
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestNestedObjectPromotion(t *testing.T) {
	rt := reactive.NewRuntime(nil)
	b, err := bundle.New(rt, map[string]any{
		"inner": map[string]any{"y": 5},
	}, bundle.Options{})
	require.NoError(t, err)

	v, err := b.Get("inner")
	require.NoError(t, err)
	inner, ok := v.(*bundle.Bundle)
	require.True(t, ok, "nested map should be promoted to a *bundle.Bundle")

	iv, err := inner.Get("y")
	require.NoError(t, err)
	assert.Equal(t, 5, iv)
}

func TestShallowSkipsPromotion(t *testing.T) {
	rt := reactive.NewRuntime(nil)
	b, err := bundle.New(rt, map[string]any{
		"inner": map[string]any{"y": 5},
	}, bundle.Options{Shallow: true})
	require.NoError(t, err)

	v, err := b.Get("inner")
	require.NoError(t, err)
	_, isMap := v.(map[string]any)
	assert.True(t, isMap, "shallow bundles must not promote nested maps")
}

// P10: a cell subscribed to the aggregate cell becomes stale when any
// member is added, removed, or replaced.
func TestAggregateRipplesToConsumers(t *testing.T) {
	rt := reactive.NewRuntime(nil)
	b, err := bundle.New(rt, map[string]any{"x": 1}, bundle.Options{})
	require.NoError(t, err)

	calls := 0
	watcher := reactive.New(rt, reactive.Options[int]{Def: func(int) (int, error) {
		calls++
		_, err := b.Aggregate().Rv()
		return calls, err
	}})
	_, err = watcher.Rv()
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	require.NoError(t, b.Set("x", 99))
	v, err := watcher.Rv()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestWiringExternalCellAsMemberDefinition(t *testing.T) {
	rt := reactive.NewRuntime(nil)
	src := reactive.New(rt, reactive.Options[int]{Value: 7})
	b, err := bundle.New(rt, map[string]any{"x": 1}, bundle.Options{})
	require.NoError(t, err)

	require.NoError(t, b.Set("x", src))
	v, err := b.Get("x")
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	src.Wv(8)
	v, err = b.Get("x")
	require.NoError(t, err)
	assert.Equal(t, 8, v)
}

// Delete must detach the removed member's outbound provider edges so the
// provider doesn't keep an unreachable cell registered as a consumer.
func TestDeleteDetachesExternalProviderEdge(t *testing.T) {
	rt := reactive.NewRuntime(nil)
	src := reactive.New(rt, reactive.Options[int]{Value: 7})
	b, err := bundle.New(rt, map[string]any{"x": 1}, bundle.Options{})
	require.NoError(t, err)

	require.NoError(t, b.Set("x", src))
	_, err = b.Get("x")
	require.NoError(t, err)
	member, ok := b.Cell("x")
	require.True(t, ok)
	assert.True(t, src.HasConsumer(member))

	require.NoError(t, b.Delete("x"))
	assert.False(t, src.HasConsumer(member))
}

func TestSnapshotIsDeepAndUntracked(t *testing.T) {
	rt := reactive.NewRuntime(nil)
	b, err := bundle.New(rt, map[string]any{
		"x":     1,
		"inner": map[string]any{"y": 2},
	}, bundle.Options{})
	require.NoError(t, err)

	snap := b.Snapshot().(map[string]any)
	assert.Equal(t, 1, snap["x"])
	innerSnap, ok := snap["inner"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 2, innerSnap["y"])

	// a snapshot taken inside a definition must not record the members it
	// read as providers of the evaluating cell.
	watcher := reactive.New(rt, reactive.Options[int]{Def: func(int) (int, error) {
		_ = b.Snapshot()
		return 0, nil
	}})
	_, err = watcher.Rv()
	require.NoError(t, err)
	member, ok := b.Cell("x")
	require.True(t, ok)
	assert.False(t, member.HasConsumer(watcher))
	assert.False(t, watcher.HasProvider(member))
}
