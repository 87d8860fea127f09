package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_ResolveNamespaces(t *testing.T) {
	ctx := Context{
		State:    map[string]any{"a": 1.0},
		Computed: map[string]any{"b": 2.0},
		Input:    map[string]any{"c": 3.0},
		Meta:     map[string]any{"d": 4.0},
	}

	v, ok := ctx.Resolve("state.a")
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	v, ok = ctx.Resolve("computed.b")
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
	v, ok = ctx.Resolve("input.c")
	require.True(t, ok)
	assert.Equal(t, 3.0, v)
	v, ok = ctx.Resolve("meta.d")
	require.True(t, ok)
	assert.Equal(t, 4.0, v)

	_, ok = ctx.Resolve("system.status")
	assert.False(t, ok)
	_, ok = ctx.Resolve("state")
	assert.False(t, ok, "bare namespace does not resolve")
	_, ok = ctx.Resolve("input.missing")
	assert.False(t, ok)
}

func TestContext_NilNamespace(t *testing.T) {
	ctx := Context{State: map[string]any{"a": 1.0}}
	_, ok := ctx.Resolve("input.anything")
	assert.False(t, ok)
}

func TestContext_WithItemDoesNotMutateReceiver(t *testing.T) {
	base := Context{State: map[string]any{}}
	bound := base.WithItem(map[string]any{"k": "v"})

	v, ok := bound.Resolve("item.k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	v, ok = bound.Resolve("item")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"k": "v"}, v)

	_, ok = base.Resolve("item")
	assert.False(t, ok, "binding must not leak into the original context")
}

func TestContext_ItemBindsNull(t *testing.T) {
	// A bound null item is distinct from no item at all.
	bound := Context{}.WithItem(nil)
	v, ok := bound.Resolve("item")
	require.True(t, ok)
	assert.Nil(t, v)
}
