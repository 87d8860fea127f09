package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataengine/strata/internal/ir"
)

func set(path ir.Path, value any) ir.Patch {
	return ir.Patch{Op: ir.PatchSet, Path: path, Value: value}
}

func merge(path ir.Path, value any) ir.Patch {
	return ir.Patch{Op: ir.PatchMerge, Path: path, Value: value}
}

func unset(path ir.Path) ir.Patch {
	return ir.Patch{Op: ir.PatchUnset, Path: path}
}

func TestApply_SetScalar(t *testing.T) {
	out, err := Apply(map[string]any{}, set("state.count", 1.0))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": 1.0}, out)
}

func TestApply_SetCreatesIntermediateObjects(t *testing.T) {
	out, err := Apply(map[string]any{}, set("state.a.b.c", "deep"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": map[string]any{"b": map[string]any{"c": "deep"}},
	}, out)
}

func TestApply_SetOverwrites(t *testing.T) {
	out, err := Apply(map[string]any{"count": 1.0}, set("state.count", 2.0))
	require.NoError(t, err)
	assert.Equal(t, 2.0, out["count"])
}

func TestApply_InputUntouched(t *testing.T) {
	orig := map[string]any{
		"nested": map[string]any{"k": "v"},
		"arr":    []any{1.0, 2.0},
	}

	out, err := Apply(orig,
		set("state.nested.k", "changed"),
		set("state.arr.0", 9.0),
	)
	require.NoError(t, err)

	assert.Equal(t, "v", orig["nested"].(map[string]any)["k"])
	assert.Equal(t, 1.0, orig["arr"].([]any)[0])
	assert.Equal(t, "changed", out["nested"].(map[string]any)["k"])
	assert.Equal(t, 9.0, out["arr"].([]any)[0])
}

func TestApply_SetArrayIndexAndAppend(t *testing.T) {
	data := map[string]any{"arr": []any{"a", "b"}}

	out, err := Apply(data, set("state.arr.1", "B"))
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "B"}, out["arr"])

	out, err = Apply(data, set("state.arr.2", "c"))
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c"}, out["arr"])

	_, err = Apply(data, set("state.arr.5", "hole"))
	require.Error(t, err)
	var applyErr *ApplyError
	assert.ErrorAs(t, err, &applyErr)
}

func TestApply_SetThroughArrayElement(t *testing.T) {
	data := map[string]any{"items": []any{
		map[string]any{"name": "first"},
	}}
	out, err := Apply(data, set("state.items.0.name", "renamed"))
	require.NoError(t, err)
	assert.Equal(t, "renamed", out["items"].([]any)[0].(map[string]any)["name"])
	assert.Equal(t, "first", data["items"].([]any)[0].(map[string]any)["name"])
}

func TestApply_Merge(t *testing.T) {
	data := map[string]any{"profile": map[string]any{"a": 1.0, "b": 1.0}}
	out, err := Apply(data, merge("state.profile", map[string]any{"b": 2.0, "c": 3.0}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0, "b": 2.0, "c": 3.0}, out["profile"])
}

func TestApply_MergeOntoMissingTarget(t *testing.T) {
	out, err := Apply(map[string]any{}, merge("state.profile", map[string]any{"a": 1.0}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0}, out["profile"])
}

func TestApply_MergeTypeErrors(t *testing.T) {
	_, err := Apply(map[string]any{"n": 1.0}, merge("state.n", map[string]any{}))
	assert.Error(t, err, "merge onto a number")

	_, err = Apply(map[string]any{}, merge("state.x", "not an object"))
	assert.Error(t, err, "merge with a non-object value")
}

func TestApply_MergeIntoArrayElement(t *testing.T) {
	data := map[string]any{"items": []any{map[string]any{"a": 1.0}}}
	out, err := Apply(data, merge("state.items.0", map[string]any{"b": 2.0}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0, "b": 2.0}, out["items"].([]any)[0])

	_, err = Apply(data, merge("state.items.7", map[string]any{}))
	assert.Error(t, err, "merge cannot extend an array")
}

func TestApply_Unset(t *testing.T) {
	data := map[string]any{"a": 1.0, "b": 2.0}
	out, err := Apply(data, unset("state.a"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"b": 2.0}, out)
	assert.Contains(t, data, "a")
}

func TestApply_UnsetMissingIsNoOp(t *testing.T) {
	data := map[string]any{"a": 1.0}

	out, err := Apply(data, unset("state.missing"))
	require.NoError(t, err)
	assert.Equal(t, data, out)

	out, err = Apply(data, unset("state.missing.deeper.path"))
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestApply_UnsetArrayElementRemoves(t *testing.T) {
	data := map[string]any{"arr": []any{"a", "b", "c"}}

	out, err := Apply(data, unset("state.arr.1"))
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "c"}, out["arr"])

	out, err = Apply(data, unset("state.arr.9"))
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c"}, out["arr"])
}

func TestApply_PathMustRootAtState(t *testing.T) {
	_, err := Apply(map[string]any{}, set("computed.x", 1.0))
	assert.Error(t, err)

	_, err = Apply(map[string]any{}, set("state", 1.0))
	assert.Error(t, err, "state root itself is not a target")
}

func TestApply_TraversalTypeErrors(t *testing.T) {
	data := map[string]any{"n": 1.0, "arr": []any{1.0}}

	_, err := Apply(data, set("state.n.deeper", 1.0))
	assert.Error(t, err, "scalar in the middle of a path")

	_, err = Apply(data, set("state.arr.notanindex", 1.0))
	assert.Error(t, err, "object key against an array")

	_, err = Apply(data, set("state.missing.0", 1.0))
	assert.Error(t, err, "index segment cannot create an array")
}

func TestApply_SequentialPatchesObserveEarlierOnes(t *testing.T) {
	out, err := Apply(map[string]any{},
		set("state.list", []any{}),
		set("state.list.0", "first"),
		set("state.list.1", "second"),
		unset("state.list.0"),
	)
	require.NoError(t, err)
	assert.Equal(t, []any{"second"}, out["list"])
}

func TestApply_ErrorLeavesNoPartialResult(t *testing.T) {
	data := map[string]any{"a": 1.0}
	out, err := Apply(data,
		set("state.b", 2.0),
		set("state.a.deeper", 3.0), // fails
	)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, map[string]any{"a": 1.0}, data)
}
