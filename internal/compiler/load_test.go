package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCUE(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
}

func TestLoadDir_CompilesAllSchemas(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "counter.cue", counterCUE)
	writeCUE(t, dir, "toggle.cue", `
schema: toggle: {
	id:      "strata://examples/toggle"
	version: "1.0.0"
	state: fields: on: kind: "boolean"
	computed: fields: off: {
		expr: {op: "not", arg: {op: "coalesce", args: [{op: "get", path: "state.on"}, {op: "lit", value: false}]}}
		deps: ["state.on"]
	}
	actions: flip: flow: {
		op:    "patch"
		patch: "set"
		path:  "state.on"
		value: {op: "not", arg: {op: "coalesce", args: [{op: "get", path: "state.on"}, {op: "lit", value: false}]}}
	}
}
`)

	schemas, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, schemas, 2)
	// Sorted by ID.
	assert.Equal(t, "strata://examples/counter", schemas[0].ID)
	assert.Equal(t, "strata://examples/toggle", schemas[1].ID)
	for _, schema := range schemas {
		assert.Len(t, schema.Hash, 64)
	}
}

func TestLoadDir_EmptyDirectory(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CUE files")
}

func TestLoadDir_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "schema.cue")
	require.NoError(t, os.WriteFile(file, []byte(counterCUE), 0o644))

	_, err := LoadDir(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestLoadDir_MissingSchemaStruct(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "other.cue", `other: {x: 1}`)

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema struct")
}

func TestLoadDir_BrokenSchemaFails(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "broken.cue", `
schema: broken: {
	id:      "strata://examples/broken"
	version: "1.0.0"
	state: fields: {}
	computed: fields: ok: {
		expr: {op: "lit", value: true}
		deps: []
	}
	actions: bad: flow: {op: "bogus"}
}
`)
	_, err := LoadDir(dir)
	require.Error(t, err)
}
