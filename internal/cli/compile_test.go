package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataengine/strata/internal/ir"
	"github.com/strataengine/strata/internal/validator"
)

const counterDefinition = `
schema: counter: {
	id:      "strata://examples/counter"
	version: "1.0.0"
	state: fields: count: kind: "number"
	computed: fields: doubled: {
		expr: {
			op: "mul"
			args: [
				{op: "coalesce", args: [{op: "get", path: "state.count"}, {op: "lit", value: 0}]},
				{op: "lit", value: 2},
			]
		}
		deps: ["state.count"]
	}
	actions: increment: flow: {
		op:    "patch"
		patch: "set"
		path:  "state.count"
		value: {
			op: "add"
			args: [
				{op: "coalesce", args: [{op: "get", path: "state.count"}, {op: "lit", value: 0}]},
				{op: "lit", value: 1},
			]
		}
	}
}
`

func TestCompile_WritesValidatedDocuments(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "counter.cue"), []byte(counterDefinition), 0o644))

	out, err := execute(t, "compile", srcDir, "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "strata://examples/counter 1.0.0")

	written := filepath.Join(outDir, "examples-counter.json")
	data, err := os.ReadFile(written)
	require.NoError(t, err)

	doc, err := ir.DecodeValue(data)
	require.NoError(t, err)
	verdict := validator.Validate(doc)
	assert.True(t, verdict.Valid, "emitted document must validate: %v", verdict.Errors)
}

func TestCompile_EmittedDocumentIsRunnable(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "counter.cue"), []byte(counterDefinition), 0o644))

	_, err := execute(t, "compile", srcDir, "--out", outDir)
	require.NoError(t, err)

	schemaPath := filepath.Join(outDir, "examples-counter.json")
	dbPath := filepath.Join(t.TempDir(), "strata.db")
	out, err := execute(t, "run", "increment", "--db", dbPath, "--schema", schemaPath, "--run", "r1")
	require.NoError(t, err)
	assert.Contains(t, out, "v1  complete")
}

func TestCompile_BrokenDefinition(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "broken.cue"), []byte(`schema: s: {id: 42}`), 0o644))

	_, err := execute(t, "compile", srcDir, "--out", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompile_MissingDirectory(t *testing.T) {
	_, err := execute(t, "compile", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
