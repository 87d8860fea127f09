package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataengine/strata/internal/engine"
	"github.com/strataengine/strata/internal/ir"
	"github.com/strataengine/strata/internal/testutil"
)

// buildCounter is the canonical increment example: one number field,
// one derived double, one action.
func buildCounter() *ir.DomainSchema {
	return testutil.NewSchema("strata://test/counter", "1.0.0").
		NumberField("count").
		Computed("doubled",
			testutil.Mul(
				testutil.Coalesce(testutil.Get("state.count"), testutil.Num(0)),
				testutil.Num(2),
			),
			"state.count",
		).
		Action("increment", testutil.Set("state.count",
			testutil.Add(
				testutil.Coalesce(testutil.Get("state.count"), testutil.Num(0)),
				testutil.Num(1),
			),
		)).
		Build()
}

func newEngine() *engine.Engine {
	return engine.New(engine.WithClock(testutil.Clock()))
}

func TestCompute_NilArguments(t *testing.T) {
	eng := newEngine()
	schema := buildCounter()

	_, err := eng.Compute(nil, ir.NewSnapshot(schema.Hash), ir.Intent{Type: "increment"})
	assert.Error(t, err)

	_, err = eng.Compute(schema, nil, ir.Intent{Type: "increment"})
	assert.Error(t, err)
}

func TestCompute_IncrementEndToEnd(t *testing.T) {
	eng := newEngine()
	schema := buildCounter()
	snap := ir.NewSnapshot(schema.Hash)

	res, err := eng.Compute(schema, snap, ir.Intent{Type: "increment"})
	require.NoError(t, err)

	assert.Equal(t, ir.StatusComplete, res.Status)
	assert.Equal(t, 1.0, res.Snapshot.Data["count"])
	assert.Equal(t, 2.0, res.Snapshot.Computed["doubled"])
	assert.Equal(t, int64(1), res.Snapshot.Meta.Version)
	assert.Equal(t, "end", res.Trace.TerminatedBy)
	assert.Equal(t, int64(0), res.Trace.BaseVersion)
	assert.Equal(t, int64(1), res.Trace.ResultVersion)

	res, err = eng.Compute(schema, res.Snapshot, ir.Intent{Type: "increment"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Snapshot.Data["count"])
	assert.Equal(t, 4.0, res.Snapshot.Computed["doubled"])
	assert.Equal(t, int64(2), res.Snapshot.Meta.Version)
}

func TestCompute_InputSnapshotUntouched(t *testing.T) {
	eng := newEngine()
	schema := buildCounter()
	snap := ir.NewSnapshot(schema.Hash)

	_, err := eng.Compute(schema, snap, ir.Intent{Type: "increment"})
	require.NoError(t, err)

	assert.Equal(t, int64(0), snap.Meta.Version)
	assert.Empty(t, snap.Data)
	assert.Equal(t, ir.StatusIdle, snap.System.Status)
}

func TestCompute_UnknownAction(t *testing.T) {
	eng := newEngine()
	schema := buildCounter()
	snap := ir.NewSnapshot(schema.Hash)

	res, err := eng.Compute(schema, snap, ir.Intent{Type: "nonsense"})
	require.NoError(t, err)

	assert.Equal(t, ir.StatusError, res.Status)
	assert.Equal(t, "unknown-action", res.Trace.TerminatedBy)
	require.NotNil(t, res.Snapshot.System.LastError)
	assert.Equal(t, engine.CodeUnknownAction, res.Snapshot.System.LastError.Code)
	// Version still increments: every call appends a snapshot.
	assert.Equal(t, int64(1), res.Snapshot.Meta.Version)
}

func TestCompute_InvalidInput(t *testing.T) {
	eng := newEngine()
	schema := testutil.NewSchema("", "").
		NumberField("count").
		ActionSpec("add", &ir.ActionSpec{
			Input: &ir.FieldSpec{
				Kind: ir.KindObject,
				Fields: map[string]*ir.FieldSpec{
					"amount": {Kind: ir.KindNumber, Required: true},
				},
			},
			Flow: testutil.Set("state.count", testutil.Get("input.amount")),
		}).
		Build()
	snap := ir.NewSnapshot(schema.Hash)

	res, err := eng.Compute(schema, snap, ir.Intent{Type: "add", Input: map[string]any{"amount": "three"}})
	require.NoError(t, err)
	assert.Equal(t, ir.StatusError, res.Status)
	assert.Equal(t, "invalid-input", res.Trace.TerminatedBy)
	assert.Equal(t, engine.CodeInvalidInput, res.Snapshot.System.LastError.Code)

	res, err = eng.Compute(schema, snap, ir.Intent{Type: "add"})
	require.NoError(t, err)
	assert.Equal(t, ir.StatusError, res.Status, "missing required input field")

	res, err = eng.Compute(schema, snap, ir.Intent{Type: "add", Input: map[string]any{"amount": 3.0}})
	require.NoError(t, err)
	assert.Equal(t, ir.StatusComplete, res.Status)
	assert.Equal(t, 3.0, res.Snapshot.Data["count"])
}

func TestCompute_AvailabilityGate(t *testing.T) {
	eng := newEngine()
	schema := testutil.NewSchema("", "").
		BooleanField("open").
		ActionSpec("submit", &ir.ActionSpec{
			Available: testutil.Eq(testutil.Get("state.open"), testutil.Bool(true)),
			Flow:      testutil.Set("state.open", testutil.Bool(false)),
		}).
		Build()
	snap := ir.NewSnapshot(schema.Hash)

	res, err := eng.Compute(schema, snap, ir.Intent{Type: "submit"})
	require.NoError(t, err)
	assert.Equal(t, ir.StatusError, res.Status)
	assert.Equal(t, "unavailable", res.Trace.TerminatedBy)
	assert.Equal(t, engine.CodeActionUnavailable, res.Snapshot.System.LastError.Code)

	snap.Data["open"] = true
	res, err = eng.Compute(schema, snap, ir.Intent{Type: "submit"})
	require.NoError(t, err)
	assert.Equal(t, ir.StatusComplete, res.Status)
	assert.Equal(t, false, res.Snapshot.Data["open"])
}

func TestCompute_AvailabilityExprError(t *testing.T) {
	eng := newEngine()
	schema := testutil.NewSchema("", "").
		NumberField("n").
		ActionSpec("odd", &ir.ActionSpec{
			// not(number) is a type error at evaluation time.
			Available: testutil.Not(testutil.Num(1)),
			Flow:      testutil.Halt(),
		}).
		Build()

	res, err := eng.Compute(schema, ir.NewSnapshot(schema.Hash), ir.Intent{Type: "odd"})
	require.NoError(t, err)
	assert.Equal(t, ir.StatusError, res.Status)
	assert.Equal(t, "available-error", res.Trace.TerminatedBy)
	assert.Equal(t, engine.CodeExprError, res.Snapshot.System.LastError.Code)
}

func TestCompute_FailRetainsPartialPatches(t *testing.T) {
	eng := newEngine()
	schema := testutil.NewSchema("", "").
		NumberField("count").
		Action("doomed", testutil.Seq(
			testutil.Set("state.count", testutil.Num(1)),
			testutil.Fail("BUSINESS_RULE", testutil.Str("nope")),
			testutil.Set("state.count", testutil.Num(99)),
		)).
		Build()

	res, err := eng.Compute(schema, ir.NewSnapshot(schema.Hash), ir.Intent{Type: "doomed"})
	require.NoError(t, err)

	assert.Equal(t, ir.StatusError, res.Status)
	assert.Equal(t, "fail", res.Trace.TerminatedBy)
	assert.Equal(t, 1.0, res.Snapshot.Data["count"], "patches before the fail are retained")
	require.NotNil(t, res.Snapshot.System.LastError)
	assert.Equal(t, "BUSINESS_RULE", res.Snapshot.System.LastError.Code)
	assert.Equal(t, "nope", res.Snapshot.System.LastError.Message)
	assert.Equal(t, "doomed", res.Snapshot.System.LastError.Source)
}

func TestCompute_HaltRetainsPartialPatches(t *testing.T) {
	eng := newEngine()
	schema := testutil.NewSchema("", "").
		NumberField("count").
		Action("partial", testutil.Seq(
			testutil.Set("state.count", testutil.Num(7)),
			testutil.Halt(),
			testutil.Set("state.count", testutil.Num(99)),
		)).
		Build()

	res, err := eng.Compute(schema, ir.NewSnapshot(schema.Hash), ir.Intent{Type: "partial"})
	require.NoError(t, err)

	assert.Equal(t, ir.StatusHalted, res.Status)
	assert.Equal(t, "halt", res.Trace.TerminatedBy)
	assert.Equal(t, 7.0, res.Snapshot.Data["count"])
	assert.Nil(t, res.Snapshot.System.LastError)
}

func TestCompute_ComputedRefreshesOnEveryStatus(t *testing.T) {
	eng := newEngine()
	schema := testutil.NewSchema("", "").
		NumberField("count").
		Computed("doubled",
			testutil.Mul(
				testutil.Coalesce(testutil.Get("state.count"), testutil.Num(0)),
				testutil.Num(2),
			),
			"state.count",
		).
		Action("failing", testutil.Seq(
			testutil.Set("state.count", testutil.Num(5)),
			testutil.Fail("STOP", nil),
		)).
		Build()

	res, err := eng.Compute(schema, ir.NewSnapshot(schema.Hash), ir.Intent{Type: "failing"})
	require.NoError(t, err)

	assert.Equal(t, ir.StatusError, res.Status)
	assert.Equal(t, 10.0, res.Snapshot.Computed["doubled"],
		"computed must reflect retained partial patches")
}

func TestCompute_EffectSuspendsAndReplays(t *testing.T) {
	eng := newEngine()
	schema := testutil.NewSchema("", "").
		BooleanField("sent").
		StringField("email").
		Action("notify", testutil.Seq(
			testutil.If(
				testutil.Not(testutil.Coalesce(testutil.Get("state.sent"), testutil.Bool(false))),
				testutil.Effect("send-email", map[string]ir.ExprNode{
					"to":      testutil.Get("state.email"),
					"subject": testutil.Str("hello"),
				}),
			),
			testutil.Set("state.sent", testutil.Bool(true)),
		)).
		Build()

	snap := ir.NewSnapshot(schema.Hash)
	snap.Data["email"] = "a@example.com"

	// First call suspends at the effect.
	res, err := eng.Compute(schema, snap, ir.Intent{Type: "notify"})
	require.NoError(t, err)

	assert.Equal(t, ir.StatusPending, res.Status)
	assert.Equal(t, "effect", res.Trace.TerminatedBy)
	assert.Equal(t, "notify", res.Snapshot.System.CurrentAction)
	require.Len(t, res.Snapshot.System.PendingRequirements, 1)
	req := res.Snapshot.System.PendingRequirements[0]
	assert.Equal(t, "send-email", req.Type)
	assert.Equal(t, map[string]any{"to": "a@example.com", "subject": "hello"}, req.Params)
	assert.Equal(t, int64(1), res.Snapshot.Meta.Version)

	// The caller resolves the requirement out-of-band and records the
	// outcome, then re-runs the same intent: the guard now skips the
	// effect and the flow completes.
	resumed := res.Snapshot.Clone()
	resumed.Data["sent"] = true

	res, err = eng.Compute(schema, resumed, ir.Intent{Type: "notify"})
	require.NoError(t, err)

	assert.Equal(t, ir.StatusComplete, res.Status)
	assert.Empty(t, res.Snapshot.System.PendingRequirements)
	assert.Equal(t, "", res.Snapshot.System.CurrentAction)
	assert.Equal(t, int64(2), res.Snapshot.Meta.Version)
}

func TestCompute_CallSplicesTargetFlow(t *testing.T) {
	eng := newEngine()
	schema := testutil.NewSchema("", "").
		NumberField("count").
		StringField("log").
		Action("reset", testutil.Set("state.count", testutil.Num(0))).
		Action("restart", testutil.Seq(
			testutil.Call("reset"),
			testutil.Set("state.log", testutil.Str("restarted")),
		)).
		Build()

	snap := ir.NewSnapshot(schema.Hash)
	snap.Data["count"] = 42.0

	res, err := eng.Compute(schema, snap, ir.Intent{Type: "restart"})
	require.NoError(t, err)

	assert.Equal(t, ir.StatusComplete, res.Status)
	assert.Equal(t, 0.0, res.Snapshot.Data["count"])
	assert.Equal(t, "restarted", res.Snapshot.Data["log"])
}

func TestCompute_CallRecursionBackstop(t *testing.T) {
	// Validation rejects recursive call graphs; the engine still refuses
	// to loop when handed an unvalidated schema.
	eng := newEngine()
	schema := testutil.NewSchema("", "").
		NumberField("n").
		Action("loop", testutil.Call("loop")).
		Build()

	res, err := eng.Compute(schema, ir.NewSnapshot(schema.Hash), ir.Intent{Type: "loop"})
	require.NoError(t, err)

	assert.Equal(t, ir.StatusError, res.Status)
	assert.Equal(t, engine.CodeFlowError, res.Snapshot.System.LastError.Code)
}

func TestCompute_StepQuota(t *testing.T) {
	eng := engine.New(
		engine.WithClock(testutil.Clock()),
		engine.WithMaxSteps(3),
	)
	schema := testutil.NewSchema("", "").
		NumberField("n").
		Action("busy", testutil.Seq(
			testutil.Set("state.n", testutil.Num(1)),
			testutil.Set("state.n", testutil.Num(2)),
			testutil.Set("state.n", testutil.Num(3)),
			testutil.Set("state.n", testutil.Num(4)),
		)).
		Build()

	res, err := eng.Compute(schema, ir.NewSnapshot(schema.Hash), ir.Intent{Type: "busy"})
	require.NoError(t, err)

	assert.Equal(t, ir.StatusError, res.Status)
	assert.Equal(t, engine.CodeStepsExceeded, res.Snapshot.System.LastError.Code)
}

func TestCompute_ComputedFailureDowngradesToError(t *testing.T) {
	eng := newEngine()
	schema := testutil.NewSchema("", "").
		NumberField("divisor").
		Computed("ratio",
			&ir.Arith{Op: ir.OpDiv, Args: []ir.ExprNode{
				testutil.Num(1),
				testutil.Coalesce(testutil.Get("state.divisor"), testutil.Num(1)),
			}},
			"state.divisor",
		).
		Action("zero", testutil.Set("state.divisor", testutil.Num(0))).
		Build()

	res, err := eng.Compute(schema, ir.NewSnapshot(schema.Hash), ir.Intent{Type: "zero"})
	require.NoError(t, err)

	assert.Equal(t, ir.StatusError, res.Status)
	assert.Equal(t, engine.CodeComputedError, res.Snapshot.System.LastError.Code)
	assert.Equal(t, 0.0, res.Snapshot.Data["divisor"], "data is kept for inspection")
}

func TestCompute_ErrorsAccumulateAcrossLineage(t *testing.T) {
	eng := newEngine()
	schema := buildCounter()
	snap := ir.NewSnapshot(schema.Hash)

	res, err := eng.Compute(schema, snap, ir.Intent{Type: "bogus"})
	require.NoError(t, err)
	require.Len(t, res.Snapshot.System.Errors, 1)

	res, err = eng.Compute(schema, res.Snapshot, ir.Intent{Type: "bogus"})
	require.NoError(t, err)
	assert.Len(t, res.Snapshot.System.Errors, 2)

	res, err = eng.Compute(schema, res.Snapshot, ir.Intent{Type: "increment"})
	require.NoError(t, err)
	assert.Equal(t, ir.StatusComplete, res.Status)
	assert.Len(t, res.Snapshot.System.Errors, 2, "the log is append-only, not cleared by success")
}

func TestCompute_Deterministic(t *testing.T) {
	clock := engine.FixedClock{T: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	schema := buildCounter()

	run := func() string {
		eng := engine.New(engine.WithClock(clock))
		snap := ir.NewSnapshot(schema.Hash)
		var hash string
		for i := 0; i < 5; i++ {
			res, err := eng.Compute(schema, snap, ir.Intent{Type: "increment"})
			require.NoError(t, err)
			snap = res.Snapshot
			h, err := ir.StateHash(snap.Data, snap.Computed)
			require.NoError(t, err)
			hash = h
		}
		return hash
	}

	assert.Equal(t, run(), run())
}

func TestCompute_MetaNamespaceVisible(t *testing.T) {
	eng := newEngine()
	schema := testutil.NewSchema("", "").
		StringField("invokedBy").
		NumberField("atVersion").
		Action("record", testutil.Seq(
			testutil.Set("state.invokedBy", testutil.Get("meta.action")),
			testutil.Set("state.atVersion", testutil.Get("meta.version")),
		)).
		Build()

	res, err := eng.Compute(schema, ir.NewSnapshot(schema.Hash), ir.Intent{Type: "record"})
	require.NoError(t, err)

	assert.Equal(t, "record", res.Snapshot.Data["invokedBy"])
	assert.Equal(t, 1.0, res.Snapshot.Data["atVersion"], "meta.version is the version being produced")
}
