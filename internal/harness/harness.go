package harness

import (
	"fmt"
	"os"
	"time"

	"github.com/strataengine/strata/internal/computed"
	"github.com/strataengine/strata/internal/engine"
	"github.com/strataengine/strata/internal/ir"
	"github.com/strataengine/strata/internal/patch"
	"github.com/strataengine/strata/internal/validator"
)

// Run executes a scenario and returns its result. Execution is
// deterministic: the engine runs under the scenario's fixed clock, so
// two runs of the same scenario produce identical traces.
func Run(scenario *Scenario) (*Result, error) {
	schema, err := loadSchema(scenario.Schema)
	if err != nil {
		return nil, err
	}

	clockAt, err := scenarioClock(scenario)
	if err != nil {
		return nil, err
	}
	eng := engine.New(engine.WithClock(engine.FixedClock{T: clockAt}))

	result := NewResult()
	snap := ir.NewSnapshot(schema.Hash)

	for i, step := range scenario.Steps {
		snap, err = applyResolutions(schema, snap, step.Resolve)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}

		input, err := normalizeInput(step.Input)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: input: %w", i, err)
		}
		intent := ir.Intent{Type: step.Intent, Input: input}

		res, err := eng.Compute(schema, snap, intent)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: compute: %w", i, err)
		}
		snap = res.Snapshot

		event, err := traceEvent(i, intent, res)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		result.Trace = append(result.Trace, event)

		if step.Expect != nil {
			checkExpect(result, i, step.Expect, res)
		}
	}

	result.FinalData = snap.Data
	result.FinalComputed = snap.Computed
	return result, nil
}

// VerifyDeterminism runs a scenario twice and compares the state hash
// at every step. Any divergence means something non-deterministic leaked
// into evaluation.
func VerifyDeterminism(scenario *Scenario) error {
	first, err := Run(scenario)
	if err != nil {
		return err
	}
	second, err := Run(scenario)
	if err != nil {
		return err
	}

	if len(first.Trace) != len(second.Trace) {
		return fmt.Errorf("determinism: trace lengths differ (%d vs %d)", len(first.Trace), len(second.Trace))
	}
	for i := range first.Trace {
		if first.Trace[i].StateHash != second.Trace[i].StateHash {
			return fmt.Errorf("determinism: step %d state hash diverged (%s vs %s)",
				i, first.Trace[i].StateHash, second.Trace[i].StateHash)
		}
	}
	return nil
}

func loadSchema(path string) (*ir.DomainSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	doc, err := ir.DecodeValue(data)
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}

	verdict := validator.Validate(doc)
	if !verdict.Valid {
		return nil, fmt.Errorf("schema %s failed validation: %v", path, verdict.Errors)
	}

	schema, err := ir.DecodeSchema(data)
	if err != nil {
		return nil, fmt.Errorf("decode schema %s: %w", path, err)
	}
	return schema, nil
}

func scenarioClock(scenario *Scenario) (time.Time, error) {
	stamp := scenario.Timestamp
	if stamp == "" {
		stamp = DefaultTimestamp
	}
	t, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", stamp, err)
	}
	return t.UTC(), nil
}

// applyResolutions applies a step's effect-resolution patches to the
// snapshot, standing in for the out-of-band effect executor. Computed
// fields are refreshed afterwards so availability gates on the next
// call see values consistent with the patched data.
func applyResolutions(schema *ir.DomainSchema, snap *ir.Snapshot, resolutions []ResolvePatch) (*ir.Snapshot, error) {
	if len(resolutions) == 0 {
		return snap, nil
	}

	patches := make([]ir.Patch, len(resolutions))
	for i, rp := range resolutions {
		value, err := ir.NormalizeValue(rp.Value)
		if err != nil {
			return nil, fmt.Errorf("resolve[%d]: %w", i, err)
		}
		patches[i] = ir.Patch{
			Op:    ir.PatchOp(rp.Op),
			Path:  ir.Path(rp.Path),
			Value: value,
		}
	}

	next := snap.Clone()
	data, err := patch.Apply(next.Data, patches...)
	if err != nil {
		return nil, err
	}
	next.Data = data

	fresh, err := computed.Resolve(&schema.Computed, next.Data, nil)
	if err != nil {
		return nil, fmt.Errorf("computed refresh: %w", err)
	}
	next.Computed = fresh
	return next, nil
}

func normalizeInput(input map[string]any) (map[string]any, error) {
	if input == nil {
		return nil, nil
	}
	v, err := ir.NormalizeValue(input)
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

func traceEvent(step int, intent ir.Intent, res *engine.Result) (TraceEvent, error) {
	stateHash, err := ir.StateHash(res.Snapshot.Data, res.Snapshot.Computed)
	if err != nil {
		return TraceEvent{}, fmt.Errorf("state hash: %w", err)
	}

	event := TraceEvent{
		Step:          step,
		Intent:        intent.Type,
		Input:         intent.Input,
		Status:        string(res.Status),
		TerminatedBy:  res.Trace.TerminatedBy,
		ResultVersion: res.Trace.ResultVersion,
		StateHash:     stateHash,
	}
	if res.Snapshot.System.LastError != nil && res.Status == ir.StatusError {
		event.ErrorCode = res.Snapshot.System.LastError.Code
	}
	if len(res.Snapshot.System.PendingRequirements) > 0 {
		event.Requirement = res.Snapshot.System.PendingRequirements[0].Type
	}
	return event, nil
}
