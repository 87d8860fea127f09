package harness

import (
	"fmt"

	"github.com/strataengine/strata/internal/engine"
	"github.com/strataengine/strata/internal/ir"
)

// checkExpect compares one step's result against its expect clause and
// records every mismatch, not just the first, so a failing scenario
// reports the whole picture at once.
func checkExpect(result *Result, step int, expect *Expect, res *engine.Result) {
	if expect.Status != "" && string(res.Status) != expect.Status {
		result.AddError(fmt.Sprintf("steps[%d]: status %q, want %q", step, res.Status, expect.Status))
	}

	if expect.ErrorCode != "" {
		actual := ""
		if res.Snapshot.System.LastError != nil {
			actual = res.Snapshot.System.LastError.Code
		}
		if actual != expect.ErrorCode {
			result.AddError(fmt.Sprintf("steps[%d]: error code %q, want %q", step, actual, expect.ErrorCode))
		}
	}

	if expect.Requirement != "" {
		actual := ""
		if len(res.Snapshot.System.PendingRequirements) > 0 {
			actual = res.Snapshot.System.PendingRequirements[0].Type
		}
		if actual != expect.Requirement {
			result.AddError(fmt.Sprintf("steps[%d]: requirement %q, want %q", step, actual, expect.Requirement))
		}
	}

	checkSubset(result, fmt.Sprintf("steps[%d].data", step), res.Snapshot.Data, expect.Data)
	checkSubset(result, fmt.Sprintf("steps[%d].computed", step), res.Snapshot.Computed, expect.Computed)
}

// checkSubset verifies that every expected field matches the actual
// tree. Only listed fields are checked; extra actual fields pass.
func checkSubset(result *Result, where string, actual map[string]any, expected map[string]any) {
	for _, key := range ir.SortedKeys(expected) {
		want, err := ir.NormalizeValue(expected[key])
		if err != nil {
			result.AddError(fmt.Sprintf("%s.%s: bad expected value: %v", where, key, err))
			continue
		}

		got, present := actual[key]
		if !present {
			result.AddError(fmt.Sprintf("%s.%s: missing (want %v)", where, key, want))
			continue
		}

		if wantObj, ok := want.(map[string]any); ok {
			if gotObj, ok := got.(map[string]any); ok {
				checkSubset(result, where+"."+key, gotObj, wantObj)
				continue
			}
		}
		if !ir.ValuesEqual(got, want) {
			result.AddError(fmt.Sprintf("%s.%s: got %v, want %v", where, key, got, want))
		}
	}
}
