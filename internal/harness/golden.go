package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/strataengine/strata/internal/ir"
)

// TraceSnapshot is the golden-file form of a scenario execution. All
// fields serialize to canonical JSON so comparison is byte-stable.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	FinalData    map[string]any
}

func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"step":           float64(event.Step),
			"intent":         event.Intent,
			"status":         event.Status,
			"terminated_by":  event.TerminatedBy,
			"result_version": float64(event.ResultVersion),
			"state_hash":     event.StateHash,
		}
		if event.Input != nil {
			eventMap["input"] = event.Input
		}
		if event.ErrorCode != "" {
			eventMap["error_code"] = event.ErrorCode
		}
		if event.Requirement != "" {
			eventMap["requirement"] = event.Requirement
		}
		traceList[i] = eventMap
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"final_data":    s.FinalData,
	}
}

// RunWithGolden executes a scenario and compares its trace against the
// golden file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		Trace:        result.Trace,
		FinalData:    result.FinalData,
	}
	traceJSON, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return result, nil
}
