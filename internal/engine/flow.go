package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/strataengine/strata/internal/expr"
	"github.com/strataengine/strata/internal/ir"
	"github.com/strataengine/strata/internal/patch"
)

// outcome is the interpreter's per-node verdict. Anything other than
// outcomeContinue stops the flow immediately and propagates upward
// through enclosing seq/if nodes.
type outcome int

const (
	outcomeContinue outcome = iota
	outcomePending
	outcomeHalted
	outcomeFailed
)

// runner holds the working state of one compute call. The data tree
// accumulates patches as they occur, so steps after a patch observe the
// mutation, and partial progress before a halt or fail is retained.
type runner struct {
	eng    *Engine
	schema *ir.DomainSchema
	intent ir.Intent

	data     map[string]any
	computed map[string]any
	meta     map[string]any

	timestamp string

	steps     int
	callStack []string

	requirement *ir.Requirement
	failure     *ir.ErrorRecord
	halted      bool
}

func newRunner(eng *Engine, schema *ir.DomainSchema, next *ir.Snapshot, intent ir.Intent, started time.Time) *runner {
	ts := started.UTC().Format(time.RFC3339Nano)
	return &runner{
		eng:       eng,
		schema:    schema,
		intent:    intent,
		data:      next.Data,
		computed:  next.Computed,
		meta:      metaNamespace(next, intent, ts),
		timestamp: ts,
	}
}

// metaNamespace is the read-only meta.* view expressions see: request
// metadata plus the snapshot metadata of the call in progress.
func metaNamespace(next *ir.Snapshot, intent ir.Intent, timestamp string) map[string]any {
	return map[string]any{
		"action":     intent.Type,
		"version":    float64(next.Meta.Version),
		"timestamp":  timestamp,
		"randomSeed": float64(next.Meta.RandomSeed),
		"schemaHash": next.Meta.SchemaHash,
	}
}

// run interprets the intent's action from entry checks through the flow
// tree and returns what terminated execution, for the trace.
func (r *runner) run() string {
	action := r.schema.Action(r.intent.Type)
	if action == nil {
		r.fail(CodeUnknownAction, fmt.Sprintf("no action %q in schema", r.intent.Type))
		return "unknown-action"
	}

	if action.Input != nil && !action.Input.Matches(inputValue(r.intent.Input)) {
		r.fail(CodeInvalidInput, fmt.Sprintf("input does not match the %q input spec", r.intent.Type))
		return "invalid-input"
	}

	if action.Available != nil {
		ok, err := r.evalBool(action.Available, "available")
		if err != nil {
			return "available-error"
		}
		if !ok {
			r.fail(CodeActionUnavailable, fmt.Sprintf("action %q is not available", r.intent.Type))
			return "unavailable"
		}
	}

	r.callStack = append(r.callStack, r.intent.Type)
	switch r.exec(action.Flow) {
	case outcomePending:
		return "effect"
	case outcomeHalted:
		return "halt"
	case outcomeFailed:
		return "fail"
	default:
		return "end"
	}
}

func inputValue(input map[string]any) any {
	if input == nil {
		return map[string]any{}
	}
	return input
}

// exec interprets one flow node. The dispatch is exhaustive: a node
// kind this switch does not know fails the flow rather than being
// silently skipped.
func (r *runner) exec(flow ir.FlowNode) outcome {
	r.steps++
	if r.steps > r.eng.maxSteps {
		r.fail(CodeStepsExceeded, fmt.Sprintf("flow exceeded %d steps", r.eng.maxSteps))
		return outcomeFailed
	}

	switch node := flow.(type) {
	case *ir.Seq:
		for _, step := range node.Steps {
			if out := r.exec(step); out != outcomeContinue {
				return out
			}
		}
		return outcomeContinue

	case *ir.FlowIf:
		cond, err := r.evalBool(node.Cond, "if cond")
		if err != nil {
			return outcomeFailed
		}
		if cond {
			return r.exec(node.Then)
		}
		if node.Else != nil {
			return r.exec(node.Else)
		}
		return outcomeContinue

	case *ir.FlowPatch:
		return r.execPatch(node)

	case *ir.Effect:
		return r.execEffect(node)

	case *ir.Halt:
		r.halted = true
		return outcomeHalted

	case *ir.Fail:
		message := ""
		if node.Message != nil {
			v, err := r.eval(node.Message, "fail message")
			if err != nil {
				return outcomeFailed
			}
			if s, ok := v.(string); ok {
				message = s
			} else {
				message = fmt.Sprintf("%v", v)
			}
		}
		r.fail(node.Code, message)
		return outcomeFailed

	case *ir.Call:
		return r.execCall(node)

	case nil:
		r.fail(CodeFlowError, "nil flow node")
		return outcomeFailed

	default:
		r.fail(CodeFlowError, fmt.Sprintf("unknown flow node %T", flow))
		return outcomeFailed
	}
}

func (r *runner) execPatch(node *ir.FlowPatch) outcome {
	var value any
	if node.Op != ir.PatchUnset {
		v, err := r.eval(node.Value, "patch value")
		if err != nil {
			return outcomeFailed
		}
		value = v
	}

	next, err := patch.Apply(r.data, ir.Patch{Op: node.Op, Path: node.Path, Value: value})
	if err != nil {
		r.fail(CodePatchError, err.Error())
		return outcomeFailed
	}
	r.data = next
	return outcomeContinue
}

// execEffect evaluates the effect's params and suspends the flow. The
// interpreter keeps no continuation: the caller resolves the
// requirement out-of-band, applies the resulting patches, and re-runs
// the same intent from the top of the action.
func (r *runner) execEffect(node *ir.Effect) outcome {
	params := make(map[string]any, len(node.Params))
	names := make([]string, 0, len(node.Params))
	for name := range node.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v, err := r.eval(node.Params[name], fmt.Sprintf("effect param %q", name))
		if err != nil {
			return outcomeFailed
		}
		params[name] = v
	}

	r.requirement = &ir.Requirement{Type: node.Effect, Params: params}
	return outcomePending
}

// execCall splices the target action's flow in at this point. Recursion
// is rejected at validation time; the call-stack check is the runtime
// backstop for schemas that skipped validation.
func (r *runner) execCall(node *ir.Call) outcome {
	target := r.schema.Action(node.Target)
	if target == nil {
		r.fail(CodeFlowError, fmt.Sprintf("call target %q is not a declared action", node.Target))
		return outcomeFailed
	}
	for _, name := range r.callStack {
		if name == node.Target {
			r.fail(CodeFlowError, fmt.Sprintf("call to %q recurses", node.Target))
			return outcomeFailed
		}
	}

	r.callStack = append(r.callStack, node.Target)
	out := r.exec(target.Flow)
	r.callStack = r.callStack[:len(r.callStack)-1]
	return out
}

func (r *runner) context() expr.Context {
	return expr.Context{
		State:    r.data,
		Computed: r.computed,
		Input:    r.intent.Input,
		Meta:     r.meta,
	}
}

func (r *runner) eval(node ir.ExprNode, where string) (any, error) {
	v, err := expr.Evaluate(node, r.context())
	if err != nil {
		r.fail(CodeExprError, fmt.Sprintf("%s: %v", where, err))
		return nil, err
	}
	return v, nil
}

func (r *runner) evalBool(node ir.ExprNode, where string) (bool, error) {
	v, err := r.eval(node, where)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		err := fmt.Errorf("%s: yielded %s, want boolean", where, ir.ValueType(v))
		r.fail(CodeExprError, err.Error())
		return false, err
	}
	return b, nil
}

// fail records the terminal error. The first failure wins; the
// interpreter stops at the first non-continue outcome so a second call
// would indicate a bug, not a schema problem.
func (r *runner) fail(code, message string) {
	if r.failure != nil {
		return
	}
	r.failure = &ir.ErrorRecord{
		Code:      code,
		Message:   message,
		Source:    r.intent.Type,
		Timestamp: r.timestamp,
	}
}
