package ir

import (
	"encoding/json"
	"fmt"
)

// FlowNode is the sealed flow sum type. Only the node structs in this
// file implement it. The interpreter and the validator's path collector
// both dispatch over the full set; an unknown node is an error, never a
// silent skip.
type FlowNode interface {
	flowNode() // sealed
}

// PatchOp enumerates the mutation operators a patch step can apply.
type PatchOp string

const (
	PatchSet   PatchOp = "set"
	PatchMerge PatchOp = "merge"
	PatchUnset PatchOp = "unset"
)

// Seq runs steps in order, stopping at the first non-continue outcome.
type Seq struct {
	Steps []FlowNode
}

// FlowIf branches on a boolean condition. Else may be nil; a false
// condition with no else is a no-op continue.
type FlowIf struct {
	Cond ExprNode
	Then FlowNode
	Else FlowNode
}

// FlowPatch applies one mutation to the working data. Value is evaluated
// unless Op is unset. The patch lands immediately: later steps observe
// the mutation.
type FlowPatch struct {
	Op    PatchOp
	Path  Path
	Value ExprNode
}

// Effect requests a named external operation. It is the one suspension
// point in the language: the interpreter evaluates Params, emits a
// Requirement, and terminates pending. Resumption re-runs the whole flow
// from its root; idempotency guards are schema-authoring discipline.
type Effect struct {
	Effect string
	Params map[string]ExprNode
}

// Halt stops the flow without error.
type Halt struct{}

// Fail stops the flow with a terminal error. Message, if present, is
// evaluated at failure time.
type Fail struct {
	Code    string
	Message ExprNode
}

// Call splices in another named action's flow body. Recursion through
// call edges is rejected at validation time.
type Call struct {
	Target string
}

func (*Seq) flowNode()       {}
func (*FlowIf) flowNode()    {}
func (*FlowPatch) flowNode() {}
func (*Effect) flowNode()    {}
func (*Halt) flowNode()      {}
func (*Fail) flowNode()      {}
func (*Call) flowNode()      {}

// flowEnvelope is the wire form shared by all flow nodes.
type flowEnvelope struct {
	Op      string                     `json:"op"`
	Steps   []json.RawMessage          `json:"steps,omitempty"`
	Cond    json.RawMessage            `json:"cond,omitempty"`
	Then    json.RawMessage            `json:"then,omitempty"`
	Else    json.RawMessage            `json:"else,omitempty"`
	Patch   PatchOp                    `json:"patch,omitempty"`
	Path    Path                       `json:"path,omitempty"`
	Value   json.RawMessage            `json:"value,omitempty"`
	Effect  string                     `json:"effect,omitempty"`
	Params  map[string]json.RawMessage `json:"params,omitempty"`
	Code    string                     `json:"code,omitempty"`
	Message json.RawMessage            `json:"message,omitempty"`
	Target  string                     `json:"target,omitempty"`
}

// UnmarshalFlow decodes a flow node from its tagged wire form.
func UnmarshalFlow(data []byte) (FlowNode, error) {
	var env flowEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("flow: %w", err)
	}

	switch env.Op {
	case "seq":
		steps := make([]FlowNode, len(env.Steps))
		for i, raw := range env.Steps {
			step, err := UnmarshalFlow(raw)
			if err != nil {
				return nil, fmt.Errorf("seq steps[%d]: %w", i, err)
			}
			steps[i] = step
		}
		return &Seq{Steps: steps}, nil

	case "if":
		if len(env.Cond) == 0 {
			return nil, fmt.Errorf("if: missing cond")
		}
		cond, err := UnmarshalExpr(env.Cond)
		if err != nil {
			return nil, fmt.Errorf("if cond: %w", err)
		}
		if len(env.Then) == 0 {
			return nil, fmt.Errorf("if: missing then")
		}
		then, err := UnmarshalFlow(env.Then)
		if err != nil {
			return nil, fmt.Errorf("if then: %w", err)
		}
		var els FlowNode
		if len(env.Else) > 0 && string(env.Else) != "null" {
			els, err = UnmarshalFlow(env.Else)
			if err != nil {
				return nil, fmt.Errorf("if else: %w", err)
			}
		}
		return &FlowIf{Cond: cond, Then: then, Else: els}, nil

	case "patch":
		switch env.Patch {
		case PatchSet, PatchMerge, PatchUnset:
		case "":
			return nil, fmt.Errorf("patch: missing patch op")
		default:
			return nil, fmt.Errorf("patch: unknown op %q", env.Patch)
		}
		if env.Path == "" {
			return nil, fmt.Errorf("patch: missing path")
		}
		var value ExprNode
		if env.Patch != PatchUnset {
			if len(env.Value) == 0 {
				return nil, fmt.Errorf("patch %s: missing value", env.Patch)
			}
			var err error
			value, err = UnmarshalExpr(env.Value)
			if err != nil {
				return nil, fmt.Errorf("patch value: %w", err)
			}
		}
		return &FlowPatch{Op: env.Patch, Path: env.Path, Value: value}, nil

	case "effect":
		if env.Effect == "" {
			return nil, fmt.Errorf("effect: missing effect name")
		}
		params := make(map[string]ExprNode, len(env.Params))
		for name, raw := range env.Params {
			expr, err := UnmarshalExpr(raw)
			if err != nil {
				return nil, fmt.Errorf("effect param %q: %w", name, err)
			}
			params[name] = expr
		}
		return &Effect{Effect: env.Effect, Params: params}, nil

	case "halt":
		return &Halt{}, nil

	case "fail":
		if env.Code == "" {
			return nil, fmt.Errorf("fail: missing code")
		}
		var message ExprNode
		if len(env.Message) > 0 && string(env.Message) != "null" {
			var err error
			message, err = UnmarshalExpr(env.Message)
			if err != nil {
				return nil, fmt.Errorf("fail message: %w", err)
			}
		}
		return &Fail{Code: env.Code, Message: message}, nil

	case "call":
		if env.Target == "" {
			return nil, fmt.Errorf("call: missing target")
		}
		return &Call{Target: env.Target}, nil

	case "":
		return nil, fmt.Errorf("flow: missing op")
	default:
		return nil, fmt.Errorf("flow: unknown op %q", env.Op)
	}
}

func (n *Seq) MarshalJSON() ([]byte, error) {
	steps := n.Steps
	if steps == nil {
		steps = []FlowNode{}
	}
	return json.Marshal(map[string]any{"op": "seq", "steps": steps})
}

func (n *FlowIf) MarshalJSON() ([]byte, error) {
	out := map[string]any{"op": "if", "cond": n.Cond, "then": n.Then}
	if n.Else != nil {
		out["else"] = n.Else
	}
	return json.Marshal(out)
}

func (n *FlowPatch) MarshalJSON() ([]byte, error) {
	out := map[string]any{"op": "patch", "patch": n.Op, "path": n.Path}
	if n.Value != nil {
		out["value"] = n.Value
	}
	return json.Marshal(out)
}

func (n *Effect) MarshalJSON() ([]byte, error) {
	params := n.Params
	if params == nil {
		params = map[string]ExprNode{}
	}
	return json.Marshal(map[string]any{"op": "effect", "effect": n.Effect, "params": params})
}

func (n *Halt) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"op": "halt"})
}

func (n *Fail) MarshalJSON() ([]byte, error) {
	out := map[string]any{"op": "fail", "code": n.Code}
	if n.Message != nil {
		out["message"] = n.Message
	}
	return json.Marshal(out)
}

func (n *Call) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"op": "call", "target": n.Target})
}
