package ir

import (
	"encoding/json"
	"fmt"
)

// ExprNode is the sealed expression sum type. Only the node structs in
// this file implement it. Every traversal (evaluator, path collector)
// must dispatch over the full set and treat an unknown node as an error,
// so a new node kind cannot silently escape a walker.
type ExprNode interface {
	exprNode() // sealed
}

// ArithOp enumerates arithmetic operators. All are evaluated as a left
// fold over the args with standard float64 semantics.
type ArithOp string

const (
	OpAdd ArithOp = "add"
	OpSub ArithOp = "sub"
	OpMul ArithOp = "mul"
	OpDiv ArithOp = "div"
	OpMod ArithOp = "mod"
)

// CompareOp enumerates comparison operators.
type CompareOp string

const (
	OpEq  CompareOp = "eq"
	OpNe  CompareOp = "ne"
	OpLt  CompareOp = "lt"
	OpLte CompareOp = "lte"
	OpGt  CompareOp = "gt"
	OpGte CompareOp = "gte"
)

// LogicOp enumerates variadic boolean connectives.
type LogicOp string

const (
	OpAnd LogicOp = "and"
	OpOr  LogicOp = "or"
)

// CollectOp enumerates collection operators. Each binds the current
// element to the implicit item slot while Fn evaluates.
type CollectOp string

const (
	OpFilter CollectOp = "filter"
	OpMap    CollectOp = "map"
	OpFind   CollectOp = "find"
	OpEvery  CollectOp = "every"
	OpSome   CollectOp = "some"
)

// Lit is a literal value.
type Lit struct {
	Value any
}

// Get reads a path from the evaluation context. A missing path yields
// null, not an error; null-propagation via coalesce/isNull is the
// idiomatic guard.
type Get struct {
	Path Path
}

// Arith applies an arithmetic operator across Args.
type Arith struct {
	Op   ArithOp
	Args []ExprNode
}

// Compare applies a comparison operator to Left and Right.
type Compare struct {
	Op    CompareOp
	Left  ExprNode
	Right ExprNode
}

// Logic applies and/or across Args with short-circuit evaluation.
type Logic struct {
	Op   LogicOp
	Args []ExprNode
}

// Not negates a boolean argument.
type Not struct {
	Arg ExprNode
}

// Concat joins the string forms of Args.
type Concat struct {
	Args []ExprNode
}

// Contains reports whether Haystack (string or array) contains Needle.
type Contains struct {
	Haystack ExprNode
	Needle   ExprNode
}

// Collect applies a collection operator to Source with Fn as the
// predicate or mapper, evaluated once per element with the item slot
// bound.
type Collect struct {
	Op     CollectOp
	Source ExprNode
	Fn     ExprNode
}

// Len yields the length of a string, array, or object.
type Len struct {
	Arg ExprNode
}

// Keys yields an object's keys in canonical order.
type Keys struct {
	Arg ExprNode
}

// MergeObjects shallow-merges object args left to right.
type MergeObjects struct {
	Args []ExprNode
}

// Cond is the conditional expression. Else may be nil, in which case a
// false condition yields null.
type Cond struct {
	If   ExprNode
	Then ExprNode
	Else ExprNode
}

// Coalesce yields the first argument, left to right, that evaluates to a
// non-null value; null if all are null.
type Coalesce struct {
	Args []ExprNode
}

// TypeOf yields the runtime type name of its argument.
type TypeOf struct {
	Arg ExprNode
}

// IsNull reports whether its argument is null.
type IsNull struct {
	Arg ExprNode
}

// ToString renders its argument as a string.
type ToString struct {
	Arg ExprNode
}

func (*Lit) exprNode()          {}
func (*Get) exprNode()          {}
func (*Arith) exprNode()        {}
func (*Compare) exprNode()      {}
func (*Logic) exprNode()        {}
func (*Not) exprNode()          {}
func (*Concat) exprNode()       {}
func (*Contains) exprNode()     {}
func (*Collect) exprNode()      {}
func (*Len) exprNode()          {}
func (*Keys) exprNode()         {}
func (*MergeObjects) exprNode() {}
func (*Cond) exprNode()         {}
func (*Coalesce) exprNode()     {}
func (*TypeOf) exprNode()       {}
func (*IsNull) exprNode()       {}
func (*ToString) exprNode()     {}

// exprEnvelope is the wire form shared by all expression nodes.
// Dispatch is on "op"; the remaining fields are populated per op.
type exprEnvelope struct {
	Op       string            `json:"op"`
	Value    json.RawMessage   `json:"value,omitempty"`
	Path     Path              `json:"path,omitempty"`
	Args     []json.RawMessage `json:"args,omitempty"`
	Left     json.RawMessage   `json:"left,omitempty"`
	Right    json.RawMessage   `json:"right,omitempty"`
	Arg      json.RawMessage   `json:"arg,omitempty"`
	Source   json.RawMessage   `json:"source,omitempty"`
	Fn       json.RawMessage   `json:"fn,omitempty"`
	Haystack json.RawMessage   `json:"haystack,omitempty"`
	Needle   json.RawMessage   `json:"needle,omitempty"`
	Cond     json.RawMessage   `json:"cond,omitempty"`
	Then     json.RawMessage   `json:"then,omitempty"`
	Else     json.RawMessage   `json:"else,omitempty"`
}

// UnmarshalExpr decodes an expression node from its tagged wire form.
func UnmarshalExpr(data []byte) (ExprNode, error) {
	var env exprEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("expression: %w", err)
	}

	switch env.Op {
	case "lit":
		v, err := DecodeValue(env.Value)
		if err != nil {
			return nil, fmt.Errorf("lit value: %w", err)
		}
		return &Lit{Value: v}, nil

	case "get":
		if env.Path == "" {
			return nil, fmt.Errorf("get: missing path")
		}
		return &Get{Path: env.Path}, nil

	case string(OpAdd), string(OpSub), string(OpMul), string(OpDiv), string(OpMod):
		args, err := unmarshalExprList(env.Args, 2)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", env.Op, err)
		}
		return &Arith{Op: ArithOp(env.Op), Args: args}, nil

	case string(OpEq), string(OpNe), string(OpLt), string(OpLte), string(OpGt), string(OpGte):
		left, right, err := unmarshalExprPair(env.Left, env.Right, env.Args)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", env.Op, err)
		}
		return &Compare{Op: CompareOp(env.Op), Left: left, Right: right}, nil

	case string(OpAnd), string(OpOr):
		args, err := unmarshalExprList(env.Args, 1)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", env.Op, err)
		}
		return &Logic{Op: LogicOp(env.Op), Args: args}, nil

	case "not":
		arg, err := unmarshalExprField(env.Arg, "arg")
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return &Not{Arg: arg}, nil

	case "concat":
		args, err := unmarshalExprList(env.Args, 1)
		if err != nil {
			return nil, fmt.Errorf("concat: %w", err)
		}
		return &Concat{Args: args}, nil

	case "contains":
		haystack, err := unmarshalExprField(env.Haystack, "haystack")
		if err != nil {
			return nil, fmt.Errorf("contains: %w", err)
		}
		needle, err := unmarshalExprField(env.Needle, "needle")
		if err != nil {
			return nil, fmt.Errorf("contains: %w", err)
		}
		return &Contains{Haystack: haystack, Needle: needle}, nil

	case string(OpFilter), string(OpMap), string(OpFind), string(OpEvery), string(OpSome):
		source, err := unmarshalExprField(env.Source, "source")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", env.Op, err)
		}
		fn, err := unmarshalExprField(env.Fn, "fn")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", env.Op, err)
		}
		return &Collect{Op: CollectOp(env.Op), Source: source, Fn: fn}, nil

	case "len":
		arg, err := unmarshalExprField(env.Arg, "arg")
		if err != nil {
			return nil, fmt.Errorf("len: %w", err)
		}
		return &Len{Arg: arg}, nil

	case "keys":
		arg, err := unmarshalExprField(env.Arg, "arg")
		if err != nil {
			return nil, fmt.Errorf("keys: %w", err)
		}
		return &Keys{Arg: arg}, nil

	case "merge":
		args, err := unmarshalExprList(env.Args, 1)
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		return &MergeObjects{Args: args}, nil

	case "if":
		cond, err := unmarshalExprField(env.Cond, "cond")
		if err != nil {
			return nil, fmt.Errorf("if: %w", err)
		}
		then, err := unmarshalExprField(env.Then, "then")
		if err != nil {
			return nil, fmt.Errorf("if: %w", err)
		}
		var els ExprNode
		if len(env.Else) > 0 && string(env.Else) != "null" {
			els, err = UnmarshalExpr(env.Else)
			if err != nil {
				return nil, fmt.Errorf("if else: %w", err)
			}
		}
		return &Cond{If: cond, Then: then, Else: els}, nil

	case "coalesce":
		args, err := unmarshalExprList(env.Args, 1)
		if err != nil {
			return nil, fmt.Errorf("coalesce: %w", err)
		}
		return &Coalesce{Args: args}, nil

	case "typeof":
		arg, err := unmarshalExprField(env.Arg, "arg")
		if err != nil {
			return nil, fmt.Errorf("typeof: %w", err)
		}
		return &TypeOf{Arg: arg}, nil

	case "isNull":
		arg, err := unmarshalExprField(env.Arg, "arg")
		if err != nil {
			return nil, fmt.Errorf("isNull: %w", err)
		}
		return &IsNull{Arg: arg}, nil

	case "toString":
		arg, err := unmarshalExprField(env.Arg, "arg")
		if err != nil {
			return nil, fmt.Errorf("toString: %w", err)
		}
		return &ToString{Arg: arg}, nil

	case "":
		return nil, fmt.Errorf("expression: missing op")
	default:
		return nil, fmt.Errorf("expression: unknown op %q", env.Op)
	}
}

func unmarshalExprField(data json.RawMessage, name string) (ExprNode, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("missing %s", name)
	}
	return UnmarshalExpr(data)
}

func unmarshalExprList(raw []json.RawMessage, minArgs int) ([]ExprNode, error) {
	if len(raw) < minArgs {
		return nil, fmt.Errorf("want at least %d args, got %d", minArgs, len(raw))
	}
	args := make([]ExprNode, len(raw))
	for i, r := range raw {
		node, err := UnmarshalExpr(r)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		args[i] = node
	}
	return args, nil
}

// unmarshalExprPair accepts either left/right fields or a two-element
// args list for binary operators.
func unmarshalExprPair(left, right json.RawMessage, args []json.RawMessage) (ExprNode, ExprNode, error) {
	if len(left) > 0 && len(right) > 0 {
		l, err := UnmarshalExpr(left)
		if err != nil {
			return nil, nil, fmt.Errorf("left: %w", err)
		}
		r, err := UnmarshalExpr(right)
		if err != nil {
			return nil, nil, fmt.Errorf("right: %w", err)
		}
		return l, r, nil
	}
	if len(args) == 2 {
		list, err := unmarshalExprList(args, 2)
		if err != nil {
			return nil, nil, err
		}
		return list[0], list[1], nil
	}
	return nil, nil, fmt.Errorf("want left/right or exactly 2 args")
}

// MarshalJSON implementations re-emit the tagged wire form so schemas
// round-trip and canonical hashing of typed schemas is stable.

func (n *Lit) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"op": "lit", "value": n.Value})
}

func (n *Get) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"op": "get", "path": n.Path})
}

func (n *Arith) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"op": string(n.Op), "args": n.Args})
}

func (n *Compare) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"op": string(n.Op), "left": n.Left, "right": n.Right})
}

func (n *Logic) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"op": string(n.Op), "args": n.Args})
}

func (n *Not) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"op": "not", "arg": n.Arg})
}

func (n *Concat) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"op": "concat", "args": n.Args})
}

func (n *Contains) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"op": "contains", "haystack": n.Haystack, "needle": n.Needle})
}

func (n *Collect) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"op": string(n.Op), "source": n.Source, "fn": n.Fn})
}

func (n *Len) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"op": "len", "arg": n.Arg})
}

func (n *Keys) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"op": "keys", "arg": n.Arg})
}

func (n *MergeObjects) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"op": "merge", "args": n.Args})
}

func (n *Cond) MarshalJSON() ([]byte, error) {
	out := map[string]any{"op": "if", "cond": n.If, "then": n.Then}
	if n.Else != nil {
		out["else"] = n.Else
	}
	return json.Marshal(out)
}

func (n *Coalesce) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"op": "coalesce", "args": n.Args})
}

func (n *TypeOf) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"op": "typeof", "arg": n.Arg})
}

func (n *IsNull) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"op": "isNull", "arg": n.Arg})
}

func (n *ToString) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"op": "toString", "arg": n.Arg})
}
