package expr

import (
	"fmt"
	"math"
	"strings"

	"github.com/strataengine/strata/internal/ir"
)

// EvalError reports a runtime evaluation failure: a type mismatch,
// division by zero, or a structurally invalid node. It is distinct from
// the null a missing get yields; errors are for operations that cannot
// produce any value.
type EvalError struct {
	Op      string
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("expr %s: %s", e.Op, e.Message)
}

func evalErrf(op, format string, args ...any) *EvalError {
	return &EvalError{Op: op, Message: fmt.Sprintf(format, args...)}
}

// Evaluate reduces an expression tree to a runtime value. The dispatch
// is exhaustive: a node kind this switch does not know is an error.
func Evaluate(expr ir.ExprNode, ctx Context) (any, error) {
	switch node := expr.(type) {
	case *ir.Lit:
		return node.Value, nil

	case *ir.Get:
		v, ok := ctx.Resolve(node.Path)
		if !ok {
			return nil, nil
		}
		return v, nil

	case *ir.Arith:
		return evalArith(node, ctx)

	case *ir.Compare:
		return evalCompare(node, ctx)

	case *ir.Logic:
		return evalLogic(node, ctx)

	case *ir.Not:
		v, err := Evaluate(node.Arg, ctx)
		if err != nil {
			return nil, err
		}
		b, ok := v.(bool)
		if !ok {
			return nil, evalErrf("not", "operand is %s, want boolean", ir.ValueType(v))
		}
		return !b, nil

	case *ir.Concat:
		var sb strings.Builder
		for i, arg := range node.Args {
			v, err := Evaluate(arg, ctx)
			if err != nil {
				return nil, err
			}
			s, ok := v.(string)
			if !ok {
				return nil, evalErrf("concat", "args[%d] is %s, want string", i, ir.ValueType(v))
			}
			sb.WriteString(s)
		}
		return sb.String(), nil

	case *ir.Contains:
		return evalContains(node, ctx)

	case *ir.Collect:
		return evalCollect(node, ctx)

	case *ir.Len:
		v, err := Evaluate(node.Arg, ctx)
		if err != nil {
			return nil, err
		}
		switch arg := v.(type) {
		case nil:
			return float64(0), nil
		case string:
			return float64(len([]rune(arg))), nil
		case []any:
			return float64(len(arg)), nil
		case map[string]any:
			return float64(len(arg)), nil
		default:
			return nil, evalErrf("len", "operand is %s, want string, array, or object", ir.ValueType(v))
		}

	case *ir.Keys:
		v, err := Evaluate(node.Arg, ctx)
		if err != nil {
			return nil, err
		}
		switch arg := v.(type) {
		case nil:
			return []any{}, nil
		case map[string]any:
			keys := ir.SortedKeys(arg)
			out := make([]any, len(keys))
			for i, k := range keys {
				out[i] = k
			}
			return out, nil
		default:
			return nil, evalErrf("keys", "operand is %s, want object", ir.ValueType(v))
		}

	case *ir.MergeObjects:
		out := map[string]any{}
		for i, arg := range node.Args {
			v, err := Evaluate(arg, ctx)
			if err != nil {
				return nil, err
			}
			switch obj := v.(type) {
			case nil:
				// Null contributes nothing.
			case map[string]any:
				for k, val := range obj {
					out[k] = val
				}
			default:
				return nil, evalErrf("merge", "args[%d] is %s, want object or null", i, ir.ValueType(v))
			}
		}
		return out, nil

	case *ir.Cond:
		cond, err := Evaluate(node.If, ctx)
		if err != nil {
			return nil, err
		}
		b, ok := cond.(bool)
		if !ok {
			return nil, evalErrf("if", "condition is %s, want boolean", ir.ValueType(cond))
		}
		if b {
			return Evaluate(node.Then, ctx)
		}
		if node.Else == nil {
			return nil, nil
		}
		return Evaluate(node.Else, ctx)

	case *ir.Coalesce:
		for _, arg := range node.Args {
			v, err := Evaluate(arg, ctx)
			if err != nil {
				return nil, err
			}
			if v != nil {
				return v, nil
			}
		}
		return nil, nil

	case *ir.TypeOf:
		v, err := Evaluate(node.Arg, ctx)
		if err != nil {
			return nil, err
		}
		return ir.ValueType(v), nil

	case *ir.IsNull:
		v, err := Evaluate(node.Arg, ctx)
		if err != nil {
			return nil, err
		}
		return v == nil, nil

	case *ir.ToString:
		v, err := Evaluate(node.Arg, ctx)
		if err != nil {
			return nil, err
		}
		return valueToString(v)

	case nil:
		return nil, evalErrf("eval", "nil expression node")
	default:
		return nil, evalErrf("eval", "unknown expression node %T", expr)
	}
}

func evalArith(node *ir.Arith, ctx Context) (any, error) {
	op := string(node.Op)
	if len(node.Args) == 0 {
		return nil, evalErrf(op, "no operands")
	}
	nums := make([]float64, len(node.Args))
	for i, arg := range node.Args {
		v, err := Evaluate(arg, ctx)
		if err != nil {
			return nil, err
		}
		n, ok := v.(float64)
		if !ok {
			return nil, evalErrf(op, "args[%d] is %s, want number", i, ir.ValueType(v))
		}
		nums[i] = n
	}

	acc := nums[0]
	for _, n := range nums[1:] {
		switch node.Op {
		case ir.OpAdd:
			acc += n
		case ir.OpSub:
			acc -= n
		case ir.OpMul:
			acc *= n
		case ir.OpDiv:
			if n == 0 {
				return nil, evalErrf(op, "division by zero")
			}
			acc /= n
		case ir.OpMod:
			if n == 0 {
				return nil, evalErrf(op, "modulo by zero")
			}
			acc = math.Mod(acc, n)
		default:
			return nil, evalErrf(op, "unknown arithmetic operator")
		}
	}
	if math.IsNaN(acc) || math.IsInf(acc, 0) {
		return nil, evalErrf(op, "result is not a finite number")
	}
	return acc, nil
}

func evalCompare(node *ir.Compare, ctx Context) (any, error) {
	op := string(node.Op)
	left, err := Evaluate(node.Left, ctx)
	if err != nil {
		return nil, err
	}
	right, err := Evaluate(node.Right, ctx)
	if err != nil {
		return nil, err
	}

	switch node.Op {
	case ir.OpEq:
		return ir.ValuesEqual(left, right), nil
	case ir.OpNe:
		return !ir.ValuesEqual(left, right), nil
	}

	// Ordered comparison: both numbers or both strings.
	switch l := left.(type) {
	case float64:
		r, ok := right.(float64)
		if !ok {
			return nil, evalErrf(op, "left is number, right is %s", ir.ValueType(right))
		}
		return applyOrder(node.Op, compareFloat(l, r))
	case string:
		r, ok := right.(string)
		if !ok {
			return nil, evalErrf(op, "left is string, right is %s", ir.ValueType(right))
		}
		return applyOrder(node.Op, strings.Compare(l, r))
	default:
		return nil, evalErrf(op, "left is %s, want number or string", ir.ValueType(left))
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func applyOrder(op ir.CompareOp, cmp int) (any, error) {
	switch op {
	case ir.OpLt:
		return cmp < 0, nil
	case ir.OpLte:
		return cmp <= 0, nil
	case ir.OpGt:
		return cmp > 0, nil
	case ir.OpGte:
		return cmp >= 0, nil
	default:
		return nil, evalErrf(string(op), "unknown comparison operator")
	}
}

func evalLogic(node *ir.Logic, ctx Context) (any, error) {
	op := string(node.Op)
	if len(node.Args) == 0 {
		return nil, evalErrf(op, "no operands")
	}
	for i, arg := range node.Args {
		v, err := Evaluate(arg, ctx)
		if err != nil {
			return nil, err
		}
		b, ok := v.(bool)
		if !ok {
			return nil, evalErrf(op, "args[%d] is %s, want boolean", i, ir.ValueType(v))
		}
		// Short-circuit: and stops at the first false, or at the first true.
		switch node.Op {
		case ir.OpAnd:
			if !b {
				return false, nil
			}
		case ir.OpOr:
			if b {
				return true, nil
			}
		default:
			return nil, evalErrf(op, "unknown logic operator")
		}
	}
	return node.Op == ir.OpAnd, nil
}

func evalContains(node *ir.Contains, ctx Context) (any, error) {
	haystack, err := Evaluate(node.Haystack, ctx)
	if err != nil {
		return nil, err
	}
	needle, err := Evaluate(node.Needle, ctx)
	if err != nil {
		return nil, err
	}
	switch h := haystack.(type) {
	case nil:
		return false, nil
	case string:
		n, ok := needle.(string)
		if !ok {
			return nil, evalErrf("contains", "needle is %s, want string for string haystack", ir.ValueType(needle))
		}
		return strings.Contains(h, n), nil
	case []any:
		for _, elem := range h {
			if ir.ValuesEqual(elem, needle) {
				return true, nil
			}
		}
		return false, nil
	default:
		return nil, evalErrf("contains", "haystack is %s, want string or array", ir.ValueType(haystack))
	}
}

func evalCollect(node *ir.Collect, ctx Context) (any, error) {
	op := string(node.Op)
	source, err := Evaluate(node.Source, ctx)
	if err != nil {
		return nil, err
	}
	var items []any
	switch s := source.(type) {
	case nil:
		// Null source behaves as the empty collection, so fields over
		// not-yet-populated state evaluate without guards.
	case []any:
		items = s
	default:
		return nil, evalErrf(op, "source is %s, want array or null", ir.ValueType(source))
	}

	switch node.Op {
	case ir.OpMap:
		out := make([]any, 0, len(items))
		for i, item := range items {
			v, err := Evaluate(node.Fn, ctx.WithItem(item))
			if err != nil {
				return nil, evalErrf(op, "item %d: %v", i, err)
			}
			out = append(out, v)
		}
		return out, nil

	case ir.OpFilter:
		out := make([]any, 0, len(items))
		for i, item := range items {
			keep, err := evalPredicate(op, node.Fn, ctx, i, item)
			if err != nil {
				return nil, err
			}
			if keep {
				out = append(out, item)
			}
		}
		return out, nil

	case ir.OpFind:
		for i, item := range items {
			hit, err := evalPredicate(op, node.Fn, ctx, i, item)
			if err != nil {
				return nil, err
			}
			if hit {
				return item, nil
			}
		}
		return nil, nil

	case ir.OpEvery:
		for i, item := range items {
			hit, err := evalPredicate(op, node.Fn, ctx, i, item)
			if err != nil {
				return nil, err
			}
			if !hit {
				return false, nil
			}
		}
		return true, nil

	case ir.OpSome:
		for i, item := range items {
			hit, err := evalPredicate(op, node.Fn, ctx, i, item)
			if err != nil {
				return nil, err
			}
			if hit {
				return true, nil
			}
		}
		return false, nil

	default:
		return nil, evalErrf(op, "unknown collection operator")
	}
}

func evalPredicate(op string, fn ir.ExprNode, ctx Context, index int, item any) (bool, error) {
	v, err := Evaluate(fn, ctx.WithItem(item))
	if err != nil {
		return false, evalErrf(op, "item %d: %v", index, err)
	}
	b, ok := v.(bool)
	if !ok {
		return false, evalErrf(op, "item %d: predicate yielded %s, want boolean", index, ir.ValueType(v))
	}
	return b, nil
}

func valueToString(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return "null", nil
	case bool:
		if val {
			return "true", nil
		}
		return "false", nil
	case float64:
		s, err := ir.FormatNumber(val)
		if err != nil {
			return nil, evalErrf("toString", "%v", err)
		}
		return s, nil
	case string:
		return val, nil
	default:
		// Arrays and objects stringify as canonical JSON so the result
		// is stable across runs.
		raw, err := ir.MarshalCanonical(v)
		if err != nil {
			return nil, evalErrf("toString", "%v", err)
		}
		return string(raw), nil
	}
}
