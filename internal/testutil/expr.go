package testutil

import "github.com/strataengine/strata/internal/ir"

// Expression shorthands. Tests build ASTs constantly; these keep the
// fixtures readable.

func Lit(v any) ir.ExprNode          { return &ir.Lit{Value: v} }
func Num(f float64) ir.ExprNode      { return &ir.Lit{Value: f} }
func Str(s string) ir.ExprNode       { return &ir.Lit{Value: s} }
func Bool(b bool) ir.ExprNode        { return &ir.Lit{Value: b} }
func Get(path string) ir.ExprNode    { return &ir.Get{Path: ir.Path(path)} }
func Not(arg ir.ExprNode) ir.ExprNode { return &ir.Not{Arg: arg} }

func Add(args ...ir.ExprNode) ir.ExprNode {
	return &ir.Arith{Op: ir.OpAdd, Args: args}
}

func Sub(args ...ir.ExprNode) ir.ExprNode {
	return &ir.Arith{Op: ir.OpSub, Args: args}
}

func Mul(args ...ir.ExprNode) ir.ExprNode {
	return &ir.Arith{Op: ir.OpMul, Args: args}
}

func Eq(left, right ir.ExprNode) ir.ExprNode {
	return &ir.Compare{Op: ir.OpEq, Left: left, Right: right}
}

func Lt(left, right ir.ExprNode) ir.ExprNode {
	return &ir.Compare{Op: ir.OpLt, Left: left, Right: right}
}

func Gte(left, right ir.ExprNode) ir.ExprNode {
	return &ir.Compare{Op: ir.OpGte, Left: left, Right: right}
}

func And(args ...ir.ExprNode) ir.ExprNode {
	return &ir.Logic{Op: ir.OpAnd, Args: args}
}

func Or(args ...ir.ExprNode) ir.ExprNode {
	return &ir.Logic{Op: ir.OpOr, Args: args}
}

func Coalesce(args ...ir.ExprNode) ir.ExprNode {
	return &ir.Coalesce{Args: args}
}

func IsNull(arg ir.ExprNode) ir.ExprNode {
	return &ir.IsNull{Arg: arg}
}

// Flow shorthands.

func Seq(steps ...ir.FlowNode) ir.FlowNode {
	return &ir.Seq{Steps: steps}
}

func If(cond ir.ExprNode, then ir.FlowNode) ir.FlowNode {
	return &ir.FlowIf{Cond: cond, Then: then}
}

func IfElse(cond ir.ExprNode, then, els ir.FlowNode) ir.FlowNode {
	return &ir.FlowIf{Cond: cond, Then: then, Else: els}
}

func Set(path string, value ir.ExprNode) ir.FlowNode {
	return &ir.FlowPatch{Op: ir.PatchSet, Path: ir.Path(path), Value: value}
}

func Merge(path string, value ir.ExprNode) ir.FlowNode {
	return &ir.FlowPatch{Op: ir.PatchMerge, Path: ir.Path(path), Value: value}
}

func Unset(path string) ir.FlowNode {
	return &ir.FlowPatch{Op: ir.PatchUnset, Path: ir.Path(path)}
}

func Effect(name string, params map[string]ir.ExprNode) ir.FlowNode {
	if params == nil {
		params = map[string]ir.ExprNode{}
	}
	return &ir.Effect{Effect: name, Params: params}
}

func Halt() ir.FlowNode {
	return &ir.Halt{}
}

func Fail(code string, message ir.ExprNode) ir.FlowNode {
	return &ir.Fail{Code: code, Message: message}
}

func Call(target string) ir.FlowNode {
	return &ir.Call{Target: target}
}
