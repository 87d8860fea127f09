package validator

import (
	"fmt"

	"github.com/strataengine/strata/internal/ir"
)

// CollectExprPaths returns every get-path reachable in an expression
// tree. The traversal is exhaustive over all expression variants: a
// node kind this switch does not know is an error, never a silent skip,
// because a missed variant would under-report dependencies.
func CollectExprPaths(expr ir.ExprNode) ([]ir.Path, error) {
	paths, _, err := collectExpr(expr)
	return paths, err
}

// collectExpr also gathers stray item reads: the item slot is bound
// only inside a collection operator's fn, so an item.* get anywhere
// else can only ever read null.
func collectExpr(expr ir.ExprNode) (paths, strayItem []ir.Path, err error) {
	if err := walkExpr(expr, false, &paths, &strayItem); err != nil {
		return nil, nil, err
	}
	return paths, strayItem, nil
}

func walkExpr(expr ir.ExprNode, itemBound bool, out, strayItem *[]ir.Path) error {
	switch node := expr.(type) {
	case *ir.Lit:
		return nil
	case *ir.Get:
		*out = append(*out, node.Path)
		if node.Path.Root() == ir.NSItem && !itemBound {
			*strayItem = append(*strayItem, node.Path)
		}
		return nil
	case *ir.Arith:
		return walkExprList(node.Args, itemBound, out, strayItem)
	case *ir.Compare:
		if err := walkExpr(node.Left, itemBound, out, strayItem); err != nil {
			return err
		}
		return walkExpr(node.Right, itemBound, out, strayItem)
	case *ir.Logic:
		return walkExprList(node.Args, itemBound, out, strayItem)
	case *ir.Not:
		return walkExpr(node.Arg, itemBound, out, strayItem)
	case *ir.Concat:
		return walkExprList(node.Args, itemBound, out, strayItem)
	case *ir.Contains:
		if err := walkExpr(node.Haystack, itemBound, out, strayItem); err != nil {
			return err
		}
		return walkExpr(node.Needle, itemBound, out, strayItem)
	case *ir.Collect:
		if err := walkExpr(node.Source, itemBound, out, strayItem); err != nil {
			return err
		}
		// fn runs with the item slot bound to each element.
		return walkExpr(node.Fn, true, out, strayItem)
	case *ir.Len:
		return walkExpr(node.Arg, itemBound, out, strayItem)
	case *ir.Keys:
		return walkExpr(node.Arg, itemBound, out, strayItem)
	case *ir.MergeObjects:
		return walkExprList(node.Args, itemBound, out, strayItem)
	case *ir.Cond:
		if err := walkExpr(node.If, itemBound, out, strayItem); err != nil {
			return err
		}
		if err := walkExpr(node.Then, itemBound, out, strayItem); err != nil {
			return err
		}
		if node.Else != nil {
			return walkExpr(node.Else, itemBound, out, strayItem)
		}
		return nil
	case *ir.Coalesce:
		return walkExprList(node.Args, itemBound, out, strayItem)
	case *ir.TypeOf:
		return walkExpr(node.Arg, itemBound, out, strayItem)
	case *ir.IsNull:
		return walkExpr(node.Arg, itemBound, out, strayItem)
	case *ir.ToString:
		return walkExpr(node.Arg, itemBound, out, strayItem)
	case nil:
		return fmt.Errorf("nil expression node")
	default:
		return fmt.Errorf("unknown expression node %T", expr)
	}
}

func walkExprList(args []ir.ExprNode, itemBound bool, out, strayItem *[]ir.Path) error {
	for i, arg := range args {
		if err := walkExpr(arg, itemBound, out, strayItem); err != nil {
			return fmt.Errorf("args[%d]: %w", i, err)
		}
	}
	return nil
}

// FlowWalk is everything a flow tree exposes to static analysis: the
// get-paths of all embedded expressions, the patch target paths, the
// call targets, and any item reads outside a collection operator's fn.
type FlowWalk struct {
	ExprPaths  []ir.Path
	PatchPaths []ir.Path
	Calls      []string
	StrayItem  []ir.Path
}

// CollectFlowPaths walks a flow tree exhaustively. Like the expression
// walker, an unknown node kind is an error.
func CollectFlowPaths(flow ir.FlowNode) (*FlowWalk, error) {
	walk := &FlowWalk{}
	if err := walkFlow(flow, walk); err != nil {
		return nil, err
	}
	return walk, nil
}

func walkFlow(flow ir.FlowNode, walk *FlowWalk) error {
	switch node := flow.(type) {
	case *ir.Seq:
		for i, step := range node.Steps {
			if err := walkFlow(step, walk); err != nil {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
		}
		return nil
	case *ir.FlowIf:
		if err := walkExpr(node.Cond, false, &walk.ExprPaths, &walk.StrayItem); err != nil {
			return fmt.Errorf("cond: %w", err)
		}
		if err := walkFlow(node.Then, walk); err != nil {
			return fmt.Errorf("then: %w", err)
		}
		if node.Else != nil {
			if err := walkFlow(node.Else, walk); err != nil {
				return fmt.Errorf("else: %w", err)
			}
		}
		return nil
	case *ir.FlowPatch:
		walk.PatchPaths = append(walk.PatchPaths, node.Path)
		if node.Value != nil {
			if err := walkExpr(node.Value, false, &walk.ExprPaths, &walk.StrayItem); err != nil {
				return fmt.Errorf("patch value: %w", err)
			}
		}
		return nil
	case *ir.Effect:
		for name, param := range node.Params {
			if err := walkExpr(param, false, &walk.ExprPaths, &walk.StrayItem); err != nil {
				return fmt.Errorf("effect param %q: %w", name, err)
			}
		}
		return nil
	case *ir.Halt:
		return nil
	case *ir.Fail:
		if node.Message != nil {
			if err := walkExpr(node.Message, false, &walk.ExprPaths, &walk.StrayItem); err != nil {
				return fmt.Errorf("fail message: %w", err)
			}
		}
		return nil
	case *ir.Call:
		walk.Calls = append(walk.Calls, node.Target)
		return nil
	case nil:
		return fmt.Errorf("nil flow node")
	default:
		return fmt.Errorf("unknown flow node %T", flow)
	}
}
