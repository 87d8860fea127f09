package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalExpr_Lit(t *testing.T) {
	node, err := UnmarshalExpr([]byte(`{"op":"lit","value":42}`))
	require.NoError(t, err)
	lit, ok := node.(*Lit)
	require.True(t, ok)
	assert.Equal(t, 42.0, lit.Value)
}

func TestUnmarshalExpr_Get(t *testing.T) {
	node, err := UnmarshalExpr([]byte(`{"op":"get","path":"state.count"}`))
	require.NoError(t, err)
	get, ok := node.(*Get)
	require.True(t, ok)
	assert.Equal(t, Path("state.count"), get.Path)

	_, err = UnmarshalExpr([]byte(`{"op":"get"}`))
	assert.Error(t, err)
}

func TestUnmarshalExpr_Arith(t *testing.T) {
	node, err := UnmarshalExpr([]byte(`{
		"op": "add",
		"args": [
			{"op": "get", "path": "state.count"},
			{"op": "lit", "value": 1}
		]
	}`))
	require.NoError(t, err)
	arith, ok := node.(*Arith)
	require.True(t, ok)
	assert.Equal(t, OpAdd, arith.Op)
	assert.Len(t, arith.Args, 2)

	_, err = UnmarshalExpr([]byte(`{"op":"add","args":[{"op":"lit","value":1}]}`))
	assert.Error(t, err, "arith wants at least two args")
}

func TestUnmarshalExpr_CompareAcceptsLeftRightOrArgs(t *testing.T) {
	fromFields, err := UnmarshalExpr([]byte(`{
		"op": "lt",
		"left":  {"op": "lit", "value": 1},
		"right": {"op": "lit", "value": 2}
	}`))
	require.NoError(t, err)

	fromArgs, err := UnmarshalExpr([]byte(`{
		"op": "lt",
		"args": [{"op": "lit", "value": 1}, {"op": "lit", "value": 2}]
	}`))
	require.NoError(t, err)

	a := fromFields.(*Compare)
	b := fromArgs.(*Compare)
	assert.Equal(t, a.Op, b.Op)
	assert.Equal(t, a.Left.(*Lit).Value, b.Left.(*Lit).Value)
	assert.Equal(t, a.Right.(*Lit).Value, b.Right.(*Lit).Value)
}

func TestUnmarshalExpr_CondElseOptional(t *testing.T) {
	node, err := UnmarshalExpr([]byte(`{
		"op": "if",
		"cond": {"op": "lit", "value": true},
		"then": {"op": "lit", "value": "yes"}
	}`))
	require.NoError(t, err)
	cond := node.(*Cond)
	assert.Nil(t, cond.Else)

	node, err = UnmarshalExpr([]byte(`{
		"op": "if",
		"cond": {"op": "lit", "value": false},
		"then": {"op": "lit", "value": "yes"},
		"else": {"op": "lit", "value": "no"}
	}`))
	require.NoError(t, err)
	cond = node.(*Cond)
	assert.NotNil(t, cond.Else)
}

func TestUnmarshalExpr_Collect(t *testing.T) {
	node, err := UnmarshalExpr([]byte(`{
		"op": "filter",
		"source": {"op": "get", "path": "state.items"},
		"fn": {"op": "get", "path": "item.active"}
	}`))
	require.NoError(t, err)
	collect := node.(*Collect)
	assert.Equal(t, OpFilter, collect.Op)
}

func TestUnmarshalExpr_UnknownOp(t *testing.T) {
	_, err := UnmarshalExpr([]byte(`{"op":"frobnicate"}`))
	assert.ErrorContains(t, err, "unknown op")

	_, err = UnmarshalExpr([]byte(`{}`))
	assert.ErrorContains(t, err, "missing op")
}

func TestExpr_MarshalRoundTrip(t *testing.T) {
	exprs := []ExprNode{
		&Lit{Value: 1.5},
		&Get{Path: "computed.total"},
		&Arith{Op: OpMul, Args: []ExprNode{&Lit{Value: 2.0}, &Get{Path: "state.n"}}},
		&Compare{Op: OpGte, Left: &Get{Path: "state.n"}, Right: &Lit{Value: 0.0}},
		&Logic{Op: OpAnd, Args: []ExprNode{&Lit{Value: true}, &Lit{Value: false}}},
		&Not{Arg: &Lit{Value: false}},
		&Concat{Args: []ExprNode{&Lit{Value: "a"}, &Lit{Value: "b"}}},
		&Contains{Haystack: &Get{Path: "state.tags"}, Needle: &Lit{Value: "x"}},
		&Collect{Op: OpEvery, Source: &Get{Path: "state.items"}, Fn: &IsNull{Arg: &Get{Path: "item.gone"}}},
		&Len{Arg: &Get{Path: "state.items"}},
		&Keys{Arg: &Get{Path: "state.obj"}},
		&MergeObjects{Args: []ExprNode{&Get{Path: "state.a"}, &Get{Path: "state.b"}}},
		&Cond{If: &Lit{Value: true}, Then: &Lit{Value: 1.0}, Else: &Lit{Value: 2.0}},
		&Coalesce{Args: []ExprNode{&Get{Path: "state.maybe"}, &Lit{Value: "fallback"}}},
		&TypeOf{Arg: &Lit{Value: nil}},
		&ToString{Arg: &Lit{Value: 7.0}},
	}

	for _, expr := range exprs {
		data, err := json.Marshal(expr)
		require.NoError(t, err)

		back, err := UnmarshalExpr(data)
		require.NoError(t, err, "wire form %s", data)

		again, err := json.Marshal(back)
		require.NoError(t, err)
		assert.JSONEq(t, string(data), string(again))
	}
}
