// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"strings"
	"testing"

	"github.com/gomlx/irgraph/backends"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeNodeDedupKey(t *testing.T) {
	b := &Builder{}
	shape := MS(F32, 2, 3)
	node1 := b.newNode(backends.OpTypeDiv, shape)
	node2 := b.newNode(backends.OpTypeMul, shape)

	tests := []struct {
		name       string
		opType     backends.OpType
		inputs     []*Node
		wantCount  int
		wantHasPtr bool
	}{
		{"no inputs", backends.OpTypeIota, nil, 0, false},
		{"one input", backends.OpTypeNeg, []*Node{node1}, 1, true},
		{"two inputs", backends.OpTypeMul, []*Node{node1, node2}, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := makeNodeDedupKey(tt.opType, tt.inputs)
			assert.Equal(t, tt.opType, key.opType)
			assert.Equal(t, tt.wantCount, key.inputCount)
			assert.Equal(t, tt.wantHasPtr, key.firstInput != nil)
		})
	}
}

func TestDedup(t *testing.T) {
	builder := backend.Builder(t.Name())
	x := must.M1(builder.Parameter("x", MS(F32, 3, 3)))
	y := must.M1(builder.Parameter("y", MS(F32, 3, 3)))

	// Same op, same inputs: reused.
	div1 := must.M1(builder.Div(x, y))
	div2 := must.M1(builder.Div(x, y))
	require.Same(t, div1.(*Node), div2.(*Node))

	// Operand order matters.
	div3 := must.M1(builder.Div(y, x))
	require.NotSame(t, div1.(*Node), div3.(*Node))

	// Parameters are never de-duplicated.
	require.NotSame(t, x.(*Node), must.M1(builder.Parameter("x", MS(F32, 3, 3))).(*Node))

	// Same input, different data: not reused.
	sum0 := must.M1(builder.ReduceSum(x, 0))
	sum1 := must.M1(builder.ReduceSum(x, 1))
	require.NotSame(t, sum0.(*Node), sum1.(*Node))
	require.Same(t, sum0.(*Node), must.M1(builder.ReduceSum(x, 0)).(*Node))

	// Same input, different output shapes: not reused.
	r1 := must.M1(builder.Reshape(x, 9))
	r2 := must.M1(builder.Reshape(x, 1, 9))
	require.NotSame(t, r1.(*Node), r2.(*Node))

	iota0 := must.M1(builder.Iota(MS(I64, 2, 2), 0))
	iota1 := must.M1(builder.Iota(MS(I64, 2, 2), 1))
	require.NotSame(t, iota0.(*Node), iota1.(*Node))
	require.Same(t, iota1.(*Node), must.M1(builder.Iota(MS(I64, 2, 2), 1)).(*Node))

	// ConvertDType has no node data: the target dtype is only in the output shape.
	asF32 := must.M1(builder.ConvertDType(iota1, F32))
	asI32 := must.M1(builder.ConvertDType(iota1, I32))
	require.NotSame(t, asF32.(*Node), asI32.(*Node))
	require.Same(t, asF32.(*Node), must.M1(builder.ConvertDType(iota1, F32)).(*Node))

	// Node data of different types is never equal.
	require.False(t, (&iotaNode{axis: 0}).EqualNodeData(&reduceNode{axes: []int{0}}))
	require.True(t, (&reduceNode{axes: []int{0, 1}}).EqualNodeData(&reduceNode{axes: []int{0, 1}}))
	builder.Finalize()

	// With dedup disabled.
	noDedup := must.M1(New("nodedup"))
	builder = noDedup.Builder(t.Name())
	x = must.M1(builder.Parameter("x", MS(F32, 3)))
	require.NotSame(t, must.M1(builder.Neg(x)).(*Node), must.M1(builder.Neg(x)).(*Node))
}

func TestDescribe(t *testing.T) {
	build := func(b backends.Builder, name string) backends.Op {
		x := must.M1(b.Parameter(name, MS(I64, 2, 3)))
		classes := must.M1(b.Iota(MS(I64, 2, 4, 3), 1))
		xb := must.M1(b.BroadcastInDim(x, MS(I64, 2, 4, 3), []int{0, 2}))
		eq := must.M1(b.Equal(classes, xb))
		return must.M1(b.ConvertDType(eq, F32))
	}

	// The same computation on two builders, with unrelated nodes in the second.
	builder1 := backend.Builder("one")
	desc1 := must.M1(Describe(build(builder1, "labels")))
	builder2 := backend.Builder("two")
	_ = must.M1(builder2.Constant([]float32{1, 2}, 2))
	desc2 := must.M1(Describe(build(builder2, "labels")))
	require.Equal(t, desc1, desc2)
	require.True(t, strings.HasPrefix(desc1, `#0 Parameter() [name="labels"] -> (Int64)[2 3]`), desc1)
	require.Contains(t, desc1, "Iota() [axis=1] -> (Int64)[2 4 3]")
	require.Contains(t, desc1, "BroadcastInDim(#0) [axes=[0 2]] -> (Int64)[2 4 3]")
	require.Contains(t, desc1, "Equal(#1, #2) -> (Bool)[2 4 3]")
	require.Contains(t, desc1, "ConvertDType(#3) -> (Float32)[2 4 3]")
	require.True(t, strings.HasSuffix(desc1, "outputs: #4"), desc1)

	// Ops from different builders can't be described together.
	_, err := Describe(build(builder1, "a"), build(builder2, "b"))
	require.Error(t, err)
}
