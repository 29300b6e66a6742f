// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/irgraph/backends/simplego"
	. "github.com/gomlx/irgraph/pkg/ir"
	"github.com/gomlx/irgraph/pkg/ir/irtest"
	"github.com/gomlx/irgraph/pkg/lowering"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lossInputs creates the parameters of a NLLLoss2dBackward: gradOutput shaped for the reduction, logits
// (N, C, H, W), labels (N, H, W), weight (C) and totalWeight.
type lossInputs struct {
	gradOutput, logits, labels, weight, totalWeight Value
}

func newLossInputs(g *Graph, reduction lowering.Reduction, n, c, h, w int) lossInputs {
	var l lossInputs
	if reduction == lowering.ReductionNone {
		l.gradOutput = g.Parameter("grad_output", MS(F32, n, h, w))
	} else {
		l.gradOutput = g.Parameter("grad_output", MS(F32))
	}
	l.logits = g.Parameter("logits", MS(F32, n, c, h, w))
	l.labels = g.Parameter("labels", MS(I64, n, h, w))
	l.weight = g.Parameter("weight", MS(F32, c))
	l.totalWeight = g.Parameter("total_weight", MS(F32))
	return l
}

func (l lossInputs) backward(reduction lowering.Reduction, ignoreIndex int, weighted bool) Value {
	weight, totalWeight := None(), None()
	if weighted {
		weight, totalWeight = Some(l.weight), Some(l.totalWeight)
	}
	return NLLLoss2dBackward(l.gradOutput, l.logits, l.labels, weight, totalWeight, reduction, ignoreIndex)
}

func TestNLLLoss2dBackwardShape(t *testing.T) {
	for _, reduction := range lowering.ReductionValues() {
		for _, weighted := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s-weighted=%v", reduction, weighted), func(t *testing.T) {
				g := irtest.NewGraph(t)
				l := newLossInputs(g, reduction, 4, 5, 8, 8)
				grad := l.backward(reduction, -100, weighted)
				require.True(t, MS(F32, 4, 5, 8, 8).Equal(grad.Shape()), "got %s", grad.Shape())
				require.Equal(t, 1, grad.Node().NumOutputs())
				if weighted {
					require.Len(t, grad.Node().Operands(), 5)
				} else {
					require.Len(t, grad.Node().Operands(), 3)
				}
			})
		}
	}
}

func TestNLLLoss2dBackwardOptionalPairing(t *testing.T) {
	g := irtest.NewGraph(t)
	l := newLossInputs(g, lowering.ReductionMean, 2, 3, 2, 2)
	testCases := []struct {
		name                string
		weight, totalWeight OptionalValue
		wantErr             bool
	}{
		{"neither", None(), None(), false},
		{"both", Some(l.weight), Some(l.totalWeight), false},
		{"only weight", Some(l.weight), None(), true},
		{"only total weight", None(), Some(l.totalWeight), true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := exceptions.TryCatch[error](func() {
				_ = NLLLoss2dBackward(l.gradOutput, l.logits, l.labels, tc.weight, tc.totalWeight, lowering.ReductionMean, -100)
			})
			if tc.wantErr {
				require.True(t, errors.Is(err, ErrArity), "got %v", err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestNLLLoss2dBackwardShapeErrors(t *testing.T) {
	g := irtest.NewGraph(t)
	l := newLossInputs(g, lowering.ReductionSum, 2, 3, 4, 4)
	badLabels := g.Parameter("bad_labels", MS(I64, 2, 4, 5))
	err := exceptions.TryCatch[error](func() {
		_ = NLLLoss2dBackward(l.gradOutput, l.logits, badLabels, None(), None(), lowering.ReductionSum, -100)
	})
	require.True(t, errors.Is(err, ErrShapeIncompatible), "got %v", err)

	// Rank-2 logits are for NLLLossBackward, not NLLLoss2dBackward.
	logits2 := g.Parameter("logits_2", MS(F32, 2, 3))
	labels1 := g.Parameter("labels_1", MS(I64, 2))
	err = exceptions.TryCatch[error](func() {
		_ = NLLLoss2dBackward(l.gradOutput, logits2, labels1, None(), None(), lowering.ReductionSum, -100)
	})
	require.True(t, errors.Is(err, ErrShapeIncompatible), "got %v", err)
	require.NotPanics(t, func() {
		grad := NLLLossBackward(l.gradOutput, logits2, labels1, None(), None(), lowering.ReductionSum, -100)
		require.True(t, logits2.Shape().Equal(grad.Shape()))
	})

	// Invalid reduction.
	require.Panics(t, func() {
		_ = NLLLoss2dBackward(l.gradOutput, l.logits, l.labels, None(), None(), lowering.Reduction(5), -100)
	})
}

func TestNLLLoss2dBackwardClone(t *testing.T) {
	g := irtest.NewGraph(t)
	l := newLossInputs(g, lowering.ReductionMean, 2, 3, 2, 2)
	weighted := l.backward(lowering.ReductionMean, 7, true).Node()
	unweighted := l.backward(lowering.ReductionMean, 7, false).Node()
	require.NotSame(t, weighted, unweighted)

	// 3 operands: the same as constructing it without weights.
	clone3 := g.Clone(weighted, []Value{l.gradOutput, l.logits, l.labels})
	require.Same(t, unweighted, clone3)
	op3 := clone3.Op().(*NLLLossBackwardOp)
	require.False(t, op3.HasWeights())
	require.Equal(t, lowering.ReductionMean, op3.Reduction())
	require.Equal(t, 7, op3.IgnoreIndex())

	// 5 operands: weights kept, parameters copied.
	otherLogits := g.Parameter("other_logits", MS(F32, 2, 3, 2, 2))
	clone5 := g.Clone(weighted, []Value{l.gradOutput, otherLogits, l.labels, l.weight, l.totalWeight})
	require.NotSame(t, weighted, clone5)
	op5 := clone5.Op().(*NLLLossBackwardOp)
	require.True(t, op5.HasWeights())
	require.Equal(t, OpKindNLLLoss2dBackward, clone5.Kind())
	require.Equal(t, weighted.Hash(), clone5.Hash())
	require.Equal(t, otherLogits, clone5.Operands()[1])
	require.True(t, otherLogits.Shape().Equal(clone5.Shape()))

	// Any other number of operands fails.
	for _, operands := range [][]Value{
		{l.gradOutput, l.logits, l.labels, l.weight},
		{l.gradOutput, l.logits},
		{l.gradOutput, l.logits, l.labels, l.weight, l.totalWeight, l.weight},
	} {
		err := exceptions.TryCatch[error](func() { _ = g.Clone(weighted, operands) })
		require.True(t, errors.Is(err, ErrArity), "%d operands: got %v", len(operands), err)
	}

	// Leaves clone to themselves.
	require.Same(t, l.logits.Node(), g.Clone(l.logits.Node(), nil))
}

func TestNLLLoss2dBackwardHash(t *testing.T) {
	g := irtest.NewGraph(t)
	l := newLossInputs(g, lowering.ReductionSum, 2, 3, 2, 2)
	other := newLossInputs(NewGraph(g.Backend(), ""), lowering.ReductionSum, 3, 4, 5, 5)
	hash := l.backward(lowering.ReductionSum, -100, false).Node().Hash()

	// Independent of the operands, including the presence of weights.
	assert.Equal(t, hash, l.backward(lowering.ReductionSum, -100, true).Node().Hash())
	assert.Equal(t, hash, other.backward(lowering.ReductionSum, -100, false).Node().Hash())

	// Different parameters.
	assert.NotEqual(t, hash, l.backward(lowering.ReductionSum, 0, false).Node().Hash())
	mean := NLLLoss2dBackward(l.gradOutput, l.logits, l.labels, None(), None(), lowering.ReductionMean, -100)
	assert.NotEqual(t, hash, mean.Node().Hash())

	// Different kind.
	logits2 := g.Parameter("logits_2", MS(F32, 2, 3))
	labels1 := g.Parameter("labels_1", MS(I64, 2))
	assert.NotEqual(t, hash, NLLLossBackward(l.gradOutput, logits2, labels1, None(), None(),
		lowering.ReductionSum, -100).Node().Hash())
}

func TestNLLLoss2dBackwardString(t *testing.T) {
	g := irtest.NewGraph(t)
	l := newLossInputs(g, lowering.ReductionMean, 2, 3, 2, 2)
	grad := l.backward(lowering.ReductionMean, -100, false)
	desc := grad.Node().Op().String()
	require.True(t, strings.HasPrefix(desc, "NLLLoss2dBackward("), desc)
	require.Contains(t, desc, "reduction=mean")
	require.Contains(t, desc, "ignore_index=-100")
	require.Equal(t, fmt.Sprintf("NLLLoss2dBackward(%s, %s, %s), reduction=mean, ignore_index=-100",
		l.gradOutput, l.logits, l.labels), desc)

	grad = l.backward(lowering.ReductionSum, 3, true)
	desc = grad.Node().String()
	require.Contains(t, desc, "reduction=sum, ignore_index=3")
	require.Contains(t, desc, "-> [(Float32)[2 3 2 2]]")
}

// TestNLLLoss2dBackwardLowering checks the scenario of logits (4, 5, 8, 8): mean and sum reductions infer the
// same shape, but lower to different computations.
func TestNLLLoss2dBackwardLowering(t *testing.T) {
	backend := irtest.BuildTestBackend()
	if backend.Name() != simplego.BackendName {
		t.Skipf("lowered computations can only be described with backend %q", simplego.BackendName)
	}
	describe := func(reduction lowering.Reduction) string {
		g := NewGraph(backend, reduction.String())
		l := newLossInputs(g, lowering.ReductionMean, 4, 5, 8, 8)
		grad := NLLLoss2dBackward(l.gradOutput, l.logits, l.labels, None(), None(), reduction, -100)
		require.True(t, MS(F32, 4, 5, 8, 8).Equal(grad.Shape()))
		builder := backend.Builder(g.Name())
		defer builder.Finalize()
		ops, err := g.Lower(builder, grad)
		require.NoError(t, err)
		shape := must.M1(builder.OpShape(ops[0]))
		require.True(t, grad.Shape().Equal(shape), "lowered shape %s != inferred %s", shape, grad.Shape())
		return must.M1(simplego.Describe(ops[0]))
	}
	mean := describe(lowering.ReductionMean)
	sum := describe(lowering.ReductionSum)
	require.NotEqual(t, mean, sum)
	require.Contains(t, mean, "Div(")
	require.NotContains(t, sum, "Div(")
	require.Equal(t, mean, describe(lowering.ReductionMean))
}

func TestNLLLoss2dBackwardRun(t *testing.T) {
	testCases := []struct {
		name        string
		reduction   lowering.Reduction
		weighted    bool
		gradOutput  []float32
		labels      []int64
		ignoreIndex int
		want        []float32
	}{
		{"sum", lowering.ReductionSum, false, []float32{1}, []int64{1, -100}, -100,
			[]float32{0, 0, -1, 0}},
		{"mean", lowering.ReductionMean, false, []float32{1}, []int64{1, 0}, -100,
			[]float32{0, -0.5, -0.5, 0}},
		{"none", lowering.ReductionNone, false, []float32{2, 3}, []int64{1, 0}, 1,
			[]float32{0, -3, 0, 0}},
		{"weighted mean", lowering.ReductionMean, true, []float32{1}, []int64{1, 0}, -100,
			[]float32{0, -2.0 / 3, -1, 0}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := irtest.NewGraph(t)
			l := newLossInputs(g, tc.reduction, 1, 2, 1, 2)
			grad := l.backward(tc.reduction, tc.ignoreIndex, tc.weighted)
			outputs := irtest.Run(t, []Value{grad},
				tc.gradOutput, []float32{-1, -2, -3, -4}, tc.labels, []float32{2, 3}, []float32{3})
			require.Len(t, outputs, 1)
			assert.InDeltaSlice(t, tc.want, outputs[0], 1e-6)
		})
	}
}

func TestNLLLoss2dBackwardInt32Labels(t *testing.T) {
	g := irtest.NewGraph(t)
	gradOutput := g.Parameter("grad_output", MS(F32))
	logits := g.Parameter("logits", MS(F32, 1, 2, 1, 2))
	labels := g.Parameter("labels", MS(I32, 1, 1, 2))
	ignoreClass1 := NLLLoss2dBackward(gradOutput, logits, labels, None(), None(), lowering.ReductionSum, 1)
	// Not representable as an Int32: no label is ignored.
	outOfRange := NLLLoss2dBackward(gradOutput, logits, labels, None(), None(), lowering.ReductionSum, 1<<32+1)
	require.NotEqual(t, ignoreClass1.Node().Hash(), outOfRange.Node().Hash())

	outputs := irtest.Run(t, []Value{ignoreClass1, outOfRange}, []float32{1}, []float32{-1, -2, -3, -4}, []int32{1, 0})
	assert.InDeltaSlice(t, []float32{0, -1, 0, 0}, outputs[0], 1e-6)
	assert.InDeltaSlice(t, []float32{0, -1, -1, 0}, outputs[1], 1e-6)
}
