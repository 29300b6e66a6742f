// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package lowering

import (
	"fmt"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/irgraph/backends"
	"github.com/gomlx/irgraph/backends/simplego"
	"github.com/gomlx/irgraph/pkg/core/shapes"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Aliases
var (
	MS  = shapes.Make
	F32 = dtypes.Float32
	I32 = dtypes.Int32
	I64 = dtypes.Int64
)

type input struct {
	shape shapes.Shape
	flat  any
}

var (
	testLogits = input{MS(F32, 3, 3), []float32{
		-1, -2, -3,
		-4, -5, -6,
		-7, -8, -9}}
	testLabels = input{MS(I64, 3), []int64{2, 0, -100}}
	testWeight = input{MS(F32, 3), []float32{1, 2, 0.5}}
)

// run builds the computation with one parameter per input, executes it with the simplego backend and returns
// the flat float32 output.
func run(t *testing.T, build func(b backends.Builder, params []backends.Op) (backends.Op, error), inputs ...input) []float32 {
	backend := must.M1(simplego.New(""))
	defer backend.Finalize()
	builder := backend.Builder(t.Name())
	params := make([]backends.Op, len(inputs))
	buffers := make([]backends.Buffer, len(inputs))
	for ii, in := range inputs {
		params[ii] = must.M1(builder.Parameter(fmt.Sprintf("x%d", ii), in.shape))
		buffers[ii] = must.M1(backend.BufferFromFlatData(0, in.flat, in.shape))
	}
	output, err := build(builder, params)
	require.NoError(t, err)
	exec, err := builder.Compile(output)
	require.NoError(t, err)
	defer exec.Finalize()
	results, err := exec.Execute(buffers...)
	require.NoError(t, err)
	require.Len(t, results, 1)
	shape := must.M1(backend.BufferShape(results[0]))
	flat := make([]float32, shape.Size())
	require.NoError(t, backend.BufferToFlatData(results[0], flat))
	return flat
}

func TestReduction(t *testing.T) {
	require.Equal(t, "mean", ReductionMean.String())
	require.Equal(t, "none", ReductionNone.String())
	r, err := ReductionString("sum")
	require.NoError(t, err)
	require.Equal(t, ReductionSum, r)
	_, err = ReductionString("max")
	require.Error(t, err)
	require.False(t, Reduction(7).IsAReduction())
}

func TestNLLLoss(t *testing.T) {
	testCases := []struct {
		name      string
		reduction Reduction
		weighted  bool
		want      []float32
	}{
		{"none", ReductionNone, false, []float32{3, 4, 0}},
		{"sum", ReductionSum, false, []float32{7}},
		{"mean", ReductionMean, false, []float32{3.5}},
		{"weighted none", ReductionNone, true, []float32{1.5, 4, 0}},
		{"weighted sum", ReductionSum, true, []float32{5.5}},
		{"weighted mean", ReductionMean, true, []float32{5.5 / 1.5}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inputs := []input{testLogits, testLabels}
			if tc.weighted {
				inputs = append(inputs, testWeight)
			}
			got := run(t, func(b backends.Builder, params []backends.Op) (backends.Op, error) {
				var weight backends.Op
				if tc.weighted {
					weight = params[2]
				}
				return NLLLoss(b, params[0], params[1], weight, -100, tc.reduction)
			}, inputs...)
			assert.InDeltaSlice(t, tc.want, got, 1e-5)
		})
	}
}

func TestNLLLossBackward(t *testing.T) {
	testCases := []struct {
		name        string
		reduction   Reduction
		gradOutput  input
		weighted    bool
		totalWeight []float32
		want        []float32
	}{
		{"none", ReductionNone, input{MS(F32, 3), []float32{1, 2, 3}}, false, nil,
			[]float32{0, 0, -1, -2, 0, 0, 0, 0, 0}},
		{"sum", ReductionSum, input{MS(F32), []float32{2}}, false, nil,
			[]float32{0, 0, -2, -2, 0, 0, 0, 0, 0}},
		{"mean", ReductionMean, input{MS(F32), []float32{1}}, false, nil,
			[]float32{0, 0, -0.5, -0.5, 0, 0, 0, 0, 0}},
		{"weighted none", ReductionNone, input{MS(F32, 3), []float32{1, 2, 3}}, true, nil,
			[]float32{0, 0, -0.5, -2, 0, 0, 0, 0, 0}},
		{"weighted mean", ReductionMean, input{MS(F32), []float32{1}}, true, nil,
			[]float32{0, 0, -0.5 / 1.5, -1 / 1.5, 0, 0, 0, 0, 0}},
		{"weighted mean with total weight", ReductionMean, input{MS(F32), []float32{1}}, true, []float32{3},
			[]float32{0, 0, -0.5 / 3, -1.0 / 3, 0, 0, 0, 0, 0}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inputs := []input{tc.gradOutput, testLogits, testLabels}
			if tc.weighted {
				inputs = append(inputs, testWeight)
			}
			if tc.totalWeight != nil {
				inputs = append(inputs, input{MS(F32), tc.totalWeight})
			}
			got := run(t, func(b backends.Builder, params []backends.Op) (backends.Op, error) {
				var weight, totalWeight backends.Op
				if tc.weighted {
					weight = params[3]
				}
				if tc.totalWeight != nil {
					totalWeight = params[4]
				}
				return NLLLossBackward(b, params[0], params[1], params[2], weight, totalWeight, -100, tc.reduction)
			}, inputs...)
			assert.InDeltaSlice(t, tc.want, got, 1e-5)
		})
	}
}

func TestNLLLossBackward2D(t *testing.T) {
	backend := must.M1(simplego.New(""))
	defer backend.Finalize()

	build := func(reduction Reduction) (backends.Builder, backends.Op) {
		b := backend.Builder(reduction.String())
		gradOutput := must.M1(b.Parameter("grad_output", MS(F32)))
		logits := must.M1(b.Parameter("logits", MS(F32, 4, 5, 8, 8)))
		labels := must.M1(b.Parameter("labels", MS(I64, 4, 8, 8)))
		grad, err := NLLLossBackward(b, gradOutput, logits, labels, nil, nil, -100, reduction)
		require.NoError(t, err)
		return b, grad
	}
	bMean, gradMean := build(ReductionMean)
	bSum, gradSum := build(ReductionSum)
	require.True(t, MS(F32, 4, 5, 8, 8).Equal(must.M1(bMean.OpShape(gradMean))))
	require.True(t, MS(F32, 4, 5, 8, 8).Equal(must.M1(bSum.OpShape(gradSum))))
	require.NotEqual(t, must.M1(simplego.Describe(gradMean)), must.M1(simplego.Describe(gradSum)))
}

func TestNLLLossBackwardIgnoreIndexRange(t *testing.T) {
	gradOutput := input{MS(F32), []float32{1}}
	logits := input{MS(F32, 1, 2, 1, 2), []float32{-1, -2, -3, -4}}
	int32Labels := input{MS(I32, 1, 1, 2), []int32{1, 0}}
	int64Labels := input{MS(I64, 1, 1, 2), []int64{1, 0}}
	testCases := []struct {
		name        string
		labels      input
		ignoreIndex int
		want        []float32
	}{
		{"int32 ignoring class 1", int32Labels, 1, []float32{0, -1, 0, 0}},
		// 1<<32+1 would truncate to 1 in an int32: no Int32 label can be equal to it.
		{"int32 out of range", int32Labels, 1<<32 + 1, []float32{0, -1, -1, 0}},
		{"int32 below range", int32Labels, -(1 << 32), []float32{0, -1, -1, 0}},
		{"int64 large", int64Labels, 1<<32 + 1, []float32{0, -1, -1, 0}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := run(t, func(b backends.Builder, params []backends.Op) (backends.Op, error) {
				return NLLLossBackward(b, params[0], params[1], params[2], nil, nil, tc.ignoreIndex, ReductionSum)
			}, gradOutput, logits, tc.labels)
			assert.InDeltaSlice(t, tc.want, got, 1e-6)
		})
	}

	// The forward loss agrees.
	loss := run(t, func(b backends.Builder, params []backends.Op) (backends.Op, error) {
		return NLLLoss(b, params[0], params[1], nil, 1<<32+1, ReductionSum)
	}, logits, int32Labels)
	assert.InDeltaSlice(t, []float32{5}, loss, 1e-6)
}

func TestNLLLossErrors(t *testing.T) {
	backend := must.M1(simplego.New(""))
	defer backend.Finalize()
	b := backend.Builder(t.Name())
	logits := must.M1(b.Parameter("logits", MS(F32, 4, 5, 8, 8)))
	labels := must.M1(b.Parameter("labels", MS(I64, 4, 8, 8)))
	scalar := must.M1(b.Parameter("scalar", MS(F32)))

	// Labels with the wrong dimensions.
	badLabels := must.M1(b.Parameter("bad_labels", MS(I64, 4, 8)))
	_, err := NLLLoss(b, logits, badLabels, nil, -100, ReductionMean)
	require.True(t, errors.Is(err, ErrShapeIncompatible), "got %v", err)
	_, err = NLLLossBackward(b, scalar, logits, badLabels, nil, nil, -100, ReductionMean)
	require.True(t, errors.Is(err, ErrShapeIncompatible), "got %v", err)

	// Float labels.
	floatLabels := must.M1(b.Parameter("float_labels", MS(F32, 4, 8, 8)))
	_, err = NLLLoss(b, logits, floatLabels, nil, -100, ReductionSum)
	require.True(t, errors.Is(err, ErrShapeIncompatible), "got %v", err)

	// Weight with the wrong number of classes.
	badWeight := must.M1(b.Parameter("bad_weight", MS(F32, 4)))
	_, err = NLLLoss(b, logits, labels, badWeight, -100, ReductionSum)
	require.True(t, errors.Is(err, ErrShapeIncompatible), "got %v", err)

	// gradOutput must be shaped like labels for ReductionNone.
	_, err = NLLLossBackward(b, scalar, logits, labels, nil, nil, -100, ReductionNone)
	require.True(t, errors.Is(err, ErrShapeIncompatible), "got %v", err)

	// Invalid reduction.
	_, err = NLLLossBackward(b, scalar, logits, labels, nil, nil, -100, Reduction(3))
	require.ErrorContains(t, err, "invalid reduction")
}
