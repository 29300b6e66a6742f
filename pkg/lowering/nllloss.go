// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package lowering implements composite operations in terms of the primitive ops of a backends.Builder.
//
// These are the "lowering" building blocks used by the IR operators: the same functions are called with
// shape-only placeholders (to infer the output shape) and with the real operands (to build the computation).
//
// The functions return errors. Internally errors are raised as panics and caught at the exported function
// boundary with exceptions.TryCatch.
package lowering

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/irgraph/backends"
	"github.com/gomlx/irgraph/pkg/core/shapes"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
)

// ErrShapeIncompatible is wrapped by the errors returned when the inputs of an operation have incompatible
// shapes or dtypes. Use errors.Is to check for it.
var ErrShapeIncompatible = errors.New("incompatible shapes")

// ClassAxis is the axis of the logits holding the classes.
const ClassAxis = 1

// lossInputs holds the validated inputs shared by NLLLoss and NLLLossBackward.
type lossInputs struct {
	b                     backends.Builder
	logits, labels        backends.Op
	weight                backends.Op // Optional, may be nil.
	logitsShape           shapes.Shape
	labelsShape           shapes.Shape
	expandedDims          []int // Labels dimensions with a 1 inserted at ClassAxis.
	ignoreIndex           int
	cachedWeightedTargets backends.Op
	cachedValid           backends.Op
}

// newLossInputs validates the shapes of logits, labels and the optional weight.
//
// logits must be shaped (N, C, d1, ..., dk), with a float dtype, labels (N, d1, ..., dk) with an integer dtype,
// and weight, if given, (C) with the same dtype as logits.
func newLossInputs(b backends.Builder, logits, labels, weight backends.Op, ignoreIndex int, reduction Reduction) *lossInputs {
	if !reduction.IsAReduction() {
		panic(errors.Errorf("invalid reduction %d", int(reduction)))
	}
	l := &lossInputs{
		b:           b,
		logits:      logits,
		labels:      labels,
		weight:      weight,
		logitsShape: must.M1(b.OpShape(logits)),
		labelsShape: must.M1(b.OpShape(labels)),
		ignoreIndex: ignoreIndex,
	}
	if l.logitsShape.Rank() < 2 || !l.logitsShape.DType.IsFloat() {
		panic(errors.Wrapf(ErrShapeIncompatible, "logits must be a float tensor shaped (batch, classes, ...), got %s", l.logitsShape))
	}
	if l.labelsShape.DType != dtypes.Int32 && l.labelsShape.DType != dtypes.Int64 {
		panic(errors.Wrapf(ErrShapeIncompatible, "labels must be Int32 or Int64, got %s", l.labelsShape))
	}
	wantLabelsShape := l.logitsShape.DropAxis(ClassAxis).WithDType(l.labelsShape.DType)
	if !l.labelsShape.Equal(wantLabelsShape) {
		panic(errors.Wrapf(ErrShapeIncompatible, "labels shape %s doesn't match logits shape %s, expected labels shaped %s",
			l.labelsShape, l.logitsShape, wantLabelsShape))
	}
	if weight != nil {
		weightShape := must.M1(b.OpShape(weight))
		wantWeightShape := shapes.Make(l.logitsShape.DType, l.numClasses())
		if !weightShape.Equal(wantWeightShape) {
			panic(errors.Wrapf(ErrShapeIncompatible, "weight must be shaped %s (one weight per class), got %s",
				wantWeightShape, weightShape))
		}
	}
	l.expandedDims = make([]int, 0, l.logitsShape.Rank())
	l.expandedDims = append(l.expandedDims, l.labelsShape.Dimensions[:ClassAxis]...)
	l.expandedDims = append(l.expandedDims, 1)
	l.expandedDims = append(l.expandedDims, l.labelsShape.Dimensions[ClassAxis:]...)
	return l
}

// toLogitsShape broadcasts x, shaped like labels, over the class axis.
func (l *lossInputs) toLogitsShape(x backends.Op) backends.Op {
	xShape := must.M1(l.b.OpShape(x))
	expanded := must.M1(l.b.Reshape(x, l.expandedDims...))
	axes := make([]int, len(l.expandedDims))
	for axis := range axes {
		axes[axis] = axis
	}
	return must.M1(l.b.BroadcastInDim(expanded, l.logitsShape.WithDType(xShape.DType), axes))
}

// canIgnore returns whether ignoreIndex is representable in the labels dtype. If not, no label can match it.
func (l *lossInputs) canIgnore() bool {
	if l.labelsShape.DType == dtypes.Int32 {
		return l.ignoreIndex >= math.MinInt32 && l.ignoreIndex <= math.MaxInt32
	}
	return true
}

func (l *lossInputs) numClasses() int {
	return l.logitsShape.Dimensions[ClassAxis]
}

// valid returns a boolean mask shaped like labels, true where labels != ignoreIndex.
// It returns nil if no label can be equal to ignoreIndex.
func (l *lossInputs) valid() backends.Op {
	if l.cachedValid == nil && l.canIgnore() {
		ignore := must.M1(scalarConstant(l.b, l.labelsShape.DType, l.ignoreIndex))
		l.cachedValid = must.M1(l.b.NotEqual(l.labels, ignore))
	}
	return l.cachedValid
}

// weightedTargets returns a float tensor shaped like logits with weight[c] (or 1 if there are no weights) at the
// target class of each non-ignored label, and 0 elsewhere.
func (l *lossInputs) weightedTargets() backends.Op {
	if l.cachedWeightedTargets != nil {
		return l.cachedWeightedTargets
	}
	b := l.b
	labelsDType := l.labelsShape.DType
	classes := must.M1(b.Iota(l.logitsShape.WithDType(labelsDType), ClassAxis))
	oneHot := must.M1(b.Equal(classes, l.toLogitsShape(l.labels)))
	if valid := l.valid(); valid != nil {
		notTarget := must.M1(b.Constant([]bool{false}))
		oneHot = must.M1(b.Where(l.toLogitsShape(valid), oneHot, notTarget))
	}
	targets := must.M1(b.ConvertDType(oneHot, l.logitsShape.DType))
	if l.weight != nil {
		broadcastWeight := must.M1(b.BroadcastInDim(l.weight, l.logitsShape, []int{ClassAxis}))
		targets = must.M1(b.Mul(targets, broadcastWeight))
	}
	l.cachedWeightedTargets = targets
	return targets
}

// totalWeight returns the scalar sum of the weights of the non-ignored labels: the mean denominator.
func (l *lossInputs) totalWeight() backends.Op {
	return must.M1(l.b.ReduceSum(l.weightedTargets()))
}

// NLLLoss returns the negative log-likelihood loss of the given logits (expected to be log-probabilities) for
// the labels, using the reduction selected.
//
// logits are shaped (N, C, d1, ..., dk) and labels (N, d1, ..., dk). weight is optional (nil if not given), and
// if present is shaped (C). Labels equal to ignoreIndex don't contribute to the loss nor to the total weight.
//
// For ReductionNone the loss is shaped like labels, otherwise it is a scalar.
func NLLLoss(b backends.Builder, logits, labels, weight backends.Op, ignoreIndex int, reduction Reduction) (loss backends.Op, err error) {
	err = exceptions.TryCatch[error](func() {
		l := newLossInputs(b, logits, labels, weight, ignoreIndex, reduction)
		picked := must.M1(b.Mul(logits, l.weightedTargets()))
		loss = must.M1(b.Neg(must.M1(b.ReduceSum(picked, ClassAxis))))
		switch reduction {
		case ReductionSum:
			loss = must.M1(b.ReduceSum(loss))
		case ReductionMean:
			loss = must.M1(b.Div(must.M1(b.ReduceSum(loss)), l.totalWeight()))
		}
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "NLLLoss(reduction=%s, ignoreIndex=%d)", reduction, ignoreIndex)
	}
	return
}

// NLLLossBackward returns the gradient of NLLLoss with respect to the logits: it is shaped like logits.
//
// gradOutput is the gradient with respect to the loss: shaped like labels for ReductionNone, or a scalar
// otherwise. weight (shaped (C)) and totalWeight (a scalar) are optional, and can be nil.
//
// For ReductionMean the gradient is divided by totalWeight if given, otherwise by the sum of the weights of the
// non-ignored labels (the count of non-ignored labels if there are no weights).
func NLLLossBackward(b backends.Builder, gradOutput, logits, labels, weight, totalWeight backends.Op,
	ignoreIndex int, reduction Reduction) (grad backends.Op, err error) {
	err = exceptions.TryCatch[error](func() {
		grad = nllLossBackward(b, gradOutput, logits, labels, weight, totalWeight, ignoreIndex, reduction)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "NLLLossBackward(reduction=%s, ignoreIndex=%d)", reduction, ignoreIndex)
	}
	return
}

func nllLossBackward(b backends.Builder, gradOutput, logits, labels, weight, totalWeight backends.Op,
	ignoreIndex int, reduction Reduction) backends.Op {
	l := newLossInputs(b, logits, labels, weight, ignoreIndex, reduction)
	dtype := l.logitsShape.DType

	gradOutputShape := must.M1(b.OpShape(gradOutput))
	wantGradOutputShape := shapes.Make(dtype)
	if reduction == ReductionNone {
		wantGradOutputShape = l.labelsShape.WithDType(dtype)
	}
	if !gradOutputShape.Equal(wantGradOutputShape) {
		panic(errors.Wrapf(ErrShapeIncompatible, "gradOutput for reduction %q must be shaped %s, got %s",
			reduction, wantGradOutputShape, gradOutputShape))
	}
	if totalWeight != nil {
		totalWeightShape := must.M1(b.OpShape(totalWeight))
		if !totalWeightShape.Equal(shapes.Make(dtype)) {
			panic(errors.Wrapf(ErrShapeIncompatible, "totalWeight must be a %s scalar, got %s", dtype, totalWeightShape))
		}
	}

	grad := must.M1(b.Neg(l.weightedTargets()))
	switch reduction {
	case ReductionNone:
		grad = must.M1(b.Mul(grad, l.toLogitsShape(gradOutput)))
	case ReductionSum:
		grad = must.M1(b.Mul(grad, gradOutput))
	case ReductionMean:
		denominator := totalWeight
		if denominator == nil {
			denominator = l.totalWeight()
		}
		grad = must.M1(b.Mul(grad, must.M1(b.Div(gradOutput, denominator))))
	}
	return grad
}

// scalarConstant returns a scalar constant of the given integer dtype.
func scalarConstant(b backends.Builder, dtype dtypes.DType, value int) (backends.Op, error) {
	switch dtype {
	case dtypes.Int32:
		if value < math.MinInt32 || value > math.MaxInt32 {
			return nil, errors.Errorf("scalarConstant: %d overflows %s", value, dtype)
		}
		return b.Constant([]int32{int32(value)})
	case dtypes.Int64:
		return b.Constant([]int64{int64(value)})
	}
	return nil, errors.Errorf("scalarConstant: dtype %s not supported", dtype)
}
