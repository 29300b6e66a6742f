// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapeinference

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/irgraph/backends"
	"github.com/gomlx/irgraph/pkg/core/shapes"
	"github.com/stretchr/testify/require"
)

// Aliases
var (
	Bool = dtypes.Bool
	I32  = dtypes.Int32
	I64  = dtypes.Int64
	F32  = dtypes.Float32
	U8   = dtypes.Uint8

	MS = shapes.Make
)

// must1 panics if there is an error.
func must1[T any](value T, err error) T {
	if err != nil {
		panic(err)
	}
	return value
}

func TestBinaryOp(t *testing.T) {
	// Invalid/mismatched dtypes.
	require.Panics(t, func() { must1(BinaryOp(backends.OpTypeMul, shapes.Invalid(), shapes.Invalid())) })
	require.Panics(t, func() { must1(BinaryOp(backends.OpTypeMul, MS(F32), MS(I32))) })
	require.Panics(t, func() { must1(BinaryOp(backends.OpTypeMul, MS(Bool), MS(Bool))) })
	require.Panics(t, func() { must1(BinaryOp(backends.OpTypeEqual, MS(F32), MS(F32))) })

	// Scalars and broadcasting.
	require.True(t, must1(BinaryOp(backends.OpTypeMul, MS(F32, 2, 3), MS(F32))).Equal(MS(F32, 2, 3)))
	require.True(t, must1(BinaryOp(backends.OpTypeMul, MS(I64), MS(I64, 5))).Equal(MS(I64, 5)))
	require.True(t, must1(BinaryOp(backends.OpTypeDiv, MS(F32, 2, 1, 3), MS(F32, 1, 4, 3))).Equal(MS(F32, 2, 4, 3)))

	// Incompatible dimensions.
	require.Panics(t, func() { must1(BinaryOp(backends.OpTypeMul, MS(F32, 2, 3), MS(F32, 3, 2))) })
	require.Panics(t, func() { must1(BinaryOp(backends.OpTypeMul, MS(F32, 2, 3), MS(F32, 3))) })
}

func TestComparisonOp(t *testing.T) {
	output := must1(ComparisonOp(backends.OpTypeEqual, MS(I64, 4, 1, 8), MS(I64, 4, 5, 8)))
	require.True(t, output.Equal(MS(Bool, 4, 5, 8)))
	output = must1(ComparisonOp(backends.OpTypeNotEqual, MS(I32, 3), MS(I32)))
	require.True(t, output.Equal(MS(Bool, 3)))
	require.Panics(t, func() { must1(ComparisonOp(backends.OpTypeMul, MS(I32), MS(I32))) })
	require.Panics(t, func() { must1(ComparisonOp(backends.OpTypeEqual, MS(I32), MS(I64))) })
}

func TestUnaryOp(t *testing.T) {
	require.True(t, must1(UnaryOp(backends.OpTypeNeg, MS(F32, 3))).Equal(MS(F32, 3)))
	require.Panics(t, func() { must1(UnaryOp(backends.OpTypeNeg, MS(U8, 3))) })
	require.Panics(t, func() { must1(UnaryOp(backends.OpTypeNeg, MS(Bool, 3))) })
	require.Panics(t, func() { must1(UnaryOp(backends.OpTypeMul, MS(F32))) })
}

func TestConvertDTypeAndIota(t *testing.T) {
	require.True(t, must1(ConvertDTypeOp(MS(Bool, 2, 3), F32)).Equal(MS(F32, 2, 3)))
	require.Panics(t, func() { must1(ConvertDTypeOp(MS(Bool, 2, 3), dtypes.InvalidDType)) })

	require.True(t, must1(IotaOp(MS(I64, 2, 5), 1)).Equal(MS(I64, 2, 5)))
	require.Panics(t, func() { must1(IotaOp(MS(I64, 2, 5), 2)) })
	require.Panics(t, func() { must1(IotaOp(MS(I64), 0)) })
	require.Panics(t, func() { must1(IotaOp(MS(Bool, 3), 0)) })
}

func TestWhereOp(t *testing.T) {
	require.True(t, must1(WhereOp(MS(Bool), MS(F32, 5), MS(F32, 5))).Equal(MS(F32, 5)))
	require.True(t, must1(WhereOp(MS(Bool, 5), MS(F32), MS(F32, 5))).Equal(MS(F32, 5)))
	require.True(t, must1(WhereOp(MS(Bool, 2, 3), MS(F32), MS(F32))).Equal(MS(F32, 2, 3)))
	require.Panics(t, func() { must1(WhereOp(MS(F32), MS(F32), MS(F32))) })
	require.Panics(t, func() { must1(WhereOp(MS(Bool), MS(F32), MS(I32))) })
	require.Panics(t, func() { must1(WhereOp(MS(Bool, 2), MS(F32, 3), MS(F32))) })
}

func TestReshapeOp(t *testing.T) {
	require.True(t, must1(ReshapeOp(MS(F32, 4, 6), []int{2, 12})).Equal(MS(F32, 2, 12)))
	require.True(t, must1(ReshapeOp(MS(F32, 1, 1), []int{})).Equal(MS(F32)))
	require.Panics(t, func() { must1(ReshapeOp(MS(F32, 4, 6), []int{5, 5})) })
	require.Panics(t, func() { must1(ReshapeOp(MS(F32, 4, 6), []int{24, 0})) })
}

func TestBroadcastInDimOp(t *testing.T) {
	require.NoError(t, BroadcastInDimOp(MS(F32, 5), MS(F32, 4, 5, 8), []int{1}))
	require.NoError(t, BroadcastInDimOp(MS(I64, 4, 8), MS(I64, 4, 5, 8), []int{0, 2}))
	require.NoError(t, BroadcastInDimOp(MS(F32, 1, 8), MS(F32, 4, 8), []int{0, 1}))
	require.NoError(t, BroadcastInDimOp(MS(F32), MS(F32, 4, 8), nil))
	require.Error(t, BroadcastInDimOp(MS(F32, 5), MS(I64, 4, 5), []int{1}))
	require.Error(t, BroadcastInDimOp(MS(F32, 5), MS(F32, 4, 5), []int{0}))
	require.Error(t, BroadcastInDimOp(MS(F32, 5), MS(F32, 4, 5), []int{2}))
	require.Error(t, BroadcastInDimOp(MS(F32, 4, 5), MS(F32, 5, 4), []int{1, 0}))
	require.Error(t, BroadcastInDimOp(MS(F32, 4, 4), MS(F32, 4, 4), []int{1, 1}))
	require.Error(t, BroadcastInDimOp(MS(F32, 4), MS(F32, 4, 4), []int{0, 1}))
}

func TestReduceOp(t *testing.T) {
	require.True(t, must1(ReduceOp(MS(F32, 4, 5, 8), []int{1})).Equal(MS(F32, 4, 8)))
	require.True(t, must1(ReduceOp(MS(F32, 4, 5, 8), nil)).Equal(MS(F32)))
	require.True(t, must1(ReduceOp(MS(I64, 4, 5), []int{0, 1})).Equal(MS(I64)))
	require.Panics(t, func() { must1(ReduceOp(MS(F32, 4), []int{1})) })
	require.Panics(t, func() { must1(ReduceOp(MS(F32, 4, 5), []int{1, 1})) })
	require.Panics(t, func() { must1(ReduceOp(MS(Bool, 4), []int{0})) })
}
