// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir_test

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/irgraph/pkg/core/shapes"
	. "github.com/gomlx/irgraph/pkg/ir"
	"github.com/gomlx/irgraph/pkg/ir/irtest"
	"github.com/gomlx/irgraph/pkg/lowering"
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

func TestArity(t *testing.T) {
	g := irtest.NewGraph(t)
	values := make([]Value, 5)
	for ii, name := range []string{"a", "b", "c", "d", "e"} {
		values[ii] = g.Parameter(name, MS(F32))
	}
	arity := Arity{Required: 3, Groups: []OptionalGroup{{Name: "weight", Size: 2}}}
	require.Equal(t, []int{3, 5}, arity.ValidCounts())
	require.Equal(t, "3 required + [weight: 2]", arity.String())

	// Pack
	operands, err := arity.Pack(values[:3], []OptionalValue{None(), None()})
	require.NoError(t, err)
	require.Equal(t, values[:3], operands)
	operands, err = arity.Pack(values[:3])
	require.NoError(t, err)
	require.Len(t, operands, 3)
	operands, err = arity.Pack(values[:3], []OptionalValue{Some(values[3]), Some(values[4])})
	require.NoError(t, err)
	require.Equal(t, values, operands)
	_, err = arity.Pack(values[:3], []OptionalValue{Some(values[3]), None()})
	require.True(t, errors.Is(err, ErrArity), "got %v", err)
	_, err = arity.Pack(values[:3], []OptionalValue{None(), Some(values[4])})
	require.True(t, errors.Is(err, ErrArity), "got %v", err)
	_, err = arity.Pack(values[:2], []OptionalValue{None(), None()})
	require.True(t, errors.Is(err, ErrArity), "got %v", err)

	// Split
	for _, count := range []int{3, 5} {
		required, groups, err := arity.Split(values[:count])
		require.NoError(t, err)
		require.Equal(t, values[:3], required)
		require.Len(t, groups, 1)
		if count == 3 {
			require.Nil(t, groups[0])
		} else {
			require.Equal(t, values[3:], groups[0])
		}
	}
	for _, count := range []int{0, 2, 4} {
		_, _, err := arity.Split(values[:count])
		require.True(t, errors.Is(err, ErrArity), "count=%d: got %v", count, err)
	}
	_, _, err = arity.Split(append(values, values[0]))
	require.True(t, errors.Is(err, ErrArity), "got %v", err)

	// Positional groups: the second can't be given without the first.
	twoGroups := Arity{Required: 1, Groups: []OptionalGroup{{Name: "x", Size: 1}, {Name: "y", Size: 1}}}
	_, err = twoGroups.Pack(values[:1], []OptionalValue{None()}, []OptionalValue{Some(values[1])})
	require.True(t, errors.Is(err, ErrArity), "got %v", err)
	operands, err = twoGroups.Pack(values[:1], []OptionalValue{Some(values[1])}, []OptionalValue{None()})
	require.NoError(t, err)
	require.Len(t, operands, 2)
}

func TestOptionalValue(t *testing.T) {
	g := irtest.NewGraph(t)
	x := g.Parameter("x", MS(F32, 2))
	require.True(t, Some(x).Present())
	require.Equal(t, x, Some(x).Value())
	require.False(t, None().Present())
	require.Panics(t, func() { _ = None().Value() })
	require.Equal(t, "None", None().String())
	require.Equal(t, x.String(), Some(x).String())
}

func TestMHash(t *testing.T) {
	assert.Equal(t, MHash(1, "a", MS(F32, 2)), MHash(1, "a", MS(F32, 2)))
	assert.NotEqual(t, MHash(1, 2), MHash(2, 1))
	assert.NotEqual(t, MHash("ab", "c"), MHash("a", "bc"))
	assert.NotEqual(t, MHash(MS(F32, 2)), MHash(MS(I64, 2)))
	assert.NotEqual(t, MHash(MS(F32, 2, 3)), MHash(MS(F32, 3, 2)))

	// Enums hash as their integer values.
	assert.Equal(t, MHash(lowering.ReductionMean, OpKindNLLLoss), MHash(1, int64(OpKindNLLLoss)))
	assert.Panics(t, func() { MHash(1.5) })
}
