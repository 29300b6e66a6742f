// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"fmt"
	"os"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/irgraph/backends"
	"github.com/gomlx/irgraph/pkg/core/shapes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

var backend backends.Backend

func init() {
	klog.InitFlags(nil)
}

func setup() {
	fmt.Printf("Available backends: %q\n", backends.List())
	if os.Getenv(backends.ConfigEnvVar) == "" {
		must.M(os.Setenv(backends.ConfigEnvVar, BackendName))
	} else {
		fmt.Printf("\t$%s=%q\n", backends.ConfigEnvVar, os.Getenv(backends.ConfigEnvVar))
	}
	backend = must.M1(backends.New())
	fmt.Printf("Backend: %s, %s\n", backend.Name(), backend.Description())
}

func teardown() {
	backend.Finalize()
}

func TestMain(m *testing.M) {
	setup()
	code := m.Run() // Run all tests in the file
	teardown()
	os.Exit(code)
}

func TestNew(t *testing.T) {
	b, err := New("")
	require.NoError(t, err)
	require.Equal(t, BackendName, b.Name())
	require.Equal(t, backends.DeviceNum(1), b.NumDevices())
	require.False(t, b.(*Backend).noDedup)

	b, err = New("nodedup")
	require.NoError(t, err)
	require.True(t, b.(*Backend).noDedup)
	require.True(t, b.Builder("test").(*Builder).noDedup)

	_, err = New("nodedup,fast")
	require.Error(t, err)

	b, err = backends.NewWithConfig("go:nodedup")
	require.NoError(t, err)
	require.True(t, b.(*Backend).noDedup)
}

// buildAndExec builds a computation with one parameter per input (shape taken from the flat data and dims given),
// runs it and returns the flat outputs.
func buildAndExec(t *testing.T, inputShapes []shapes.Shape, inputDatas []any,
	buildFn func(b backends.Builder, params []backends.Op) ([]backends.Op, error)) []any {
	builder := backend.Builder(t.Name())
	params := make([]backends.Op, len(inputShapes))
	for ii, shape := range inputShapes {
		params[ii] = must.M1(builder.Parameter(fmt.Sprintf("x%d", ii), shape))
	}
	outputs, err := buildFn(builder, params)
	require.NoError(t, err)
	exec, err := builder.Compile(outputs...)
	require.NoError(t, err)
	defer exec.Finalize()

	inputs := make([]backends.Buffer, len(inputDatas))
	for ii, data := range inputDatas {
		inputs[ii] = must.M1(backend.BufferFromFlatData(0, data, inputShapes[ii]))
	}
	outputBuffers, err := exec.Execute(inputs...)
	require.NoError(t, err)
	flats := make([]any, len(outputBuffers))
	for ii, buffer := range outputBuffers {
		shape := must.M1(backend.BufferShape(buffer))
		flats[ii] = newFlat(shape)
		require.NoError(t, backend.BufferToFlatData(buffer, flats[ii]))
		require.NoError(t, backend.BufferFinalize(buffer))
	}
	for _, input := range inputs {
		require.NoError(t, backend.BufferFinalize(input))
	}
	return flats
}

// newFlat allocates a flat slice for the shape.
func newFlat(shape shapes.Shape) any {
	switch shape.DType {
	case dtypes.Bool:
		return make([]bool, shape.Size())
	case dtypes.Int32:
		return make([]int32, shape.Size())
	case dtypes.Int64:
		return make([]int64, shape.Size())
	case dtypes.Uint8:
		return make([]uint8, shape.Size())
	case dtypes.Float32:
		return make([]float32, shape.Size())
	case dtypes.Float64:
		return make([]float64, shape.Size())
	}
	panic(fmt.Sprintf("newFlat: dtype %s not handled in tests", shape.DType))
}
