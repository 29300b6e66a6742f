// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package irtest holds test utilities for packages building IR graphs.
package irtest

import (
	"os"
	"sync"
	"testing"

	"github.com/gomlx/irgraph/backends"
	"github.com/gomlx/irgraph/backends/simplego"
	"github.com/gomlx/irgraph/pkg/ir"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

var (
	muBackend sync.Mutex
	backend   backends.Backend
)

// BuildTestBackend returns the backend shared by the tests: configured by $IRGRAPH_BACKEND if set, otherwise
// the pure Go backend. It is created on the first call.
func BuildTestBackend() backends.Backend {
	muBackend.Lock()
	defer muBackend.Unlock()
	if backend != nil {
		return backend
	}
	if config, found := os.LookupEnv(backends.ConfigEnvVar); found {
		backend = must.M1(backends.NewWithConfig(config))
	} else {
		backend = must.M1(backends.NewWithConfig(simplego.BackendName))
	}
	klog.V(1).Infof("test backend: %s", backend.Description())
	return backend
}

// NewGraph creates a new graph on the test backend, named after the test.
func NewGraph(t testing.TB) *ir.Graph {
	return ir.NewGraph(BuildTestBackend(), t.Name())
}

// Run compiles the computation of outputs, runs it with the given inputs (flat slices, one per graph parameter)
// and returns the flat values of the outputs.
func Run(t testing.TB, outputs []ir.Value, inputs ...any) []any {
	require.NotEmpty(t, outputs)
	var flats []any
	require.NotPanics(t, func() {
		exec := outputs[0].Graph().Compile(outputs...)
		defer exec.Finalize()
		for _, result := range exec.Run(inputs...) {
			flats = append(flats, result.Flat())
		}
	})
	return flats
}
