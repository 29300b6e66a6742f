// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package simplego implements a simple, and not very fast, but very portable backend for the IR graph.
//
// It only implements the primitive operations needed to lower the IR operators, and the most popular dtypes:
// Bool, Int32, Int64, Uint8, Float16, Float32 and Float64.
//
// It registers itself as the backend "go". Its configuration is a comma-separated list of options:
//
//   - "nodedup": disables the de-duplication of identical ops (common subexpression elimination) in the Builder.
package simplego

import (
	"strings"
	"sync"

	"github.com/gomlx/irgraph/backends"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BackendName to be used in IRGRAPH_BACKEND to specify this backend.
const BackendName = "go"

// Registers New() as the constructor for the "go" backend.
func init() {
	backends.Register(BackendName, New)
}

// New constructs a new SimpleGo Backend.
//
// See the package documentation for the configuration options.
func New(config string) (backends.Backend, error) {
	b := newBackend()
	for _, option := range strings.Split(config, ",") {
		option = strings.TrimSpace(option)
		switch option {
		case "":
			// Empty option, ignore.
		case "nodedup":
			b.noDedup = true
		default:
			return nil, errors.Errorf("backend %q: unknown configuration option %q in config %q", BackendName, option, config)
		}
	}
	klog.V(2).Infof("created backend %q (dedup=%v)", BackendName, !b.noDedup)
	return b, nil
}

func newBackend() *Backend {
	return &Backend{}
}

// Backend implements the backends.Backend interface.
type Backend struct {
	// bufferPools are a map to pools of buffers that can be reused.
	// The underlying type is map[bufferPoolKey]*sync.Pool.
	bufferPools sync.Map

	// noDedup disables the de-duplication of ops in the builders created by this backend.
	noDedup bool

	isFinalized bool
}

// Compile-time check that simplego.Backend implements backends.Backend.
var _ backends.Backend = &Backend{}

// Name returns the short name of the backend.
func (b *Backend) Name() string {
	return BackendName
}

// String implement fmt.Stringer.
func (b *Backend) String() string { return BackendName }

// Description is a longer description of the Backend that can be used to pretty-print.
func (b *Backend) Description() string {
	return "SimpleGo: portable pure Go backend"
}

// NumDevices return the number of devices available for this Backend.
func (b *Backend) NumDevices() backends.DeviceNum {
	return 1
}

// Builder creates a new builder used to define a new named computation.
func (b *Backend) Builder(name string) backends.Builder {
	return &Builder{
		backend: b,
		name:    name,
		noDedup: b.noDedup,
	}
}

// Finalize releases all the associated resources immediately, and makes the backend invalid.
func (b *Backend) Finalize() {
	b.isFinalized = true
	b.bufferPools.Clear()
}

// IsFinalized returns whether Finalize has been called.
func (b *Backend) IsFinalized() bool {
	return b.isFinalized
}
