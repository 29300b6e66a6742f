// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"reflect"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/irgraph/backends"
	"github.com/gomlx/irgraph/pkg/core/shapes"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Lower lowers the computation of outputs into builder, and returns the backend ops of the outputs.
//
// All the graph parameters are lowered first, in order, so the inputs of the computation are always the graph
// parameters (see Graph.Parameters), even if some are not used. The other nodes are lowered in dependency order,
// only the ones the outputs depend on.
func (g *Graph) Lower(builder backends.Builder, outputs ...Value) ([]backends.Op, error) {
	var outputOps []backends.Op
	err := exceptions.TryCatch[error](func() {
		ctx := NewLoweringContext(builder)
		for _, param := range g.parameters {
			if err := ctx.LowerNode(param); err != nil {
				panic(err)
			}
		}
		nodes := g.reachable(outputs)
		for _, node := range nodes {
			if node.Kind() == OpKindParameter {
				continue
			}
			if err := ctx.LowerNode(node); err != nil {
				panic(err)
			}
		}
		klog.V(1).Infof("Graph(%q).Lower: %d nodes (of %d) lowered into %q", g.name, len(nodes), len(g.nodes), builder.Name())
		outputOps = must.M1(ctx.GetOutputOps(outputs))
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "Graph(%q).Lower", g.name)
	}
	return outputOps, nil
}

// Executable is a compiled computation of a Graph, ready to be run. See Graph.Compile.
type Executable struct {
	graph      *Graph
	outputs    []Value
	executable backends.Executable
}

// Compile lowers the computation of the outputs into a new backend builder and compiles it.
// It panics on errors.
func (g *Graph) Compile(outputs ...Value) *Executable {
	if len(outputs) == 0 {
		exceptions.Panicf("Graph(%q).Compile: no outputs given", g.name)
	}
	start := time.Now()
	builder := g.backend.Builder(g.name)
	outputOps, err := g.Lower(builder, outputs...)
	if err != nil {
		builder.Finalize()
		panic(err)
	}
	executable, err := builder.Compile(outputOps...)
	if err != nil {
		panic(errors.WithMessagef(err, "Graph(%q).Compile", g.name))
	}
	klog.V(1).Infof("Graph(%q) compiled in %s", g.name, time.Since(start))
	return &Executable{graph: g, outputs: outputs, executable: executable}
}

// Finalize releases the backend resources of the executable immediately, instead of waiting for the GC.
func (e *Executable) Finalize() {
	if e.executable != nil {
		e.executable.Finalize()
		e.executable = nil
	}
}

// Run executes the computation: inputs are flat slices (e.g. []float32) for each of the graph parameters,
// in order. It returns one Result per output given to Compile.
//
// It panics on errors.
func (e *Executable) Run(inputs ...any) []*Result {
	if e.executable == nil {
		exceptions.Panicf("Graph(%q): Executable.Run called after Finalize", e.graph.name)
	}
	params := e.graph.parameters
	if len(inputs) != len(params) {
		exceptions.Panicf("Graph(%q): Executable.Run takes %d inputs, got %d", e.graph.name, len(params), len(inputs))
	}
	backend := e.graph.backend
	buffers := make([]backends.Buffer, len(inputs))
	defer func() {
		for _, buffer := range buffers {
			if buffer != nil {
				_ = backend.BufferFinalize(buffer)
			}
		}
	}()
	for ii, input := range inputs {
		buffer, err := backend.BufferFromFlatData(0, input, params[ii].Shape())
		if err != nil {
			panic(errors.WithMessagef(err, "Graph(%q): input #%d (%s)", e.graph.name, ii, params[ii].op))
		}
		buffers[ii] = buffer
	}

	outputBuffers, err := e.executable.Execute(buffers...)
	if err != nil {
		panic(errors.WithMessagef(err, "Graph(%q): executing", e.graph.name))
	}
	results := make([]*Result, len(outputBuffers))
	for ii, buffer := range outputBuffers {
		results[ii] = must.M1(newResult(backend, buffer))
		if want := e.outputs[ii].Shape(); !results[ii].shape.Equal(want) {
			exceptions.Panicf("Graph(%q): output #%d has shape %s, but %s was inferred", e.graph.name, ii,
				results[ii].shape, want)
		}
	}
	return results
}

// Result of an execution, transferred to Go.
type Result struct {
	shape shapes.Shape
	flat  any
}

// newResult transfers the buffer to a Result, and finalizes the buffer.
func newResult(backend backends.Backend, buffer backends.Buffer) (*Result, error) {
	shape, err := backend.BufferShape(buffer)
	if err != nil {
		return nil, err
	}
	flat := reflect.MakeSlice(reflect.SliceOf(shape.DType.GoType()), shape.Size(), shape.Size()).Interface()
	if err = backend.BufferToFlatData(buffer, flat); err != nil {
		return nil, err
	}
	if err = backend.BufferFinalize(buffer); err != nil {
		return nil, err
	}
	return &Result{shape: shape, flat: flat}, nil
}

// Shape of the result.
func (r *Result) Shape() shapes.Shape { return r.shape }

// Flat values of the result, as a slice of the Go type of the dtype (e.g. []float32).
func (r *Result) Flat() any { return r.flat }

// String implements fmt.Stringer.
func (r *Result) String() string {
	return fmt.Sprintf("%s: %v", r.shape, r.flat)
}

