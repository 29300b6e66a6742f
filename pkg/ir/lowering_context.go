// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/irgraph/backends"
	"github.com/pkg/errors"
)

// LoweringContext maps the Values of a Graph to the backend ops built for them during lowering.
//
// Nodes are lowered in dependency order (see Graph.Lower): each one resolves its operands with GetOutputOp
// and publishes its outputs with AddResult.
type LoweringContext struct {
	builder    backends.Builder
	ops        map[Value]backends.Op
	numResults map[NodeId]int
}

// NewLoweringContext creates a LoweringContext that lowers into the given builder.
func NewLoweringContext(builder backends.Builder) *LoweringContext {
	return &LoweringContext{
		builder:    builder,
		ops:        make(map[Value]backends.Op),
		numResults: make(map[NodeId]int),
	}
}

// Builder being lowered into.
func (ctx *LoweringContext) Builder() backends.Builder { return ctx.builder }

// GetOutputOp returns the backend op of an already lowered value.
// It returns an error wrapping ErrUnresolvedInput if the value's node hasn't been lowered yet.
func (ctx *LoweringContext) GetOutputOp(v Value) (backends.Op, error) {
	op, found := ctx.ops[v]
	if !found {
		return nil, errors.Wrapf(ErrUnresolvedInput, "value %s has not been lowered", v)
	}
	return op, nil
}

// GetOutputOps returns the backend ops of the given values, see GetOutputOp.
func (ctx *LoweringContext) GetOutputOps(values []Value) ([]backends.Op, error) {
	ops := make([]backends.Op, len(values))
	for ii, v := range values {
		var err error
		ops[ii], err = ctx.GetOutputOp(v)
		if err != nil {
			return nil, err
		}
	}
	return ops, nil
}

// AddResult publishes op as the next output of node, and returns the corresponding Value.
//
// It panics if the node already published all its outputs, or if the shape of op differs from the
// inferred output shape.
func (ctx *LoweringContext) AddResult(node *Node, op backends.Op) Value {
	idx := ctx.numResults[node.id]
	if idx >= node.NumOutputs() {
		exceptions.Panicf("node %s has %d outputs, but it is adding result #%d", node, node.NumOutputs(), idx)
	}
	shape, err := ctx.builder.OpShape(op)
	if err != nil {
		panic(errors.WithMessagef(err, "lowering node %s", node))
	}
	if !shape.Equal(node.outputShapes[idx]) {
		panic(errors.Wrapf(ErrShapeIncompatible, "lowering node %s: output #%d has shape %s, but %s was inferred",
			node, idx, shape, node.outputShapes[idx]))
	}
	v := node.Output(idx)
	ctx.ops[v] = op
	ctx.numResults[node.id] = idx + 1
	return v
}

// LowerNode lowers the node and checks that all its outputs were published.
// The node's operands must have been lowered already.
func (ctx *LoweringContext) LowerNode(node *Node) error {
	err := exceptions.TryCatch[error](func() {
		if err := node.op.Lower(ctx, node); err != nil {
			panic(err)
		}
	})
	if err != nil {
		return errors.WithMessagef(err, "lowering node #%d %s", node.id, node.op)
	}
	if got := ctx.numResults[node.id]; got != node.NumOutputs() {
		return errors.Errorf("lowering node #%d %s: %d outputs published, expected %d", node.id, node.op,
			got, node.NumOutputs())
	}
	return nil
}
