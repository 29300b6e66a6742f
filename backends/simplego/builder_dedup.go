// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"slices"

	"github.com/gomlx/irgraph/backends"
	"github.com/gomlx/irgraph/pkg/core/shapes"
	"k8s.io/klog/v2"
)

// Common subexpression elimination: a new node with the same op, inputs, output shape and data as an existing
// one reuses it.

// nodeDataComparable is implemented by node data types that support de-duplication.
// Nodes whose data doesn't implement it (e.g. parameters and constants) are never reused.
type nodeDataComparable interface {
	// EqualNodeData returns whether other holds the same parameters. other may be of a different type.
	EqualNodeData(other any) bool
}

// nodeDedupKey groups the candidates for reuse.
type nodeDedupKey struct {
	opType     backends.OpType
	inputCount int
	firstInput *Node // nil if there are no inputs.
}

func makeNodeDedupKey(opType backends.OpType, inputs []*Node) nodeDedupKey {
	key := nodeDedupKey{opType: opType, inputCount: len(inputs)}
	if len(inputs) > 0 {
		key.firstInput = inputs[0]
	}
	return key
}

// getOrCreateNode returns an existing equivalent node, or creates a new one.
func (b *Builder) getOrCreateNode(opType backends.OpType, shape shapes.Shape, inputs []*Node, data any) *Node {
	if b.noDedup {
		n := b.newNode(opType, shape, inputs...)
		n.data = data
		return n
	}
	comparableData, dedupable := data.(nodeDataComparable)
	dedupable = dedupable || data == nil
	key := makeNodeDedupKey(opType, inputs)
	if dedupable {
		for _, candidate := range b.nodeDedup[key] {
			// The output shape is checked separately: Reshape and ConvertDType keep their target only in it.
			if !candidate.shape.Equal(shape) || !slices.Equal(candidate.inputs, inputs) {
				continue
			}
			if (data == nil && candidate.data == nil) || (comparableData != nil && comparableData.EqualNodeData(candidate.data)) {
				klog.V(2).Infof("builder %q: reusing node #%d (%s)", b.name, candidate.builderIdx, opType)
				return candidate
			}
		}
	}
	n := b.newNode(opType, shape, inputs...)
	n.data = data
	if dedupable {
		if b.nodeDedup == nil {
			b.nodeDedup = make(map[nodeDedupKey][]*Node)
		}
		b.nodeDedup[key] = append(b.nodeDedup[key], n)
	}
	return n
}
