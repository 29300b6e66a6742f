// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Clone creates a node with the same operator kind and parameters as node, but with the given operands.
//
// The presence of optional operands is derived from their number (see Arity.Split). E.g.: a NLLLoss2dBackward
// node can be cloned with 3 operands (no weights) or 5 (with weight and totalWeight), any other number panics with
// an error wrapping ErrArity. As with any new node, the result may be an existing identical node.
func (g *Graph) Clone(node *Node, operands []Value) *Node {
	if node.graph != g {
		exceptions.Panicf("Graph(%q).Clone: node #%d is from graph %q", g.name, node.id, node.graph.name)
	}
	if len(node.Operands()) == 0 && len(operands) == 0 {
		// Leaves have nothing to replace.
		return node
	}
	op, err := node.op.WithOperands(operands)
	if err != nil {
		panic(errors.WithMessagef(err, "Graph(%q).Clone(node #%d)", g.name, node.id))
	}
	return g.AddNode(op)
}

// ReplaceOperands rewrites the computation of outputs, replacing the values in replace (keys) by
// the corresponding values: every node that depends on a replaced value is cloned with the new operands.
//
// It returns the new outputs, in the same order. Outputs that don't depend on any replaced value are returned as is.
// The replacement values must have shapes compatible with the nodes using them, or it panics.
func (g *Graph) ReplaceOperands(outputs []Value, replace map[Value]Value) []Value {
	for from, to := range replace {
		if from.graph != g || to.graph != g {
			exceptions.Panicf("Graph(%q).ReplaceOperands: replacement %s -> %s from a different graph", g.name, from, to)
		}
	}
	mapped := make(map[Value]Value, len(replace))
	for from, to := range replace {
		mapped[from] = to
	}
	numCloned := 0
	for _, node := range g.reachable(outputs) {
		operands := node.Operands()
		changed := false
		newOperands := make([]Value, len(operands))
		for ii, operand := range operands {
			newOperands[ii] = operand
			if to, found := mapped[operand]; found {
				newOperands[ii] = to
				changed = true
			}
		}
		if !changed {
			continue
		}
		newNode := g.Clone(node, newOperands)
		numCloned++
		for ii := range node.NumOutputs() {
			from := node.Output(ii)
			if _, found := mapped[from]; !found {
				mapped[from] = newNode.Output(ii)
			}
		}
	}
	klog.V(1).Infof("Graph(%q).ReplaceOperands: %d replacements, %d nodes cloned", g.name, len(replace), numCloned)

	newOutputs := make([]Value, len(outputs))
	for ii, output := range outputs {
		newOutputs[ii] = output
		if to, found := mapped[output]; found {
			newOutputs[ii] = to
		}
	}
	return newOutputs
}

// reachable returns the nodes the outputs depend on (including the outputs' nodes), in dependency (id) order.
func (g *Graph) reachable(outputs []Value) []*Node {
	visited := make([]bool, len(g.nodes))
	var stack []NodeId
	for _, output := range outputs {
		if output.graph != g {
			exceptions.Panicf("Graph(%q): value %s is from a different graph", g.name, output)
		}
		output.AssertValid()
		stack = append(stack, output.node)
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		for _, operand := range g.nodes[id].Operands() {
			if !visited[operand.node] {
				stack = append(stack, operand.node)
			}
		}
	}
	var nodes []*Node
	for id, isVisited := range visited {
		if isVisited {
			nodes = append(nodes, g.nodes[id])
		}
	}
	return nodes
}
