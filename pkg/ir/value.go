// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/irgraph/pkg/core/shapes"
)

// Value refers to one output of a Node in a Graph. It's the handle used as operand of other nodes.
//
// Values are small immutable triples (graph, node id, output index), and can be compared with ==
// and used as map keys. They don't own the node: the Graph does.
type Value struct {
	graph  *Graph
	node   NodeId
	output int
}

// Graph holding the node of the value.
func (v Value) Graph() *Graph { return v.graph }

// NodeId of the node producing the value.
func (v Value) NodeId() NodeId { return v.node }

// Output index within the node's outputs.
func (v Value) Output() int { return v.output }

// IsValid returns whether the value refers to an existing node output.
func (v Value) IsValid() bool {
	return v.graph != nil && int(v.node) < len(v.graph.nodes) && v.output < v.graph.nodes[v.node].NumOutputs()
}

// AssertValid panics if the value is not valid.
func (v Value) AssertValid() {
	if !v.IsValid() {
		exceptions.Panicf("invalid Value %s", v)
	}
}

// Node producing the value.
func (v Value) Node() *Node {
	v.AssertValid()
	return v.graph.nodes[v.node]
}

// Shape of the value, statically known at graph building time.
func (v Value) Shape() shapes.Shape {
	return v.Node().outputShapes[v.output]
}

// String implements fmt.Stringer. Values of single-output nodes are printed as "#<node_id>".
func (v Value) String() string {
	if v.graph == nil {
		return "Value(nil)"
	}
	if v.output == 0 {
		return fmt.Sprintf("#%d", v.node)
	}
	return fmt.Sprintf("#%d.%d", v.node, v.output)
}

// OptionalValue is a Value that may be absent, used for the optional operands of a node.
type OptionalValue struct {
	value   Value
	present bool
}

// Some returns a present OptionalValue.
func Some(v Value) OptionalValue {
	return OptionalValue{value: v, present: true}
}

// None returns an absent OptionalValue.
func None() OptionalValue {
	return OptionalValue{}
}

// Present returns whether the optional value holds a Value.
func (o OptionalValue) Present() bool { return o.present }

// Value returns the value held. It panics if it is not present.
func (o OptionalValue) Value() Value {
	if !o.present {
		exceptions.Panicf("OptionalValue.Value() called on an absent value")
	}
	return o.value
}

// String implements fmt.Stringer.
func (o OptionalValue) String() string {
	if !o.present {
		return "None"
	}
	return o.value.String()
}
