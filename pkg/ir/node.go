// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/irgraph/backends"
	"github.com/gomlx/irgraph/pkg/core/shapes"
)

// NodeId is the index of a Node within its Graph. Operands always have smaller ids than the nodes using
// them, so the id order is a valid dependency order.
type NodeId int

// Operator is implemented by each kind of node: it holds the operands and the static parameters of the
// operation, and knows how to infer its output shapes, clone itself with new operands and lower itself.
//
// Operators are immutable once created.
type Operator interface {
	// Kind of the operator.
	Kind() OpKind

	// Arity describes the accepted operands.
	Arity() Arity

	// Operands returns the present operands, in declaration order.
	Operands() []Value

	// Hash of the kind and the parameters. Operands are not included.
	Hash() Hash

	// EqualParams returns whether the other operator has the same kind and the exact same parameters.
	EqualParams(other Operator) bool

	// OutputShapes returns the shapes of the outputs, usually by trial-lowering the operator with InferShape.
	OutputShapes(backend backends.Backend) ([]shapes.Shape, error)

	// WithOperands returns a copy of the operator with the same parameters and new operands.
	// The presence of the optional operands is derived from their number (see Arity.Split).
	WithOperands(operands []Value) (Operator, error)

	// Lower the node into backend ops: it resolves the operands with LoweringContext.GetOutputOp, and
	// publishes each of the node's outputs, in order, with LoweringContext.AddResult.
	Lower(ctx *LoweringContext, node *Node) error

	// String returns a description of the operator with its operands and parameters.
	String() string
}

// describeOp returns the generic description of an operator: its kind and operands.
func describeOp(kind OpKind, operands []Value) string {
	parts := make([]string, len(operands))
	for ii, operand := range operands {
		parts[ii] = operand.String()
	}
	return fmt.Sprintf("%s(%s)", kind, strings.Join(parts, ", "))
}

// Node of the IR graph: an Operator registered in a Graph, with its inferred output shapes.
//
// Nodes are created by Graph.AddNode, usually through the operator constructors (NLLLoss2dBackward, etc.), and
// are never modified afterward: it's safe to read them concurrently.
type Node struct {
	graph        *Graph
	id           NodeId
	op           Operator
	outputShapes []shapes.Shape
	hash         Hash
}

// Graph that holds this Node.
func (n *Node) Graph() *Graph {
	if n == nil {
		return nil
	}
	return n.graph
}

// Id is the unique id of this node within the Graph.
func (n *Node) Id() NodeId { return n.id }

// Op returns the operator of the node.
func (n *Node) Op() Operator { return n.op }

// Kind of the node's operator.
func (n *Node) Kind() OpKind { return n.op.Kind() }

// Operands of the node, the present ones only, in declaration order.
// The slice is owned by the node and shouldn't be changed.
func (n *Node) Operands() []Value { return n.op.Operands() }

// Hash is the structural hash of the node's operator: kind and parameters.
func (n *Node) Hash() Hash { return n.hash }

// NumOutputs returns the number of outputs of the node.
func (n *Node) NumOutputs() int { return len(n.outputShapes) }

// OutputShapes returns the shapes of all outputs.
func (n *Node) OutputShapes() []shapes.Shape { return n.outputShapes }

// Shape of the node's output. It panics if the node doesn't have exactly one output.
func (n *Node) Shape() shapes.Shape {
	if n.NumOutputs() != 1 {
		exceptions.Panicf("Node.Shape() called on node %s with %d outputs", n, n.NumOutputs())
	}
	return n.outputShapes[0]
}

// Output returns a Value referring to the i-th output of the node.
func (n *Node) Output(i int) Value {
	if i < 0 || i >= n.NumOutputs() {
		exceptions.Panicf("node #%d has %d outputs, can't take output %d", n.id, n.NumOutputs(), i)
	}
	return Value{graph: n.graph, node: n.id, output: i}
}

// Value returns the output of a single output node.
func (n *Node) Value() Value { return n.Output(0) }

// String implements the fmt.Stringer interface.
func (n *Node) String() string {
	if n == nil {
		return "Node(nil)"
	}
	memory := make([]string, len(n.outputShapes))
	for ii, shape := range n.outputShapes {
		memory[ii] = humanize.Bytes(uint64(shape.Memory()))
	}
	return fmt.Sprintf("%s -> %s - mem: %v", n.op, n.outputShapes, memory)
}
