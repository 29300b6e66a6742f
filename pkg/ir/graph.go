// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ir implements a lazy IR graph of tensor operations.
//
// Operations are recorded as nodes of a DAG (a Graph) and later lowered, as a whole, into a computation of a
// backend (see package github.com/gomlx/irgraph/backends), compiled and executed.
//
// The main elements are:
//
//   - Graph: the container (arena) owning all nodes. It de-duplicates structurally identical nodes.
//   - Node: an Operator registered in a Graph, with its output shapes known at graph building time.
//   - Value: a reference to one output of a Node, used as operand of other operators.
//   - Operator: the closed set of operations (Parameter, Constant, NLLLoss, NLLLossBackward,
//     NLLLoss2dBackward), each one knowing how to infer its output shapes, clone itself and lower itself.
//
// # Shape Inference
//
// The output shapes of an operator are computed by lowering it into a throw-away backend builder, using
// shape-only placeholders as operands (see InferShape). So the shape rules are never duplicated: they are the
// ones of the lowering itself.
//
// # Error Handling
//
// Like graph building in GoMLX, the functions that build the graph "throw" errors with panic, with a stack-trace.
// Use exceptions.TryCatch[error] to catch them. The errors wrap one of ErrShapeIncompatible, ErrArity or
// ErrUnresolvedInput when appropriate, use errors.Is to check for them.
package ir

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/irgraph/backends"
	"github.com/gomlx/irgraph/pkg/core/shapes"
	"github.com/gomlx/irgraph/pkg/support/sets"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// GraphId is globally unique.
type GraphId int

var (
	muGraphCount sync.Mutex
	graphCount   GraphId
)

// Graph owns the nodes of a computation.
//
// A Graph is not safe for concurrent building: each graph should be built by one goroutine at a time.
// Fully built nodes are read-only though.
type Graph struct {
	backend backends.Backend
	id      GraphId
	name    string

	nodes      []*Node
	parameters []*Node
	paramNames sets.Set[string]

	// dedup indexes the nodes by their hash, to find structurally identical nodes.
	dedup   map[Hash][]*Node
	noDedup bool
}

// NewGraph creates an empty Graph whose nodes will be lowered and executed with backend.
// If name is empty, a unique one is generated.
func NewGraph(backend backends.Backend, name string) *Graph {
	muGraphCount.Lock()
	defer muGraphCount.Unlock()
	if name == "" {
		name = fmt.Sprintf("graph_#%d", graphCount)
	}
	g := &Graph{
		backend:    backend,
		id:         graphCount,
		name:       name,
		paramNames: sets.Make[string](),
		dedup:      make(map[Hash][]*Node),
	}
	graphCount++
	return g
}

// WithDeduplication enables or disables the de-duplication of structurally identical nodes. It is enabled by default.
// It returns the graph itself, for chained calls.
func (g *Graph) WithDeduplication(enabled bool) *Graph {
	g.noDedup = !enabled
	return g
}

// Name of the graph.
func (g *Graph) Name() string { return g.name }

// Id of the graph, unique in the process.
func (g *Graph) Id() GraphId { return g.id }

// Backend used for shape inference, lowering and execution.
func (g *Graph) Backend() backends.Backend { return g.backend }

// NumNodes returns the number of nodes in the graph.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// Nodes returns all nodes, in id order.
// The slice is owned by Graph and shouldn't be changed.
func (g *Graph) Nodes() []*Node { return g.nodes }

// NodeById returns the node for the given id.
func (g *Graph) NodeById(id NodeId) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		exceptions.Panicf("invalid request Graph.NodeById(id=%d): there are only %d nodes", id, len(g.nodes))
	}
	return g.nodes[id]
}

// Parameters returns the parameter nodes, in the order they were created: the order in which their values are
// fed to Executable.Run.
func (g *Graph) Parameters() []*Node { return g.parameters }

// Parameter creates a new input of the graph with the given name (which must be unique) and shape.
func (g *Graph) Parameter(name string, shape shapes.Shape) Value {
	if !shape.Ok() {
		exceptions.Panicf("Graph(%q).Parameter(%q): invalid shape %s", g.name, name, shape)
	}
	if g.paramNames.Has(name) {
		exceptions.Panicf("Graph(%q).Parameter(%q): name already used", g.name, name)
	}
	g.paramNames.Insert(name)
	node := g.AddNode(&ParameterOp{name: name, shape: shape.Clone(), index: len(g.parameters)})
	g.parameters = append(g.parameters, node)
	return node.Value()
}

// AddNode registers the operator as a new node of the graph, and returns it.
//
// The operands must belong to the graph. The output shapes are inferred (see Operator.OutputShapes) and if a
// structurally identical node already exists (same kind, parameters and operands), that node is returned
// instead. Parameter nodes are never de-duplicated.
//
// It panics on errors, e.g. if the operand shapes are incompatible.
func (g *Graph) AddNode(op Operator) *Node {
	for ii, operand := range op.Operands() {
		if operand.graph != g {
			exceptions.Panicf("Graph(%q).AddNode(%s): operand #%d is from a different graph", g.name, op.Kind(), ii)
		}
		operand.AssertValid()
	}
	hash := op.Hash()
	dedupable := !g.noDedup && op.Kind() != OpKindParameter
	if dedupable {
		if node := g.findDuplicate(op, hash); node != nil {
			if klog.V(2).Enabled() {
				klog.Infof("Graph(%q): reusing node #%d for %s", g.name, node.id, op)
			}
			return node
		}
	}
	outputShapes, err := op.OutputShapes(g.backend)
	if err != nil {
		panic(errors.WithMessagef(err, "Graph(%q): adding node %s", g.name, op))
	}
	node := &Node{
		graph:        g,
		id:           NodeId(len(g.nodes)),
		op:           op,
		outputShapes: outputShapes,
		hash:         hash,
	}
	g.nodes = append(g.nodes, node)
	if dedupable {
		g.dedup[hash] = append(g.dedup[hash], node)
	}
	return node
}

// findDuplicate returns an existing node with the same kind, parameters and operands as op, or nil.
func (g *Graph) findDuplicate(op Operator, hash Hash) *Node {
	for _, candidate := range g.dedup[hash] {
		if candidate.op.Kind() == op.Kind() && candidate.op.EqualParams(op) &&
			slices.Equal(candidate.op.Operands(), op.Operands()) {
			return candidate
		}
	}
	return nil
}

// String returns a multi-line description of the graph and its nodes.
func (g *Graph) String() string {
	if g == nil {
		return "Graph(nil)!?"
	}
	parts := []string{
		fmt.Sprintf("Graph %q: %d nodes, %d parameters", g.name, len(g.nodes), len(g.parameters)),
	}
	for ii, node := range g.nodes {
		parts = append(parts, fmt.Sprintf("\t#%d\t%s", ii, node))
	}
	return strings.Join(parts, "\n")
}

// graphOf returns the graph of the first value. It panics if it is not valid.
func graphOf(v Value) *Graph {
	v.AssertValid()
	return v.graph
}
