// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"sync"

	"github.com/gomlx/irgraph/backends"
	"github.com/gomlx/irgraph/pkg/core/shapes"
	"github.com/pkg/errors"
)

var _ backends.Executable = (*Executable)(nil)

// Executable holds a frozen Builder. It assumes the graph in Builder is valid and has been properly
// checked that all the shapes and data types are valid.
//
// If any inconsistencies are found, please fix in the Builder, so Executable can be written without the need
// of any duplicate checks.
type Executable struct {
	backend *Backend

	// builder must have Builder.compiled set to true, so it is no longer active.
	builder *Builder

	// numNodesToProcess is the max(outputs)+1.
	// We generally don't need to look or store information above that.
	numNodesToProcess int

	// numUses is the number of times each Node is used during the calculation.
	// It has the length of numNodesToProcess.
	numUses []int

	// executionBuffersPool allow for re-use of executionBuffers.
	executionBuffersPool sync.Pool
}

// executionBuffers holds the intermediate results during the execution of the graph.
// One is created per execution of Executable.
type executionBuffers struct {
	// results hold the calculated computations at each step.
	results []*Buffer

	// numUsed hold the number of times each node has been used already. Once they match numUses, the results buffer can
	// be released or re-used.
	numUsed []int

	// owned indicates whether the corresponding buffer in results is owned by the executor: temporary buffers
	// are owned, and can be reused or freed after their last use. Inputs and constants are not.
	owned []bool
}

// Finalize immediately frees resources associated with the executable.
func (e *Executable) Finalize() {
	if e.builder == nil {
		return
	}
	for _, node := range e.builder.nodes {
		if node.opType == backends.OpTypeConstant {
			e.backend.putBuffer(node.data.(*Buffer))
			node.data = nil
		}
	}
	e.builder.Finalize()
	e.builder = nil
}

// Inputs returns the list of parameters names and shapes, in order created by the Builder.Parameter calls.
func (e *Executable) Inputs() (names []string, inputShapes []shapes.Shape) {
	numInputs := len(e.builder.inputs)
	if numInputs == 0 {
		return
	}
	names = make([]string, numInputs)
	inputShapes = make([]shapes.Shape, numInputs)
	for ii, node := range e.builder.inputs {
		parameter := node.data.(*nodeParameter)
		names[ii] = parameter.name
		inputShapes[ii] = node.shape
	}
	return
}

// Outputs returns the output shapes of the computation, in order given to the Builder.Compile call.
func (e *Executable) Outputs() (outputShapes []shapes.Shape) {
	numOutputs := len(e.builder.outputs)
	if numOutputs == 0 {
		return
	}
	outputShapes = make([]shapes.Shape, numOutputs)
	for ii, node := range e.builder.outputs {
		outputShapes[ii] = node.shape
	}
	return outputShapes
}

// newExecutable creates an Executable ready to run the graph built with builder.
func newExecutable(builder *Builder) *Executable {
	var numNodesToProcess int
	for _, output := range builder.outputs {
		numNodesToProcess = max(numNodesToProcess, output.builderIdx+1)
	}

	e := &Executable{
		backend:           builder.backend,
		builder:           builder,
		numNodesToProcess: numNodesToProcess,
		numUses:           make([]int, numNodesToProcess),
		executionBuffersPool: sync.Pool{
			New: func() any {
				return &executionBuffers{
					results: make([]*Buffer, numNodesToProcess),
					numUsed: make([]int, numNodesToProcess),
					owned:   make([]bool, numNodesToProcess),
				}
			},
		},
	}

	// Count uses for each node starting from outputs
	for _, output := range builder.outputs {
		e.countNodeUses(output)
	}
	return e
}

// countNodeUses recursively counts how many times a node is used.
func (e *Executable) countNodeUses(node *Node) {
	nodeIdx := node.builderIdx
	e.numUses[nodeIdx]++
	if e.numUses[nodeIdx] == 1 {
		// On the first visit, recursively, traverse inputs of the node.
		for _, input := range node.inputs {
			e.countNodeUses(input)
		}
	}
}

// nodeExecutor for the given operation type.
//
// It is given the buffers for its inputs, and whether they are owned: an owned input may be reused as the output
// or freed. If an input buffer is reused, the executor must set the corresponding inputs entry to nil.
type nodeExecutor func(backend *Backend, node *Node, inputs []*Buffer, inputsOwned []bool) (*Buffer, error)

// nodeExecutors should be populated during initialization (`init` functions) for the ops implemented.
// For the nodes not implemented, leave it as nil, and it will return an error.
var nodeExecutors [backends.OpTypeLast]nodeExecutor

// Execute the executable on the default device (0).
// The number and shapes of the inputs must match those returned by Inputs.
//
// The inputs are not modified, and the returned buffers are owned by the caller.
func (e *Executable) Execute(inputs ...backends.Buffer) ([]backends.Buffer, error) {
	if e.builder == nil {
		return nil, errors.New("Execute: executable was already finalized")
	}
	if len(inputs) != len(e.builder.inputs) {
		return nil, errors.Errorf("Execute: expected %d inputs, got %d", len(e.builder.inputs), len(inputs))
	}

	// Check input shapes
	for ii, input := range inputs {
		if input == nil {
			return nil, errors.Errorf("Execute: input buffer #%d is nil!?", ii)
		}
		inputBuffer, err := toBuffer(input)
		if err != nil {
			return nil, errors.WithMessagef(err, "Execute: input #%d", ii)
		}
		nodeInput := e.builder.inputs[ii]
		if !inputBuffer.shape.Equal(nodeInput.shape) {
			paramName := nodeInput.data.(*nodeParameter).name
			return nil, errors.Errorf("Execute: parameter %q (input #%d) for %q: expected shape %s, got %s",
				paramName, ii, e.builder.name, nodeInput.shape, inputBuffer.shape)
		}
	}

	// Get execution buffers from pool and reset them.
	execBuf := e.executionBuffersPool.Get().(*executionBuffers)
	defer e.executionBuffersPool.Put(execBuf)
	for ii := range e.numNodesToProcess {
		execBuf.numUsed[ii] = 0
		execBuf.owned[ii] = false
		execBuf.results[ii] = nil
	}

	// Initialize "parameters" results with input buffers.
	for ii, input := range inputs {
		inputNodeIdx := e.builder.inputs[ii].builderIdx
		if inputNodeIdx < e.numNodesToProcess {
			execBuf.results[inputNodeIdx] = input.(*Buffer)
		}
	}

	if err := e.executeSequentially(execBuf); err != nil {
		e.freeOwned(execBuf)
		return nil, err
	}

	// Return outputs, copying them if not owned by the executor.
	outputs := make([]backends.Buffer, len(e.builder.outputs))
	for ii, outputNode := range e.builder.outputs {
		outNodeIdx := outputNode.builderIdx
		outBuf := execBuf.results[outNodeIdx]
		if outBuf == nil {
			e.freeOwned(execBuf)
			return nil, errors.Errorf("Execute: output #%d (%s, nodeIdx=%d) is not calculated yet (!?) -- "+
				"this is a bug, it should never have happened", ii, outputNode.opType, outNodeIdx)
		}
		if execBuf.owned[outNodeIdx] {
			// Transfer ownership to the caller: repeated outputs will get a copy.
			execBuf.owned[outNodeIdx] = false
		} else {
			var err error
			outBuf, err = e.backend.cloneBuffer(outBuf)
			if err != nil {
				e.freeOwned(execBuf)
				return nil, err
			}
		}
		outputs[ii] = outBuf
	}
	e.freeOwned(execBuf)
	return outputs, nil
}

// freeOwned returns to the pool any intermediary buffer still owned by the execution.
func (e *Executable) freeOwned(execBuf *executionBuffers) {
	for nodeIdx, buf := range execBuf.results {
		if buf != nil && execBuf.owned[nodeIdx] {
			e.backend.putBuffer(buf)
		}
		execBuf.results[nodeIdx] = nil
		execBuf.owned[nodeIdx] = false
	}
}

// executeSequentially executes operations one after another. It uses execBuf to store the results.
func (e *Executable) executeSequentially(execBuf *executionBuffers) error {
	// Loop over nodes sequentially: they are already sorted by their dependencies,
	// so nodes should always be ready to execute.
	for nodeIdx := range e.numNodesToProcess {
		node := e.builder.nodes[nodeIdx]
		if execBuf.results[nodeIdx] != nil {
			// Parameters have their results pre-filled.
			continue
		}
		if e.numUses[nodeIdx] == 0 {
			// This node is not used by any of the outputs of this executable.
			continue
		}
		if err := e.executeNode(node, execBuf); err != nil {
			return err
		}
	}
	return nil
}

// executeNode executes the given node using execBuf as the context where to read pre-generated
// results of other ops, and where to store the result, for the current execution.
func (e *Executable) executeNode(node *Node, execBuf *executionBuffers) error {
	nodeIdx := node.builderIdx

	// Constants have a special treatment, since they have no inputs and their outputs are not owned by
	// the execBuf.
	if node.opType == backends.OpTypeConstant {
		execBuf.owned[nodeIdx] = false
		execBuf.results[nodeIdx] = node.data.(*Buffer)
		return nil
	}

	executor := nodeExecutors[node.opType]
	if executor == nil {
		return errors.Errorf("execute: node executor for op type %s not implemented!?", node.opType)
	}

	// Prepare inputs:
	inputBuffers := make([]*Buffer, len(node.inputs))
	inputsOwned := make([]bool, len(node.inputs))
	for ii, input := range node.inputs {
		inputNodeIdx := input.builderIdx
		inputBuffers[ii] = execBuf.results[inputNodeIdx]
		if inputBuffers[ii] == nil || !inputBuffers[ii].shape.Ok() {
			return errors.Errorf("execute: input #%d of node #%d is not calculated yet (!?) -- "+
				"this is a bug, it should never have happened", ii, nodeIdx)
		}
		// Only "own" the input if this is the last use of it, and it's not also used by another input of this node.
		inputsOwned[ii] = execBuf.owned[inputNodeIdx] &&
			e.numUses[inputNodeIdx]-execBuf.numUsed[inputNodeIdx] == 1
		for jj := range ii {
			if node.inputs[jj] == input {
				inputsOwned[ii] = false
				inputsOwned[jj] = false
			}
		}
	}

	output, err := executor(e.backend, node, inputBuffers, inputsOwned)
	if err != nil {
		return errors.WithMessagef(err, "while executing %s (node #%d)", node.opType, nodeIdx)
	}
	execBuf.results[nodeIdx] = output
	execBuf.owned[nodeIdx] = true

	// Mark inputs as used, and free the ones no longer needed.
	for ii, input := range node.inputs {
		inputNodeIdx := input.builderIdx
		execBuf.numUsed[inputNodeIdx]++
		if inputBuffers[ii] == nil {
			// Reused as output by the executor: ownership was transferred.
			execBuf.results[inputNodeIdx] = nil
			execBuf.owned[inputNodeIdx] = false
			continue
		}
		if execBuf.numUsed[inputNodeIdx] == e.numUses[inputNodeIdx] && execBuf.owned[inputNodeIdx] &&
			execBuf.results[inputNodeIdx] != nil {
			e.backend.putBuffer(execBuf.results[inputNodeIdx])
			execBuf.results[inputNodeIdx] = nil
			execBuf.owned[inputNodeIdx] = false
		}
	}
	return nil
}
