// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/irgraph/backends"
	"github.com/pkg/errors"
)

// Describe returns a structural rendering of the computation that produces the given ops: one line per
// reachable node, in creation order, with op type, inputs, parameters and output shape.
//
// Nodes are renumbered sequentially (starting from #0) among the reachable ones, so the description of the same
// computation built on two different builders is the same. This allows comparing lowered fragments.
func Describe(ops ...backends.Op) (string, error) {
	var builder *Builder
	reachable := make(map[*Node]bool)
	var visit func(node *Node)
	visit = func(node *Node) {
		if reachable[node] {
			return
		}
		reachable[node] = true
		for _, input := range node.inputs {
			visit(input)
		}
	}
	for ii, op := range ops {
		node, ok := op.(*Node)
		if !ok || node == nil {
			return "", errors.Errorf("Describe: op #%d (%T) was not created by backend %q", ii, op, BackendName)
		}
		if builder == nil {
			builder = node.builder
		} else if node.builder != builder {
			return "", errors.Errorf("Describe: op #%d was created by a different builder", ii)
		}
		visit(node)
	}

	nodes := make([]*Node, 0, len(reachable))
	for node := range reachable {
		nodes = append(nodes, node)
	}
	slices.SortFunc(nodes, func(a, b *Node) int { return a.builderIdx - b.builderIdx })
	ids := make(map[*Node]int, len(nodes))
	for id, node := range nodes {
		ids[node] = id
	}

	var sb strings.Builder
	for _, node := range nodes {
		inputIds := make([]string, len(node.inputs))
		for ii, input := range node.inputs {
			inputIds[ii] = fmt.Sprintf("#%d", ids[input])
		}
		fmt.Fprintf(&sb, "#%d %s(%s)", ids[node], node.opType, strings.Join(inputIds, ", "))
		if params := describeNodeData(node); params != "" {
			fmt.Fprintf(&sb, " [%s]", params)
		}
		fmt.Fprintf(&sb, " -> %s\n", node.shape)
	}
	var outputIds []string
	for _, op := range ops {
		outputIds = append(outputIds, fmt.Sprintf("#%d", ids[op.(*Node)]))
	}
	fmt.Fprintf(&sb, "outputs: %s", strings.Join(outputIds, ", "))
	return sb.String(), nil
}

// describeNodeData returns the parameters of the node, or "" if it has none.
func describeNodeData(node *Node) string {
	switch data := node.data.(type) {
	case *nodeParameter:
		return fmt.Sprintf("name=%q", data.name)
	case *iotaNode:
		return fmt.Sprintf("axis=%d", data.axis)
	case *broadcastInDimNode:
		return fmt.Sprintf("axes=%v", data.broadcastAxes)
	case *reduceNode:
		return fmt.Sprintf("axes=%v", data.axes)
	case *Buffer:
		if data.shape.Size() <= 8 {
			return fmt.Sprintf("value=%v", data.flat)
		}
		return fmt.Sprintf("size=%d", data.shape.Size())
	}
	return ""
}
