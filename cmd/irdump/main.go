// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// irdump builds the IR graph of a negative log-likelihood loss gradient and prints its nodes, and optionally
// the lowered backend computation and the result of running it.
//
// Example:
//
//	irdump -dims=4,5,8,8 -reduction=mean -weighted -fragment -run
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/irgraph/backends"
	"github.com/gomlx/irgraph/backends/simplego"
	"github.com/gomlx/irgraph/pkg/core/shapes"
	"github.com/gomlx/irgraph/pkg/ir"
	"github.com/gomlx/irgraph/pkg/lowering"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagBackend = flag.String("backend", "",
		fmt.Sprintf("Backend configuration, formatted as \"<backend>:<config>\". "+
			"If empty, $%s is used, or the first registered backend.", backends.ConfigEnvVar))
	flagReduction = flag.String("reduction", "mean",
		fmt.Sprintf("Reduction of the loss, one of %q.", lowering.ReductionStrings()))
	flagIgnoreIndex = flag.Int("ignore_index", -100, "Label value that doesn't contribute to the loss.")
	flagWeighted    = flag.Bool("weighted", false, "Include per-class weight and total weight operands.")
	flagDims        = flag.String("dims", "4,5,8,8",
		"Comma-separated dimensions of the logits: \"N,C\" for NLLLossBackward or \"N,C,H,W\" for NLLLoss2dBackward.")
	flagFragment = flag.Bool("fragment", false,
		fmt.Sprintf("Print the lowered backend computation (only for backend %q).", simplego.BackendName))
	flagRun = flag.Bool("run", false, "Run the computation on sample data and print a summary of the result.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if flag.NArg() > 0 {
		klog.Errorf("Unexpected arguments %q. See 'irdump -help'.", flag.Args())
		os.Exit(1)
	}
	err := exceptions.TryCatch[error](report)
	if err != nil {
		klog.Fatalf("irdump failed: %+v", err)
	}
}

// parseDims parses the comma-separated logits dimensions.
func parseDims(str string) ([]int, error) {
	parts := strings.Split(str, ",")
	dims := make([]int, len(parts))
	for ii, part := range parts {
		dim, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid dimension #%d in %q", ii, str)
		}
		dims[ii] = dim
	}
	if len(dims) != 2 && len(dims) != 4 {
		return nil, errors.Errorf("logits must have rank 2 or 4, got dims %q", str)
	}
	return dims, nil
}

func newBackend() backends.Backend {
	if *flagBackend == "" {
		return must.M1(backends.New())
	}
	return must.M1(backends.NewWithConfig(*flagBackend))
}

func report() {
	reduction := must.M1(lowering.ReductionString(*flagReduction))
	dims := must.M1(parseDims(*flagDims))
	backend := newBackend()
	defer backend.Finalize()

	g := ir.NewGraph(backend, "irdump")
	grad := buildGradient(g, dims, reduction)

	fmt.Println(titleStyle.Render(fmt.Sprintf("Graph %q", g.Name())))
	table := newPlainTable(lipgloss.Right, lipgloss.Left, lipgloss.Left, lipgloss.Right, lipgloss.Left)
	table.Headers("#", "Node", "Shape", "Memory", "Hash")
	for _, node := range g.Nodes() {
		table.Row(
			strconv.Itoa(int(node.Id())),
			node.Op().String(),
			node.Shape().String(),
			humanize.Bytes(uint64(node.Shape().Memory())),
			node.Hash().String())
	}
	fmt.Println(table.Render())

	if *flagFragment {
		printFragment(g, grad)
	}
	if *flagRun {
		run(g, grad, dims)
	}
}

// buildGradient creates the parameters and the loss gradient node.
func buildGradient(g *ir.Graph, dims []int, reduction lowering.Reduction) ir.Value {
	numClasses := dims[lowering.ClassAxis]
	logitsShape := shapes.Make(dtypes.Float32, dims...)
	labelsShape := logitsShape.DropAxis(lowering.ClassAxis).WithDType(dtypes.Int64)
	gradOutputShape := shapes.Make(dtypes.Float32)
	if reduction == lowering.ReductionNone {
		gradOutputShape = labelsShape.WithDType(dtypes.Float32)
	}
	gradOutput := g.Parameter("grad_output", gradOutputShape)
	logits := g.Parameter("logits", logitsShape)
	labels := g.Parameter("labels", labelsShape)
	weight, totalWeight := ir.None(), ir.None()
	if *flagWeighted {
		weight = ir.Some(g.Parameter("weight", shapes.Make(dtypes.Float32, numClasses)))
		totalWeight = ir.Some(g.Parameter("total_weight", shapes.Make(dtypes.Float32)))
	}
	if len(dims) == 4 {
		return ir.NLLLoss2dBackward(gradOutput, logits, labels, weight, totalWeight, reduction, *flagIgnoreIndex)
	}
	return ir.NLLLossBackward(gradOutput, logits, labels, weight, totalWeight, reduction, *flagIgnoreIndex)
}

func printFragment(g *ir.Graph, grad ir.Value) {
	if g.Backend().Name() != simplego.BackendName {
		klog.Errorf("-fragment is only supported for backend %q, got %q", simplego.BackendName, g.Backend().Name())
		return
	}
	builder := g.Backend().Builder("fragment")
	defer builder.Finalize()
	ops := must.M1(g.Lower(builder, grad))
	fmt.Println(titleStyle.Render("Lowered computation"))
	fmt.Println(must.M1(simplego.Describe(ops...)))
}

// run executes the gradient with sample data: logits are -0.1*i, labels cycle over the classes, with the first
// one set to the ignored index.
func run(g *ir.Graph, grad ir.Value, dims []int) {
	numClasses := dims[lowering.ClassAxis]
	inputs := make([]any, len(g.Parameters()))
	for ii, param := range g.Parameters() {
		shape := param.Shape()
		switch param.Op().(*ir.ParameterOp).Name() {
		case "labels":
			labels := make([]int64, shape.Size())
			for jj := range labels {
				labels[jj] = int64(jj % numClasses)
			}
			labels[0] = int64(*flagIgnoreIndex)
			inputs[ii] = labels
		case "logits":
			logits := make([]float32, shape.Size())
			for jj := range logits {
				logits[jj] = -0.1 * float32(jj)
			}
			inputs[ii] = logits
		case "total_weight":
			inputs[ii] = []float32{float32(shape.Size() + numClasses)}
		default:
			ones := make([]float32, shape.Size())
			for jj := range ones {
				ones[jj] = 1
			}
			inputs[ii] = ones
		}
	}

	exec := g.Compile(grad)
	defer exec.Finalize()
	result := exec.Run(inputs...)[0]
	flat := result.Flat().([]float32)
	var sum float64
	var numNonZero int
	for _, v := range flat {
		sum += float64(v)
		if v != 0 {
			numNonZero++
		}
	}
	fmt.Println(titleStyle.Render("Result"))
	table := newPlainTable(lipgloss.Right, lipgloss.Left)
	table.Row("shape", result.Shape().String())
	table.Row("memory", humanize.Bytes(uint64(result.Shape().Memory())))
	table.Row("non-zero", humanize.Comma(int64(numNonZero)))
	table.Row("sum", humanize.FtoaWithDigits(sum, 6))
	fmt.Println(table.Render())
}
