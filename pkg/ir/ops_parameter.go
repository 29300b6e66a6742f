// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"

	"github.com/gomlx/irgraph/backends"
	"github.com/gomlx/irgraph/pkg/core/shapes"
	"github.com/pkg/errors"
)

// ParameterOp is an input of the graph, fed at execution time. See Graph.Parameter.
type ParameterOp struct {
	name  string
	shape shapes.Shape
	index int
}

var _ Operator = (*ParameterOp)(nil)

// Name of the parameter.
func (op *ParameterOp) Name() string { return op.name }

// Index of the parameter in Graph.Parameters.
func (op *ParameterOp) Index() int { return op.index }

func (op *ParameterOp) Kind() OpKind { return OpKindParameter }
func (op *ParameterOp) Arity() Arity { return Arity{} }
func (op *ParameterOp) Operands() []Value { return nil }
func (op *ParameterOp) Hash() Hash { return MHash(OpKindParameter, op.name, op.shape) }

func (op *ParameterOp) EqualParams(other Operator) bool {
	o, ok := other.(*ParameterOp)
	return ok && o.name == op.name && o.shape.Equal(op.shape) && o.index == op.index
}

func (op *ParameterOp) OutputShapes(_ backends.Backend) ([]shapes.Shape, error) {
	return []shapes.Shape{op.shape}, nil
}

func (op *ParameterOp) WithOperands(operands []Value) (Operator, error) {
	if len(operands) != 0 {
		return nil, errors.Wrapf(ErrArity, "Parameter takes no operands, got %d", len(operands))
	}
	return op, nil
}

func (op *ParameterOp) Lower(ctx *LoweringContext, node *Node) error {
	param, err := ctx.Builder().Parameter(op.name, op.shape)
	if err != nil {
		return err
	}
	ctx.AddResult(node, param)
	return nil
}

func (op *ParameterOp) String() string {
	return fmt.Sprintf("Parameter(name=%q)", op.name)
}
