// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"github.com/gomlx/irgraph/pkg/lowering"
	"github.com/pkg/errors"
)

// Errors wrapped by the IR graph operations: use errors.Is to classify a failure.
var (
	// ErrShapeIncompatible is raised when the operand shapes of a node can't be lowered together.
	// It is the same sentinel used by package lowering.
	ErrShapeIncompatible = lowering.ErrShapeIncompatible

	// ErrArity is raised when the operands given to a node don't match its Arity: a wrong count, or a
	// paired optional group given only partially.
	ErrArity = errors.New("invalid number of operands")

	// ErrUnresolvedInput is raised during lowering when an operand's backend op hasn't been produced yet.
	ErrUnresolvedInput = errors.New("unresolved input")
)
