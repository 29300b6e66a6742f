// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

// OpKind is the tag of an Operator: the closed set of operators a Graph can hold.
type OpKind int

//go:generate go tool enumer -type=OpKind -trimprefix=OpKind -output=gen_opkind_enumer.go opkind.go

const (
	OpKindInvalid OpKind = iota
	OpKindParameter
	OpKindConstant
	OpKindNLLLoss
	OpKindNLLLossBackward
	OpKindNLLLoss2dBackward
)
