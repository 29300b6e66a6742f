// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// OptionalGroup is a named group of optional operands that are either all present or all absent.
// E.g.: the "weight" group of NLLLoss2dBackward holds the weight and the total weight.
type OptionalGroup struct {
	Name string
	Size int
}

// Arity describes the operands of an operator: a number of required operands followed by optional groups.
//
// Optional groups are positional: a group can only be present if all the groups before it are present.
// This makes the presence of each group derivable from the number of operands alone (see Split).
type Arity struct {
	Required int
	Groups   []OptionalGroup
}

// ValidCounts returns the accepted number of operands, in increasing order.
func (a Arity) ValidCounts() []int {
	counts := []int{a.Required}
	n := a.Required
	for _, group := range a.Groups {
		n += group.Size
		counts = append(counts, n)
	}
	return counts
}

// String implements fmt.Stringer.
func (a Arity) String() string {
	parts := []string{fmt.Sprintf("%d required", a.Required)}
	for _, group := range a.Groups {
		parts = append(parts, fmt.Sprintf("[%s: %d]", group.Name, group.Size))
	}
	return strings.Join(parts, " + ")
}

// Pack validates the operands and returns the list of present operands: the required ones followed by the
// present optional groups, in declaration order.
//
// groups must be given in the order of Arity.Groups, and trailing groups can be omitted (taken as absent).
// It returns an error wrapping ErrArity if an optional group is only partially given, or if a group is present
// after an absent one.
func (a Arity) Pack(required []Value, groups ...[]OptionalValue) ([]Value, error) {
	if len(required) != a.Required {
		return nil, errors.Wrapf(ErrArity, "expected %d required operands, got %d", a.Required, len(required))
	}
	if len(groups) > len(a.Groups) {
		return nil, errors.Wrapf(ErrArity, "expected at most %d optional groups, got %d", len(a.Groups), len(groups))
	}
	operands := make([]Value, 0, a.Required+len(groups))
	operands = append(operands, required...)
	previousAbsent := ""
	for groupIdx, values := range groups {
		group := a.Groups[groupIdx]
		if len(values) != group.Size {
			return nil, errors.Wrapf(ErrArity, "optional group %q takes %d operands, got %d", group.Name, group.Size, len(values))
		}
		numPresent := 0
		for _, o := range values {
			if o.Present() {
				numPresent++
			}
		}
		if numPresent == 0 {
			if previousAbsent == "" {
				previousAbsent = group.Name
			}
			continue
		}
		if numPresent != group.Size {
			return nil, errors.Wrapf(ErrArity, "optional group %q must be given all together: got %d of its %d operands",
				group.Name, numPresent, group.Size)
		}
		if previousAbsent != "" {
			return nil, errors.Wrapf(ErrArity, "optional group %q can't be given without optional group %q",
				group.Name, previousAbsent)
		}
		for _, o := range values {
			operands = append(operands, o.Value())
		}
	}
	return operands, nil
}

// Split is the inverse of Pack: it separates the required operands from the optional groups, deriving the
// presence of each group from the number of operands.
//
// The returned groups has one entry per Arity.Groups, nil for absent groups. It returns an error wrapping
// ErrArity if the number of operands is not one of ValidCounts.
func (a Arity) Split(operands []Value) (required []Value, groups [][]Value, err error) {
	if len(operands) < a.Required {
		return nil, nil, errors.Wrapf(ErrArity, "expected %v operands, got %d", a.ValidCounts(), len(operands))
	}
	required = operands[:a.Required]
	remaining := operands[a.Required:]
	groups = make([][]Value, len(a.Groups))
	for groupIdx, group := range a.Groups {
		if len(remaining) < group.Size {
			break
		}
		groups[groupIdx] = remaining[:group.Size]
		remaining = remaining[group.Size:]
	}
	if len(remaining) != 0 {
		return nil, nil, errors.Wrapf(ErrArity, "expected %v operands, got %d", a.ValidCounts(), len(operands))
	}
	return
}
