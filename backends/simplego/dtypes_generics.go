// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"
)

// MaxDTypes is an upper bound on the dtypes values, used to size the DTypeMap tables.
const MaxDTypes = 32

// DTypeMap maps each dtype to the instance of a generic function that handles it.
type DTypeMap[F any] struct {
	Name       string
	fnMap      [MaxDTypes]F
	registered [MaxDTypes]bool
}

// NewDTypeMap creates a new map for a class of functions.
func NewDTypeMap[F any](name string) *DTypeMap[F] {
	return &DTypeMap[F]{
		Name: name,
	}
}

// Get the function that handles dtype, or an error if none was registered.
func (d *DTypeMap[F]) Get(dtype dtypes.DType) (fn F, err error) {
	if dtype < 0 || dtype >= MaxDTypes || !d.registered[dtype] {
		err = errors.Errorf("dtype %s not supported by %s in backend %q", dtype, d.Name, BackendName)
		return
	}
	return d.fnMap[dtype], nil
}

// Register a function to handle a specific dtype.
// This overwrites any previous setting for the same dtype.
func (d *DTypeMap[F]) Register(dtype dtypes.DType, fn F) {
	if dtype < 0 || dtype >= MaxDTypes {
		panic(errors.Errorf("dtype %s cannot be registered in %s", dtype, d.Name))
	}
	d.fnMap[dtype] = fn
	d.registered[dtype] = true
}

// SupportedTypesConstraints enumerates the types supported by SimpleGo.
type SupportedTypesConstraints interface {
	bool | int32 | int64 | uint8 | float32 | float64 | float16.Float16
}

// PODNumericConstraints are used for generics for the Go pod (plain-old-data) numeric types supported.
// Float16 is not included because it is a specialized type, not natively supported by Go: it is
// computed by converting to Float32.
type PODNumericConstraints interface {
	constraints.Integer | constraints.Float
}

// supportedDTypes lists the dtypes that have an implementation in SimpleGo.
var supportedDTypes = []dtypes.DType{
	dtypes.Bool, dtypes.Int32, dtypes.Int64, dtypes.Uint8, dtypes.Float16, dtypes.Float32, dtypes.Float64,
}

// isSupportedDType returns whether dtype is one of supportedDTypes.
func isSupportedDType(dtype dtypes.DType) bool {
	for _, supported := range supportedDTypes {
		if dtype == supported {
			return true
		}
	}
	return false
}

// registerForAllSupported registers the instances of a generic function for all supported dtypes.
//
// Each instance is given as a separate argument, since Go generics cannot be instantiated dynamically.
func registerForAllSupported[F any](d *DTypeMap[F], boolFn, int32Fn, int64Fn, uint8Fn, float16Fn, float32Fn, float64Fn F) {
	d.Register(dtypes.Bool, boolFn)
	d.Register(dtypes.Int32, int32Fn)
	d.Register(dtypes.Int64, int64Fn)
	d.Register(dtypes.Uint8, uint8Fn)
	d.Register(dtypes.Float16, float16Fn)
	d.Register(dtypes.Float32, float32Fn)
	d.Register(dtypes.Float64, float64Fn)
}

// registerForNumeric registers the instances of a generic function for the POD numeric dtypes.
func registerForNumeric[F any](d *DTypeMap[F], int32Fn, int64Fn, uint8Fn, float32Fn, float64Fn F) {
	d.Register(dtypes.Int32, int32Fn)
	d.Register(dtypes.Int64, int64Fn)
	d.Register(dtypes.Uint8, uint8Fn)
	d.Register(dtypes.Float32, float32Fn)
	d.Register(dtypes.Float64, float64Fn)
}
