// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package simplego

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/irgraph/backends"
	"github.com/gomlx/irgraph/pkg/core/shapes"
	"github.com/pkg/errors"
)

// Compile-time check:
var _ backends.DataInterface = (*Backend)(nil)

// Buffer for SimpleGo backend holds a shape and a reference to the flat data.
type Buffer struct {
	shape shapes.Shape
	valid bool

	// flat is always a slice of the underlying data type (shape.DType).
	flat any
}

type bufferPoolKey struct {
	dtype  dtypes.DType
	length int
}

// getBufferPool for given dtype/length.
func (b *Backend) getBufferPool(dtype dtypes.DType, length int) *sync.Pool {
	key := bufferPoolKey{dtype: dtype, length: length}
	poolInterface, ok := b.bufferPools.Load(key)
	if !ok {
		poolInterface, _ = b.bufferPools.LoadOrStore(key, &sync.Pool{
			New: func() any {
				return &Buffer{
					flat:  reflect.MakeSlice(reflect.SliceOf(dtype.GoType()), length, length).Interface(),
					shape: shapes.Make(dtype, length),
				}
			},
		})
	}
	return poolInterface.(*sync.Pool)
}

// getBuffer from backend pool of buffers.
func (b *Backend) getBuffer(dtype dtypes.DType, length int) *Buffer {
	pool := b.getBufferPool(dtype, length)
	buf := pool.Get().(*Buffer)
	buf.valid = true
	return buf
}

// putBuffer back into the backend pool of buffers.
// After this any references to buffer should be dropped.
func (b *Backend) putBuffer(buffer *Buffer) {
	if buffer == nil || !buffer.shape.Ok() {
		return
	}
	buffer.valid = false
	pool := b.getBufferPool(buffer.shape.DType, buffer.shape.Size())
	pool.Put(buffer)
}

// NewBuffer creates the buffer with a newly allocated flat space.
// Its contents are not initialized: buffers are reused from a pool.
func (b *Backend) NewBuffer(shape shapes.Shape) *Buffer {
	buffer := b.getBuffer(shape.DType, shape.Size())
	buffer.shape = shape.Clone()
	return buffer
}

// copyFlat assumes both flat slices are of the same underlying type.
func copyFlat(flatDst, flatSrc any) {
	reflect.Copy(reflect.ValueOf(flatDst), reflect.ValueOf(flatSrc))
}

// checkBuffer returns an error describing why the buffer is not usable, or nil if it is valid.
func checkBuffer(buffer *Buffer) error {
	if buffer != nil && buffer.flat != nil && buffer.shape.Ok() && buffer.valid {
		return nil
	}
	var issues []string
	if buffer != nil {
		if buffer.flat == nil {
			issues = append(issues, "buffer.flat was nil")
		}
		if !buffer.shape.Ok() {
			issues = append(issues, "buffer.shape was invalid")
		}
		if !buffer.valid {
			issues = append(issues, "buffer was marked as invalid")
		}
	} else {
		issues = append(issues, "buffer was nil")
	}
	return errors.Errorf("buffer (%p): %s -- buffer was already finalized!?", buffer, strings.Join(issues, ", "))
}

// cloneBuffer using the pool to allocate a new one.
func (b *Backend) cloneBuffer(buffer *Buffer) (*Buffer, error) {
	if err := checkBuffer(buffer); err != nil {
		return nil, errors.WithMessage(err, "cloneBuffer")
	}
	newBuffer := b.NewBuffer(buffer.shape)
	copyFlat(newBuffer.flat, buffer.flat)
	return newBuffer, nil
}

// toBuffer casts the backends.Buffer to a valid SimpleGo *Buffer.
func toBuffer(backendBuffer backends.Buffer) (*Buffer, error) {
	buffer, ok := backendBuffer.(*Buffer)
	if !ok {
		return nil, errors.Errorf("buffer (%T) is not a %q backend buffer", backendBuffer, BackendName)
	}
	if err := checkBuffer(buffer); err != nil {
		return nil, err
	}
	return buffer, nil
}

// BufferFinalize allows the client to inform backend that buffer is no longer needed and associated resources can be
// freed immediately.
//
// A finalized buffer should never be used again. Preferably, the caller should set its references to it to nil.
func (b *Backend) BufferFinalize(backendBuffer backends.Buffer) error {
	buffer, err := toBuffer(backendBuffer)
	if err != nil {
		return errors.WithMessage(err, "BufferFinalize")
	}
	b.putBuffer(buffer)
	return nil
}

// BufferShape returns the shape for the buffer.
func (b *Backend) BufferShape(backendBuffer backends.Buffer) (shapes.Shape, error) {
	buffer, err := toBuffer(backendBuffer)
	if err != nil {
		return shapes.Invalid(), errors.WithMessage(err, "BufferShape")
	}
	return buffer.shape, nil
}

// BufferToFlatData transfers the flat values of the buffer to the Go flat array.
// The slice flat must have the exact number of elements required to store the backends.Buffer shape.
func (b *Backend) BufferToFlatData(backendBuffer backends.Buffer, flat any) error {
	buffer, err := toBuffer(backendBuffer)
	if err != nil {
		return errors.WithMessage(err, "BufferToFlatData")
	}
	if err := checkFlatMatches(flat, buffer.shape); err != nil {
		return errors.WithMessage(err, "BufferToFlatData")
	}
	copyFlat(flat, buffer.flat)
	return nil
}

// BufferFromFlatData transfers data from Go given as a flat slice (of the type corresponding to the shape DType)
// to the deviceNum, and returns the corresponding backends.Buffer.
func (b *Backend) BufferFromFlatData(deviceNum backends.DeviceNum, flat any, shape shapes.Shape) (backends.Buffer, error) {
	if deviceNum != 0 {
		return nil, errors.Errorf("backend (%s) only supports deviceNum 0, cannot create buffer on deviceNum %d (shape=%s)",
			b.Name(), deviceNum, shape)
	}
	if err := checkFlatMatches(flat, shape); err != nil {
		return nil, errors.WithMessage(err, "BufferFromFlatData")
	}
	buffer := b.NewBuffer(shape)
	copyFlat(buffer.flat, flat)
	return buffer, nil
}

// checkFlatMatches returns an error if flat is not a slice of the dtype and size of the shape.
func checkFlatMatches(flat any, shape shapes.Shape) error {
	dtype, length, err := checkFlat(flat)
	if err != nil {
		return err
	}
	if dtype != shape.DType {
		return errors.Errorf("flat data type (%s) does not match shape DType (%s)", dtype, shape.DType)
	}
	if length != shape.Size() {
		return errors.Errorf("flat data has %d elements, shape %s requires %d", length, shape, shape.Size())
	}
	return nil
}

// checkFlat returns an error if flat is not a slice of one of the dtypes supported.
// It returns the dtype and the length of the flat slice.
func checkFlat(flat any) (dtypes.DType, int, error) {
	if flat == nil {
		return dtypes.InvalidDType, 0, errors.New("flat data is nil")
	}
	flatType := reflect.TypeOf(flat)
	if flatType.Kind() != reflect.Slice {
		return dtypes.InvalidDType, 0, errors.Errorf("flat data should be a slice, not %s", flatType.Kind())
	}
	dtype := dtypes.FromGoType(flatType.Elem())
	if dtype == dtypes.InvalidDType || !isSupportedDType(dtype) {
		return dtypes.InvalidDType, 0, errors.Errorf("flat is a slice of %s, not a data type supported by backend %q",
			flatType.Elem(), BackendName)
	}
	return dtype, reflect.ValueOf(flat).Len(), nil
}
