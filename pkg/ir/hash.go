// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"reflect"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/irgraph/pkg/core/shapes"
)

// Hash is the structural hash of an operator: it combines the operator kind and its parameters, but never
// its operands. Nodes with equal hashes are candidates for de-duplication, confirmed with Operator.EqualParams.
type Hash uint64

// String implements fmt.Stringer.
func (h Hash) String() string {
	return fmt.Sprintf("0x%016x", uint64(h))
}

// MHash combines the given values into a Hash.
//
// Values can be of any integer kind (including enums like OpKind or lowering.Reduction), bool, string,
// shapes.Shape or Hash. The order of the values matters. It panics for other types.
func MHash(values ...any) Hash {
	h := fnv.New64a()
	var buf [8]byte
	writeInt := func(i int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(i))
		_, _ = h.Write(buf[:])
	}
	for _, value := range values {
		switch v := value.(type) {
		case Hash:
			writeInt(int64(v))
		case string:
			writeInt(int64(len(v)))
			_, _ = h.Write([]byte(v))
		case bool:
			if v {
				writeInt(1)
			} else {
				writeInt(0)
			}
		case shapes.Shape:
			writeInt(int64(v.DType))
			writeInt(int64(v.Rank()))
			for _, dim := range v.Dimensions {
				writeInt(int64(dim))
			}
		default:
			rv := reflect.ValueOf(value)
			switch rv.Kind() {
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
				writeInt(rv.Int())
			case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
				writeInt(int64(rv.Uint()))
			default:
				exceptions.Panicf("MHash: value of type %T can't be hashed", value)
			}
		}
	}
	return Hash(h.Sum64())
}
