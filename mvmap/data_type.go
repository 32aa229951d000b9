// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.

package mvmap

import (
	"bytes"

	"github.com/insolar/mvstore/vanilla/throw"
)

// Approximated in-memory costs used for unsaved-change accounting.
const (
	MemoryObject  = 32
	MemoryPointer = 8
	MemoryArray   = 24
)

// DataType is a codec and comparator for keys or values of an MVMap.
// Implementations must be stateless or immutable, as one instance
// serves all concurrent readers of a map.
type DataType interface {
	// Compare returns negative / zero / positive for a<b / a==b / a>b.
	Compare(a, b interface{}) int
	// Memory approximates the in-memory size of (v). Memory(nil) == 0.
	Memory(v interface{}) int

	Write(buff *WriteBuffer, v interface{})
	Read(buff *ReadBuffer) interface{}

	// WriteBatch serializes consecutive values of one page.
	WriteBatch(buff *WriteBuffer, values []interface{})
	// ReadBatch fills (values) from a buffer written by WriteBatch.
	ReadBatch(buff *ReadBuffer, values []interface{})
}

// Hashable is an optional upgrade for DataType implementations that
// participate in codec identity checks.
type Hashable interface {
	Hash() uint32
}

var _ DataType = Uint64Type{}

// Uint64Type stores uint64 keys or values as varints.
type Uint64Type struct{}

func (Uint64Type) Compare(a, b interface{}) int {
	av := a.(uint64)
	bv := b.(uint64)
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	}
	return 0
}

func (Uint64Type) Memory(v interface{}) int {
	if v == nil {
		return 0
	}
	return 8
}

func (Uint64Type) Write(buff *WriteBuffer, v interface{}) {
	buff.PutVarint(v.(uint64))
}

func (Uint64Type) Read(buff *ReadBuffer) interface{} {
	return buff.GetVarint()
}

func (t Uint64Type) WriteBatch(buff *WriteBuffer, values []interface{}) {
	for _, v := range values {
		t.Write(buff, v)
	}
}

func (t Uint64Type) ReadBatch(buff *ReadBuffer, values []interface{}) {
	for i := range values {
		values[i] = t.Read(buff)
	}
}

func (Uint64Type) Hash() uint32 {
	return 0x75AFD321
}

var _ DataType = StringType{}

// StringType stores string keys or values with a varint length prefix.
type StringType struct{}

func (StringType) Compare(a, b interface{}) int {
	return bytes.Compare([]byte(a.(string)), []byte(b.(string)))
}

func (StringType) Memory(v interface{}) int {
	if v == nil {
		return 0
	}
	return MemoryObject + len(v.(string))
}

func (StringType) Write(buff *WriteBuffer, v interface{}) {
	s, ok := v.(string)
	if !ok {
		panic(throw.IllegalValue())
	}
	buff.PutVarintBytes([]byte(s))
}

func (StringType) Read(buff *ReadBuffer) interface{} {
	return string(buff.GetVarintBytes())
}

func (t StringType) WriteBatch(buff *WriteBuffer, values []interface{}) {
	for _, v := range values {
		t.Write(buff, v)
	}
}

func (t StringType) ReadBatch(buff *ReadBuffer, values []interface{}) {
	for i := range values {
		values[i] = t.Read(buff)
	}
}

func (StringType) Hash() uint32 {
	return 0x3C6EF372
}
