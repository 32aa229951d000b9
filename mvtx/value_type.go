// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.

package mvtx

import (
	"github.com/insolar/mvstore/mvmap"
	"github.com/insolar/mvstore/vanilla/throw"
)

// Per-value layout: one flags byte, then the fields whose bit is set, in
// this order. The committed value is only ever written for uncommitted
// values.
const (
	flagOperationID = 1 << iota
	flagEntryID
	flagCurrentValue
	flagCommittedValue
)

// Fixed per-value overhead: object header plus two reference-sized fields.
const versionedValueOverhead = mvmap.MemoryObject + 16 + 2*mvmap.MemoryPointer

const versionedValueTypeHash = uint32(0x9E3779B9)

func NewVersionedValueType(valueType mvmap.DataType) VersionedValueType {
	if valueType == nil {
		panic(throw.IllegalValue())
	}
	return VersionedValueType{valueType: valueType}
}

var _ mvmap.DataType = VersionedValueType{}
var _ mvmap.Hashable = VersionedValueType{}

// VersionedValueType is the page codec for VersionedValue entries wrapping
// the codec of the inner value.
type VersionedValueType struct {
	valueType mvmap.DataType
}

func (t VersionedValueType) Compare(a, b interface{}) int {
	return t.valueType.Compare(asVersioned(a).CurrentValue(), asVersioned(b).CurrentValue())
}

func (t VersionedValueType) Memory(v interface{}) int {
	vv := asVersioned(v)
	if vv == nil {
		return 0
	}
	memory := versionedValueOverhead + t.valMemory(vv.CurrentValue())
	if !vv.IsCommitted() {
		memory += t.valMemory(vv.CommittedValue())
	}
	return memory
}

func (t VersionedValueType) valMemory(v interface{}) int {
	if v == nil {
		return 0
	}
	return t.valueType.Memory(v)
}

func (t VersionedValueType) Write(buff *mvmap.WriteBuffer, v interface{}) {
	vv := asVersioned(v)
	if vv == nil {
		buff.PutByte(0)
		return
	}

	operationID := vv.OperationID()
	entryID := vv.EntryID()
	currentValue := vv.CurrentValue()
	var committedValue interface{}
	if operationID != NoOperationID {
		committedValue = vv.CommittedValue()
	}

	flags := byte(0)
	if operationID != NoOperationID {
		flags |= flagOperationID
	}
	if entryID != NoEntryID {
		flags |= flagEntryID
	}
	if currentValue != nil {
		flags |= flagCurrentValue
	}
	if committedValue != nil {
		flags |= flagCommittedValue
	}
	buff.PutByte(flags)

	if operationID != NoOperationID {
		buff.PutVarint(operationID)
	}
	if entryID != NoEntryID {
		buff.PutVarint(uint64(entryID))
	}
	if currentValue != nil {
		t.valueType.Write(buff, currentValue)
	}
	if committedValue != nil {
		t.valueType.Write(buff, committedValue)
	}
}

func (t VersionedValueType) Read(buff *mvmap.ReadBuffer) interface{} {
	flags := buff.GetByte()

	operationID := NoOperationID
	if flags&flagOperationID != 0 {
		operationID = buff.GetVarint()
	}
	entryID := NoEntryID
	if flags&flagEntryID != 0 {
		entryID = int64(buff.GetVarint())
	}
	var currentValue, committedValue interface{}
	if flags&flagCurrentValue != 0 {
		currentValue = t.valueType.Read(buff)
	}
	if flags&flagCommittedValue != 0 {
		committedValue = t.valueType.Read(buff)
	}

	if operationID != NoOperationID {
		return Uncommitted(operationID, currentValue, committedValue, entryID)
	}
	if entryID == NoEntryID {
		if currentValue == nil {
			return nil
		}
		return Committed(currentValue)
	}
	return CommittedWithEntry(currentValue, entryID)
}

// WriteBatch serializes consecutive values with a one byte batch marker:
// 0 selects the fast path where only the inner values are written, 1 the
// general per-value encoding.
func (t VersionedValueType) WriteBatch(buff *mvmap.WriteBuffer, values []interface{}) {
	if isFastPath(values) {
		buff.PutByte(0)
		for _, v := range values {
			t.valueType.Write(buff, asVersioned(v).CurrentValue())
		}
		return
	}
	// slow path: op ids are present, or some entries are null
	buff.PutByte(1)
	for _, v := range values {
		t.Write(buff, v)
	}
}

func (t VersionedValueType) ReadBatch(buff *mvmap.ReadBuffer, values []interface{}) {
	if buff.GetByte() == 0 {
		for i := range values {
			values[i] = Committed(t.valueType.Read(buff))
		}
		return
	}
	for i := range values {
		values[i] = t.Read(buff)
	}
}

// isFastPath reports whether every value of the batch is committed, free of
// an undo-log link and carries a non-nil value.
func isFastPath(values []interface{}) bool {
	for _, v := range values {
		vv := asVersioned(v)
		if vv == nil ||
			vv.OperationID() != NoOperationID ||
			vv.EntryID() != NoEntryID ||
			vv.CurrentValue() == nil {
			return false
		}
	}
	return true
}

// Equal reports codec identity: two codecs are interchangeable iff their
// inner value codecs are.
func (t VersionedValueType) Equal(o mvmap.DataType) bool {
	ot, ok := o.(VersionedValueType)
	if !ok {
		return false
	}
	if eq, ok := t.valueType.(interface{ Equal(mvmap.DataType) bool }); ok {
		return eq.Equal(ot.valueType)
	}
	return t.valueType == ot.valueType
}

func (t VersionedValueType) Hash() uint32 {
	h := uint32(0)
	if hashable, ok := t.valueType.(mvmap.Hashable); ok {
		h = hashable.Hash()
	}
	return h ^ versionedValueTypeHash
}
