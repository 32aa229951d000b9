// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.

package mvtx

import (
	"fmt"

	"github.com/insolar/mvstore/mvmap"
	"github.com/insolar/mvstore/vanilla/throw"
)

// Record is one undo-log entry: the value a key of a map held before an
// uncommitted mutation. Records are keyed in the undo-log map by the packed
// operation id of the mutation.
type Record struct {
	MapID    int
	Key      interface{}
	OldValue *VersionedValue
}

func (r *Record) String() string {
	return fmt.Sprintf("Record{map=%d, key=%v, oldValue=%v}", r.MapID, r.Key, r.OldValue)
}

func NewRecordType(store *TransactionStore) RecordType {
	if store == nil {
		panic(throw.IllegalValue())
	}
	return RecordType{store: store}
}

var _ mvmap.DataType = RecordType{}

// RecordType is the undo-log value codec. Key and old-value encodings are
// resolved through the store registry by the map id carried in the record.
type RecordType struct {
	store *TransactionStore
}

func (t RecordType) Compare(a, b interface{}) int {
	panic(throw.Unsupported())
}

func (t RecordType) Memory(v interface{}) int {
	if v == nil {
		return 0
	}
	r := v.(*Record)
	memory := mvmap.MemoryObject + 2*mvmap.MemoryPointer
	// the map's value codec already is the versioned one
	if m := t.store.MapByID(r.MapID); m != nil {
		memory += m.KeyType().Memory(r.Key)
		memory += m.ValueType().Memory(r.OldValue)
	}
	return memory
}

func (t RecordType) Write(buff *mvmap.WriteBuffer, v interface{}) {
	r := v.(*Record)
	m := t.store.MapByID(r.MapID)
	if m == nil {
		panic(throw.IllegalState())
	}
	buff.PutVarint(uint64(r.MapID))
	m.KeyType().Write(buff, r.Key)
	if r.OldValue == nil {
		buff.PutByte(0)
		return
	}
	buff.PutByte(1)
	m.ValueType().Write(buff, r.OldValue)
}

func (t RecordType) Read(buff *mvmap.ReadBuffer) interface{} {
	mapID := int(buff.GetVarint())
	m := t.store.MapByID(mapID)
	if m == nil {
		panic(throw.IllegalState())
	}
	r := &Record{MapID: mapID, Key: m.KeyType().Read(buff)}
	if buff.GetByte() != 0 {
		r.OldValue = asVersioned(m.ValueType().Read(buff))
	}
	return r
}

func (t RecordType) WriteBatch(buff *mvmap.WriteBuffer, values []interface{}) {
	for _, v := range values {
		t.Write(buff, v)
	}
}

func (t RecordType) ReadBatch(buff *mvmap.ReadBuffer, values []interface{}) {
	for i := range values {
		values[i] = t.Read(buff)
	}
}
