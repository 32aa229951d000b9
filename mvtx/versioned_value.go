// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.

// Package mvtx implements multi-version concurrency control on top of the
// copy-on-write map of package mvmap. Every map entry is a VersionedValue
// that carries either a committed value or an in-flight tentative value
// together with the state to revert to. Commit and rollback convert
// tentative values into durable state, or undo them, through decision
// makers plugged into the map's optimistic update primitive.
package mvtx

import (
	"fmt"

	"github.com/insolar/mvstore/vanilla/throw"
)

const (
	// NoOperationID marks a committed value. Transaction ids start at 1, so
	// a packed operation id can never be zero.
	NoOperationID uint64 = 0

	// NoEntryID is the default for values not linked to an undo-log slot.
	NoEntryID int64 = -1
)

// An operation id packs the transaction id into the high 24 bits and the
// log sequence id into the low 40. Unsigned comparison therefore orders
// operation ids by transaction first, then by log position.
const (
	logIDBits = 40
	logIDMask = uint64(1)<<logIDBits - 1

	MaxTransactionID = int(1)<<24 - 1
	MaxLogID         = logIDMask
)

func OperationID(transactionID int, logID uint64) uint64 {
	switch {
	case transactionID <= 0 || transactionID > MaxTransactionID:
		panic(throw.IllegalValue())
	case logID > MaxLogID:
		panic(throw.IllegalValue())
	}
	return uint64(transactionID)<<logIDBits | logID
}

func TransactionID(operationID uint64) int {
	return int(operationID >> logIDBits)
}

func LogID(operationID uint64) uint64 {
	return operationID & logIDMask
}

// VersionedValue is a per-key value as seen by MVCC. It is immutable.
// A committed value carries the value itself and an optional entry id.
// An uncommitted value additionally carries the operation id of the
// mutation that created it and the committed value to revert to.
type VersionedValue struct {
	operationID uint64
	entryID     int64
	current     interface{}
	committed   interface{}
}

// Committed wraps (value) as a committed value without an undo-log link.
// The value itself can be nil.
func Committed(value interface{}) *VersionedValue {
	return &VersionedValue{entryID: NoEntryID, current: value, committed: value}
}

// CommittedWithEntry wraps (value) as a committed value still linked to the
// undo-log slot (entryID). Used by commit-processing bookkeeping.
func CommittedWithEntry(value interface{}, entryID int64) *VersionedValue {
	return &VersionedValue{entryID: entryID, current: value, committed: value}
}

// Uncommitted creates an in-flight value: (current) is the tentative value,
// nil meaning a pending delete, and (committed) is the state to revert to.
func Uncommitted(operationID uint64, current, committed interface{}, entryID int64) *VersionedValue {
	if operationID == NoOperationID {
		panic(throw.IllegalValue())
	}
	return &VersionedValue{
		operationID: operationID,
		entryID:     entryID,
		current:     current,
		committed:   committed,
	}
}

func (v *VersionedValue) IsCommitted() bool {
	return v.operationID == NoOperationID
}

func (v *VersionedValue) OperationID() uint64 {
	return v.operationID
}

func (v *VersionedValue) EntryID() int64 {
	return v.entryID
}

func (v *VersionedValue) CurrentValue() interface{} {
	return v.current
}

func (v *VersionedValue) CommittedValue() interface{} {
	return v.committed
}

func (v *VersionedValue) String() string {
	if v.IsCommitted() {
		return fmt.Sprintf("%v", v.current)
	}
	return fmt.Sprintf("%v (uncommitted txn=%d log=%d, committed=%v)",
		v.current, TransactionID(v.operationID), LogID(v.operationID), v.committed)
}

func asVersioned(v interface{}) *VersionedValue {
	if v == nil {
		return nil
	}
	return v.(*VersionedValue)
}
