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

type TransactionStatus uint8

const (
	StatusOpen TransactionStatus = iota
	StatusCommitted
	StatusRolledBack
)

func (v TransactionStatus) String() string {
	switch v {
	case StatusOpen:
		return "open"
	case StatusCommitted:
		return "committed"
	case StatusRolledBack:
		return "rolledBack"
	}
	return "unknown"
}

// Transaction is a sequence of tentative map mutations that become durable
// together on Commit or disappear together on Rollback. Each mutation leaves
// an in-flight value in the target map and a record in the store's shared
// undo log; readers outside the transaction keep seeing the pre-transaction
// state until commit.
//
// A Transaction is owned by a single goroutine. The maps it touches remain
// safe for concurrent use by other transactions and plain readers.
type Transaction struct {
	store  *TransactionStore
	id     int
	logID  uint64
	status TransactionStatus
}

func (t *Transaction) ID() int {
	return t.id
}

func (t *Transaction) Status() TransactionStatus {
	return t.status
}

// LogLength returns the number of undo-log entries written so far. It can be
// passed to RollbackToSavepoint later to undo everything written after it.
func (t *Transaction) LogLength() uint64 {
	return t.logID
}

// Get returns the value of (key) as visible to this transaction: its own
// tentative value when it wrote one, the committed value otherwise.
func (t *Transaction) Get(m *mvmap.MVMap, key interface{}) interface{} {
	vv := asVersioned(m.Get(key))
	switch {
	case vv == nil:
		return nil
	case vv.IsCommitted() || TransactionID(vv.OperationID()) == t.id:
		return vv.CurrentValue()
	}
	return vv.CommittedValue()
}

// GetCommitted returns the last committed value of (key), ignoring any
// in-flight value including this transaction's own.
func (t *Transaction) GetCommitted(m *mvmap.MVMap, key interface{}) interface{} {
	vv := asVersioned(m.Get(key))
	if vv == nil {
		return nil
	}
	return vv.CommittedValue()
}

// Put tentatively stores (value) for (key). Returns ErrLocked when the entry
// holds an in-flight value of another transaction.
func (t *Transaction) Put(m *mvmap.MVMap, key, value interface{}) error {
	if value == nil {
		panic(throw.IllegalValue())
	}
	return t.operate(m, key, value)
}

// Remove tentatively deletes (key). Returns ErrLocked when the entry holds
// an in-flight value of another transaction.
func (t *Transaction) Remove(m *mvmap.MVMap, key interface{}) error {
	return t.operate(m, key, nil)
}

func (t *Transaction) operate(m *mvmap.MVMap, key, value interface{}) error {
	switch {
	case m == nil:
		panic(throw.IllegalValue())
	case t.status != StatusOpen:
		return ErrTransactionClosed
	case t.logID > MaxLogID:
		panic(throw.IllegalState())
	}

	operationID := OperationID(t.id, t.logID)
	dm := &txDecisionMaker{operationID: operationID, entryID: int64(t.logID)}
	existing := m.Operate(key, value, dm)
	if dm.conflict {
		return ErrLocked
	}

	// the undo record is written after the map mutation; rollback tolerates
	// an undo entry whose map write never happened, not the other way round
	t.store.undoLog.Put(operationID, &Record{
		MapID:    m.ID(),
		Key:      key,
		OldValue: asVersioned(existing),
	})
	t.logID++
	return nil
}

// Commit turns every tentative value of this transaction into a committed
// one and drains its undo-log entries. Entries already converted as part of
// a whole-leaf pass are only drained.
func (t *Transaction) Commit() error {
	if t.status != StatusOpen {
		return ErrTransactionClosed
	}
	dm := NewCommitDecisionMaker(t.id, t.logID)
	for logID := uint64(0); logID < t.logID; logID++ {
		operationID := OperationID(t.id, logID)
		rec, _ := t.store.undoLog.Get(operationID).(*Record)
		if rec == nil {
			continue
		}
		if !dm.HaveSeenEntry(int64(logID)) {
			if m := t.store.MapByID(rec.MapID); m != nil && !m.IsClosed() {
				dm.SetUndoKey(operationID)
				m.Operate(rec.Key, nil, dm)
			}
		}
		t.store.undoLog.Remove(operationID)
	}
	t.status = StatusCommitted
	t.store.onTransactionEnd(t)
	return nil
}

// Rollback undoes every tentative mutation of this transaction, newest
// first, and closes it.
func (t *Transaction) Rollback() error {
	if t.status != StatusOpen {
		return ErrTransactionClosed
	}
	t.rollbackTo(0)
	t.status = StatusRolledBack
	t.store.onTransactionEnd(t)
	return nil
}

// RollbackToSavepoint undoes the mutations recorded after position
// (savepoint) of the undo log, newest first, and leaves the transaction
// open. A savepoint is a value previously returned by LogLength.
func (t *Transaction) RollbackToSavepoint(savepoint uint64) error {
	if t.status != StatusOpen {
		return ErrTransactionClosed
	}
	if savepoint > t.logID {
		panic(throw.IllegalValue())
	}
	t.rollbackTo(savepoint)
	return nil
}

func (t *Transaction) rollbackTo(toLogID uint64) {
	dm := NewRollbackDecisionMaker(t.store, t.id, t.store.rollbackListener())
	for logID := t.logID; logID > toLogID; logID-- {
		operationID := OperationID(t.id, logID-1)
		dm.SetUndoKey(operationID)
		t.store.undoLog.Operate(operationID, nil, dm)
	}
	t.logID = toLogID
}

func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{id=%d, status=%v, logLength=%d}", t.id, t.status, t.logID)
}
