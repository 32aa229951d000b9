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

// RollbackListener is notified after an in-flight map entry was reverted.
// (restoredValue) is the value put back, nil for a reverted insert, and
// (replacedValue) is the in-flight value it displaced. The listener is not
// invoked when the map already moved past the undone mutation.
type RollbackListener interface {
	OnRollback(m *mvmap.MVMap, key interface{}, restoredValue, replacedValue *VersionedValue)
}

func NewRollbackDecisionMaker(store *TransactionStore, transactionID int, listener RollbackListener) *RollbackDecisionMaker {
	switch {
	case store == nil:
		panic(throw.IllegalValue())
	case transactionID <= 0 || transactionID > MaxTransactionID:
		panic(throw.IllegalValue())
	}
	return &RollbackDecisionMaker{store: store, transactionID: transactionID, listener: listener}
}

var _ mvmap.DecisionMaker = &RollbackDecisionMaker{}

// RollbackDecisionMaker is applied to the undo log: for every undo record it
// reverts the corresponding map entry, then removes the record itself. The
// map write-back is conditional on the entry still carrying the undone
// mutation; the record removal is not. One instance serves a whole rollback
// pass sequentially.
type RollbackDecisionMaker struct {
	store         *TransactionStore
	transactionID int
	listener      RollbackListener

	undoKey  uint64
	decision mvmap.Decision
}

// SetUndoKey positions the decision maker at the next undo-log entry.
func (p *RollbackDecisionMaker) SetUndoKey(undoKey uint64) {
	if TransactionID(undoKey) != p.transactionID {
		panic(throw.IllegalValue())
	}
	p.undoKey = undoKey
	p.Reset()
}

func (p *RollbackDecisionMaker) Decide(existingValue, providedValue interface{}) mvmap.Decision {
	if p.decision != mvmap.DecisionNone {
		panic(throw.IllegalState())
	}
	rec, _ := existingValue.(*Record)
	if rec == nil {
		// the undo record is already gone, e.g. a repeated partial rollback
		p.decision = mvmap.DecisionAbort
		return p.decision
	}

	if m := p.store.MapByID(rec.MapID); m != nil && !m.IsClosed() {
		restore := restoreDecisionMaker{undoKey: p.undoKey}
		var restoreValue interface{}
		if rec.OldValue != nil {
			restoreValue = rec.OldValue
		}
		replaced := m.Operate(rec.Key, restoreValue, &restore)
		if restore.applied && p.listener != nil {
			p.listener.OnRollback(m, rec.Key, rec.OldValue, asVersioned(replaced))
		}
	}

	// the record is removed whether or not the map write-back applied
	p.decision = mvmap.DecisionRemove
	return p.decision
}

func (p *RollbackDecisionMaker) SelectValue(existingValue, providedValue interface{}) interface{} {
	panic(throw.IllegalState())
}

func (p *RollbackDecisionMaker) OnPageReplaced() {
	panic(throw.Impossible())
}

func (p *RollbackDecisionMaker) Reset() {
	p.decision = mvmap.DecisionNone
}

func (p *RollbackDecisionMaker) String() string {
	return fmt.Sprintf("rollback-%d", p.transactionID)
}

var _ mvmap.DecisionMaker = &restoreDecisionMaker{}

// restoreDecisionMaker writes a pre-mutation value back into a map, but only
// while the entry still holds the exact mutation being undone. A concurrent
// change of the entry turns the restore into a no-op. The (applied) flag
// reflects the outcome of the last attempt, which under the optimistic retry
// discipline of Operate is the attempt that took effect.
type restoreDecisionMaker struct {
	undoKey  uint64
	decision mvmap.Decision
	applied  bool
}

func (p *restoreDecisionMaker) Decide(existingValue, providedValue interface{}) mvmap.Decision {
	if p.decision != mvmap.DecisionNone {
		panic(throw.IllegalState())
	}
	ev := asVersioned(existingValue)
	switch {
	case ev == nil || ev.OperationID() != p.undoKey:
		p.decision = mvmap.DecisionAbort
	case providedValue == nil:
		p.decision = mvmap.DecisionRemove
	default:
		p.decision = mvmap.DecisionPut
	}
	p.applied = p.decision != mvmap.DecisionAbort
	return p.decision
}

func (p *restoreDecisionMaker) SelectValue(existingValue, providedValue interface{}) interface{} {
	if p.decision != mvmap.DecisionPut {
		panic(throw.IllegalState())
	}
	return providedValue
}

func (p *restoreDecisionMaker) OnPageReplaced() {
	panic(throw.Impossible())
}

func (p *restoreDecisionMaker) Reset() {
	p.decision = mvmap.DecisionNone
}
