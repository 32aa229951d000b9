// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.

package mvtx

import (
	"github.com/insolar/mvstore/mvmap"
	"github.com/insolar/mvstore/vanilla/throw"
)

var _ mvmap.DecisionMaker = &txDecisionMaker{}

// txDecisionMaker installs an in-flight value for one mutation of one
// transaction. An entry already carrying an in-flight value of another
// transaction makes the mutation fail fast, reported through the (conflict)
// flag. Overwriting this transaction's own in-flight value carries the
// original pre-transaction state forward, so a later rollback restores what
// was there before the first write, not an intermediate one.
type txDecisionMaker struct {
	operationID uint64
	entryID     int64
	decision    mvmap.Decision
	conflict    bool
}

func (p *txDecisionMaker) Decide(existingValue, providedValue interface{}) mvmap.Decision {
	if p.decision != mvmap.DecisionNone {
		panic(throw.IllegalState())
	}
	ev := asVersioned(existingValue)
	if ev != nil && !ev.IsCommitted() && TransactionID(ev.OperationID()) != TransactionID(p.operationID) {
		p.conflict = true
		p.decision = mvmap.DecisionAbort
	} else {
		p.conflict = false
		p.decision = mvmap.DecisionPut
	}
	return p.decision
}

func (p *txDecisionMaker) SelectValue(existingValue, providedValue interface{}) interface{} {
	if p.decision != mvmap.DecisionPut {
		panic(throw.IllegalState())
	}
	var committed interface{}
	if ev := asVersioned(existingValue); ev != nil {
		committed = ev.CommittedValue()
	}
	return Uncommitted(p.operationID, providedValue, committed, p.entryID)
}

func (p *txDecisionMaker) OnPageReplaced() {
	panic(throw.Impossible())
}

func (p *txDecisionMaker) Reset() {
	p.decision = mvmap.DecisionNone
}
