// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.

package mvtx

import (
	"fmt"

	"github.com/insolar/mvstore/mvmap"
	"github.com/insolar/mvstore/vanilla/longbits"
	"github.com/insolar/mvstore/vanilla/throw"
)

func NewCommitDecisionMaker(transactionID int, logLen uint64) *CommitDecisionMaker {
	if transactionID <= 0 || transactionID > MaxTransactionID {
		panic(throw.IllegalValue())
	}
	return &CommitDecisionMaker{
		transactionID: transactionID,
		entryIDs:      longbits.NewBitSet(int(logLen)),
		pageEntryIDs:  make([]int64, 0, mvmap.MaxLeafMask),
	}
}

var _ mvmap.DecisionMaker = &CommitDecisionMaker{}
var _ mvmap.PageRewriter = &CommitDecisionMaker{}

// CommitDecisionMaker converts uncommitted map entries of one transaction
// into committed ones, driven by undo-log information. It processes whole
// leaf pages in one pass through the PageRewriter protocol and individual
// keys through the decision protocol; both enforce the same invariants.
//
// One instance serves a whole commit pass sequentially and must not be
// shared between goroutines. The entryIDs bitmap is the only state that
// survives Reset: it guards against processing the same undo-log slot
// twice. Entry ids observed during a page rewrite are buffered and merged
// into the bitmap only by OnPageReplaced, i.e. only once the rewrite was
// actually published - a failed CAS attempt must leave no trace, or the
// retry would trip the double-observation check.
type CommitDecisionMaker struct {
	transactionID int
	undoKey       uint64
	decision      mvmap.Decision

	entryIDs     longbits.BitSet
	pageEntryIDs []int64
}

// SetUndoKey positions the decision maker at the next undo-log entry.
func (p *CommitDecisionMaker) SetUndoKey(undoKey uint64) {
	p.undoKey = undoKey
	p.Reset()
}

func (p *CommitDecisionMaker) HaveSeenEntry(entryID int64) bool {
	return entryID >= 0 && p.entryIDs.Bit(int(entryID))
}

// RewritePage scans the whole leaf and converts every entry belonging to
// the committing transaction: entries with a pending delete are removed,
// the rest become committed. An emptied leaf collapses upwards. Returns
// (tip) unchanged when the page holds nothing of this transaction.
func (p *CommitDecisionMaker) RewritePage(tip *mvmap.CursorPos, key interface{}) *mvmap.CursorPos {
	pg := tip.Page
	if !pg.IsLeaf() {
		panic(throw.IllegalState())
	}

	update := false
	toRemove := uint64(0)
	for src := 0; src < pg.KeyCount(); src++ {
		value := asVersioned(pg.GetValue(src))
		operationID := value.OperationID()
		if operationID == NoOperationID || TransactionID(operationID) != p.transactionID {
			continue
		}
		entryID := value.EntryID()
		if entryID == NoEntryID {
			panic(throw.IllegalState())
		}
		if p.HaveSeenEntry(entryID) {
			panic(throw.E("undo-log entry observed twice in one page pass",
				struct{ EntryID int64 }{entryID}))
		}
		p.pageEntryIDs = append(p.pageEntryIDs, entryID)

		if value.CurrentValue() == nil {
			toRemove |= 1 << uint(src)
		} else {
			update = true
		}
	}

	switch {
	case toRemove != 0:
		pg = pg.RemoveMask(toRemove)
		if pg.KeyCount() == 0 {
			return mvmap.CollapseEmptyLeaf(mvmap.NewCursorPos(pg, 0, tip.Parent))
		}
	case update:
		pg = pg.Copy()
	default:
		return tip
	}

	if update {
		for i := 0; i < pg.KeyCount(); i++ {
			value := asVersioned(pg.GetValue(i))
			operationID := value.OperationID()
			if operationID != NoOperationID && TransactionID(operationID) == p.transactionID {
				currentValue := value.CurrentValue()
				if currentValue == nil {
					panic(throw.Impossible())
				}
				pg.SetValue(i, Committed(currentValue))
			}
		}
	}
	return mvmap.NewCursorPos(pg, 0, tip.Parent)
}

// OnPageReplaced merges the entry ids observed by the last published page
// rewrite into the permanent bitmap.
func (p *CommitDecisionMaker) OnPageReplaced() {
	for _, entryID := range p.pageEntryIDs {
		p.entryIDs.Set(int(entryID))
	}
	p.Reset()
}

func (p *CommitDecisionMaker) Decide(existingValue, providedValue interface{}) mvmap.Decision {
	if p.decision != mvmap.DecisionNone {
		panic(throw.IllegalState())
	}
	ev := asVersioned(existingValue)
	switch {
	case ev == nil || ev.OperationID() != p.undoKey:
		// not the terminal undo-log entry for this key, or the entry was
		// already committed or overwritten by another transaction
		p.decision = mvmap.DecisionAbort
	case ev.CurrentValue() == nil:
		p.decision = mvmap.DecisionRemove
	default:
		p.decision = mvmap.DecisionPut
	}
	return p.decision
}

func (p *CommitDecisionMaker) SelectValue(existingValue, providedValue interface{}) interface{} {
	if p.decision != mvmap.DecisionPut {
		panic(throw.IllegalState())
	}
	return Committed(asVersioned(existingValue).CurrentValue())
}

func (p *CommitDecisionMaker) Reset() {
	p.decision = mvmap.DecisionNone
	p.pageEntryIDs = p.pageEntryIDs[:0]
}

func (p *CommitDecisionMaker) String() string {
	return fmt.Sprintf("commit-%d", p.transactionID)
}
