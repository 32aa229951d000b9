// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.

package mvtx

import (
	"sync/atomic"

	"github.com/gojuno/minimock/v3"

	"github.com/insolar/mvstore/mvmap"
)

// RollbackListenerMock implements RollbackListener for tests.
type RollbackListenerMock struct {
	t minimock.Tester

	// OnRollbackFunc handles each notification; leaving it nil makes any
	// notification a test failure.
	OnRollbackFunc func(m *mvmap.MVMap, key interface{}, restoredValue, replacedValue *VersionedValue)

	onRollbackCount uint64
}

func NewRollbackListenerMock(t minimock.Tester) *RollbackListenerMock {
	return &RollbackListenerMock{t: t}
}

func (p *RollbackListenerMock) OnRollback(m *mvmap.MVMap, key interface{}, restoredValue, replacedValue *VersionedValue) {
	atomic.AddUint64(&p.onRollbackCount, 1)
	if p.OnRollbackFunc == nil {
		p.t.Fatalf("unexpected call to RollbackListenerMock.OnRollback(%v, %v, %v, %v)",
			m.Name(), key, restoredValue, replacedValue)
		return
	}
	p.OnRollbackFunc(m, key, restoredValue, replacedValue)
}

// OnRollbackCount returns the number of OnRollback calls so far.
func (p *RollbackListenerMock) OnRollbackCount() uint64 {
	return atomic.LoadUint64(&p.onRollbackCount)
}
