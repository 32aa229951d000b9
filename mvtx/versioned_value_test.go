// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.

package mvtx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOperationIDPacking(t *testing.T) {
	id := OperationID(1, 0)
	require.Equal(t, 1, TransactionID(id))
	require.Zero(t, LogID(id))
	require.NotEqual(t, NoOperationID, id)

	id = OperationID(MaxTransactionID, MaxLogID)
	require.Equal(t, MaxTransactionID, TransactionID(id))
	require.Equal(t, MaxLogID, LogID(id))

	// unsigned order groups by transaction first
	require.Less(t, OperationID(1, MaxLogID), OperationID(2, 0))

	require.Panics(t, func() { OperationID(0, 0) })
	require.Panics(t, func() { OperationID(-1, 0) })
	require.Panics(t, func() { OperationID(MaxTransactionID+1, 0) })
	require.Panics(t, func() { OperationID(1, MaxLogID+1) })
}

func TestVersionedValueCommitted(t *testing.T) {
	v := Committed("a")
	require.True(t, v.IsCommitted())
	require.Equal(t, NoOperationID, v.OperationID())
	require.Equal(t, NoEntryID, v.EntryID())
	require.Equal(t, "a", v.CurrentValue())
	require.Equal(t, "a", v.CommittedValue())

	withEntry := CommittedWithEntry("a", 7)
	require.True(t, withEntry.IsCommitted())
	require.Equal(t, int64(7), withEntry.EntryID())
}

func TestVersionedValueUncommitted(t *testing.T) {
	id := OperationID(3, 5)
	v := Uncommitted(id, "new", "old", 5)
	require.False(t, v.IsCommitted())
	require.Equal(t, id, v.OperationID())
	require.Equal(t, int64(5), v.EntryID())
	require.Equal(t, "new", v.CurrentValue())
	require.Equal(t, "old", v.CommittedValue())

	// pending delete over a pending insert
	del := Uncommitted(id, nil, nil, 5)
	require.Nil(t, del.CurrentValue())
	require.Nil(t, del.CommittedValue())

	require.Panics(t, func() { Uncommitted(NoOperationID, "v", nil, 0) })
}

func TestAsVersioned(t *testing.T) {
	require.Nil(t, asVersioned(nil))
	v := Committed("a")
	require.Same(t, v, asVersioned(interface{}(v)))
	require.Panics(t, func() { asVersioned("not a versioned value") })
}
