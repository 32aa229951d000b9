// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.

package mvtx

import (
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/insolar/mvstore/mvmap"
)

func TestTransactionIsolation(t *testing.T) {
	s, m := newTestStore(t)

	seed := s.Begin()
	require.NoError(t, seed.Put(m, uint64(1), "old"))
	require.NoError(t, seed.Commit())

	writer := s.Begin()
	reader := s.Begin()
	require.NoError(t, writer.Put(m, uint64(1), "new"))
	require.NoError(t, writer.Put(m, uint64(2), "added"))

	// the writer sees its own tentative state, everyone else the committed one
	require.Equal(t, "new", writer.Get(m, uint64(1)))
	require.Equal(t, "added", writer.Get(m, uint64(2)))
	require.Equal(t, "old", writer.GetCommitted(m, uint64(1)))
	require.Equal(t, "old", reader.Get(m, uint64(1)))
	require.Nil(t, reader.Get(m, uint64(2)))

	require.NoError(t, writer.Commit())
	require.Equal(t, "new", reader.Get(m, uint64(1)))
	require.Equal(t, "added", reader.Get(m, uint64(2)))
	require.NoError(t, reader.Commit())
}

func TestTransactionRemoveVisibility(t *testing.T) {
	s, m := newTestStore(t)
	seed := s.Begin()
	require.NoError(t, seed.Put(m, uint64(1), "v"))
	require.NoError(t, seed.Commit())

	txn := s.Begin()
	require.NoError(t, txn.Remove(m, uint64(1)))
	require.Nil(t, txn.Get(m, uint64(1)))
	require.Equal(t, "v", txn.GetCommitted(m, uint64(1)))

	other := s.Begin()
	require.Equal(t, "v", other.Get(m, uint64(1)))

	require.NoError(t, txn.Commit())
	require.Nil(t, m.Get(uint64(1)))
	require.NoError(t, other.Rollback())
}

func TestTransactionWriteConflict(t *testing.T) {
	s, m := newTestStore(t)
	tx1 := s.Begin()
	tx2 := s.Begin()

	require.NoError(t, tx1.Put(m, uint64(1), "a"))
	require.Equal(t, ErrLocked, tx2.Put(m, uint64(1), "b"))
	require.Equal(t, ErrLocked, tx2.Remove(m, uint64(1)))

	// a failed mutation leaves no undo record behind
	require.Zero(t, tx2.LogLength())
	require.Equal(t, 1, s.UndoLogLength())

	require.NoError(t, tx1.Rollback())
	require.NoError(t, tx2.Put(m, uint64(1), "b"))
	require.NoError(t, tx2.Commit())
	require.Equal(t, "b", committedAt(t, m, uint64(1)))
}

func TestTransactionOwnOverwriteKeepsOriginal(t *testing.T) {
	s, m := newTestStore(t)
	seed := s.Begin()
	require.NoError(t, seed.Put(m, uint64(1), "A"))
	require.NoError(t, seed.Commit())

	txn := s.Begin()
	require.NoError(t, txn.Put(m, uint64(1), "B"))
	require.NoError(t, txn.Put(m, uint64(1), "C"))
	require.Equal(t, "C", txn.Get(m, uint64(1)))
	// the pre-transaction state survives repeated overwrites
	require.Equal(t, "A", txn.GetCommitted(m, uint64(1)))

	require.NoError(t, txn.Rollback())
	require.Equal(t, "A", committedAt(t, m, uint64(1)))
	require.Zero(t, s.UndoLogLength())
}

func TestTransactionCommitAcrossMaps(t *testing.T) {
	s, m1 := newTestStore(t)
	m2 := s.OpenMap("more", mvmap.Uint64Type{}, mvmap.StringType{})

	txn := s.Begin()
	require.NoError(t, txn.Put(m1, uint64(1), "a"))
	require.NoError(t, txn.Put(m2, uint64(1), "b"))
	require.NoError(t, txn.Put(m2, uint64(2), "c"))
	require.Equal(t, uint64(3), txn.LogLength())
	require.Equal(t, 3, s.UndoLogLength())

	require.NoError(t, txn.Commit())
	require.Equal(t, StatusCommitted, txn.Status())
	require.Equal(t, "a", committedAt(t, m1, uint64(1)))
	require.Equal(t, "b", committedAt(t, m2, uint64(1)))
	require.Equal(t, "c", committedAt(t, m2, uint64(2)))
	require.Zero(t, s.UndoLogLength())
}

func TestTransactionCommitManyKeysOneLeaf(t *testing.T) {
	s := NewTransactionStore(zerolog.Nop())
	m := s.OpenMapExt("data", mvmap.Uint64Type{}, mvmap.StringType{}, 4)

	const n = 40
	txn := s.Begin()
	for k := uint64(0); k < n; k++ {
		require.NoError(t, txn.Put(m, k, strconv.FormatUint(k, 10)))
	}
	require.NoError(t, txn.Commit())

	for k := uint64(0); k < n; k++ {
		require.Equal(t, strconv.FormatUint(k, 10), committedAt(t, m, k))
	}
	require.Zero(t, s.UndoLogLength())
}

func TestTransactionCommitRemovesCollapseTree(t *testing.T) {
	s := NewTransactionStore(zerolog.Nop())
	m := s.OpenMapExt("data", mvmap.Uint64Type{}, mvmap.StringType{}, 4)

	const n = 30
	seed := s.Begin()
	for k := uint64(0); k < n; k++ {
		require.NoError(t, seed.Put(m, k, "v"))
	}
	require.NoError(t, seed.Commit())
	require.False(t, m.GetRootPage().IsLeaf())

	txn := s.Begin()
	for k := uint64(0); k < n; k++ {
		require.NoError(t, txn.Remove(m, k))
	}
	require.NoError(t, txn.Commit())

	root := m.GetRootPage()
	require.True(t, root.IsLeaf())
	require.Zero(t, root.KeyCount())
	require.Zero(t, s.UndoLogLength())
}

func TestTransactionSavepoint(t *testing.T) {
	s, m := newTestStore(t)
	txn := s.Begin()
	require.NoError(t, txn.Put(m, uint64(1), "keep"))
	savepoint := txn.LogLength()
	require.NoError(t, txn.Put(m, uint64(2), "drop"))
	require.NoError(t, txn.Put(m, uint64(1), "drop too"))

	require.Panics(t, func() { _ = txn.RollbackToSavepoint(100) })

	require.NoError(t, txn.RollbackToSavepoint(savepoint))
	require.Equal(t, savepoint, txn.LogLength())
	require.Equal(t, "keep", txn.Get(m, uint64(1)))
	require.Nil(t, txn.Get(m, uint64(2)))

	require.NoError(t, txn.Commit())
	require.Equal(t, "keep", committedAt(t, m, uint64(1)))
	require.Nil(t, m.Get(uint64(2)))
	require.Zero(t, s.UndoLogLength())
}

func TestTransactionClosedUse(t *testing.T) {
	s, m := newTestStore(t)
	txn := s.Begin()
	require.NoError(t, txn.Put(m, uint64(1), "a"))
	require.NoError(t, txn.Commit())
	require.Equal(t, StatusCommitted, txn.Status())

	require.Equal(t, ErrTransactionClosed, txn.Put(m, uint64(2), "b"))
	require.Equal(t, ErrTransactionClosed, txn.Remove(m, uint64(1)))
	require.Equal(t, ErrTransactionClosed, txn.Commit())
	require.Equal(t, ErrTransactionClosed, txn.Rollback())
	require.Equal(t, ErrTransactionClosed, txn.RollbackToSavepoint(0))

	rolled := s.Begin()
	require.NoError(t, rolled.Rollback())
	require.Equal(t, StatusRolledBack, rolled.Status())
	require.Equal(t, ErrTransactionClosed, rolled.Put(m, uint64(1), "x"))

	require.Panics(t, func() { _ = txn.Put(m, uint64(1), nil) })
	require.Panics(t, func() { _ = txn.Put(nil, uint64(1), "x") })
}

func TestTransactionStoreBookkeeping(t *testing.T) {
	s, m := newTestStore(t)
	require.Zero(t, s.OpenTransactionCount())

	tx1 := s.Begin()
	tx2 := s.Begin()
	require.Equal(t, 2, s.OpenTransactionCount())
	require.NotEqual(t, tx1.ID(), tx2.ID())
	require.Equal(t, StatusOpen, tx1.Status())

	require.NoError(t, tx1.Put(m, uint64(1), "a"))
	require.Positive(t, s.UnsavedMemory())

	require.NoError(t, tx1.Commit())
	require.NoError(t, tx2.Rollback())
	require.Zero(t, s.OpenTransactionCount())
}

func TestTransactionStoreOpenMap(t *testing.T) {
	s, m := newTestStore(t)
	require.Same(t, m, s.OpenMap("data", mvmap.Uint64Type{}, mvmap.StringType{}))
	require.Same(t, m, s.MapByID(m.ID()))
	require.Nil(t, s.MapByID(999))

	require.Panics(t, func() { s.OpenMap("data", mvmap.Uint64Type{}, mvmap.Uint64Type{}) })
	require.Panics(t, func() { s.OpenMap("data", mvmap.StringType{}, mvmap.StringType{}) })
	require.Panics(t, func() { s.OpenMap("", mvmap.Uint64Type{}, mvmap.StringType{}) })
	require.Panics(t, func() { s.OpenMap("x", nil, mvmap.StringType{}) })

	other := s.OpenMap("other", mvmap.Uint64Type{}, mvmap.StringType{})
	require.NotEqual(t, m.ID(), other.ID())
}

func TestTransactionUndoRecordRoundTrip(t *testing.T) {
	s, m := newTestStore(t)
	txn := s.Begin()
	require.NoError(t, txn.Put(m, uint64(7), "a"))

	// the undo log must survive a flush cycle of the store state
	rt := NewRecordType(s)
	wb := mvmap.NewWriteBuffer(0)
	rec := &Record{MapID: m.ID(), Key: uint64(7), OldValue: Committed("before")}
	rt.Write(wb, rec)
	got := rt.Read(mvmap.NewReadBuffer(wb.Bytes())).(*Record)
	require.Equal(t, rec.MapID, got.MapID)
	require.Equal(t, rec.Key, got.Key)
	requireSameVersioned(t, rec.OldValue, got.OldValue)
	require.Positive(t, rt.Memory(rec))

	noOld := &Record{MapID: m.ID(), Key: uint64(7)}
	rt.Write(wb, noOld)
	require.NoError(t, txn.Rollback())
}
