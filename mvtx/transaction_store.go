// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.

package mvtx

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/insolar/mvstore/mvmap"
	"github.com/insolar/mvstore/vanilla/throw"
)

var (
	// ErrLocked is returned when an entry holds an in-flight value of
	// another transaction. The caller decides whether to retry or abort.
	ErrLocked = throw.New("entry is locked by another transaction")

	// ErrTransactionClosed is returned on any use of a transaction after
	// Commit or Rollback.
	ErrTransactionClosed = throw.New("transaction is closed")
)

// undo-log map id, outside the range handed out to user maps
const undoLogMapID = 0

func NewTransactionStore(logger zerolog.Logger) *TransactionStore {
	s := &TransactionStore{
		logger:     logger,
		maps:       make(map[int]*mvmap.MVMap),
		mapsByName: make(map[string]*mvmap.MVMap),
	}
	s.undoLog = mvmap.NewMVMap(undoLogMapID, "undoLog", mvmap.Uint64Type{}, NewRecordType(s))
	return s
}

// TransactionStore owns the map registry, the shared undo log and the
// allocation of transaction ids. It is safe for concurrent use; the
// transactions it hands out are not.
type TransactionStore struct {
	logger  zerolog.Logger
	undoLog *mvmap.MVMap

	mutex             sync.RWMutex
	maps              map[int]*mvmap.MVMap
	mapsByName        map[string]*mvmap.MVMap
	lastMapID         int
	lastTransactionID int
	openCount         int
	listener          RollbackListener
}

// SetRollbackListener installs (listener) for all subsequent rollbacks.
// A nil listener disables notifications.
func (s *TransactionStore) SetRollbackListener(listener RollbackListener) {
	s.mutex.Lock()
	s.listener = listener
	s.mutex.Unlock()
}

func (s *TransactionStore) rollbackListener() RollbackListener {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.listener
}

// OpenMap returns the map registered under (name), creating it with the
// given codecs on first use. The value codec is wrapped so the map can hold
// in-flight values; reopening requires the same codecs.
func (s *TransactionStore) OpenMap(name string, keyType, valueType mvmap.DataType) *mvmap.MVMap {
	return s.OpenMapExt(name, keyType, valueType, 0)
}

// OpenMapExt is OpenMap with an explicit page size limit, zero selecting the
// default. The limit only applies when the map is created.
func (s *TransactionStore) OpenMapExt(name string, keyType, valueType mvmap.DataType, maxKeysPerPage int) *mvmap.MVMap {
	switch {
	case name == "":
		panic(throw.IllegalValue())
	case keyType == nil || valueType == nil:
		panic(throw.IllegalValue())
	}
	wrapped := NewVersionedValueType(valueType)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if m, ok := s.mapsByName[name]; ok {
		if !sameDataType(m.KeyType(), keyType) || !wrapped.Equal(m.ValueType()) {
			panic(throw.E("map is already open with different codecs",
				struct{ Name string }{name}))
		}
		return m
	}

	s.lastMapID++
	var m *mvmap.MVMap
	if maxKeysPerPage == 0 {
		m = mvmap.NewMVMap(s.lastMapID, name, keyType, wrapped)
	} else {
		m = mvmap.NewMVMapExt(s.lastMapID, name, keyType, wrapped, maxKeysPerPage)
	}
	s.maps[s.lastMapID] = m
	s.mapsByName[name] = m
	s.logger.Debug().Str("map", name).Int("id", s.lastMapID).Msg("map opened")
	return m
}

// MapByID returns the registered map with the given id, or nil.
func (s *TransactionStore) MapByID(id int) *mvmap.MVMap {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.maps[id]
}

// Begin opens a new transaction.
func (s *TransactionStore) Begin() *Transaction {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.lastTransactionID >= MaxTransactionID {
		// ids are not reused within one store lifetime
		panic(throw.IllegalState())
	}
	s.lastTransactionID++
	s.openCount++
	t := &Transaction{store: s, id: s.lastTransactionID}
	s.logger.Debug().Int("txn", t.id).Msg("transaction started")
	return t
}

// OpenTransactionCount returns the number of transactions begun and not yet
// committed or rolled back.
func (s *TransactionStore) OpenTransactionCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.openCount
}

// UndoLogLength returns the number of live undo-log entries across all open
// transactions. A non-empty value after all transactions ended indicates a
// drain bug.
func (s *TransactionStore) UndoLogLength() int {
	return countEntries(s.undoLog.GetRootPage())
}

func countEntries(p *mvmap.Page) int {
	if p.IsLeaf() {
		return p.KeyCount()
	}
	n := 0
	for i := 0; i <= p.KeyCount(); i++ {
		n += countEntries(p.GetChildPage(i))
	}
	return n
}

func (s *TransactionStore) onTransactionEnd(t *Transaction) {
	s.mutex.Lock()
	s.openCount--
	s.mutex.Unlock()
	s.logger.Debug().Int("txn", t.id).Str("status", t.status.String()).Msg("transaction ended")
}

// UnsavedMemory sums the unsaved-change estimate over all registered maps,
// the undo log included.
func (s *TransactionStore) UnsavedMemory() int64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	total := s.undoLog.UnsavedMemory()
	for _, m := range s.maps {
		total += m.UnsavedMemory()
	}
	return total
}

func sameDataType(a, b mvmap.DataType) bool {
	if eq, ok := a.(interface{ Equal(mvmap.DataType) bool }); ok {
		return eq.Equal(b)
	}
	return a == b
}
