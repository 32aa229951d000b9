// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.

// Package mvmap provides an in-memory ordered map over an immutable,
// copy-on-write B-tree. Readers always see a consistent snapshot; writers
// build a new page chain and publish it with a single compare-and-swap of
// the root reference. Contention is resolved by retrying the whole
// read-decide-build cycle, never by blocking.
package mvmap

import (
	"sync/atomic"
	"unsafe"

	"github.com/insolar/mvstore/vanilla/throw"
)

const (
	// MaxLeafMask is the hard cap on keys per page imposed by the
	// bitmask-removal protocol of Page.RemoveMask.
	MaxLeafMask = 64

	defaultMaxKeysPerPage = 48
)

// RootReference is the atomically swapped tree anchor.
type RootReference struct {
	Root    *Page
	Version uint64
}

func NewMVMap(id int, name string, keyType, valueType DataType) *MVMap {
	return NewMVMapExt(id, name, keyType, valueType, defaultMaxKeysPerPage)
}

func NewMVMapExt(id int, name string, keyType, valueType DataType, maxKeysPerPage int) *MVMap {
	switch {
	case keyType == nil || valueType == nil:
		panic(throw.IllegalValue())
	case maxKeysPerPage < 2 || maxKeysPerPage > MaxLeafMask:
		panic(throw.IllegalValue())
	}
	m := &MVMap{
		id:             id,
		name:           name,
		keyType:        keyType,
		valueType:      valueType,
		maxKeysPerPage: maxKeysPerPage,
	}
	m.root = unsafe.Pointer(&RootReference{Root: CreateEmptyLeaf(m), Version: 0})
	return m
}

// MVMap is safe for concurrent use. All map state is carried by the root
// reference; every mutation allocates new pages and publishes them with one
// CAS of that reference.
type MVMap struct {
	id             int
	name           string
	keyType        DataType
	valueType      DataType
	maxKeysPerPage int

	root           unsafe.Pointer // *RootReference
	unsavedMemory  int64
	flushedVersion uint64
	closed         uint32
}

func (m *MVMap) ID() int {
	return m.id
}

func (m *MVMap) Name() string {
	return m.name
}

func (m *MVMap) KeyType() DataType {
	return m.keyType
}

func (m *MVMap) ValueType() DataType {
	return m.valueType
}

func (m *MVMap) GetRootReference() *RootReference {
	return m.loadRoot()
}

func (m *MVMap) GetRootPage() *Page {
	return m.loadRoot().Root
}

func (m *MVMap) IsClosed() bool {
	return atomic.LoadUint32(&m.closed) != 0
}

func (m *MVMap) Close() {
	atomic.StoreUint32(&m.closed, 1)
}

// UnsavedMemory approximates the memory held by changes made after the last
// Flush.
func (m *MVMap) UnsavedMemory() int64 {
	return atomic.LoadInt64(&m.unsavedMemory)
}

// Get returns the value for (key), or nil when absent.
func (m *MVMap) Get(key interface{}) interface{} {
	p := m.GetRootPage()
	for !p.IsLeaf() {
		p = p.GetChildPage(p.CalculateTraversalIndex(key))
	}
	index := p.CalculateTraversalIndex(key)
	if index < 0 {
		return nil
	}
	return p.GetValue(index)
}

// Put stores (value) for (key) and returns the previous value, if any.
func (m *MVMap) Put(key, value interface{}) interface{} {
	if value == nil {
		panic(throw.IllegalValue())
	}
	return m.Operate(key, value, DefaultDecisionMaker)
}

// Remove deletes (key) and returns the previous value, if any.
func (m *MVMap) Remove(key interface{}) interface{} {
	return m.Operate(key, nil, DefaultDecisionMaker)
}

// Operate applies an atomic update for (key) resolved by (dm). It reads the
// current value, asks (dm) to decide, builds a new copy-on-write page chain
// and publishes it by a CAS of the root reference. On contention the whole
// cycle is retried, so (dm).Decide can be consulted more than once per
// logical operation. Returns the value that existed before the operation.
//
// When (dm) also implements PageRewriter and the rewrite produces a new
// leaf, the rewrite is published first and (dm).OnPageReplaced is invoked
// after, and only after, a successful publication.
func (m *MVMap) Operate(key, value interface{}, dm DecisionMaker) interface{} {
	if dm == nil {
		dm = DefaultDecisionMaker
	}
	rewriter, _ := dm.(PageRewriter)

	var pos *CursorPos
	for {
		rootRef := m.loadRoot()
		pos = TraverseDown(rootRef.Root, key, pos)
		tip := pos
		p := tip.Page
		index := tip.Index

		var existing interface{}
		if index >= 0 {
			existing = p.GetValue(index)
		}

		if rewriter != nil {
			if newTip := rewriter.RewritePage(tip, key); newTip != tip {
				newRoot, addedMemory := m.rebuildPath(newTip)
				if m.casRoot(rootRef, newRoot) {
					m.accountUnsaved(addedMemory, pos)
					dm.OnPageReplaced()
					// the published rewrite invalidated the whole path
					pos = nil
					continue
				}
				dm.Reset()
				continue
			}
		}

		switch decision := dm.Decide(existing, value); decision {
		case DecisionRepeat:
			dm.Reset()
			continue

		case DecisionAbort:
			dm.Reset()
			return existing

		case DecisionRemove:
			if index < 0 {
				dm.Reset()
				return nil
			}
			leaf := p.Copy()
			leaf.Remove(index)
			newTip := NewCursorPos(leaf, 0, tip.Parent)
			if leaf.KeyCount() == 0 {
				newTip = CollapseEmptyLeaf(newTip)
			}
			newRoot, addedMemory := m.rebuildPath(newTip)
			if m.casRoot(rootRef, newRoot) {
				m.accountUnsaved(addedMemory, pos)
				dm.Reset()
				return existing
			}

		case DecisionPut:
			v := dm.SelectValue(existing, value)
			if v == nil {
				panic(throw.IllegalState())
			}
			var leaf *Page
			leafIndex := index
			if index >= 0 {
				leaf = p.Copy()
				leaf.SetValue(index, v)
			} else {
				leafIndex = -index - 1
				leaf = p.copyAndInsertLeaf(leafIndex, key, v)
			}
			newRoot, addedMemory := m.rebuildPath(NewCursorPos(leaf, leafIndex, tip.Parent))
			if m.casRoot(rootRef, newRoot) {
				m.accountUnsaved(addedMemory, pos)
				dm.Reset()
				return existing
			}

		default:
			panic(throw.Impossible())
		}
		dm.Reset()
	}
}

// CollapseEmptyLeaf replaces an emptied leaf at the head of (tip) with the
// reduced ancestor state: the nearest ancestor with keys loses the emptied
// child, an ancestor left with a lone child is replaced by that child, and
// an emptied root becomes a fresh empty leaf. Zero-key single-child internal
// nodes can be produced by older store versions and are skipped here rather
// than treated as corruption.
func CollapseEmptyLeaf(tip *CursorPos) *CursorPos {
	p := tip.Page
	if !p.IsLeaf() || p.KeyCount() != 0 {
		panic(throw.IllegalValue())
	}
	pos := tip.Parent
	if pos == nil {
		// the root leaf just became empty
		return tip
	}

	var index, keyCount int
	for {
		p = pos.Page
		index = pos.Index
		pos = pos.Parent
		keyCount = p.KeyCount()
		if keyCount != 0 || pos == nil {
			break
		}
	}

	switch {
	case keyCount > 1:
		p = p.Copy()
		p.Remove(index)
	case keyCount == 1:
		if index > 1 {
			panic(throw.IllegalState())
		}
		// the remaining child gets promoted one level up
		p = p.GetChildPage(1 - index).Copy()
	default:
		// a zero-key node at the root is replaced with an empty leaf
		p = CreateEmptyLeaf(p.Map())
	}
	return NewCursorPos(p, 0, pos)
}

// Flush serializes the current tree into (buff) and marks the current
// version as saved for unsaved-memory accounting.
func (m *MVMap) Flush(buff *WriteBuffer) {
	rootRef := m.loadRoot()
	rootRef.Root.writeTo(buff)
	atomic.StoreUint64(&m.flushedVersion, rootRef.Version)
	atomic.StoreInt64(&m.unsavedMemory, 0)
}

// Load replaces the tree with one previously serialized by Flush. Must not
// run concurrently with any other operation on this map.
func (m *MVMap) Load(buff *ReadBuffer) {
	root := m.readPage(buff)
	atomic.StorePointer(&m.root, unsafe.Pointer(&RootReference{Root: root, Version: 1}))
}

func (m *MVMap) readPage(buff *ReadBuffer) *Page {
	kind := buff.GetByte()
	n := int(buff.GetVarint())
	keys := make([]interface{}, n)
	m.keyType.ReadBatch(buff, keys)

	switch kind {
	case pageLeaf:
		values := make([]interface{}, n)
		m.valueType.ReadBatch(buff, values)
		return m.newLeaf(keys, values)
	case pageNode:
		children := make([]*Page, n+1)
		for i := range children {
			children[i] = m.readPage(buff)
		}
		return m.newNode(keys, children)
	}
	panic(throw.IllegalValue())
}

// rebuildPath links the page at the head of (tip) into copies of all pages
// above it, splitting oversized pages on the way, and returns the new root
// with the total memory of the pages it allocated.
func (m *MVMap) rebuildPath(tip *CursorPos) (*Page, int) {
	p := tip.Page
	added := p.Memory()
	pos := tip.Parent
	for {
		for p.KeyCount() > m.maxKeysPerPage {
			left, right, splitKey := p.split()
			added += left.Memory() + right.Memory() - p.Memory()
			if pos == nil {
				p = m.newNode([]interface{}{splitKey}, []*Page{left, right})
				added += p.Memory()
				continue
			}
			parent := pos.Page.copyReplaceSplit(pos.Index, splitKey, left, right)
			added += parent.Memory()
			pos = pos.Parent
			p = parent
		}
		if pos == nil {
			return p, added
		}
		parent := pos.Page.Copy()
		parent.SetChild(pos.Index, p)
		added += parent.Memory()
		pos = pos.Parent
		p = parent
	}
}

func (m *MVMap) accountUnsaved(addedMemory int, replacedPath *CursorPos) {
	freed := replacedPath.ProcessRemovalInfo(atomic.LoadUint64(&m.flushedVersion) + 1)
	atomic.AddInt64(&m.unsavedMemory, int64(addedMemory-freed))
}

func (m *MVMap) nextVersion() uint64 {
	if r := m.loadRoot(); r != nil {
		return r.Version + 1
	}
	return 1
}

func (m *MVMap) loadRoot() *RootReference {
	return (*RootReference)(atomic.LoadPointer(&m.root))
}

func (m *MVMap) casRoot(old *RootReference, newRoot *Page) bool {
	newRef := &RootReference{Root: newRoot, Version: old.Version + 1}
	return atomic.CompareAndSwapPointer(&m.root, unsafe.Pointer(old), unsafe.Pointer(newRef))
}

func (m *MVMap) newLeaf(keys, values []interface{}) *Page {
	memory := MemoryObject + 2*MemoryArray
	for i := range keys {
		memory += m.keyType.Memory(keys[i]) + m.valueType.Memory(values[i])
	}
	if values == nil {
		values = []interface{}{}
	}
	return &Page{m: m, keys: keys, values: values, memory: memory, version: m.nextVersion()}
}

func (m *MVMap) newNode(keys []interface{}, children []*Page) *Page {
	memory := MemoryObject + 2*MemoryArray + len(children)*MemoryPointer
	for _, k := range keys {
		memory += m.keyType.Memory(k)
	}
	return &Page{m: m, keys: keys, children: children, memory: memory, version: m.nextVersion()}
}
