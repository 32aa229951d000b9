// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.

package mvmap

import (
	"github.com/insolar/mvstore/vanilla/throw"
)

// Page is a node of the copy-on-write B-tree. A page is immutable once it
// was published as a part of the map's root chain; all mutators below must
// only be applied to unpublished pages, i.e. results of Copy or of the
// other page-producing operations.
//
// A leaf holds len(keys) == len(values) entries. An internal node holds
// len(children) == len(keys)+1 child pointers. The keys slice is shared
// between a page and its value-only copies and is never mutated in place.
type Page struct {
	m        *MVMap
	keys     []interface{}
	values   []interface{}
	children []*Page
	memory   int
	version  uint64
}

// CreateEmptyLeaf creates an unpublished empty leaf for the given map.
func CreateEmptyLeaf(m *MVMap) *Page {
	return m.newLeaf(nil, nil)
}

func (p *Page) IsLeaf() bool {
	return p.children == nil
}

func (p *Page) KeyCount() int {
	return len(p.keys)
}

func (p *Page) Map() *MVMap {
	return p.m
}

func (p *Page) GetKey(index int) interface{} {
	return p.keys[index]
}

func (p *Page) GetValue(index int) interface{} {
	if !p.IsLeaf() {
		panic(throw.IllegalState())
	}
	return p.values[index]
}

func (p *Page) GetChildPage(index int) *Page {
	if p.IsLeaf() {
		panic(throw.IllegalState())
	}
	return p.children[index]
}

// SetValue replaces the value at (index). Must only be called on an
// unpublished page.
func (p *Page) SetValue(index int, v interface{}) {
	vt := p.m.valueType
	p.memory += vt.Memory(v) - vt.Memory(p.values[index])
	p.values[index] = v
}

// SetChild replaces the child at (index). Must only be called on an
// unpublished page.
func (p *Page) SetChild(index int, child *Page) {
	p.children[index] = child
}

// Copy returns an unpublished copy of this page. The keys slice is shared
// with the original, values and children are copied.
func (p *Page) Copy() *Page {
	c := &Page{
		m:       p.m,
		keys:    p.keys,
		memory:  p.memory,
		version: p.m.nextVersion(),
	}
	if p.IsLeaf() {
		c.values = append([]interface{}(nil), p.values...)
		if c.values == nil {
			c.values = []interface{}{}
		}
	} else {
		c.children = append([]*Page(nil), p.children...)
	}
	return c
}

// Remove deletes the entry at (index) in place. For an internal node, the
// child at (index) is removed along with its separator key. Must only be
// called on an unpublished page.
func (p *Page) Remove(index int) {
	kt := p.m.keyType
	if p.IsLeaf() {
		p.memory -= kt.Memory(p.keys[index]) + p.m.valueType.Memory(p.values[index])
		p.keys = removeAt(p.keys, index)
		p.values = removeAt(p.values, index)
		return
	}

	keyIndex := index
	if keyIndex >= len(p.keys) {
		keyIndex = len(p.keys) - 1
	}
	p.memory -= kt.Memory(p.keys[keyIndex]) + MemoryPointer
	p.keys = removeAt(p.keys, keyIndex)
	children := make([]*Page, 0, len(p.children)-1)
	children = append(children, p.children[:index]...)
	p.children = append(children, p.children[index+1:]...)
}

// RemoveMask returns a new leaf with all key positions marked in (mask)
// removed. Bit (i) of the mask corresponds to key position (i).
func (p *Page) RemoveMask(mask uint64) *Page {
	if !p.IsLeaf() {
		panic(throw.IllegalState())
	}
	if mask>>uint(len(p.keys)) != 0 {
		panic(throw.IllegalValue())
	}

	keys := make([]interface{}, 0, len(p.keys))
	values := make([]interface{}, 0, len(p.keys))
	for i := range p.keys {
		if mask&(1<<uint(i)) == 0 {
			keys = append(keys, p.keys[i])
			values = append(values, p.values[i])
		}
	}
	return p.m.newLeaf(keys, values)
}

// CalculateTraversalIndex returns the child index to descend into for an
// internal node, or the key position for a leaf. For a leaf the result is
// negative when the key is absent: -(insertionPoint+1).
func (p *Page) CalculateTraversalIndex(key interface{}) int {
	x := p.binarySearch(key)
	if p.IsLeaf() {
		return x
	}
	if x < 0 {
		return -x - 1
	}
	// exact match on a separator key descends to the right
	return x + 1
}

func (p *Page) binarySearch(key interface{}) int {
	kt := p.m.keyType
	low, high := 0, len(p.keys)-1
	for low <= high {
		mid := int(uint(low+high) >> 1)
		switch c := kt.Compare(p.keys[mid], key); {
		case c < 0:
			low = mid + 1
		case c > 0:
			high = mid - 1
		default:
			return mid
		}
	}
	return -(low + 1)
}

// SameKeys reports whether both pages carry the very same key set. This is
// an optimization signal, not a structural guarantee: a false result is
// always safe.
func (p *Page) SameKeys(o *Page) bool {
	if o == nil || len(p.keys) != len(o.keys) {
		return false
	}
	return len(p.keys) == 0 || &p.keys[0] == &o.keys[0]
}

func (p *Page) Memory() int {
	return p.memory
}

// RemovePage reports the amount of unsaved memory that removal of this page
// version releases. Pages created at or after (sinceVersion) were never
// flushed and their memory is released in full.
func (p *Page) RemovePage(sinceVersion uint64) int {
	if p.version >= sinceVersion {
		return p.memory
	}
	return 0
}

// copyAndInsertLeaf returns a new leaf with (key, value) inserted at
// (index), keeping all other entries.
func (p *Page) copyAndInsertLeaf(index int, key, value interface{}) *Page {
	keys := insertAt(p.keys, index, key)
	values := insertAt(p.values, index, value)
	return p.m.newLeaf(keys, values)
}

// split breaks an oversized unpublished page into two halves and reports
// the separator key to be inserted into the parent.
func (p *Page) split() (left, right *Page, splitKey interface{}) {
	at := len(p.keys) / 2
	if at == 0 {
		panic(throw.IllegalState())
	}
	if p.IsLeaf() {
		left = p.m.newLeaf(copySlice(p.keys[:at]), copySlice(p.values[:at]))
		right = p.m.newLeaf(copySlice(p.keys[at:]), copySlice(p.values[at:]))
		return left, right, right.keys[0]
	}

	splitKey = p.keys[at]
	left = p.m.newNode(copySlice(p.keys[:at]), copyPages(p.children[:at+1]))
	right = p.m.newNode(copySlice(p.keys[at+1:]), copyPages(p.children[at+1:]))
	return left, right, splitKey
}

// copyReplaceSplit returns a copy of this internal node where the child at
// (index) is replaced by (left, right) separated by (splitKey).
func (p *Page) copyReplaceSplit(index int, splitKey interface{}, left, right *Page) *Page {
	keys := insertAt(p.keys, index, splitKey)
	children := make([]*Page, 0, len(p.children)+1)
	children = append(children, p.children[:index]...)
	children = append(children, left, right)
	children = append(children, p.children[index+1:]...)
	return p.m.newNode(keys, children)
}

// writeTo serializes the subtree rooted at this page.
func (p *Page) writeTo(buff *WriteBuffer) {
	if p.IsLeaf() {
		buff.PutByte(pageLeaf)
		buff.PutVarint(uint64(len(p.keys)))
		p.m.keyType.WriteBatch(buff, p.keys)
		p.m.valueType.WriteBatch(buff, p.values)
		return
	}
	buff.PutByte(pageNode)
	buff.PutVarint(uint64(len(p.keys)))
	p.m.keyType.WriteBatch(buff, p.keys)
	for _, c := range p.children {
		c.writeTo(buff)
	}
}

const (
	pageLeaf = byte(0)
	pageNode = byte(1)
)

func removeAt(s []interface{}, index int) []interface{} {
	r := make([]interface{}, 0, len(s)-1)
	r = append(r, s[:index]...)
	return append(r, s[index+1:]...)
}

func insertAt(s []interface{}, index int, v interface{}) []interface{} {
	r := make([]interface{}, 0, len(s)+1)
	r = append(r, s[:index]...)
	r = append(r, v)
	return append(r, s[index:]...)
}

func copySlice(s []interface{}) []interface{} {
	r := make([]interface{}, len(s))
	copy(r, s)
	return r
}

func copyPages(s []*Page) []*Page {
	r := make([]*Page, len(s))
	copy(r, s)
	return r
}
