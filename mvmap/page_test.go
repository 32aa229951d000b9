// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.

package mvmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestLeaf(t *testing.T, m *MVMap, keys ...uint64) *Page {
	t.Helper()
	p := CreateEmptyLeaf(m)
	for i, k := range keys {
		p = p.copyAndInsertLeaf(i, k, "v")
	}
	return p
}

func TestPageTraversalIndexLeaf(t *testing.T) {
	m := NewMVMap(1, "t", Uint64Type{}, StringType{})
	p := newTestLeaf(t, m, 10, 20, 30)

	require.Equal(t, 0, p.CalculateTraversalIndex(uint64(10)))
	require.Equal(t, 2, p.CalculateTraversalIndex(uint64(30)))
	// absent keys encode the insertion point as -(insertionPoint+1)
	require.Equal(t, -1, p.CalculateTraversalIndex(uint64(5)))
	require.Equal(t, -2, p.CalculateTraversalIndex(uint64(15)))
	require.Equal(t, -4, p.CalculateTraversalIndex(uint64(35)))

	empty := CreateEmptyLeaf(m)
	require.Equal(t, -1, empty.CalculateTraversalIndex(uint64(1)))
}

func TestPageTraversalIndexNode(t *testing.T) {
	m := NewMVMap(1, "t", Uint64Type{}, StringType{})
	left := newTestLeaf(t, m, 10)
	right := newTestLeaf(t, m, 20, 30)
	node := m.newNode([]interface{}{uint64(20)}, []*Page{left, right})

	require.Equal(t, 0, node.CalculateTraversalIndex(uint64(10)))
	// an exact match on the separator descends to the right
	require.Equal(t, 1, node.CalculateTraversalIndex(uint64(20)))
	require.Equal(t, 1, node.CalculateTraversalIndex(uint64(25)))
	require.Same(t, left, node.GetChildPage(0))
	require.Same(t, right, node.GetChildPage(1))
}

func TestPageCopySharesKeys(t *testing.T) {
	m := NewMVMap(1, "t", Uint64Type{}, StringType{})
	p := newTestLeaf(t, m, 1, 2, 3)
	c := p.Copy()

	require.True(t, c.SameKeys(p))
	c.SetValue(1, "changed")
	require.Equal(t, "changed", c.GetValue(1))
	require.Equal(t, "v", p.GetValue(1))

	// an insert allocates fresh keys, identity is lost
	grown := p.copyAndInsertLeaf(0, uint64(0), "v")
	require.False(t, grown.SameKeys(p))
	require.False(t, CreateEmptyLeaf(m).SameKeys(p))
}

func TestPageRemove(t *testing.T) {
	m := NewMVMap(1, "t", Uint64Type{}, StringType{})
	p := newTestLeaf(t, m, 1, 2, 3).Copy()
	before := p.Memory()
	p.Remove(1)
	require.Equal(t, 2, p.KeyCount())
	require.Equal(t, uint64(1), p.GetKey(0))
	require.Equal(t, uint64(3), p.GetKey(1))
	require.Less(t, p.Memory(), before)
}

func TestPageRemoveChild(t *testing.T) {
	m := NewMVMap(1, "t", Uint64Type{}, StringType{})
	a := newTestLeaf(t, m, 10)
	b := newTestLeaf(t, m, 20)
	c := newTestLeaf(t, m, 30)
	node := m.newNode([]interface{}{uint64(20), uint64(30)}, []*Page{a, b, c})

	first := node.Copy()
	first.Remove(0)
	require.Equal(t, 1, first.KeyCount())
	require.Equal(t, uint64(30), first.GetKey(0))
	require.Same(t, b, first.GetChildPage(0))
	require.Same(t, c, first.GetChildPage(1))

	// removing the last child drops the last separator
	last := node.Copy()
	last.Remove(2)
	require.Equal(t, 1, last.KeyCount())
	require.Equal(t, uint64(20), last.GetKey(0))
	require.Same(t, a, last.GetChildPage(0))
	require.Same(t, b, last.GetChildPage(1))
}

func TestPageRemoveMask(t *testing.T) {
	m := NewMVMap(1, "t", Uint64Type{}, StringType{})
	p := newTestLeaf(t, m, 1, 2, 3, 4)

	r := p.RemoveMask(0b0101)
	require.Equal(t, 2, r.KeyCount())
	require.Equal(t, uint64(2), r.GetKey(0))
	require.Equal(t, uint64(4), r.GetKey(1))
	require.Equal(t, 4, p.KeyCount())

	require.Equal(t, 0, p.RemoveMask(0b1111).KeyCount())
	require.Equal(t, 4, p.RemoveMask(0).KeyCount())
	require.Panics(t, func() { p.RemoveMask(0b10000) })
}

func TestPageSplit(t *testing.T) {
	m := NewMVMap(1, "t", Uint64Type{}, StringType{})
	p := newTestLeaf(t, m, 1, 2, 3, 4, 5)
	left, right, splitKey := p.split()
	require.Equal(t, 2, left.KeyCount())
	require.Equal(t, 3, right.KeyCount())
	// a leaf split promotes a copy of the first right key
	require.Equal(t, uint64(3), splitKey)
	require.Equal(t, uint64(3), right.GetKey(0))

	children := make([]*Page, 7)
	for i := range children {
		children[i] = newTestLeaf(t, m, uint64(i))
	}
	keys := []interface{}{uint64(1), uint64(2), uint64(3), uint64(4), uint64(5), uint64(6)}
	node := m.newNode(keys, children)
	left, right, splitKey = node.split()
	// a node split moves the middle key up, it appears on neither side
	require.Equal(t, uint64(4), splitKey)
	require.Equal(t, 3, left.KeyCount())
	require.Equal(t, 2, right.KeyCount())
	require.Equal(t, 4, len(left.children))
	require.Equal(t, 3, len(right.children))
}

func TestPageRemovePageVersion(t *testing.T) {
	m := NewMVMap(1, "t", Uint64Type{}, StringType{})
	p := newTestLeaf(t, m, 1)
	require.Equal(t, p.Memory(), p.RemovePage(0))
	require.Equal(t, p.Memory(), p.RemovePage(p.version))
	require.Zero(t, p.RemovePage(p.version+1))
}
