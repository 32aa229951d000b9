// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.

package mvmap

import (
	"fmt"

	"github.com/insolar/mvstore/vanilla/throw"
)

// CursorPos is a node of a leaf-to-root path through the tree. The head of
// the chain is a position within a leaf, each Parent link goes one level up
// towards the root. The chain is owned exclusively by the traversal that
// built it.
type CursorPos struct {
	// Page at the current level.
	Page *Page

	// Index of the key used to go down a level for an internal node, or the
	// position of the target key for a leaf. For a leaf it can be negative
	// when the key is absent: -(insertionPoint+1).
	Index int

	// Position within the parent level, nil at the root.
	Parent *CursorPos
}

func NewCursorPos(page *Page, index int, parent *CursorPos) *CursorPos {
	return &CursorPos{Page: page, Index: index, Parent: parent}
}

// TraverseDown builds the leaf-to-root path for (key) under (page).
// When (existing) is the path of a previous traversal for the same key, its
// nodes are reused:
// hitting the very same page object at some depth proves the whole subtree
// under it unchanged, and the remainder of the old chain is spliced in
// without recomputation. Hitting a different page with the same key set
// still reuses the previously computed index.
func TraverseDown(page *Page, key interface{}, existing *CursorPos) *CursorPos {
	if existing != nil {
		if !existing.Page.IsLeaf() {
			panic(throw.IllegalValue())
		}
		existing = existing.reverse(nil)
	}
	var cursorPos *CursorPos
	for {
		var index int
		if existing == nil {
			index = page.CalculateTraversalIndex(key)
			cursorPos = NewCursorPos(page, index, cursorPos)
		} else {
			existingPage := existing.Page
			if existingPage == page {
				// the subtree under this page was not modified since the
				// previous traversal, the rest of the old path still applies
				cursorPos = existing.reverse(cursorPos)
				if !cursorPos.Page.IsLeaf() {
					panic(throw.IllegalState())
				}
				return cursorPos
			}
			temp := existing.Parent
			existing.Parent = cursorPos
			existing.Page = page
			cursorPos = existing
			existing = temp
			// same key set means the previously computed index still applies
			if !page.SameKeys(existingPage) {
				cursorPos.Index = page.CalculateTraversalIndex(key)
			}
			index = cursorPos.Index
		}
		if page.IsLeaf() {
			return cursorPos
		}
		page = page.GetChildPage(index)
	}
}

// ProcessRemovalInfo walks the path from leaf to root and sums the unsaved
// memory released by removing each page's version.
func (p *CursorPos) ProcessRemovalInfo(sinceVersion uint64) int {
	unsavedMemory := 0
	for head := p; head != nil; head = head.Parent {
		unsavedMemory += head.Page.RemovePage(sinceVersion)
	}
	return unsavedMemory
}

// reverse flips the chain in place, relinking this node and everything
// above it onto (alreadyReversed).
func (p *CursorPos) reverse(alreadyReversed *CursorPos) *CursorPos {
	reversed := p
	if p.Parent != nil {
		reversed = p.Parent.reverse(p)
	}
	p.Parent = alreadyReversed
	return reversed
}

func (p *CursorPos) String() string {
	return fmt.Sprintf("CursorPos{page=%p, index=%d, parent=%v}", p.Page, p.Index, p.Parent)
}
