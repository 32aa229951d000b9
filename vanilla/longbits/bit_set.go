// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.

package longbits

import (
	"math/bits"

	"github.com/insolar/mvstore/vanilla/throw"
)

func BitPos(index int) (bytePos int, bitPos uint8) {
	if index < 0 {
		panic(throw.IllegalValue())
	}
	return index >> 3, uint8(index & 0x07)
}

func NewBitSet(anticipatedLen int) BitSet {
	bytePos, bitPos := BitPos(anticipatedLen)
	if bitPos != 0 {
		bytePos++
	}
	return BitSet{data: make([]byte, bytePos)}
}

// BitSet is a growable set of bits with LSB-first in-byte ordering.
// The zero value is an empty, ready to use set.
type BitSet struct {
	data BitSliceLSB
}

func (p *BitSet) Set(index int) {
	bytePos, bitPos := BitPos(index)
	if bytePos >= len(p.data) {
		grown := make([]byte, bytePos+1)
		copy(grown, p.data)
		p.data = grown
	}
	p.data[bytePos] |= 1 << bitPos
}

func (p *BitSet) Unset(index int) {
	bytePos, bitPos := BitPos(index)
	if bytePos >= len(p.data) {
		return
	}
	p.data[bytePos] &^= 1 << bitPos
}

func (p *BitSet) Bit(index int) bool {
	bytePos, bitPos := BitPos(index)
	if bytePos >= len(p.data) {
		return false
	}
	return p.data[bytePos]&(1<<bitPos) != 0
}

func (p *BitSet) BitLen() int {
	return p.data.BitLen()
}

func (p *BitSet) Count() int {
	n := 0
	for _, b := range p.data {
		n += bits.OnesCount8(b)
	}
	return n
}

type BitSliceLSB []byte

func (v BitSliceLSB) BitMasked(index int) (value byte, mask uint8) {
	bytePos, bitPos := BitPos(index)
	mask = 1 << bitPos
	return v[bytePos] & mask, mask
}

func (v BitSliceLSB) BitBool(index int) bool {
	if b, _ := v.BitMasked(index); b != 0 {
		return true
	}
	return false
}

func (v BitSliceLSB) BitValue(index int) byte {
	if b, _ := v.BitMasked(index); b != 0 {
		return 1
	}
	return 0
}

func (v BitSliceLSB) Byte(index int) byte {
	return v[index]
}

func (v BitSliceLSB) BitLen() int {
	return len(v) << 3
}
