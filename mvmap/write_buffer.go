// Copyright 2020 Insolar Network Ltd.
// All rights reserved.
// This material is licensed under the Insolar License version 1.0,
// available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.

package mvmap

import (
	"io"

	"github.com/insolar/mvstore/vanilla/protokit"
	"github.com/insolar/mvstore/vanilla/throw"
)

func NewWriteBuffer(anticipatedSize int) *WriteBuffer {
	return &WriteBuffer{data: make([]byte, 0, anticipatedSize)}
}

// WriteBuffer is an append-only serialization buffer for page content.
// Not safe for concurrent use.
type WriteBuffer struct {
	data []byte
}

func (p *WriteBuffer) PutByte(b byte) {
	p.data = append(p.data, b)
}

// WriteByte implements io.ByteWriter, never returns an error.
func (p *WriteBuffer) WriteByte(b byte) error {
	p.data = append(p.data, b)
	return nil
}

func (p *WriteBuffer) PutVarint(u uint64) {
	_ = protokit.EncodeVarint(p, u)
}

func (p *WriteBuffer) PutBytes(b []byte) {
	p.data = append(p.data, b...)
}

// PutVarintBytes writes a varint length prefix followed by raw bytes.
func (p *WriteBuffer) PutVarintBytes(b []byte) {
	p.PutVarint(uint64(len(b)))
	p.PutBytes(b)
}

func (p *WriteBuffer) Len() int {
	return len(p.data)
}

func (p *WriteBuffer) Bytes() []byte {
	return p.data
}

func (p *WriteBuffer) Reset() {
	p.data = p.data[:0]
}

func NewReadBuffer(data []byte) *ReadBuffer {
	return &ReadBuffer{data: data}
}

// ReadBuffer is the reading counterpart of WriteBuffer. Underflow indicates
// page corruption and panics.
type ReadBuffer struct {
	data []byte
	pos  int
}

func (p *ReadBuffer) GetByte() byte {
	if p.pos >= len(p.data) {
		panic(throw.IllegalState())
	}
	b := p.data[p.pos]
	p.pos++
	return b
}

// ReadByte implements io.ByteReader.
func (p *ReadBuffer) ReadByte() (byte, error) {
	if p.pos >= len(p.data) {
		return 0, io.ErrUnexpectedEOF
	}
	b := p.data[p.pos]
	p.pos++
	return b, nil
}

func (p *ReadBuffer) GetVarint() uint64 {
	u, err := protokit.DecodeVarint(p)
	if err != nil {
		panic(throw.W(err, "corrupted page data"))
	}
	return u
}

func (p *ReadBuffer) GetBytes(n int) []byte {
	if n < 0 || p.pos+n > len(p.data) {
		panic(throw.IllegalState())
	}
	b := p.data[p.pos : p.pos+n]
	p.pos += n
	return b
}

// GetVarintBytes reads a varint length prefix followed by raw bytes.
func (p *ReadBuffer) GetVarintBytes() []byte {
	n := p.GetVarint()
	return p.GetBytes(int(n))
}

func (p *ReadBuffer) Remaining() int {
	return len(p.data) - p.pos
}
