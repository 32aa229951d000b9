package protokit

import (
	"errors"
	"io"
)

const MaxVarintSize = 10

var errOverflow = errors.New("varint: uint64 overflow")

// SizeVarint64 returns the varint encoding size of an integer.
func SizeVarint64(x uint64) int {
	switch {
	case x < 1<<7:
		return 1
	case x < 1<<14:
		return 2
	case x < 1<<21:
		return 3
	case x < 1<<28:
		return 4
	case x < 1<<35:
		return 5
	case x < 1<<42:
		return 6
	case x < 1<<49:
		return 7
	case x < 1<<56:
		return 8
	case x < 1<<63:
		return 9
	}
	return 10
}

func SizeVarint32(x uint32) int {
	switch {
	case x < 1<<7:
		return 1
	case x < 1<<14:
		return 2
	case x < 1<<21:
		return 3
	case x < 1<<28:
		return 4
	}
	return 5
}

func EncodeVarint(w io.ByteWriter, u uint64) error {
	for u > 0x7F {
		if err := w.WriteByte(byte(u | 0x80)); err != nil {
			return err
		}
		u >>= 7
	}
	return w.WriteByte(byte(u))
}

func EncodeVarintToBytes(b []byte, u uint64) (n int) {
	for u > 0x7F {
		b[n] = byte(u | 0x80)
		n++
		u >>= 7
	}
	b[n] = byte(u)
	n++
	return
}

func DecodeVarint(r io.ByteReader) (uint64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	return decodeVarint(b, r)
}

// Continues to read Varint that was started with the given (b)
// See also binary.ReadUvarint(r) here
func decodeVarint(b byte, r io.ByteReader) (n uint64, err error) {
	v := uint64(b & 0x7F)

	for i := uint8(7); i < 64; i += 7 {
		if b&0x80 == 0 {
			return v, nil
		}
		if b, err = r.ReadByte(); err != nil {
			return 0, err
		}
		v |= uint64(b&0x7F) << i
	}

	if b > 1 {
		return 0, errOverflow
	}
	return v, nil
}

func DecodeVarintFromBytes(b []byte) (u uint64, n int) {
	var err error
	if u, n, err = DecodeVarintFromBytesWithError(b); err != nil {
		panic(err)
	}
	return u, n
}

func DecodeVarintFromBytesWithError(b []byte) (u uint64, n int, err error) {
	for shift := uint8(0); shift < 64; shift += 7 {
		if n >= len(b) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		x := b[n]
		n++
		u |= uint64(x&0x7F) << shift
		if x&0x80 == 0 {
			return u, n, nil
		}
	}
	return 0, 0, errOverflow
}
