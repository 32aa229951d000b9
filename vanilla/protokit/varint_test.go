package protokit

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeVarint(t *testing.T) {
	lastSize := 1
	require.Equal(t, lastSize, testEncodeDecode(t, 0))
	require.Equal(t, lastSize, testEncodeDecode(t, 1))

	v := uint64(0x80)
	for v != 0 {
		n := testEncodeDecode(t, v-1)
		require.Equal(t, lastSize, n)

		lastSize++

		n = testEncodeDecode(t, v)
		require.Equal(t, lastSize, n)

		n = testEncodeDecode(t, v+1)
		require.Equal(t, lastSize, n)
		v <<= 7
	}
}

func testEncodeDecode(t *testing.T, v uint64) int {
	var b [MaxVarintSize]byte

	n := EncodeVarintToBytes(b[:], v)
	require.Equal(t, n, SizeVarint64(v))
	if v <= math.MaxUint32 {
		require.Equal(t, n, SizeVarint32(uint32(v)))
	}

	u, n2 := DecodeVarintFromBytes(b[:])
	require.Equal(t, n, n2)
	require.Equal(t, v, u)

	var err error
	u, n2, err = DecodeVarintFromBytesWithError(b[:])
	require.NoError(t, err)
	require.Equal(t, n, n2)
	require.Equal(t, v, u)

	buf := bytes.NewBuffer(nil)
	require.NoError(t, EncodeVarint(buf, v))
	require.Equal(t, n, buf.Len())

	u, err = DecodeVarint(buf)
	require.NoError(t, err)
	require.Equal(t, v, u)

	return n
}

func TestDecodeVarintTruncated(t *testing.T) {
	var b [MaxVarintSize]byte
	n := EncodeVarintToBytes(b[:], math.MaxUint64)
	require.Equal(t, MaxVarintSize, n)

	_, _, err := DecodeVarintFromBytesWithError(b[:n-1])
	require.Error(t, err)

	_, err = DecodeVarint(bytes.NewReader(b[:n-1]))
	require.Error(t, err)
}
