package encoding

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarintBoundaries(t *testing.T) {
	cases := []struct {
		n    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{252, []byte{0xFC}},
		{253, []byte{0xFD, 0xFD, 0x00}},
		{0xFFFF, []byte{0xFD, 0xFF, 0xFF}},
		{0x10000, []byte{0xFE, 0x00, 0x00, 0x01, 0x00}},
		{0xFFFFFFFF, []byte{0xFE, 0xFF, 0xFF, 0xFF, 0xFF}},
		{0x100000000, []byte{0xFF, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Varint(c.n))
	}
}

func TestDoubleSha256(t *testing.T) {
	got := DoubleSha256([]byte{})
	require.Equal(
		t,
		"5df6e0e2761359d30a8275058e299fcc0381534545f55cf43e41983f5d4c9456",
		hex.EncodeToString(got),
	)
}

func TestReverse(t *testing.T) {
	require.Equal(t, []byte{3, 2, 1}, Reverse([]byte{1, 2, 3}))
	require.Equal(t, []byte{}, Reverse([]byte{}))
}

func TestDecodeNumSignConvention(t *testing.T) {
	n, err := DecodeNum(nil)
	require.NoError(t, err)
	require.Equal(t, int64(0), n.Int64())

	n, err = DecodeNum([]byte{0x80})
	require.NoError(t, err)
	require.Equal(t, int64(0), n.Int64())
	require.True(t, n.Sign() <= 0)

	n, err = DecodeNum([]byte{0x81})
	require.NoError(t, err)
	require.Equal(t, int64(-1), n.Int64())

	n, err = DecodeNum([]byte{0x01})
	require.NoError(t, err)
	require.Equal(t, int64(1), n.Int64())
}

func TestOutpoint(t *testing.T) {
	txid := make([]byte, 32)
	txid[0] = 0xAA
	txid[31] = 0xBB
	out := Outpoint(txid, 7)
	require.Len(t, out, 36)
	require.Equal(t, byte(0xBB), out[0])
	require.Equal(t, byte(0xAA), out[31])
	require.Equal(t, byte(7), out[32])
}
