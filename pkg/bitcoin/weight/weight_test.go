package weight

import (
	"strings"
	"testing"

	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/txrecord"
	"github.com/stretchr/testify/require"
)

func simpleTx() *txrecord.Transaction {
	return &txrecord.Transaction{
		Version:  1,
		Locktime: 0,
		Inputs: []txrecord.Input{
			{PreviousTxidHex: strings.Repeat("00", 32), PreviousVout: 0, Sequence: 0xFFFFFFFF},
		},
		Outputs: []txrecord.Output{
			{Value: 100, ScriptPubkey: []byte{0xAA}},
		},
	}
}

func TestCalculateNonSegwit(t *testing.T) {
	tx := simpleTx()
	got := Calculate(tx)
	// version(4*4=16) + input-count-varint(1)*4 + input-bytes*4 + output-count-varint(1)*4
	// + output-bytes*4 + locktime(4*4=16); no witness term since no input carries one.
	require.False(t, IsSegwit(tx))
	require.Greater(t, got, uint64(16+16))
}

func TestCalculateSegwitAddsWitnessBytesOnly(t *testing.T) {
	tx := simpleTx()
	nonSegwit := Calculate(tx)

	tx.Inputs[0].Witness = [][]byte{{0x01, 0x02, 0x03}, {0x04}}
	segwit := Calculate(tx)

	require.True(t, IsSegwit(tx))
	// +2 for marker/flag, +4 for the four raw witness element bytes; no count
	// varints are added, reproducing the source's under-counting quirk.
	require.Equal(t, nonSegwit+2+4, segwit)
}

func TestMaxWeightConstant(t *testing.T) {
	require.Equal(t, uint64(4_000_000-720), uint64(MaxWeight))
}
