package mining

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/encoding"
	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/txrecord"
	"github.com/stretchr/testify/require"
)

func hashFromByte(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	return h
}

func TestMerkleRootSingleElement(t *testing.T) {
	h := hashFromByte(0x01)
	require.Equal(t, h, MerkleRoot([]chainhash.Hash{h}))
}

func TestMerkleRootTwoElements(t *testing.T) {
	a := hashFromByte(0xAA)
	b := hashFromByte(0xBB)
	want := chainhash.DoubleHashH(append(append([]byte{}, a[:]...), b[:]...))
	require.Equal(t, want, MerkleRoot([]chainhash.Hash{a, b}))
}

func TestMerkleRootOddDuplicatesLast(t *testing.T) {
	a := hashFromByte(0x01)
	b := hashFromByte(0x02)
	c := hashFromByte(0x03)
	ab := chainhash.DoubleHashH(append(append([]byte{}, a[:]...), b[:]...))
	cc := chainhash.DoubleHashH(append(append([]byte{}, c[:]...), c[:]...))
	want := chainhash.DoubleHashH(append(append([]byte{}, ab[:]...), cc[:]...))
	require.Equal(t, want, MerkleRoot([]chainhash.Hash{a, b, c}))
}

func TestAssembleCoinbaseEmptyBlockReward(t *testing.T) {
	cb, err := AssembleCoinbase(nil)
	require.NoError(t, err)
	require.Len(t, cb.TxidRawBytes, 32)
	require.NotEmpty(t, cb.SerializedBytes)
	// The reward output's value sits at byte 72 of the witness form:
	// version(4) + marker/flag(2) + input count(1) + outpoint(36) +
	// scriptsig length(1) + scriptsig(23) + sequence(4) + output count(1).
	require.Equal(t, leU64(RewardBase), cb.SerializedBytes[72:80])
}

func TestAssembleCoinbaseRewardIncludesFees(t *testing.T) {
	tx := &txrecord.Transaction{Meta: txrecord.Meta{Fee: 1000, WtxidHex: strings.Repeat("00", 32)}}
	cb, err := AssembleCoinbase([]*txrecord.Transaction{tx})
	require.NoError(t, err)
	require.NotNil(t, cb)
	require.Equal(t, leU64(RewardBase+1000), cb.SerializedBytes[72:80])
}

func TestCoinbaseCommitmentOutputLength(t *testing.T) {
	spk, err := witnessCommitmentScriptPubkey(nil)
	require.NoError(t, err)
	require.Len(t, spk, 38)
	require.Equal(t, "6a24aa21a9ed", hex.EncodeToString(spk[:6]))
}

func TestBuildCoinbaseScriptSigStartsWithHeightVarint(t *testing.T) {
	scriptSig := buildCoinbaseScriptSig()
	heightBytes := encoding.Varint(BlockHeight)
	require.Equal(t, byte(len(heightBytes)), scriptSig[0])
	require.Equal(t, heightBytes, scriptSig[1:1+len(heightBytes)])
}

func makeTx(txid string, fee, weight, feerate uint64, parents []string) *txrecord.Transaction {
	return &txrecord.Transaction{
		Meta: txrecord.Meta{
			TxidHex: txid,
			Fee:     fee,
			Weight:  weight,
			Packet:  txrecord.Packet{Fee: fee, Weight: weight, Feerate: feerate},
			Parents: parents,
		},
	}
}

func TestSortOrdersByFeerateDescending(t *testing.T) {
	working := map[string]*txrecord.Transaction{
		"low":  makeTx("low", 1, 100, 1, nil),
		"high": makeTx("high", 100, 100, 100, nil),
	}
	order := []string{"low", "high"}
	sorted := Sort(working, order)
	require.Equal(t, "high", sorted[0].Meta.TxidHex)
	require.Equal(t, "low", sorted[1].Meta.TxidHex)
}

func TestSortLiftsParentBeforeChildRegardlessOfFeerate(t *testing.T) {
	working := map[string]*txrecord.Transaction{
		"parent": makeTx("parent", 10, 100, 10, nil),
		"child":  makeTx("child", 1000, 100, 100, []string{"parent"}),
	}
	order := []string{"parent", "child"}
	sorted := Sort(working, order)

	parentIdx := indexOfTxid(sorted, "parent")
	childIdx := indexOfTxid(sorted, "child")
	require.Less(t, parentIdx, childIdx)
}

func TestCutExcludesExactFitUnderStrictInequality(t *testing.T) {
	txs := []*txrecord.Transaction{
		makeTx("a", 1, CutWeightBudget, 1, nil),
	}
	require.Empty(t, Cut(txs))
}

func TestCutIncludesTransactionJustUnderBudget(t *testing.T) {
	txs := []*txrecord.Transaction{
		makeTx("a", 1, CutWeightBudget-1, 1, nil),
	}
	require.Len(t, Cut(txs), 1)
}
