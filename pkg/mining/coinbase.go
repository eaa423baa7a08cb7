// Package mining implements the sorter and weight cut, the coinbase
// assembler, and the header builder with nonce search (spec §4.K, §4.L,
// §4.M).
package mining

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/encoding"
	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/txrecord"
)

// BlockHeight is the fixed BIP34 height pushed in the coinbase scriptsig.
const BlockHeight = 839653

// RewardBase is the base block subsidy in satoshis, before fees (§4.L).
const RewardBase = 625_000_000

// coinbaseMessage is the fixed ASCII payload appended to the coinbase
// scriptsig after the height push.
const coinbaseMessage = "CypherpunkFuture"

// rewardScriptPubkey is the fixed P2WPKH output paid the block reward.
var rewardScriptPubkey = mustDecodeHex("001435f6de260c9f3bdee47524c473a6016c0c055cb9")

// witnessCommitmentPrefix precedes the witness commitment hash in the
// coinbase's second output (OP_RETURN 0x24-byte push).
var witnessCommitmentPrefix = mustDecodeHex("6a24aa21a9ed")

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Coinbase holds the assembled coinbase transaction in both forms needed
// downstream: the witness-inclusive bytes for the output file, and the
// non-witness txid (both hex and raw/internal byte order) for the header's
// merkle root.
type Coinbase struct {
	TxidHex         string
	TxidRawBytes    []byte // double-SHA256 of the non-witness form, unreversed
	SerializedBytes []byte // witness-inclusive serialization, for the output file
}

// AssembleCoinbase builds the coinbase transaction paying RewardBase plus the
// sum of blockTxs' fees, with a witness commitment embedding the wtxid
// merkle root (§4.L).
func AssembleCoinbase(blockTxs []*txrecord.Transaction) (*Coinbase, error) {
	commitmentScriptPubkey, err := witnessCommitmentScriptPubkey(blockTxs)
	if err != nil {
		return nil, err
	}
	reward := RewardBase + sumFees(blockTxs)

	witnessForm := serializeCoinbase(reward, commitmentScriptPubkey, true)
	nonWitnessForm := serializeCoinbase(reward, commitmentScriptPubkey, false)

	txidRaw := encoding.DoubleSha256(nonWitnessForm)
	txidHex := hex.EncodeToString(encoding.Reverse(txidRaw))

	return &Coinbase{
		TxidHex:         txidHex,
		TxidRawBytes:    txidRaw,
		SerializedBytes: witnessForm,
	}, nil
}

func sumFees(blockTxs []*txrecord.Transaction) uint64 {
	var total uint64
	for _, tx := range blockTxs {
		total += tx.Meta.Fee
	}
	return total
}

// witnessCommitmentScriptPubkey builds the OP_RETURN witness-commitment
// output script: the merkle root over [zero-hash, wtxid_1, ...] appended
// with 32 zero bytes and double-hashed, per §4.L. Each wtxid is decoded via
// Transaction.WtxidHash, which recovers internal byte order from the
// display-hex Meta.WtxidHex.
func witnessCommitmentScriptPubkey(blockTxs []*txrecord.Transaction) ([]byte, error) {
	hashes := make([]chainhash.Hash, 0, len(blockTxs)+1)
	hashes = append(hashes, chainhash.Hash{})
	for _, tx := range blockTxs {
		hashes = append(hashes, tx.WtxidHash())
	}

	root := MerkleRoot(hashes)
	commitmentPreimage := append(append([]byte{}, root[:]...), make([]byte, 32)...)
	commitment := encoding.DoubleSha256(commitmentPreimage)

	out := append([]byte{}, witnessCommitmentPrefix...)
	return append(out, commitment...), nil
}

// serializeCoinbase builds the coinbase transaction bytes. withWitness
// includes the segwit marker/flag and the witness reserved-value stack.
func serializeCoinbase(reward uint64, commitmentScriptPubkey []byte, withWitness bool) []byte {
	var out []byte
	out = append(out, 0x01, 0x00, 0x00, 0x00) // version
	if withWitness {
		out = append(out, 0x00, 0x01) // marker + flag
	}

	out = append(out, encoding.Varint(1)...) // one input
	out = append(out, make([]byte, 32)...)   // all-zero outpoint txid
	out = append(out, 0xff, 0xff, 0xff, 0xff) // outpoint vout

	scriptSig := buildCoinbaseScriptSig()
	out = append(out, encoding.Varint(uint64(len(scriptSig)))...)
	out = append(out, scriptSig...)
	out = append(out, 0xff, 0xff, 0xff, 0xff) // sequence

	out = append(out, encoding.Varint(2)...) // two outputs

	out = append(out, leU64(reward)...)
	out = append(out, encoding.Varint(uint64(len(rewardScriptPubkey)))...)
	out = append(out, rewardScriptPubkey...)

	out = append(out, leU64(0)...)
	out = append(out, encoding.Varint(uint64(len(commitmentScriptPubkey)))...)
	out = append(out, commitmentScriptPubkey...)

	if withWitness {
		out = append(out, 0x01)             // one witness stack item
		out = append(out, 0x20)             // item length 32
		out = append(out, make([]byte, 32)...) // witness reserved value
	}

	out = append(out, 0x00, 0x00, 0x00, 0x00) // locktime
	return out
}

func buildCoinbaseScriptSig() []byte {
	heightBytes := encoding.Varint(BlockHeight)
	scriptSig := encoding.Varint(uint64(len(heightBytes)))
	scriptSig = append(scriptSig, heightBytes...)
	scriptSig = append(scriptSig, 0x10)
	scriptSig = append(scriptSig, []byte(coinbaseMessage)...)
	return scriptSig
}

func leU64(v uint64) []byte {
	return []byte{
		byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24),
		byte(v >> 32), byte(v >> 40), byte(v >> 48), byte(v >> 56),
	}
}
