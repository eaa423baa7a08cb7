// Package txcodec builds the canonical byte serializations of a transaction
// record: the non-witness and witness-inclusive forms used for txid/wtxid, and
// the sighash pre-images consumed by the signature verifiers (spec §4.B).
package txcodec

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/encoding"
	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/txrecord"
)

// SighashAll is the only sighash type this module ever accepts or produces (§9).
const SighashAll uint32 = 1

// SerializeInput writes a single input's identifier-serialization form: outpoint,
// length-prefixed scriptsig, little-endian sequence (§4.B).
func SerializeInput(in *txrecord.Input) []byte {
	txidBytes, err := decodeTxidHex(in.PreviousTxidHex)
	if err != nil {
		panic("txcodec: malformed previous txid: " + err.Error())
	}
	out := encoding.Outpoint(txidBytes, in.PreviousVout)
	out = append(out, encoding.Varint(uint64(len(in.ScriptSig)))...)
	out = append(out, in.ScriptSig...)
	seq := make([]byte, 4)
	binary.LittleEndian.PutUint32(seq, in.Sequence)
	return append(out, seq...)
}

// SerializeOutput writes a single output's serialization form: little-endian
// value, length-prefixed scriptpubkey (§4.B).
func SerializeOutput(out *txrecord.Output) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, out.Value)
	buf = append(buf, encoding.Varint(uint64(len(out.ScriptPubkey)))...)
	return append(buf, out.ScriptPubkey...)
}

// NonWitness builds the non-witness pre-image used for txid (§4.B.1).
func NonWitness(tx *txrecord.Transaction) []byte {
	var out []byte
	out = appendU32LE(out, uint32(tx.Version))
	out = append(out, encoding.Varint(uint64(len(tx.Inputs)))...)
	for i := range tx.Inputs {
		out = append(out, SerializeInput(&tx.Inputs[i])...)
	}
	out = append(out, encoding.Varint(uint64(len(tx.Outputs)))...)
	for i := range tx.Outputs {
		out = append(out, SerializeOutput(&tx.Outputs[i])...)
	}
	out = appendU32LE(out, tx.Locktime)
	return out
}

// Witness builds the witness-inclusive pre-image used for wtxid (§4.B.2): the
// marker/flag 0x00 0x01 follows version, and a witness block precedes locktime.
// An input with no witness field emits a single 0x00 stack-count byte.
func Witness(tx *txrecord.Transaction) []byte {
	var out []byte
	out = appendU32LE(out, uint32(tx.Version))
	out = append(out, 0x00, 0x01)
	out = append(out, encoding.Varint(uint64(len(tx.Inputs)))...)
	for i := range tx.Inputs {
		out = append(out, SerializeInput(&tx.Inputs[i])...)
	}
	out = append(out, encoding.Varint(uint64(len(tx.Outputs)))...)
	for i := range tx.Outputs {
		out = append(out, SerializeOutput(&tx.Outputs[i])...)
	}
	for i := range tx.Inputs {
		out = append(out, serializeWitnessStack(tx.Inputs[i].Witness)...)
	}
	out = appendU32LE(out, tx.Locktime)
	return out
}

func serializeWitnessStack(witness [][]byte) []byte {
	if witness == nil {
		return []byte{0x00}
	}
	out := encoding.Varint(uint64(len(witness)))
	for _, elem := range witness {
		out = append(out, encoding.Varint(uint64(len(elem)))...)
		out = append(out, elem...)
	}
	return out
}

// P2WPKHScriptCode builds the BIP-143 scriptcode for a P2WPKH prevout:
// 0x1976a914 <20-byte pubkey hash> 0x88ac (§4.B.3).
func P2WPKHScriptCode(prevoutScriptPubkey []byte) []byte {
	pubkeyHash := prevoutScriptPubkey[len(prevoutScriptPubkey)-20:]
	out := []byte{0x19, 0x76, 0xa9, 0x14}
	out = append(out, pubkeyHash...)
	return append(out, 0x88, 0xac)
}

// SegwitSighashPreimage builds and double-hashes the BIP-143 pre-image for
// SIGHASH_ALL over the input at signingIndex (§4.B.3). scriptCode is the
// already-built scriptcode (see P2WPKHScriptCode).
func SegwitSighashPreimage(tx *txrecord.Transaction, signingIndex int, scriptCode []byte) []byte {
	signing := &tx.Inputs[signingIndex]

	var outpoints []byte
	var sequences []byte
	for i := range tx.Inputs {
		in := &tx.Inputs[i]
		txidBytes, err := decodeTxidHex(in.PreviousTxidHex)
		if err != nil {
			panic("txcodec: malformed previous txid: " + err.Error())
		}
		outpoints = append(outpoints, encoding.Outpoint(txidBytes, in.PreviousVout)...)
		sequences = appendU32LE(sequences, in.Sequence)
	}

	var outputs []byte
	for i := range tx.Outputs {
		outputs = append(outputs, SerializeOutput(&tx.Outputs[i])...)
	}

	txidBytes, err := decodeTxidHex(signing.PreviousTxidHex)
	if err != nil {
		panic("txcodec: malformed previous txid: " + err.Error())
	}

	var pre []byte
	pre = appendU32LE(pre, uint32(tx.Version))
	pre = append(pre, encoding.DoubleSha256(outpoints)...)
	pre = append(pre, encoding.DoubleSha256(sequences)...)
	pre = append(pre, encoding.Outpoint(txidBytes, signing.PreviousVout)...)
	pre = append(pre, scriptCode...)
	value := make([]byte, 8)
	binary.LittleEndian.PutUint64(value, signing.Prevout.Value)
	pre = append(pre, value...)
	pre = appendU32LE(pre, signing.Sequence)
	pre = append(pre, encoding.DoubleSha256(outputs)...)
	pre = appendU32LE(pre, tx.Locktime)
	pre = appendU32LE(pre, SighashAll)

	return encoding.DoubleSha256(pre)
}

// LegacySighashPreimage builds and double-hashes the legacy sighash pre-image
// for P2PKH/P2SH (§4.B): every input but signingIndex carries an empty
// scriptsig; signingIndex carries scriptCode (the prevout's scriptpubkey, or a
// caller-supplied redeemscript).
func LegacySighashPreimage(tx *txrecord.Transaction, signingIndex int, scriptCode []byte) []byte {
	var out []byte
	out = appendU32LE(out, uint32(tx.Version))
	out = append(out, encoding.Varint(uint64(len(tx.Inputs)))...)
	for i := range tx.Inputs {
		in := &tx.Inputs[i]
		txidBytes, err := decodeTxidHex(in.PreviousTxidHex)
		if err != nil {
			panic("txcodec: malformed previous txid: " + err.Error())
		}
		out = append(out, encoding.Outpoint(txidBytes, in.PreviousVout)...)
		if i == signingIndex {
			out = append(out, encoding.Varint(uint64(len(scriptCode)))...)
			out = append(out, scriptCode...)
		} else {
			out = append(out, 0x00)
		}
		out = appendU32LE(out, in.Sequence)
	}
	out = append(out, encoding.Varint(uint64(len(tx.Outputs)))...)
	for i := range tx.Outputs {
		out = append(out, SerializeOutput(&tx.Outputs[i])...)
	}
	out = appendU32LE(out, tx.Locktime)
	out = appendU32LE(out, SighashAll)
	return encoding.DoubleSha256(out)
}

func appendU32LE(buf []byte, v uint32) []byte {
	tmp := make([]byte, 4)
	binary.LittleEndian.PutUint32(tmp, v)
	return append(buf, tmp...)
}

// decodeTxidHex decodes a previous_txid hex string as given in the
// source record (display byte order); encoding.Outpoint performs the reversal
// into internal byte order, so this is a plain hex decode.
func decodeTxidHex(hexTxid string) ([]byte, error) {
	return hex.DecodeString(hexTxid)
}
