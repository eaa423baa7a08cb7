// Package weight computes transaction weight under the 4x/1x rule (spec §4.C).
package weight

import (
	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/encoding"
	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/txcodec"
	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/txrecord"
)

// MaxWeight is the block weight ceiling, reserving 720 units for the header
// and coinbase transaction (§3 invariants).
const MaxWeight = 4_000_000 - 720

// IsSegwit reports whether any input of tx carries a witness field.
func IsSegwit(tx *txrecord.Transaction) bool {
	return tx.IsSegwit()
}

func inputWeightSum(tx *txrecord.Transaction) uint64 {
	sum := uint64(len(encoding.Varint(uint64(len(tx.Inputs)))))
	for i := range tx.Inputs {
		sum += uint64(len(txcodec.SerializeInput(&tx.Inputs[i])))
	}
	return sum
}

func outputWeightSum(tx *txrecord.Transaction) uint64 {
	sum := uint64(len(encoding.Varint(uint64(len(tx.Outputs)))))
	for i := range tx.Outputs {
		sum += uint64(len(txcodec.SerializeOutput(&tx.Outputs[i])))
	}
	return sum
}

// witnessWeightSum sums the raw byte length of every witness element across
// every input. Deliberately omits the per-input witness-count varint and the
// per-element length varint, matching the under-counting behavior the
// original implementation's output depends on (spec §9).
func witnessWeightSum(tx *txrecord.Transaction) uint64 {
	var sum uint64
	for i := range tx.Inputs {
		for _, elem := range tx.Inputs[i].Witness {
			sum += uint64(len(elem))
		}
	}
	return sum
}

// Calculate computes the total weight of tx per the 4x/1x rule (§4.C).
func Calculate(tx *txrecord.Transaction) uint64 {
	w := uint64(4 * 4) // version: 4 bytes x 4
	if IsSegwit(tx) {
		w += 2 // marker + flag, 1 byte each, x1
		w += witnessWeightSum(tx)
	}
	w += inputWeightSum(tx) * 4
	w += outputWeightSum(tx) * 4
	w += 4 * 4 // locktime: 4 bytes x 4
	return w
}
