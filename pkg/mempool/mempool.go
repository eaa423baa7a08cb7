// Package mempool links intra-working-set parent/child dependencies and
// aggregates ancestor packet fee/weight/feerate (spec §4.I, §4.J).
package mempool

import (
	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/txrecord"
)

// LinkParents sets Meta.Parents on every transaction in workingSet to the
// previous_txid of each input that is itself present in workingSet (§4.I).
// A transaction with no in-working-set parents gets a nil Parents slice.
func LinkParents(workingSet map[string]*txrecord.Transaction) {
	for _, tx := range workingSet {
		var parents []string
		for i := range tx.Inputs {
			prevTxid := tx.Inputs[i].PreviousTxidHex
			if _, ok := workingSet[prevTxid]; ok {
				parents = append(parents, prevTxid)
			}
		}
		tx.Meta.Parents = parents
	}
}

// calcParents recursively sums fee and weight across txid and all of its
// transitive parents present in workingSet. Each parent edge is walked
// independently — a transaction reachable via two distinct parent paths (a
// diamond ancestor) is summed twice. This reproduces the reference
// implementation's behavior and is required, not accidental (spec §9).
func calcParents(workingSet map[string]*txrecord.Transaction, txid string) (fee, weight uint64) {
	tx, ok := workingSet[txid]
	if !ok {
		panic("mempool: calc_parents: tx not found: " + txid)
	}

	fee = tx.Meta.Fee
	weight = tx.Meta.Weight

	for _, parent := range tx.Meta.Parents {
		parentFee, parentWeight := calcParents(workingSet, parent)
		fee += parentFee
		weight += parentWeight
	}
	return fee, weight
}

// AggregatePackets computes packet.fee, packet.weight and packet.feerate
// (integer division) for every transaction in workingSet, by summing fee and
// weight across the transaction and all transitive in-working-set parents
// (§4.J). LinkParents must have already run.
func AggregatePackets(workingSet map[string]*txrecord.Transaction) {
	for txid, tx := range workingSet {
		fee, weight := calcParents(workingSet, txid)
		tx.Meta.Packet.Fee = fee
		tx.Meta.Packet.Weight = weight
		tx.Meta.Packet.Feerate = fee / weight
	}
}
