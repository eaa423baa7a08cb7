package mining

import (
	"sort"

	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/txrecord"
)

// CutWeightBudget is the weight available to non-coinbase transactions,
// after reserving space for the header and coinbase (§4.K).
const CutWeightBudget = 3_970_000

// Sort orders workingSet by descending packet feerate (ties broken by
// order, the working set's deterministic iteration sequence established at
// load time), then lifts parents ahead of their children (§4.K).
func Sort(workingSet map[string]*txrecord.Transaction, order []string) []*txrecord.Transaction {
	indexed := make(map[string]int, len(order))
	for i, txid := range order {
		indexed[txid] = i
	}

	sorted := make([]*txrecord.Transaction, 0, len(order))
	for _, txid := range order {
		sorted = append(sorted, workingSet[txid])
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Meta.Packet.Feerate > sorted[j].Meta.Packet.Feerate
	})

	liftParentsInFront(sorted)
	return sorted
}

// liftParentsInFront repeatedly scans for a transaction whose parent appears
// later in the list, removes the parent, and re-inserts it at the child's
// current position, restarting the scan each time a lift happens. Terminates
// because each lift strictly decreases the sum of (parent_index -
// child_index) over all parent-child pairs that are still out of order
// (§4.K).
func liftParentsInFront(sorted []*txrecord.Transaction) {
	for {
		changed := false

		for childIndex, tx := range sorted {
			for _, parentTxid := range tx.Meta.Parents {
				parentIndex := indexOfTxid(sorted, parentTxid)
				if parentIndex > childIndex {
					liftParent(sorted, parentIndex, childIndex)
					changed = true
					break
				}
			}
			if changed {
				break
			}
		}

		if !changed {
			return
		}
	}
}

func indexOfTxid(sorted []*txrecord.Transaction, txid string) int {
	for i, tx := range sorted {
		if tx.Meta.TxidHex == txid {
			return i
		}
	}
	return -1
}

// liftParent removes the element at parentIndex and re-inserts it at
// childIndex, shifting the elements between the two positions one slot to
// the right. Operates in place on sorted's backing array.
func liftParent(sorted []*txrecord.Transaction, parentIndex, childIndex int) {
	parent := sorted[parentIndex]
	copy(sorted[childIndex+1:parentIndex+1], sorted[childIndex:parentIndex])
	sorted[childIndex] = parent
}

// Cut accumulates sorted in order while the remaining weight budget strictly
// exceeds each transaction's weight, stopping at the first transaction that
// would not fit rather than scanning further (§4.K; the strict `>`, not
// `≥`, is intentional — see §9).
func Cut(sorted []*txrecord.Transaction) []*txrecord.Transaction {
	block := make([]*txrecord.Transaction, 0, len(sorted))
	remaining := int64(CutWeightBudget)

	for _, tx := range sorted {
		if remaining > int64(tx.Meta.Weight) {
			remaining -= int64(tx.Meta.Weight)
			block = append(block, tx)
		} else {
			break
		}
	}
	return block
}
