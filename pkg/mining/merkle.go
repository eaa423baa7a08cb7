package mining

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// MerkleRoot computes the merkle root over hashes, recursively pairing and
// double-hashing each level, duplicating the last hash when a level has an
// odd count (§4.M). A single input returns itself unchanged; an empty input
// returns the zero hash.
//
// Adapted from the teacher's computeMerkleRoot: same recursive shape, typed
// over chainhash.Hash (and chainhash.DoubleHashH) instead of rolling
// double-SHA256 over raw byte slices by hand.
func MerkleRoot(hashes []chainhash.Hash) chainhash.Hash {
	if len(hashes) == 0 {
		return chainhash.Hash{}
	}
	if len(hashes) == 1 {
		return hashes[0]
	}

	var nextLevel []chainhash.Hash
	for i := 0; i < len(hashes); i += 2 {
		left := hashes[i]
		right := hashes[i]
		if i+1 < len(hashes) {
			right = hashes[i+1]
		}
		combined := append(append([]byte{}, left[:]...), right[:]...)
		nextLevel = append(nextLevel, chainhash.DoubleHashH(combined))
	}

	return MerkleRoot(nextLevel)
}
