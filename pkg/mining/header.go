package mining

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/encoding"
	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/txrecord"
	"github.com/pkg/errors"
)

// headerVersion is the fixed block version (no BIP9 signaling).
const headerVersion uint32 = 0x20000000

// headerBits is the fixed difficulty bits field, little-endian encoded.
const headerBits uint32 = 0x1f00ffff

// DefaultPreviousBlockHash is the previous block this block extends, given
// in display (big-endian/reversed) hex order. Callers may override it
// (e.g. via CLI configuration); production behavior is unchanged by doing so.
const DefaultPreviousBlockHash = "00000000000000000001901b9f3b6c7a0c34b20b29b950d0d8ffa36c63979c1c"

// ErrNonceExhausted is a structural (fatal) error: every nonce in
// [0, 2^32) was tried and none produced a hash below target (§7).
var ErrNonceExhausted = errors.New("proof-of-work: all nonces exhausted")

// powTarget is the big-endian interpretation of 0x00000FFFF0000000...0 (32 bytes).
func powTarget() *big.Int {
	raw, err := hex.DecodeString("00000ffff0000000000000000000000000000000000000000000000000000000")
	if err != nil {
		panic(err)
	}
	return new(big.Int).SetBytes(raw)
}

// BuildHeader assembles the 80-byte block header (sans nonce search) for
// blockTxs behind coinbase, then searches for a valid proof-of-work nonce
// (§4.M). timestamp is the caller-supplied unix time; previousBlockHex is the
// previous block hash in display hex order (DefaultPreviousBlockHash in
// production).
func BuildHeader(blockTxs []*txrecord.Transaction, coinbase *Coinbase, timestamp uint32, previousBlockHex string) ([]byte, error) {
	header := make([]byte, 0, 80)

	var versionBytes [4]byte
	binary.LittleEndian.PutUint32(versionBytes[:], headerVersion)
	header = append(header, versionBytes[:]...)

	prevBlockHash, err := chainhash.NewHashFromStr(previousBlockHex)
	if err != nil {
		return nil, errors.Wrap(err, "decoding previous block hash")
	}
	header = append(header, prevBlockHash[:]...)

	coinbaseHash, err := chainhash.NewHash(coinbase.TxidRawBytes)
	if err != nil {
		return nil, errors.Wrap(err, "building coinbase hash")
	}

	hashes := make([]chainhash.Hash, 0, len(blockTxs)+1)
	hashes = append(hashes, *coinbaseHash)
	for _, tx := range blockTxs {
		hashes = append(hashes, tx.TxidHash())
	}
	root := MerkleRoot(hashes)
	header = append(header, root[:]...)

	var timestampBytes [4]byte
	binary.LittleEndian.PutUint32(timestampBytes[:], timestamp)
	header = append(header, timestampBytes[:]...)

	var bitsBytes [4]byte
	binary.LittleEndian.PutUint32(bitsBytes[:], headerBits)
	header = append(header, bitsBytes[:]...)

	nonce, err := mineNonce(header)
	if err != nil {
		return nil, err
	}
	var nonceBytes [4]byte
	binary.LittleEndian.PutUint32(nonceBytes[:], nonce)
	return append(header, nonceBytes[:]...), nil
}

// mineNonce appends a placeholder nonce to header and searches nonces
// 0..=u32::MAX for the first whose double-SHA256, read little-endian, is
// strictly below target (§4.M).
func mineNonce(header []byte) (uint32, error) {
	target := powTarget()
	candidate := append(append([]byte{}, header...), 0, 0, 0, 0)

	for nonce := uint64(0); nonce <= 0xFFFFFFFF; nonce++ {
		binary.LittleEndian.PutUint32(candidate[len(candidate)-4:], uint32(nonce))
		blockHash := encoding.DoubleSha256(candidate)
		hashNum := new(big.Int).SetBytes(encoding.Reverse(blockHash))
		if hashNum.Cmp(target) < 0 {
			return uint32(nonce), nil
		}
	}
	return 0, ErrNonceExhausted
}
