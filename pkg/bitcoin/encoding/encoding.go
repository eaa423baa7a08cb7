// Package encoding implements the serialization primitives shared by every other
// package in this module: CompactSize varints, double-SHA256, hash160 and the
// signed-number decoding used by the script interpreter's numeric opcodes.
package encoding

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // hash160 requires it
)

// ErrEncodingOverflow names the failure for a value beyond the 8-byte CompactSize
// range. Varint and VarintChecked take a uint64, which always fits the 8-byte
// form, so neither of them returns it.
var ErrEncodingOverflow = errors.New("EncodingOverflow")

// Varint encodes n as a Bitcoin CompactSize integer.
func Varint(n uint64) []byte {
	b, err := VarintChecked(n)
	if err != nil {
		panic(err)
	}
	return b
}

// VarintChecked is Varint's fallible form; n is always representable in a uint64
// so this never actually overflows, but it keeps the EncodingOverflow failure mode
// explicit for callers that decode an arbitrary-width count before re-encoding it.
func VarintChecked(n uint64) ([]byte, error) {
	switch {
	case n <= 252:
		return []byte{byte(n)}, nil
	case n <= 0xFFFF:
		buf := make([]byte, 3)
		buf[0] = 0xFD
		binary.LittleEndian.PutUint16(buf[1:], uint16(n))
		return buf, nil
	case n <= 0xFFFFFFFF:
		buf := make([]byte, 5)
		buf[0] = 0xFE
		binary.LittleEndian.PutUint32(buf[1:], uint32(n))
		return buf, nil
	default:
		buf := make([]byte, 9)
		buf[0] = 0xFF
		binary.LittleEndian.PutUint64(buf[1:], n)
		return buf, nil
	}
}

// Sha256 returns the single SHA-256 digest of data.
func Sha256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// DoubleSha256 returns SHA256(SHA256(data)).
func DoubleSha256(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}

// Hash160 returns RIPEMD160(SHA256(data)).
func Hash160(data []byte) []byte {
	first := sha256.Sum256(data)
	hasher := ripemd160.New()
	hasher.Write(first[:]) //nolint:errcheck // ripemd160.Write never errors
	return hasher.Sum(nil)
}

// Reverse returns a newly allocated copy of b with byte order reversed, used
// throughout this module to flip between internal and display (txid) byte order.
func Reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

// Outpoint serializes a previous-output reference as reversed txid bytes followed
// by the little-endian output index, per spec §4.A.
func Outpoint(previousTxidBytes []byte, previousVout uint32) []byte {
	out := make([]byte, 0, 36)
	out = append(out, Reverse(previousTxidBytes)...)
	voutBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(voutBytes, previousVout)
	return append(out, voutBytes...)
}

// maxNumBytes bounds DecodeNum's input to what fits in a signed 128-bit integer,
// matching the source's use of i128 as the decode target.
const maxNumBytes = 16

// DecodeNum decodes a little-endian, sign-magnitude variable-length integer as used
// by the script interpreter's numeric opcodes (§4.A). An empty buffer decodes to 0;
// the most significant bit of the last byte carries the sign, so 0x80 is negative
// zero. DecodeNum returns ErrNumberOverflow if the value does not fit in a signed
// 128-bit integer.
func DecodeNum(b []byte) (*big.Int, error) {
	if len(b) == 0 {
		return big.NewInt(0), nil
	}
	if len(b) > maxNumBytes {
		return nil, ErrNumberOverflow
	}

	negative := b[len(b)-1]&0x80 != 0

	le := make([]byte, len(b))
	copy(le, b)
	le[len(le)-1] &^= 0x80
	magnitude := new(big.Int).SetBytes(Reverse(le))

	if negative {
		magnitude.Neg(magnitude)
	}

	limit := new(big.Int).Lsh(big.NewInt(1), 127)
	if magnitude.CmpAbs(limit) >= 0 {
		return nil, ErrNumberOverflow
	}
	return magnitude, nil
}

// ErrNumberOverflow is returned by DecodeNum when the encoded value does not fit
// in the range the interpreter operates in.
var ErrNumberOverflow = errors.New("script number overflow")
