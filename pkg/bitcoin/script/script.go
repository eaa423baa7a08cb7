// Package script implements the stack-based interpreter over the fixed opcode
// subset used to evaluate P2PKH spending conditions (spec
// §4.F). Execution is a single linear scan with no branching, matching the
// subset of Script this project needs rather than the full protocol.
package script

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/encoding"
	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/txcodec"
	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/txrecord"
	"github.com/pkg/errors"
)

const (
	opPushdata1           = 0x4c
	opPushdata2           = 0x4d
	opPushdata4           = 0x4e
	op1Negate             = 0x4f
	op1                   = 0x51
	op16                  = 0x60
	opIfdup               = 0x73
	opDepth               = 0x74
	opDrop                = 0x75
	opDup                 = 0x76
	opOver                = 0x78
	opRot                 = 0x7b
	opSwap                = 0x7c
	opSize                = 0x82
	opEqual               = 0x87
	opEqualverify         = 0x88
	opGreaterthan         = 0xa0
	opSha256              = 0xa8
	opHash160             = 0xa9
	opChecksig            = 0xac
	opChecksigverify      = 0xad
	opCheckmultisig       = 0xae
	opChecklocktimeverify = 0xb1
	opChecksequenceverify = 0xb2

	sighashAll = 0x01

	locktimeThreshold = 500_000_000
	csvDisableFlag    = 1 << 31
	csvLocktimeMask   = 0x0000ffff
	csvTypeFlag       = 1 << 22
)

// stack is the interpreter's value stack: a sequence of byte buffers, LIFO.
type stack [][]byte

func (s *stack) push(v []byte) { *s = append(*s, v) }

func (s *stack) pop() ([]byte, error) {
	n := len(*s)
	if n == 0 {
		return nil, errors.New("stack underflow")
	}
	v := (*s)[n-1]
	*s = (*s)[:n-1]
	return v, nil
}

func (s stack) peek() ([]byte, error) {
	if len(s) == 0 {
		return nil, errors.New("stack empty")
	}
	return s[len(s)-1], nil
}

// Evaluate runs script against tx's input at inputIndex and reports whether
// execution ends with a non-empty top-of-stack value (§4.F success condition).
// rawScript is the caller-supplied concatenation of scriptsig and scriptpubkey
// bytes (legacy evaluation only; no separate redeemscript stage).
func Evaluate(rawScript []byte, tx *txrecord.Transaction, inputIndex int) error {
	var st stack
	index := 0

	for index < len(rawScript) {
		opcode := rawScript[index]
		var err error

		switch {
		case opcode == opSha256:
			err = unaryReplace(&st, encoding.Sha256)
		case opcode == opHash160:
			err = unaryReplace(&st, encoding.Hash160)
		case opcode == opDrop:
			_, err = st.pop()
		case opcode == opSwap:
			err = opSwapImpl(&st)
		case opcode == 0x00:
			st.push([]byte{})
		case opcode == opDup:
			err = opDupImpl(&st)
		case opcode == opEqual:
			err = opEqualImpl(&st)
		case opcode == opRot:
			err = opRotImpl(&st)
		case opcode == opSize:
			err = opSizeImpl(&st)
		case opcode == opOver:
			err = opOverImpl(&st)
		case opcode == opGreaterthan:
			err = opGreaterthanImpl(&st)
		case opcode == opEqualverify:
			if err = opEqualImpl(&st); err == nil {
				err = opVerify(&st)
			}
		case opcode == opIfdup:
			err = opIfdupImpl(&st)
		case opcode == opChecksequenceverify:
			err = opChecksequenceverifyImpl(&st, tx, inputIndex)
		case opcode == opChecklocktimeverify:
			err = opChecklocktimeverifyImpl(&st, tx, inputIndex)
		case opcode == opChecksig:
			err = opChecksigImpl(&st, tx, inputIndex)
		case opcode == opDepth:
			st.push(encoding.Varint(uint64(len(st))))
		case opcode == opChecksigverify:
			if err = opChecksigImpl(&st, tx, inputIndex); err == nil {
				err = opVerify(&st)
			}
		case opcode >= op1 && opcode <= op16:
			st.push([]byte{opcode - 0x50})
		case opcode == op1Negate:
			st.push([]byte{0xff})
		case opcode >= 0x01 && opcode <= 0x4b:
			err = opPushbytesImpl(&st, &index, rawScript)
		case opcode == opPushdata1:
			err = opPushdataImpl(&st, 1, &index, rawScript)
		case opcode == opPushdata2:
			err = opPushdataImpl(&st, 2, &index, rawScript)
		case opcode == opPushdata4:
			err = opPushdataImpl(&st, 4, &index, rawScript)
		case opcode == opCheckmultisig:
			err = opCheckmultisigImpl(&st, tx, inputIndex)
		default:
			return errors.Errorf("unsupported opcode 0x%02x", opcode)
		}

		if err != nil {
			return err
		}
		index++
	}

	top, err := st.pop()
	if err != nil {
		// Empty stack at end of script: treated the same as an empty top
		// element — invalid.
		return errors.New("script ended with empty stack")
	}
	if len(top) == 0 {
		return errors.New("script invalid: empty top-of-stack")
	}
	return nil
}

func unaryReplace(st *stack, fn func([]byte) []byte) error {
	v, err := st.pop()
	if err != nil {
		return err
	}
	st.push(fn(v))
	return nil
}

func opSwapImpl(st *stack) error {
	n := len(*st)
	if n < 2 {
		return errors.New("OP_SWAP stack < 2")
	}
	(*st)[n-1], (*st)[n-2] = (*st)[n-2], (*st)[n-1]
	return nil
}

func opDupImpl(st *stack) error {
	top, err := st.peek()
	if err != nil {
		return errors.New("OP_DUP stack empty")
	}
	dup := make([]byte, len(top))
	copy(dup, top)
	st.push(dup)
	return nil
}

func opEqualImpl(st *stack) error {
	if len(*st) < 2 {
		return errors.New("OP_EQUAL stack < 2")
	}
	last, _ := st.pop()
	secondLast, _ := st.pop()
	if bytesEqual(last, secondLast) {
		st.push([]byte{1})
	} else {
		st.push([]byte{})
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func opVerify(st *stack) error {
	top, err := st.pop()
	if err != nil {
		return errors.New("OP_VERIFY stack empty")
	}
	if len(top) == 0 {
		return errors.New("OP_VERIFY false")
	}
	return nil
}

func opRotImpl(st *stack) error {
	n := len(*st)
	if n < 3 {
		return errors.New("OP_ROT stack < 3")
	}
	third, second, first := (*st)[n-1], (*st)[n-2], (*st)[n-3]
	(*st)[n-3], (*st)[n-2], (*st)[n-1] = second, first, third
	return nil
}

func opSizeImpl(st *stack) error {
	top, err := st.peek()
	if err != nil {
		return errors.New("OP_SIZE stack empty")
	}
	st.push(encoding.Varint(uint64(len(top))))
	return nil
}

func opOverImpl(st *stack) error {
	n := len(*st)
	if n < 2 {
		return errors.New("OP_OVER stack < 2")
	}
	src := (*st)[n-2]
	dup := make([]byte, len(src))
	copy(dup, src)
	st.push(dup)
	return nil
}

func opGreaterthanImpl(st *stack) error {
	if len(*st) < 2 {
		return errors.New("OP_GREATERTHAN stack < 2")
	}
	b, _ := st.pop()
	a, _ := st.pop()
	an, err := encoding.DecodeNum(a)
	if err != nil {
		return err
	}
	bn, err := encoding.DecodeNum(b)
	if err != nil {
		return err
	}
	if an.Cmp(bn) > 0 {
		st.push([]byte{1})
	} else {
		st.push([]byte{})
	}
	return nil
}

func opIfdupImpl(st *stack) error {
	top, err := st.peek()
	if err != nil {
		return errors.New("OP_IFDUP stack empty")
	}
	if len(top) == 0 {
		return nil
	}
	dup := make([]byte, len(top))
	copy(dup, top)
	st.push(dup)
	return nil
}

func opPushbytesImpl(st *stack, index *int, script []byte) error {
	n := int(script[*index])
	start := *index + 1
	end := start + n
	if end > len(script) {
		return errors.New("OP_PUSHBYTES out of range")
	}
	buf := make([]byte, n)
	copy(buf, script[start:end])
	st.push(buf)
	*index += n
	return nil
}

func pushdataAmount(script []byte, amountBytes, currentIndex int) (int, error) {
	start := currentIndex + 1
	end := start + amountBytes
	if end > len(script) {
		return 0, errors.New("pushdata length bytes out of range")
	}
	raw := script[start:end]
	switch amountBytes {
	case 1:
		return int(raw[0]), nil
	case 2:
		return int(raw[0]) | int(raw[1])<<8, nil
	case 4:
		return int(raw[0]) | int(raw[1])<<8 | int(raw[2])<<16 | int(raw[3])<<24, nil
	default:
		return 0, errors.New("pushdata unsupported length-prefix width")
	}
}

func opPushdataImpl(st *stack, amountBytes int, index *int, script []byte) error {
	n, err := pushdataAmount(script, amountBytes, *index)
	if err != nil {
		return err
	}
	*index += amountBytes + 1
	if *index+n > len(script) {
		return errors.New("OP_PUSHDATA out of range")
	}
	buf := make([]byte, n)
	copy(buf, script[*index:*index+n])
	st.push(buf)
	*index += n - 1
	return nil
}

func opChecksequenceverifyImpl(st *stack, tx *txrecord.Transaction, inputIndex int) error {
	top, err := st.pop()
	if err != nil {
		return errors.New("OP_CSV stack empty")
	}
	number, err := encoding.DecodeNum(top)
	if err != nil {
		return err
	}
	if number.Sign() < 0 || len(top) == 0 {
		return errors.New("OP_CSV number < 0 or empty")
	}
	n := number.Int64()

	if n&csvDisableFlag == 0 {
		if tx.Version < 2 {
			return errors.New("OP_CSV transaction version is less than 2")
		}
		sequence := int64(tx.Inputs[inputIndex].Sequence)
		if sequence&csvDisableFlag != 0 {
			return errors.New("OP_CSV input sequence disable flag is set")
		}
		if (n & csvTypeFlag) != (sequence & csvTypeFlag) {
			return errors.New("OP_CSV relative lock-time types are not the same")
		}
		if (n & csvLocktimeMask) > (sequence & csvLocktimeMask) {
			return errors.New("OP_CSV stack value exceeds sequence value")
		}
	}
	return nil
}

func opChecklocktimeverifyImpl(st *stack, tx *txrecord.Transaction, inputIndex int) error {
	top, err := st.peek()
	if err != nil {
		return errors.New("OP_CLTV stack empty")
	}
	number, err := encoding.DecodeNum(top)
	if err != nil {
		return err
	}
	if number.Sign() < 0 {
		return errors.New("OP_CLTV number < 0")
	}
	n := number.Int64()
	locktime := int64(tx.Locktime)
	if (n < locktimeThreshold && locktime > locktimeThreshold) ||
		(n > locktimeThreshold && locktime < locktimeThreshold) {
		return errors.New("OP_CLTV different locktime types")
	}
	if locktime < n {
		return errors.New("OP_CLTV locktime is earlier than stack value")
	}
	if tx.Inputs[inputIndex].Sequence == 0xffffffff {
		return errors.New("OP_CLTV input sequence is final (0xffffffff)")
	}
	return nil
}

func opChecksigImpl(st *stack, tx *txrecord.Transaction, inputIndex int) error {
	if len(*st) < 2 {
		return errors.New("OP_CHECKSIG stack < 2")
	}
	pubkey, _ := st.pop()
	derSig, err := st.pop()
	if err != nil {
		return errors.New("OP_CHECKSIG popping signature failed")
	}
	if len(derSig) == 0 {
		return errors.New("OP_CHECKSIG empty signature")
	}
	sighash := derSig[len(derSig)-1]
	derSig = derSig[:len(derSig)-1]
	if sighash != sighashAll {
		return errors.New("OP_CHECKSIG sighash type not implemented")
	}

	scriptCode := tx.Inputs[inputIndex].Prevout.ScriptPubkey
	preimage := txcodec.LegacySighashPreimage(tx, inputIndex, scriptCode)

	if err := verifyDER(preimage, pubkey, derSig); err != nil {
		st.push([]byte{})
		return nil
	}
	st.push([]byte{1})
	return nil
}

// opCheckmultisigImpl reproduces the reference implementation's historical
// off-by-one: after the signature count and the signatures are popped, one
// extra stack element is discarded.
func opCheckmultisigImpl(st *stack, tx *txrecord.Transaction, inputIndex int) error {
	pubkeyCountBytes, err := st.pop()
	if err != nil {
		return errors.New("OP_CHECKMULTISIG popping pubkey count failed")
	}
	if len(pubkeyCountBytes) != 1 {
		return errors.New("OP_CHECKMULTISIG pubkey count encoded in more than one byte")
	}
	pubkeyCount := int(pubkeyCountBytes[0])

	var pubkeys [][]byte
	for i := 0; i < pubkeyCount; i++ {
		pk, err := st.pop()
		if err != nil {
			return errors.New("OP_CHECKMULTISIG popping pubkey failed")
		}
		pubkeys = append(pubkeys, pk)
	}

	sigCountBytes, err := st.pop()
	if err != nil {
		return errors.New("OP_CHECKMULTISIG popping signature count failed")
	}
	if len(sigCountBytes) != 1 {
		return errors.New("OP_CHECKMULTISIG signature count encoded in more than one byte")
	}
	sigCount := int(sigCountBytes[0])
	remaining := sigCount

	var signatures [][]byte
	for i := 0; i < sigCount; i++ {
		sig, err := st.pop()
		if err != nil {
			return errors.New("OP_CHECKMULTISIG popping signature failed")
		}
		signatures = append([][]byte{sig}, signatures...)
	}
	if _, err := st.pop(); err != nil {
		return errors.New("OP_CHECKMULTISIG popping extra dummy element failed")
	}

	scriptCode := tx.Inputs[inputIndex].Prevout.ScriptPubkey

sigLoop:
	for _, sig := range signatures {
		if len(sig) == 0 {
			return errors.New("OP_CHECKMULTISIG empty signature")
		}
		sighash := sig[len(sig)-1]
		derSig := sig[:len(sig)-1]
		if sighash != sighashAll {
			return errors.New("OP_CHECKMULTISIG sighash type not implemented")
		}
		preimage := txcodec.LegacySighashPreimage(tx, inputIndex, scriptCode)

		for {
			if len(pubkeys) == 0 {
				break sigLoop
			}
			pk := pubkeys[len(pubkeys)-1]
			pubkeys = pubkeys[:len(pubkeys)-1]
			if err := verifyDER(preimage, pk, derSig); err == nil {
				remaining--
				break
			}
		}
	}

	if remaining == 0 {
		st.push([]byte{1})
	} else {
		st.push([]byte{})
	}
	return nil
}

// verifyDER parses pubkey and a DER-encoded (sighash-byte-stripped) signature
// and verifies it against preimage (§4.G). S is used as parsed; ECDSA
// verification gives the same result for S and n-S, so a high-S signature
// verifies exactly as its low-S form would.
func verifyDER(preimage, pubkeyBytes, derSig []byte) error {
	sig, err := ecdsa.ParseDERSignature(derSig)
	if err != nil {
		return errors.Wrap(err, "parsing DER signature")
	}
	pubkey, err := btcec.ParsePubKey(pubkeyBytes)
	if err != nil {
		return errors.Wrap(err, "parsing public key")
	}
	if !sig.Verify(preimage, pubkey) {
		return errors.New("signature verification failed")
	}
	return nil
}
