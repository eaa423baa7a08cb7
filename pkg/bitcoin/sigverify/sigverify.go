// Package sigverify implements the two signature-verification entry points
// dispatched by the validation orchestrator: P2WPKH (BIP-143) and P2PKH
// (legacy, via the script interpreter) (spec §4.G).
package sigverify

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/encoding"
	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/script"
	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/txcodec"
	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/txrecord"
	"github.com/pkg/errors"
)

// ErrInputTypeNotImplemented is returned for classified types this module
// does not carry a verifier for (P2TR, P2WSH, P2SH, UNKNOWN) — spec §4.G.
var ErrInputTypeNotImplemented = errors.New("Input type not implemented")

// Verify dispatches on in.ClassifiedType and reports whether the input's
// spending condition is satisfied. It never returns a structural error for a
// cryptographic or parsing failure — those surface as a non-nil error that
// the orchestrator folds into an Invalid(reason) result.
func Verify(tx *txrecord.Transaction, inputIndex int) error {
	in := &tx.Inputs[inputIndex]
	switch in.ClassifiedType {
	case txrecord.InputP2WPKH:
		return verifyP2WPKH(tx, inputIndex)
	case txrecord.InputP2PKH:
		return verifyP2PKH(tx, inputIndex)
	default:
		return ErrInputTypeNotImplemented
	}
}

func verifyP2WPKH(tx *txrecord.Transaction, inputIndex int) error {
	in := &tx.Inputs[inputIndex]
	if len(in.Witness) < 2 {
		return errors.New("no witness in transaction")
	}
	witnessSig := in.Witness[0]
	witnessPubkey := in.Witness[1]

	pubkeyHash160 := encoding.Hash160(witnessPubkey)
	scriptPubkeyHash := in.Prevout.ScriptPubkey[2:] // skip the 0x0014 prefix
	if !bytesEqual(pubkeyHash160, scriptPubkeyHash) {
		return errors.Errorf(
			"pubkeys unequal, witness: %x | scriptpubkey: %x", pubkeyHash160, scriptPubkeyHash,
		)
	}

	scriptCode := txcodec.P2WPKHScriptCode(in.Prevout.ScriptPubkey)
	preimage := txcodec.SegwitSighashPreimage(tx, inputIndex, scriptCode)
	return verifySignature(preimage, witnessPubkey, witnessSig)
}

func verifyP2PKH(tx *txrecord.Transaction, inputIndex int) error {
	in := &tx.Inputs[inputIndex]
	if in.ScriptSig == nil {
		return errors.New("p2pkh scriptsig empty")
	}
	concatenated := append(append([]byte{}, in.ScriptSig...), in.Prevout.ScriptPubkey...)
	return script.Evaluate(concatenated, tx, inputIndex)
}

// verifySignature parses a sighash-byte-suffixed DER signature and verifies it
// against preimage and pubkey. S is used as parsed; ECDSA verification gives
// the same result for S and n-S. Only SIGHASH_ALL (0x01) is accepted (§9).
func verifySignature(preimage, pubkeyBytes, sigWithSighash []byte) error {
	if len(sigWithSighash) == 0 {
		return errors.New("empty signature")
	}
	sighashByte := sigWithSighash[len(sigWithSighash)-1]
	if sighashByte != byte(txcodec.SighashAll) {
		return errors.New("sighash type not implemented")
	}
	derSig := sigWithSighash[:len(sigWithSighash)-1]

	sig, err := ecdsa.ParseDERSignature(derSig)
	if err != nil {
		return errors.Wrap(err, "loading DER encoded signature failed")
	}
	pubkey, err := btcec.ParsePubKey(pubkeyBytes)
	if err != nil {
		return errors.Wrap(err, "pubkey invalid")
	}
	if !sig.Verify(preimage, pubkey) {
		return errors.New("signature verification failed")
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
