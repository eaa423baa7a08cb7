// Package validate implements the value/feerate validator, the identifier
// validator, input classification, and the validation orchestrator with its
// invalid-set sweep (spec §4.D, §4.E, §4.H).
package validate

import (
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/encoding"
	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/sigverify"
	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/txcodec"
	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/txrecord"
	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/weight"
)

// MaxMoney is the maximum representable value, 20,999,999 BTC in satoshis
// (§3 invariants).
const MaxMoney = 20_999_999 * 100_000_000

// Invalid is the per-transaction validation failure (§4.H, §7): a recovered
// error, not a structural/fatal one. The offending transaction is dropped
// from the working set; other records are unaffected.
type Invalid struct {
	Reason string
}

func (e *Invalid) Error() string { return e.Reason }

func invalid(reason string) error { return &Invalid{Reason: reason} }

// ClassifyInput maps a prevout's scriptpubkey_type string onto the tagged
// InputType union, with an UNKNOWN catch-all carrying the raw string (§9:
// "route on the tag, not the raw string").
func ClassifyInput(scriptPubkeyType string) (txrecord.InputType, string) {
	switch scriptPubkeyType {
	case "v1_p2tr":
		return txrecord.InputP2TR, scriptPubkeyType
	case "v0_p2wpkh":
		return txrecord.InputP2WPKH, scriptPubkeyType
	case "v0_p2wsh":
		return txrecord.InputP2WSH, scriptPubkeyType
	case "p2sh":
		return txrecord.InputP2SH, scriptPubkeyType
	case "p2pkh":
		return txrecord.InputP2PKH, scriptPubkeyType
	default:
		return txrecord.InputUnknown, scriptPubkeyType
	}
}

// ValuesAndFee rejects empty input/output lists, rejects input sum < output
// sum, rejects either sum exceeding MaxMoney, and sets tx.Meta.Fee (§4.D).
func ValuesAndFee(tx *txrecord.Transaction) error {
	if len(tx.Inputs) == 0 || len(tx.Outputs) == 0 {
		return invalid("Values don't add up.")
	}

	var inputSum, outputSum uint64
	for i := range tx.Inputs {
		inputSum += tx.Inputs[i].Prevout.Value
	}
	for i := range tx.Outputs {
		outputSum += tx.Outputs[i].Value
	}

	if inputSum < outputSum {
		return invalid("Values don't add up.")
	}
	if inputSum > MaxMoney || outputSum > MaxMoney {
		return invalid("Values don't add up.")
	}

	tx.Meta.Fee = inputSum - outputSum
	return nil
}

// Identifiers computes txid/wtxid, sets them on tx.Meta, and rejects the
// transaction if the hex of sha256(txid_bytes) does not equal the file stem
// of tx.Meta.SourcePath (§4.E).
func Identifiers(tx *txrecord.Transaction) error {
	nonWitnessPreimage := txcodec.NonWitness(tx)
	txidBytes := encoding.Reverse(encoding.DoubleSha256(nonWitnessPreimage))

	var wtxidBytes []byte
	if weight.IsSegwit(tx) {
		witnessPreimage := txcodec.Witness(tx)
		wtxidBytes = encoding.Reverse(encoding.DoubleSha256(witnessPreimage))
	} else {
		wtxidBytes = txidBytes
	}

	tx.Meta.TxidHex = hex.EncodeToString(txidBytes)
	tx.Meta.WtxidHex = hex.EncodeToString(wtxidBytes)

	tripleHashed := hex.EncodeToString(encoding.Sha256(txidBytes))
	stem := strings.TrimSuffix(filepath.Base(tx.Meta.SourcePath), filepath.Ext(tx.Meta.SourcePath))
	if stem != tripleHashed {
		return invalid("Txid does not represent filename!")
	}
	return nil
}

// Weight computes and sets tx.Meta.Weight, rejecting transactions over the
// block weight ceiling (§4.C, §3 invariants).
func Weight(tx *txrecord.Transaction) error {
	w := weight.Calculate(tx)
	if w > weight.MaxWeight {
		return invalid("Transaction weight too high!")
	}
	tx.Meta.Weight = w
	return nil
}

// Feerate rejects a transaction whose fee ÷ (weight ÷ 4) is below 1
// sat/vbyte (§4.D).
func Feerate(tx *txrecord.Transaction) error {
	vbytes := tx.Meta.Weight / 4
	if vbytes == 0 || tx.Meta.Fee/vbytes < 1 {
		return invalid("too low feerate")
	}
	return nil
}

// sanityChecks runs the cheap, non-cryptographic checks in order, setting
// fee/txid/wtxid/weight on tx as a side effect (§4.H step 1-4).
func sanityChecks(tx *txrecord.Transaction) error {
	if err := ValuesAndFee(tx); err != nil {
		return err
	}
	if err := Identifiers(tx); err != nil {
		return err
	}
	if err := Weight(tx); err != nil {
		return err
	}
	if err := Feerate(tx); err != nil {
		return err
	}
	return nil
}

// signatureVerification classifies and verifies every input in turn,
// short-circuiting on the first failure (§4.H step 5).
func signatureVerification(tx *txrecord.Transaction) error {
	for i := range tx.Inputs {
		in := &tx.Inputs[i]
		in.ClassifiedType, in.ClassifiedRaw = ClassifyInput(in.Prevout.ScriptPubkeyType)
		if err := sigverify.Verify(tx, i); err != nil {
			return invalid(err.Error())
		}
	}
	return nil
}

// Transaction runs the full per-transaction validation sequence: sanity
// checks, then per-input signature verification (§4.H). Any failure returns
// an *Invalid; a nil return means the transaction is Valid.
func Transaction(tx *txrecord.Transaction) error {
	if err := sanityChecks(tx); err != nil {
		return err
	}
	return signatureVerification(tx)
}

// Sweep repeatedly marks as invalid any transaction in workingSet with an
// input whose previous_txid is already in invalidSet, terminating when a
// pass removes nothing (§4.H "Invalid-set sweep"). It mutates invalidSet and
// removes the newly-invalidated entries from workingSet in place.
func Sweep(workingSet map[string]*txrecord.Transaction, invalidSet map[string]bool) {
	for {
		removedAny := false

		for txid, tx := range workingSet {
			for i := range tx.Inputs {
				if invalidSet[tx.Inputs[i].PreviousTxidHex] {
					invalidSet[txid] = true
				}
			}
		}

		for txid := range invalidSet {
			if _, ok := workingSet[txid]; ok {
				delete(workingSet, txid)
				removedAny = true
			}
		}

		if !removedAny {
			return
		}
	}
}
