// Package txrecord defines the in-memory transaction record described in spec §3:
// immutable structural fields plus a mutable metadata block that the validator and
// mining pipeline fill in as the record moves through the pipeline.
package txrecord

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// InputType is the tagged classification of an input's spending condition. Routing
// on this tag (rather than the prevout's raw scriptpubkey_type string) means a
// future, unrecognized type fails predictably instead of silently matching the
// wrong branch, per spec §9.
type InputType int

const (
	// InputUnknown is the catch-all variant; Input.ClassifiedRaw carries the source string.
	InputUnknown InputType = iota
	InputP2TR
	InputP2PKH
	InputP2SH
	InputP2WPKH
	InputP2WSH
)

func (t InputType) String() string {
	switch t {
	case InputP2TR:
		return "p2tr"
	case InputP2PKH:
		return "p2pkh"
	case InputP2SH:
		return "p2sh"
	case InputP2WPKH:
		return "p2wpkh"
	case InputP2WSH:
		return "p2wsh"
	default:
		return "unknown"
	}
}

// Output is a transaction output record (§3).
type Output struct {
	ScriptPubkey        []byte // nil when absent
	ScriptPubkeyType    string
	ScriptPubkeyAddress string
	Value               uint64
}

// Input is a transaction input record (§3).
type Input struct {
	PreviousTxidHex string // hex, as given in the source JSON (display order)
	PreviousVout    uint32
	ScriptSig       []byte // nil when absent
	ScriptSigAsm    string
	Prevout         Output
	Witness         [][]byte // nil when absent
	IsCoinbase      bool
	Sequence        uint32

	// ClassifiedType and ClassifiedRaw are set once, by the signature
	// verification pass, from Prevout.ScriptPubkeyType.
	ClassifiedType InputType
	ClassifiedRaw  string
}

// Packet holds the ancestor-aggregated fee/weight/feerate used as the block
// assembler's scheduling key (§4.J, GLOSSARY "Packet feerate").
type Packet struct {
	Weight   uint64
	Fee      uint64
	Feerate  uint64 // sat / weight unit, integer division
}

// Meta is the mutable metadata block attached to every Transaction (§3). It is
// written once by the validator (Weight, Fee, TxidHex, WtxidHex, and each input's
// ClassifiedType) and thereafter only Packet and Parents are mutated, by the mining
// pipeline.
type Meta struct {
	SourcePath string
	TxidHex    string
	WtxidHex   string
	Weight     uint64
	Fee        uint64
	Packet     Packet
	Parents    []string // hex txids of parents present in the working set
}

// Transaction is the full in-memory transaction record (§3).
type Transaction struct {
	Version  int32
	Locktime uint32
	Inputs   []Input
	Outputs  []Output
	Meta     Meta
}

// TxidHash returns Meta.TxidHex decoded into a chainhash.Hash, for use in merkle
// tree construction. It panics if TxidHex has not yet been set or is malformed;
// callers only ever reach this after a transaction has passed identifier
// validation (§4.E).
func (t *Transaction) TxidHash() chainhash.Hash {
	h, err := chainhash.NewHashFromStr(t.Meta.TxidHex)
	if err != nil {
		panic("txrecord: TxidHash called before TxidHex was validated: " + err.Error())
	}
	return *h
}

// WtxidHash is WtxidHex decoded into a chainhash.Hash; see TxidHash.
func (t *Transaction) WtxidHash() chainhash.Hash {
	h, err := chainhash.NewHashFromStr(t.Meta.WtxidHex)
	if err != nil {
		panic("txrecord: WtxidHash called before WtxidHex was validated: " + err.Error())
	}
	return *h
}

// IsSegwit reports whether any input carries a witness field (§4.C).
func (t *Transaction) IsSegwit() bool {
	for _, in := range t.Inputs {
		if in.Witness != nil {
			return true
		}
	}
	return false
}
