// Package loader reads the input directory of candidate transaction records
// into working-set form (spec §6).
package loader

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btclog"
	"github.com/pkg/errors"

	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/txrecord"
)

// wireOutput mirrors the JSON "vout" entry shape (§6).
type wireOutput struct {
	Scriptpubkey        string `json:"scriptpubkey"`
	ScriptpubkeyType    string `json:"scriptpubkey_type"`
	ScriptpubkeyAddress string `json:"scriptpubkey_address"`
	Value               uint64 `json:"value"`
}

// wireInput mirrors the JSON "vin" entry shape (§6).
type wireInput struct {
	Txid         string   `json:"txid"`
	Vout         uint32   `json:"vout"`
	Prevout      wireOutput `json:"prevout"`
	Scriptsig    string   `json:"scriptsig"`
	ScriptsigAsm string   `json:"scriptsig_asm"`
	Witness      []string `json:"witness"`
	IsCoinbase   bool     `json:"is_coinbase"`
	Sequence     uint32   `json:"sequence"`
}

// wireTransaction mirrors the full JSON record shape (§6).
type wireTransaction struct {
	Version  int32       `json:"version"`
	Locktime uint32      `json:"locktime"`
	Vin      []wireInput `json:"vin"`
	Vout     []wireOutput `json:"vout"`
}

// FromDirectory walks path non-recursively, decoding every ".json" file into
// a txrecord.Transaction, in directory-listing order. Non-JSON files are
// skipped with a warning; a JSON file that fails to decode is fatal (§6, §7).
// The caller keys the working set once each transaction's txid is known
// (§4.E runs as part of validation, not loading).
func FromDirectory(path string, log btclog.Logger) ([]*txrecord.Transaction, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading input directory %q", path)
	}

	txs := make([]*txrecord.Transaction, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || strings.ToLower(filepath.Ext(entry.Name())) != ".json" {
			log.Warnf("skipping non-JSON entry %q", entry.Name())
			continue
		}

		fullPath := filepath.Join(path, entry.Name())
		tx, err := decodeFile(fullPath)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding %q", fullPath)
		}

		txs = append(txs, tx)
	}

	return txs, nil
}

func decodeFile(path string) (*txrecord.Transaction, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var wire wireTransaction
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}

	tx, err := convert(&wire)
	if err != nil {
		return nil, err
	}
	tx.Meta.SourcePath = path
	return tx, nil
}

func convert(wire *wireTransaction) (*txrecord.Transaction, error) {
	inputs := make([]txrecord.Input, len(wire.Vin))
	for i, in := range wire.Vin {
		scriptSig, err := decodeOptionalHex(in.Scriptsig)
		if err != nil {
			return nil, errors.Wrapf(err, "vin[%d].scriptsig", i)
		}
		witness, err := decodeWitness(in.Witness)
		if err != nil {
			return nil, errors.Wrapf(err, "vin[%d].witness", i)
		}
		prevoutSpk, err := decodeOptionalHex(in.Prevout.Scriptpubkey)
		if err != nil {
			return nil, errors.Wrapf(err, "vin[%d].prevout.scriptpubkey", i)
		}

		inputs[i] = txrecord.Input{
			PreviousTxidHex: in.Txid,
			PreviousVout:    in.Vout,
			ScriptSig:       scriptSig,
			ScriptSigAsm:    in.ScriptsigAsm,
			Prevout: txrecord.Output{
				ScriptPubkey:        prevoutSpk,
				ScriptPubkeyType:    in.Prevout.ScriptpubkeyType,
				ScriptPubkeyAddress: in.Prevout.ScriptpubkeyAddress,
				Value:               in.Prevout.Value,
			},
			Witness:    witness,
			IsCoinbase: in.IsCoinbase,
			Sequence:   in.Sequence,
		}
	}

	outputs := make([]txrecord.Output, len(wire.Vout))
	for i, out := range wire.Vout {
		spk, err := decodeOptionalHex(out.Scriptpubkey)
		if err != nil {
			return nil, errors.Wrapf(err, "vout[%d].scriptpubkey", i)
		}
		outputs[i] = txrecord.Output{
			ScriptPubkey:        spk,
			ScriptPubkeyType:    out.ScriptpubkeyType,
			ScriptPubkeyAddress: out.ScriptpubkeyAddress,
			Value:               out.Value,
		}
	}

	return &txrecord.Transaction{
		Version:  wire.Version,
		Locktime: wire.Locktime,
		Inputs:   inputs,
		Outputs:  outputs,
	}, nil
}

// decodeOptionalHex decodes s as hex, treating the empty string as absent
// (§6).
func decodeOptionalHex(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

func decodeWitness(items []string) ([][]byte, error) {
	if items == nil {
		return nil, nil
	}
	out := make([][]byte, len(items))
	for i, item := range items {
		b, err := hex.DecodeString(item)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}
