// Package blockwriter serializes the assembled block to the newline-delimited
// output format (spec §6).
package blockwriter

import (
	"encoding/hex"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/txrecord"
)

// Write builds the output file contents — header hex, coinbase hex, then one
// txid per line in blockTxs order, with no trailing newline — and writes it
// to path (§6).
func Write(path string, header []byte, coinbaseSerialized []byte, blockTxs []*txrecord.Transaction) error {
	lines := make([]string, 0, 2+len(blockTxs))
	lines = append(lines, hex.EncodeToString(header))
	lines = append(lines, hex.EncodeToString(coinbaseSerialized))
	for _, tx := range blockTxs {
		lines = append(lines, tx.Meta.TxidHex)
	}

	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return errors.Wrapf(err, "writing output file %q", path)
	}
	return nil
}
