package main

import (
	"fmt"
	"os"
	"time"

	"github.com/btcsuite/btclog"
	flags "github.com/jessevdk/go-flags"
	"github.com/pkg/errors"

	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/txrecord"
	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/validate"
	"github.com/f321x/bitcoin-block-builder/pkg/blockwriter"
	"github.com/f321x/bitcoin-block-builder/pkg/loader"
	"github.com/f321x/bitcoin-block-builder/pkg/mempool"
	"github.com/f321x/bitcoin-block-builder/pkg/mining"
)

// options are the optional CLI overrides; the production entry requires
// none of them (§6).
type options struct {
	Mempool      string `long:"mempool" description:"input directory of candidate transaction records" default:"mempool/"`
	Output       string `long:"output" description:"output file path" default:"output.txt"`
	PreviousHash string `long:"prev-block" description:"previous block hash, display hex order" default:"00000000000000000001901b9f3b6c7a0c34b20b29b950d0d8ffa36c63979c1c"`
	LogLevel     string `long:"log-level" description:"trace, debug, info, warn, error" default:"info"`
}

var log btclog.Logger

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	backend := btclog.NewBackend(os.Stderr)
	log = backend.Logger("BLKBLD")
	if level, ok := btclog.LevelFromString(opts.LogLevel); ok {
		log.SetLevel(level)
	} else {
		log.SetLevel(btclog.LevelInfo)
	}

	if err := run(opts); err != nil {
		log.Errorf("fatal: %+v", err)
		fmt.Fprintf(os.Stderr, "fatal: %+v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	txs, err := loader.FromDirectory(opts.Mempool, log)
	if err != nil {
		return errors.Wrap(err, "loading input directory")
	}
	log.Infof("loaded %d candidate transactions", len(txs))

	loadOrder := make([]string, 0, len(txs))
	invalidSet := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if err := validate.Transaction(tx); err != nil {
			log.Debugf("invalid %s: %v", tx.Meta.SourcePath, err)
			invalidSet[tx.Meta.TxidHex] = true
		}
		loadOrder = append(loadOrder, tx.Meta.TxidHex)
	}
	log.Infof("validated: %d rejected on first pass", len(invalidSet))

	workingSet := make(map[string]*txrecord.Transaction, len(txs))
	for _, tx := range txs {
		workingSet[tx.Meta.TxidHex] = tx
	}

	validate.Sweep(workingSet, invalidSet)
	log.Infof("after cascade sweep: %d remain", len(workingSet))

	order := filterOrder(loadOrder, workingSet)

	mempool.LinkParents(workingSet)
	mempool.AggregatePackets(workingSet)
	log.Infof("linked parents and aggregated packet feerates")

	sorted := mining.Sort(workingSet, order)
	blockTxs := mining.Cut(sorted)
	log.Infof("selected %d of %d transactions for the block", len(blockTxs), len(sorted))

	coinbase, err := mining.AssembleCoinbase(blockTxs)
	if err != nil {
		return errors.Wrap(err, "assembling coinbase")
	}
	log.Infof("assembled coinbase %s", coinbase.TxidHex)

	header, err := mining.BuildHeader(blockTxs, coinbase, uint32(time.Now().Unix()), opts.PreviousHash)
	if err != nil {
		return errors.Wrap(err, "building header")
	}
	log.Infof("found valid proof-of-work header")

	if err := blockwriter.Write(opts.Output, header, coinbase.SerializedBytes, blockTxs); err != nil {
		return errors.Wrap(err, "writing output")
	}
	log.Infof("wrote block to %s", opts.Output)
	return nil
}

// filterOrder drops txids from order that Sweep already removed from
// workingSet, preserving the remaining load-time sequence for the sorter's
// tie-break.
func filterOrder(order []string, workingSet map[string]*txrecord.Transaction) []string {
	filtered := make([]string, 0, len(workingSet))
	for _, txid := range order {
		if _, ok := workingSet[txid]; ok {
			filtered = append(filtered, txid)
		}
	}
	return filtered
}
