package validate

import (
	"strings"
	"testing"

	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/txrecord"
	"github.com/stretchr/testify/require"
)

func TestClassifyInputKnownTypes(t *testing.T) {
	cases := map[string]txrecord.InputType{
		"v1_p2tr":   txrecord.InputP2TR,
		"v0_p2wpkh": txrecord.InputP2WPKH,
		"v0_p2wsh":  txrecord.InputP2WSH,
		"p2sh":      txrecord.InputP2SH,
		"p2pkh":     txrecord.InputP2PKH,
		"bogus":     txrecord.InputUnknown,
	}
	for raw, want := range cases {
		got, rawOut := ClassifyInput(raw)
		require.Equal(t, want, got)
		require.Equal(t, raw, rawOut)
	}
}

func TestValuesAndFeeRejectsEmptyLists(t *testing.T) {
	tx := &txrecord.Transaction{}
	err := ValuesAndFee(tx)
	require.Error(t, err)
	require.IsType(t, &Invalid{}, err)
}

func TestValuesAndFeeRejectsInflation(t *testing.T) {
	tx := &txrecord.Transaction{
		Inputs:  []txrecord.Input{{Prevout: txrecord.Output{Value: 10}}},
		Outputs: []txrecord.Output{{Value: 100}},
	}
	require.Error(t, ValuesAndFee(tx))
}

func TestValuesAndFeeRejectsMaxMoneyOverflow(t *testing.T) {
	tx := &txrecord.Transaction{
		Inputs:  []txrecord.Input{{Prevout: txrecord.Output{Value: MaxMoney + 1}}},
		Outputs: []txrecord.Output{{Value: 1}},
	}
	require.Error(t, ValuesAndFee(tx))
}

func TestValuesAndFeeSetsFee(t *testing.T) {
	tx := &txrecord.Transaction{
		Inputs:  []txrecord.Input{{Prevout: txrecord.Output{Value: 1100}}},
		Outputs: []txrecord.Output{{Value: 1000}},
	}
	require.NoError(t, ValuesAndFee(tx))
	require.Equal(t, uint64(100), tx.Meta.Fee)
}

func TestFeerateRejectsBelowOne(t *testing.T) {
	tx := &txrecord.Transaction{Meta: txrecord.Meta{Fee: 1, Weight: 400}}
	require.Error(t, Feerate(tx))
}

func TestFeerateAcceptsAtLeastOne(t *testing.T) {
	tx := &txrecord.Transaction{Meta: txrecord.Meta{Fee: 100, Weight: 400}}
	require.NoError(t, Feerate(tx))
}

func TestSweepCascadesThroughParents(t *testing.T) {
	working := map[string]*txrecord.Transaction{
		"child": {Inputs: []txrecord.Input{{PreviousTxidHex: "badparent"}}},
		"other": {Inputs: []txrecord.Input{{PreviousTxidHex: "unrelated"}}},
	}
	invalid := map[string]bool{"badparent": true}

	Sweep(working, invalid)

	require.NotContains(t, working, "child")
	require.Contains(t, working, "other")
	require.True(t, invalid["child"])
}

func TestIdentifiersRejectsFilenameMismatch(t *testing.T) {
	tx := &txrecord.Transaction{
		Version: 1,
		Inputs: []txrecord.Input{
			{PreviousTxidHex: strings.Repeat("00", 32), Sequence: 0xFFFFFFFF},
		},
		Outputs: []txrecord.Output{{Value: 1, ScriptPubkey: []byte{0xAA}}},
		Meta:    txrecord.Meta{SourcePath: "/tmp/not-the-right-hash.json"},
	}
	err := Identifiers(tx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Txid does not represent filename")
}
