package script

import (
	"strings"
	"testing"

	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/txrecord"
	"github.com/stretchr/testify/require"
)

func dummyTx() *txrecord.Transaction {
	return &txrecord.Transaction{
		Version:  1,
		Locktime: 0,
		Inputs: []txrecord.Input{
			{PreviousTxidHex: strings.Repeat("00", 32), Sequence: 0xFFFFFFFF},
		},
		Outputs: []txrecord.Output{
			{Value: 1000, ScriptPubkey: []byte{0xAA}},
		},
	}
}

func TestEvaluatePushAndEqual(t *testing.T) {
	// OP_PUSHBYTES_1 0x01, OP_PUSHBYTES_1 0x01, OP_EQUAL -> non-empty top: valid.
	s := []byte{0x01, 0x01, 0x01, 0x01, opEqual}
	require.NoError(t, Evaluate(s, dummyTx(), 0))
}

func TestEvaluateFailsOnUnequal(t *testing.T) {
	s := []byte{0x01, 0x01, 0x01, 0x02, opEqual}
	require.Error(t, Evaluate(s, dummyTx(), 0))
}

func TestEvaluateDupDropSize(t *testing.T) {
	s := []byte{0x02, 0xAA, 0xBB, opDup, opDrop, opSize}
	require.NoError(t, Evaluate(s, dummyTx(), 0))
}

func TestEvaluateUnsupportedOpcodeFails(t *testing.T) {
	s := []byte{0xFF}
	require.Error(t, Evaluate(s, dummyTx(), 0))
}

func TestEvaluateEmptyScriptFails(t *testing.T) {
	require.Error(t, Evaluate(nil, dummyTx(), 0))
}

func TestOp1NegateAndPushnum(t *testing.T) {
	// OP_1NEGATE pushes [0xff]; OP_PUSHBYTES_1 0xff; OP_EQUAL -> [1].
	require.NoError(t, Evaluate([]byte{op1Negate, 0x01, 0xff, opEqual}, dummyTx(), 0))
	// OP_16 pushes [0x10]; OP_PUSHBYTES_1 0x10; OP_EQUAL -> [1].
	require.NoError(t, Evaluate([]byte{op16, 0x01, 0x10, opEqual}, dummyTx(), 0))
}

func TestOpGreaterthan(t *testing.T) {
	var st stack
	st.push([]byte{0x01}) // a = 1
	st.push([]byte{0x02}) // b = 2
	require.NoError(t, opGreaterthanImpl(&st))
	top, err := st.pop()
	require.NoError(t, err)
	require.Empty(t, top) // 1 > 2 is false

	st = nil
	st.push([]byte{0x05})
	st.push([]byte{0x02})
	require.NoError(t, opGreaterthanImpl(&st))
	top, err = st.pop()
	require.NoError(t, err)
	require.Equal(t, []byte{1}, top) // 5 > 2 is true
}

func TestOpChecklocktimeverifyRejectsMixedTypes(t *testing.T) {
	tx := dummyTx()
	tx.Locktime = 600_000_000 // unix-time range
	var st stack
	st.push([]byte{0x64}) // 100, block-height range
	err := opChecklocktimeverifyImpl(&st, tx, 0)
	require.Error(t, err)
}

func TestOpChecksequenceverifyRequiresVersion2(t *testing.T) {
	tx := dummyTx()
	tx.Version = 1
	tx.Inputs[0].Sequence = 5
	var st stack
	st.push([]byte{0x02})
	err := opChecksequenceverifyImpl(&st, tx, 0)
	require.Error(t, err)
}
