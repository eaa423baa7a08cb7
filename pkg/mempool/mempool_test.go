package mempool

import (
	"testing"

	"github.com/f321x/bitcoin-block-builder/pkg/bitcoin/txrecord"
	"github.com/stretchr/testify/require"
)

func TestLinkParentsOnlyLinksInWorkingSet(t *testing.T) {
	working := map[string]*txrecord.Transaction{
		"child": {
			Inputs: []txrecord.Input{
				{PreviousTxidHex: "parent"},
				{PreviousTxidHex: "outside-mempool"},
			},
		},
		"parent": {},
	}
	LinkParents(working)

	require.Equal(t, []string{"parent"}, working["child"].Meta.Parents)
	require.Nil(t, working["parent"].Meta.Parents)
}

func TestAggregatePacketsSumsAncestors(t *testing.T) {
	working := map[string]*txrecord.Transaction{
		"grandparent": {Meta: txrecord.Meta{Fee: 100, Weight: 400}},
		"parent":      {Meta: txrecord.Meta{Fee: 200, Weight: 400, Parents: []string{"grandparent"}}},
		"child":       {Meta: txrecord.Meta{Fee: 300, Weight: 400, Parents: []string{"parent"}}},
	}
	AggregatePackets(working)

	require.Equal(t, uint64(100), working["grandparent"].Meta.Packet.Fee)
	require.Equal(t, uint64(300), working["parent"].Meta.Packet.Fee)
	require.Equal(t, uint64(600), working["child"].Meta.Packet.Fee)
	require.Equal(t, uint64(1200), working["child"].Meta.Packet.Weight)
}

func TestAggregatePacketsDoubleCountsDiamondAncestor(t *testing.T) {
	working := map[string]*txrecord.Transaction{
		"root":   {Meta: txrecord.Meta{Fee: 10, Weight: 100}},
		"left":   {Meta: txrecord.Meta{Fee: 1, Weight: 10, Parents: []string{"root"}}},
		"right":  {Meta: txrecord.Meta{Fee: 1, Weight: 10, Parents: []string{"root"}}},
		"child":  {Meta: txrecord.Meta{Fee: 1, Weight: 10, Parents: []string{"left", "right"}}},
	}
	AggregatePackets(working)

	// root is reachable via both left and right, so it is summed twice: this
	// is the deliberately reproduced diamond-ancestor double count.
	require.Equal(t, uint64(1+1+1+10+10), working["child"].Meta.Packet.Fee)
	require.Equal(t, uint64(10+10+10+100+100), working["child"].Meta.Packet.Weight)
}
