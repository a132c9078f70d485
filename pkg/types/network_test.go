package types

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	cases := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"mainnet", Mainnet, false},
		{"testnet", Testnet, false},
		{"localhost", Localhost, false},
		{"bogus", 0, true},
	}
	for _, c := range cases {
		got, err := ParseMode(c.in)
		if c.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestDeploymentsPoolAddress(t *testing.T) {
	parent := common.HexToAddress("0x1111111111111111111111111111111111111111")
	child := common.HexToAddress("0x2222222222222222222222222222222222222222")
	d := Deployments{
		Pools:      map[string]common.Address{"chainB": child},
		ParentPool: ParentPool{Network: "chainA", Address: parent},
	}

	addr, ok := d.PoolAddress("chainA")
	require.True(t, ok)
	assert.Equal(t, parent, addr)

	addr, ok = d.PoolAddress("chainB")
	require.True(t, ok)
	assert.Equal(t, child, addr)

	_, ok = d.PoolAddress("chainC")
	assert.False(t, ok)
}

func TestDeploymentsCloneIsIndependent(t *testing.T) {
	original := Deployments{
		Pools: map[string]common.Address{"chainA": common.HexToAddress("0x01")},
		USDC:  map[string]common.Address{"chainA": common.HexToAddress("0x02")},
		IOU:   map[string]common.Address{"chainA": common.HexToAddress("0x03")},
	}
	clone := original.Clone()
	clone.Pools["chainB"] = common.HexToAddress("0x04")

	_, ok := original.Pools["chainB"]
	assert.False(t, ok, "mutating the clone must not affect the original")
}
