package network

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbf-network/rebalancer/pkg/types"
)

func TestParseManifest_Success(t *testing.T) {
	pools := []ManifestEntry{
		{Key: "LBF_PARENT_POOL_chainA", Value: "0x1111111111111111111111111111111111111111", Network: "chainA"},
		{Key: "LBF_CHILD_POOL_chainB", Value: "0x2222222222222222222222222222222222222222", Network: "chainB"},
	}
	tokens := []ManifestEntry{
		{Key: "USDC_chainA", Value: "0x3333333333333333333333333333333333333333", Network: "chainA"},
		{Key: "IOU_chainB", Value: "0x4444444444444444444444444444444444444444", Network: "chainB"},
	}

	d, err := parseManifest(pools, tokens)
	require.NoError(t, err)

	assert.Equal(t, "chainA", d.ParentPool.Network)
	assert.Equal(t, common.HexToAddress("0x1111111111111111111111111111111111111111"), d.ParentPool.Address)
	assert.Equal(t, common.HexToAddress("0x2222222222222222222222222222222222222222"), d.Pools["chainB"])
	assert.Equal(t, common.HexToAddress("0x3333333333333333333333333333333333333333"), d.USDC["chainA"])
	assert.Equal(t, common.HexToAddress("0x4444444444444444444444444444444444444444"), d.IOU["chainB"])
}

func TestParseManifest_DuplicateParentPool(t *testing.T) {
	pools := []ManifestEntry{
		{Key: "LBF_PARENT_POOL_chainA", Value: "0x1111111111111111111111111111111111111111", Network: "chainA"},
		{Key: "LBF_PARENT_POOL_chainB", Value: "0x2222222222222222222222222222222222222222", Network: "chainB"},
	}
	_, err := parseManifest(pools, nil)
	assert.True(t, types.Is(err, types.ErrDuplicateParentPool))
}

func TestParseManifest_MissingParentPool(t *testing.T) {
	pools := []ManifestEntry{
		{Key: "LBF_CHILD_POOL_chainB", Value: "0x2222222222222222222222222222222222222222", Network: "chainB"},
	}
	_, err := parseManifest(pools, nil)
	assert.True(t, types.Is(err, types.ErrMissingParentPool))
}
