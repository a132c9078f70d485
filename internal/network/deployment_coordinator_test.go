package network

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbf-network/rebalancer/pkg/types"
)

type fakeManifestSource struct {
	entries []ManifestEntry
	err     error
}

func (f fakeManifestSource) Fetch(ctx context.Context) ([]ManifestEntry, error) {
	return f.entries, f.err
}

func TestDeploymentCoordinator_RefreshSucceeds(t *testing.T) {
	pools := fakeManifestSource{entries: []ManifestEntry{
		{Key: "LBF_PARENT_POOL_A", Value: "0x1111111111111111111111111111111111111111", Network: "A"},
	}}
	tokens := fakeManifestSource{entries: []ManifestEntry{
		{Key: "USDC_A", Value: "0x2222222222222222222222222222222222222222", Network: "A"},
	}}
	dc := NewManifestDeploymentCoordinator(types.Mainnet, pools, tokens)

	require.NoError(t, dc.Refresh(context.Background()))
	snap := dc.Snapshot()
	assert.Equal(t, "A", snap.ParentPool.Network)
}

// Either manifest failing fails the whole refresh; the previous snapshot
// is retained rather than partially overwritten.
func TestDeploymentCoordinator_PartialFailureRetainsPreviousSnapshot(t *testing.T) {
	pools := fakeManifestSource{entries: []ManifestEntry{
		{Key: "LBF_PARENT_POOL_A", Value: "0x1111111111111111111111111111111111111111", Network: "A"},
	}}
	tokens := fakeManifestSource{entries: []ManifestEntry{
		{Key: "USDC_A", Value: "0x2222222222222222222222222222222222222222", Network: "A"},
	}}
	dc := NewManifestDeploymentCoordinator(types.Mainnet, pools, tokens)
	require.NoError(t, dc.Refresh(context.Background()))
	before := dc.Snapshot()

	dc.pools = fakeManifestSource{err: errors.New("rpc down")}
	err := dc.Refresh(context.Background())
	assert.Error(t, err)
	assert.True(t, types.Is(err, types.ErrManifestFetchFailed))

	after := dc.Snapshot()
	assert.Equal(t, before.ParentPool, after.ParentPool)
}

func TestDeploymentCoordinator_Localhost(t *testing.T) {
	static := types.Deployments{
		ParentPool: types.ParentPool{Network: "local", Address: common.HexToAddress("0x1")},
		Pools:      map[string]common.Address{},
		USDC:       map[string]common.Address{},
		IOU:        map[string]common.Address{},
	}
	dc := NewStaticDeploymentCoordinator(static)
	require.NoError(t, dc.Refresh(context.Background()))
	assert.Equal(t, "local", dc.Snapshot().ParentPool.Network)
}
