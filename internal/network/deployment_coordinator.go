package network

import (
	"context"
	"sync"

	"github.com/lbf-network/rebalancer/pkg/types"
)

// DeploymentCoordinator produces a consistent Deployments snapshot, either by
// fetching two manifests in parallel (Mainnet/Testnet) or by returning a
// caller-provided static value (Localhost).
type DeploymentCoordinator struct {
	mode types.Mode

	pools  ManifestSource
	tokens ManifestSource

	static types.Deployments // used when mode == Localhost

	mu   sync.RWMutex
	snap types.Deployments
}

// NewManifestDeploymentCoordinator builds a coordinator backed by manifest
// sources for Mainnet/Testnet deployments.
func NewManifestDeploymentCoordinator(mode types.Mode, pools, tokens ManifestSource) *DeploymentCoordinator {
	return &DeploymentCoordinator{mode: mode, pools: pools, tokens: tokens}
}

// NewStaticDeploymentCoordinator builds a coordinator that always returns a
// fixed Deployments value, for Localhost mode.
func NewStaticDeploymentCoordinator(static types.Deployments) *DeploymentCoordinator {
	return &DeploymentCoordinator{mode: types.Localhost, static: static, snap: static}
}

// Refresh fetches both manifests in parallel; either failing fails the
// refresh with no partial update to the in-memory snapshot. The previous
// snapshot is retained on failure. For Localhost mode this is a no-op that
// always succeeds.
func (dc *DeploymentCoordinator) Refresh(ctx context.Context) error {
	if dc.mode == types.Localhost {
		dc.mu.Lock()
		dc.snap = dc.static
		dc.mu.Unlock()
		return nil
	}

	var (
		wg                     sync.WaitGroup
		poolEntries, tokEntries []ManifestEntry
		poolErr, tokErr        error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		poolEntries, poolErr = dc.pools.Fetch(ctx)
	}()
	go func() {
		defer wg.Done()
		tokEntries, tokErr = dc.tokens.Fetch(ctx)
	}()
	wg.Wait()

	if poolErr != nil {
		return types.Wrap(types.ErrManifestFetchFailed, poolErr, "pool manifest")
	}
	if tokErr != nil {
		return types.Wrap(types.ErrManifestFetchFailed, tokErr, "token manifest")
	}

	snap, err := parseManifest(poolEntries, tokEntries)
	if err != nil {
		return types.Wrap(types.ErrManifestParseFailed, err, "parse manifest")
	}

	dc.mu.Lock()
	dc.snap = snap
	dc.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current Deployments.
func (dc *DeploymentCoordinator) Snapshot() types.Deployments {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return dc.snap.Clone()
}
