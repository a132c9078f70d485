// Package network implements the deployment and network coordinators: the
// components that decide which chains are in scope and which contract
// addresses apply. Both hold a mutex-guarded current snapshot. The network
// Coordinator also lets callers register listeners, polls on a ticker, and
// diffs-then-notifies on change; the DeploymentCoordinator refreshes only
// when the Coordinator asks it to and has no listeners of its own.
package network

import (
	"context"
	"regexp"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lbf-network/rebalancer/pkg/types"
)

// ManifestEntry is one KEY=VALUE line from a deployment manifest, already
// resolved to the network it names.
type ManifestEntry struct {
	Key     string
	Value   string
	Network string
}

// ManifestSource fetches the raw key/value/network triples for one manifest
// (pools or tokens). This interface is what the core depends on;
// HTTPManifestSource is the concrete implementation backing it.
type ManifestSource interface {
	Fetch(ctx context.Context) ([]ManifestEntry, error)
}

// manifestPatterns are the recognized manifest KEY regexes. The first
// capture group yields the network name.
var manifestPatterns = struct {
	childPool  *regexp.Regexp
	parentPool *regexp.Regexp
	usdc       *regexp.Regexp
	iou        *regexp.Regexp
}{
	childPool:  regexp.MustCompile(`LBF_CHILD_POOL_(.+)`),
	parentPool: regexp.MustCompile(`LBF_PARENT_POOL_(.+)`),
	usdc:       regexp.MustCompile(`USDC_(.+)`),
	iou:        regexp.MustCompile(`IOU_(.+)`),
}

// parseManifest applies the recognized patterns to pool-manifest and
// token-manifest entries, building a Deployments snapshot. Key containing
// PARENT_POOL more than once is a DuplicateParentPool error; no parent pool
// found is a MissingParentPool error.
func parseManifest(poolEntries, tokenEntries []ManifestEntry) (types.Deployments, error) {
	d := types.Deployments{
		Pools: make(map[string]common.Address),
		USDC:  make(map[string]common.Address),
		IOU:   make(map[string]common.Address),
	}

	haveParent := false
	for _, e := range poolEntries {
		if m := manifestPatterns.parentPool.FindStringSubmatch(e.Key); m != nil {
			if haveParent {
				return types.Deployments{}, types.Errf(types.ErrDuplicateParentPool, "second parent pool key %q", e.Key)
			}
			haveParent = true
			d.ParentPool = types.ParentPool{Network: e.Network, Address: common.HexToAddress(e.Value)}
			continue
		}
		if m := manifestPatterns.childPool.FindStringSubmatch(e.Key); m != nil {
			d.Pools[e.Network] = common.HexToAddress(e.Value)
			continue
		}
	}

	for _, e := range tokenEntries {
		if manifestPatterns.usdc.MatchString(e.Key) {
			d.USDC[e.Network] = common.HexToAddress(e.Value)
			continue
		}
		if manifestPatterns.iou.MatchString(e.Key) {
			d.IOU[e.Network] = common.HexToAddress(e.Value)
			continue
		}
	}

	if !haveParent {
		return types.Deployments{}, types.Errf(types.ErrMissingParentPool, "no LBF_PARENT_POOL_* key found")
	}

	return d, nil
}
