package network

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/lbf-network/rebalancer/pkg/types"
)

// HTTPManifestSource fetches a manifest body over HTTP and parses it as
// UTF-8 text, one KEY=VALUE assignment per line. The network name for each
// entry is the first capture group of the recognized pattern the key
// matches; it is resolved here so the fetched entries already carry Network,
// which parseManifest then uses as-is, matching what ManifestSource promises
// its caller.
// Retries, backoff and auth are the responsibility of a fuller client and
// are deliberately not implemented here.
type HTTPManifestSource struct {
	URL        string
	httpClient *http.Client
}

// NewHTTPManifestSource builds a source against url using http.DefaultClient.
func NewHTTPManifestSource(url string) *HTTPManifestSource {
	return &HTTPManifestSource{URL: url, httpClient: http.DefaultClient}
}

func (s *HTTPManifestSource) Fetch(ctx context.Context) ([]ManifestEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, types.Wrap(types.ErrManifestFetchFailed, err, "build request for %s", s.URL)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, types.Wrap(types.ErrManifestFetchFailed, err, "fetch %s", s.URL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, types.Errf(types.ErrManifestFetchFailed, "fetch %s: status %d", s.URL, resp.StatusCode)
	}

	var entries []ManifestEntry
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		network, ok := networkFromKey(key)
		if !ok {
			continue
		}
		entries = append(entries, ManifestEntry{Key: key, Value: value, Network: network})
	}
	if err := scanner.Err(); err != nil {
		return nil, types.Wrap(types.ErrManifestFetchFailed, err, "read body from %s", s.URL)
	}
	return entries, nil
}

// networkFromKey applies the four recognized manifest patterns and returns
// the first capture group as the network name.
func networkFromKey(key string) (string, bool) {
	for _, pattern := range []*regexp.Regexp{
		manifestPatterns.childPool,
		manifestPatterns.parentPool,
		manifestPatterns.usdc,
		manifestPatterns.iou,
	} {
		if m := pattern.FindStringSubmatch(key); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// HTTPNetworkRegistry fetches the candidate network list for a mode from a
// JSON endpoint returning an array of Network-shaped objects. This is the
// thin external-collaborator adapter the core needs to exist against;
// transport fallback and retry remain out of scope here.
type HTTPNetworkRegistry struct {
	URL        string
	httpClient *http.Client
}

// NewHTTPNetworkRegistry builds a registry against url.
func NewHTTPNetworkRegistry(url string) *HTTPNetworkRegistry {
	return &HTTPNetworkRegistry{URL: url, httpClient: http.DefaultClient}
}

type networkDTO struct {
	Name     string   `json:"name"`
	ChainID  uint64   `json:"chain_id"`
	Selector string   `json:"selector"`
	Mode     string   `json:"mode"`
	RPCURLs  []string `json:"rpc_urls"`
}

func (r *HTTPNetworkRegistry) Networks(ctx context.Context, mode types.Mode) ([]types.Network, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL+"?mode="+mode.String(), nil)
	if err != nil {
		return nil, types.Wrap(types.ErrConfigInvalid, err, "build registry request for %s", r.URL)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, types.Wrap(types.ErrManifestFetchFailed, err, "fetch registry %s", r.URL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, types.Errf(types.ErrManifestFetchFailed, "fetch registry %s: status %d", r.URL, resp.StatusCode)
	}

	var dtos []networkDTO
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		return nil, types.Wrap(types.ErrManifestFetchFailed, err, "decode registry body from %s", r.URL)
	}

	out := make([]types.Network, 0, len(dtos))
	for _, d := range dtos {
		parsedMode, err := types.ParseMode(d.Mode)
		if err != nil {
			continue
		}
		out = append(out, types.Network{Name: d.Name, ChainID: d.ChainID, Selector: d.Selector, Mode: parsedMode, RPCURLs: d.RPCURLs})
	}
	return out, nil
}
