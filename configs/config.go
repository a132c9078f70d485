// Package configs loads and validates the rebalancer's YAML configuration.
package configs

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/lbf-network/rebalancer/pkg/types"
)

// Config is the entire YAML configuration surface, loaded from config.yml.
// .env secrets (signer key material, DB credentials) are loaded separately
// via godotenv at process bootstrap, since key handling lives outside this
// package.
type Config struct {
	NetworkMode            string   `yaml:"network_mode"`
	OperatorAddress        string   `yaml:"operator_address"`
	IgnoredNetworkIDs      []uint64 `yaml:"ignored_network_ids"`
	WhitelistedNetworkIDs  []uint64 `yaml:"whitelisted_network_ids"`

	NetworkUpdateIntervalMs   int64 `yaml:"network_update_interval_ms"`
	BalanceUpdateIntervalMs   int64 `yaml:"balance_update_interval_ms"`
	RebalancerCheckIntervalMs int64 `yaml:"rebalancer_check_interval_ms"`

	DeficitThreshold  string `yaml:"deficit_threshold"`
	SurplusThreshold  string `yaml:"surplus_threshold"`
	NetTotalAllowance string `yaml:"net_total_allowance"`

	MinAllowanceUSDC string `yaml:"min_allowance_usdc"`
	MinAllowanceIOU  string `yaml:"min_allowance_iou"`

	OpportunityScorerMinScore float64 `yaml:"opportunity_scorer_min_score"`

	USDCDecimals int `yaml:"usdc_decimals"`

	GasLimitFillDeficit uint64 `yaml:"gas_limit_fill_deficit"`
	GasLimitTakeSurplus uint64 `yaml:"gas_limit_take_surplus"`
	GasLimitBridgeIOU   uint64 `yaml:"gas_limit_bridge_iou"`

	DryRun bool `yaml:"dry_run"`

	MainnetPoolManifestURL  string `yaml:"mainnet_pool_manifest_url"`
	MainnetTokenManifestURL string `yaml:"mainnet_token_manifest_url"`
	TestnetPoolManifestURL  string `yaml:"testnet_pool_manifest_url"`
	TestnetTokenManifestURL string `yaml:"testnet_token_manifest_url"`
	NetworkRegistryURL      string `yaml:"network_registry_url"`
}

// LoadConfig reads and parses config.yml into a Config struct.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return &config, nil
}

// Validate checks structural well-formedness: thresholds parse as
// non-negative u256, intervals are positive, mode and operator address are
// well-formed. It does not check cross-field or environmental preconditions
// (e.g. manifest reachability) — those surface as runtime errors instead.
func (c *Config) Validate() error {
	if _, err := types.ParseMode(c.NetworkMode); err != nil {
		return fmt.Errorf("invalid network_mode: %w", err)
	}
	if !common.IsHexAddress(c.OperatorAddress) {
		return fmt.Errorf("invalid operator_address %q", c.OperatorAddress)
	}
	for _, field := range []struct {
		name, value string
	}{
		{"deficit_threshold", c.DeficitThreshold},
		{"surplus_threshold", c.SurplusThreshold},
		{"net_total_allowance", c.NetTotalAllowance},
		{"min_allowance_usdc", c.MinAllowanceUSDC},
		{"min_allowance_iou", c.MinAllowanceIOU},
	} {
		n, ok := new(big.Int).SetString(field.value, 10)
		if !ok {
			return fmt.Errorf("%s: not a valid u256 literal: %q", field.name, field.value)
		}
		if n.Sign() < 0 {
			return fmt.Errorf("%s: must be non-negative, got %s", field.name, n)
		}
	}
	if c.NetworkUpdateIntervalMs <= 0 {
		return fmt.Errorf("network_update_interval_ms must be positive")
	}
	if c.BalanceUpdateIntervalMs <= 0 {
		return fmt.Errorf("balance_update_interval_ms must be positive")
	}
	if c.RebalancerCheckIntervalMs <= 0 {
		return fmt.Errorf("rebalancer_check_interval_ms must be positive")
	}
	if c.USDCDecimals <= 0 {
		return fmt.Errorf("usdc_decimals must be positive")
	}
	if c.OpportunityScorerMinScore < 0 {
		return fmt.Errorf("opportunity_scorer_min_score must be non-negative")
	}
	return nil
}

func (c *Config) bigOrZero(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return n
}

// NetworkUpdateInterval returns the coordinator's poll interval.
func (c *Config) NetworkUpdateInterval() time.Duration {
	return time.Duration(c.NetworkUpdateIntervalMs) * time.Millisecond
}

// BalanceUpdateInterval returns the balance tracker's poll interval.
func (c *Config) BalanceUpdateInterval() time.Duration {
	return time.Duration(c.BalanceUpdateIntervalMs) * time.Millisecond
}

// RebalancerCheckInterval returns the core loop's fallback tick interval.
func (c *Config) RebalancerCheckInterval() time.Duration {
	return time.Duration(c.RebalancerCheckIntervalMs) * time.Millisecond
}

// IgnoredSet returns IgnoredNetworkIDs as a set, for NetworkCoordinator's
// blacklist.
func (c *Config) IgnoredSet() map[uint64]struct{} {
	out := make(map[uint64]struct{}, len(c.IgnoredNetworkIDs))
	for _, id := range c.IgnoredNetworkIDs {
		out[id] = struct{}{}
	}
	return out
}

// WhitelistSet returns WhitelistedNetworkIDs as a set, for
// NetworkCoordinator's whitelist (empty means no filter).
func (c *Config) WhitelistSet() map[uint64]struct{} {
	out := make(map[uint64]struct{}, len(c.WhitelistedNetworkIDs))
	for _, id := range c.WhitelistedNetworkIDs {
		out[id] = struct{}{}
	}
	return out
}

// DeficitThresholdBig parses DeficitThreshold, defaulting to zero on a
// malformed value (Validate should already have rejected it by this point).
func (c *Config) DeficitThresholdBig() *big.Int { return c.bigOrZero(c.DeficitThreshold) }

// SurplusThresholdBig parses SurplusThreshold.
func (c *Config) SurplusThresholdBig() *big.Int { return c.bigOrZero(c.SurplusThreshold) }

// NetTotalAllowanceBig parses NetTotalAllowance.
func (c *Config) NetTotalAllowanceBig() *big.Int { return c.bigOrZero(c.NetTotalAllowance) }

// MinAllowanceUSDCBig parses MinAllowanceUSDC.
func (c *Config) MinAllowanceUSDCBig() *big.Int { return c.bigOrZero(c.MinAllowanceUSDC) }

// MinAllowanceIOUBig parses MinAllowanceIOU.
func (c *Config) MinAllowanceIOUBig() *big.Int { return c.bigOrZero(c.MinAllowanceIOU) }
