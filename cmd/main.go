package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/lbf-network/rebalancer/configs"
	"github.com/lbf-network/rebalancer/internal/balance"
	"github.com/lbf-network/rebalancer/internal/chain"
	"github.com/lbf-network/rebalancer/internal/core"
	"github.com/lbf-network/rebalancer/internal/db"
	"github.com/lbf-network/rebalancer/internal/network"
	"github.com/lbf-network/rebalancer/internal/pool"
	"github.com/lbf-network/rebalancer/internal/rebalance"
	"github.com/lbf-network/rebalancer/internal/signer"
	"github.com/lbf-network/rebalancer/pkg/types"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("INFO: no .env file loaded: %v\n", err)
	}

	conf, err := configs.LoadConfig("configs/config.yml")
	if err != nil {
		fatal("load config", err)
	}
	if err := conf.Validate(); err != nil {
		fatal("invalid config", err)
	}

	mode, err := types.ParseMode(conf.NetworkMode)
	if err != nil {
		fatal("parse network mode", err)
	}

	privateKey := os.Getenv("OPERATOR_PRIVATE_KEY")
	if privateKey == "" {
		fatal("load signer", fmt.Errorf("OPERATOR_PRIVATE_KEY not set"))
	}
	keySigner, err := signer.NewSingleKeySigner(privateKey)
	if err != nil {
		fatal("load signer", err)
	}
	signerRegistry := signer.NewRegistry(keySigner)

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		envOr("DB_USER", "root"), envOr("DB_PASSWORD", ""), envOr("DB_HOST", "127.0.0.1"),
		envOr("DB_PORT", "3306"), envOr("DB_NAME", "lbf_rebalancer"))
	recorder, err := db.NewMySQLExecutionRecorder(dsn)
	if err != nil {
		fatal("connect execution recorder", err)
	}
	defer recorder.Close()

	registry := chain.NewRegistry(signerRegistry)

	deploymentCoordinator := newDeploymentCoordinator(mode, conf)
	coordinator := network.NewCoordinator(
		network.NewHTTPNetworkRegistry(conf.NetworkRegistryURL),
		deploymentCoordinator,
		network.Config{
			UpdateInterval: conf.NetworkUpdateInterval(),
			Whitelist:      conf.WhitelistSet(),
			Blacklist:      conf.IgnoredSet(),
			Mode:           mode,
		},
		nil,
	)

	operator := common.HexToAddress(conf.OperatorAddress)
	tracker := balance.NewTracker(operator, registry, coordinator.Deployments, conf.BalanceUpdateInterval(),
		conf.MinAllowanceUSDCBig(), conf.MinAllowanceIOUBig())

	observer := pool.NewObserver(registry, coordinator.Deployments, conf.RebalancerCheckInterval(), 256)

	rebalancerCfg := rebalance.Config{
		DeficitThreshold:    conf.DeficitThresholdBig(),
		SurplusThreshold:    conf.SurplusThresholdBig(),
		NetTotalAllowance:   conf.NetTotalAllowanceBig(),
		MinScore:            conf.OpportunityScorerMinScore,
		USDCDecimals:        conf.USDCDecimals,
		GasLimitFillDeficit: conf.GasLimitFillDeficit,
		GasLimitTakeSurplus: conf.GasLimitTakeSurplus,
		GasLimitBridgeIOU:   conf.GasLimitBridgeIOU,
		DryRun:              conf.DryRun,
	}
	executor := rebalance.NewExecutor(registry, tracker.Allowances(), tracker, registry, coordinator.Deployments, recorder, rebalancerCfg)

	engine := core.New(coordinator, tracker, observer, executor, coordinator.Deployments, rebalancerCfg, conf.RebalancerCheckInterval())

	coordinator.RegisterListener("chain-registry", registry)
	coordinator.RegisterListener("balance-tracker", tracker)
	coordinator.RegisterListener("pool-observer", observer)
	coordinator.RegisterListener("core", engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := coordinator.Start(ctx); err != nil {
		fatal("initial network refresh", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); coordinator.Run(ctx) }()
	go func() { defer wg.Done(); engine.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println("INFO: shutting down")
	cancel()
	wg.Wait()
	fmt.Println("INFO: shutdown complete")
}

func newDeploymentCoordinator(mode types.Mode, conf *configs.Config) *network.DeploymentCoordinator {
	if mode == types.Localhost {
		return network.NewStaticDeploymentCoordinator(types.Deployments{
			Pools: map[string]common.Address{},
			USDC:  map[string]common.Address{},
			IOU:   map[string]common.Address{},
		})
	}
	poolURL, tokenURL := conf.MainnetPoolManifestURL, conf.MainnetTokenManifestURL
	if mode == types.Testnet {
		poolURL, tokenURL = conf.TestnetPoolManifestURL, conf.TestnetTokenManifestURL
	}
	return network.NewManifestDeploymentCoordinator(mode,
		network.NewHTTPManifestSource(poolURL),
		network.NewHTTPManifestSource(tokenURL))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(stage string, err error) {
	fmt.Printf("FATAL: %s: %v\n", stage, err)
	os.Exit(1)
}
