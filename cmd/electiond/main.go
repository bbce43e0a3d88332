package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"github.com/vocdoni/electiond/api"
	"github.com/vocdoni/electiond/auth"
	"github.com/vocdoni/electiond/config"
	"github.com/vocdoni/electiond/eligibility"
	"github.com/vocdoni/electiond/ledger"
	"github.com/vocdoni/electiond/log"
	"github.com/vocdoni/electiond/metrics"
	"github.com/vocdoni/electiond/results"
	"github.com/vocdoni/electiond/service"
	"github.com/vocdoni/electiond/storage"
	"github.com/vocdoni/electiond/voting"
	"github.com/vocdoni/electiond/web3"
)

// requestTimeoutMargin is added to the confirmation timeout to bound a
// vote request end to end.
const requestTimeoutMargin = 30 * time.Second

func main() {
	conf, err := config.Load(config.NewFlagSet("electiond"), os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log.Init(conf.Log.Level, conf.Log.Output, nil)
	if err := conf.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := run(ctx, conf); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, conf *config.Config) error {
	stg, err := storage.Open(conf.DB.Type, conf.DataDir, conf.Redis.URL)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer stg.Close()
	log.Infow("storage ready", "type", conf.DB.Type)

	contracts, err := web3.NewContracts(conf.Web3.RPC[0])
	if err != nil {
		return fmt.Errorf("connect to ledger: %w", err)
	}
	defer contracts.Close()
	for _, rpc := range conf.Web3.RPC[1:] {
		if err := contracts.AddWeb3Endpoint(rpc); err != nil {
			log.Warnw("failed to add endpoint", "rpc", rpc, "error", err.Error())
		}
	}
	if err := contracts.SetAccountPrivateKey(conf.Web3.PrivKey); err != nil {
		return err
	}
	log.Infow("ledger client ready", "chainId", contracts.ChainID, "account", contracts.AccountAddress().Hex())

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.InitMetrics(registry)

	gate := eligibility.New(stg)
	locks := voting.NewLockManager(stg, m)
	coordinator := voting.NewCoordinator(stg, gate, locks,
		ledger.NewSubmitter(contracts, conf.Ledger.ConfirmTimeout, m), m)
	aggregator := results.New(contracts, stg, gate, results.Config{
		ReadAttempts:  conf.Ledger.ReadAttempts,
		ReadBaseDelay: conf.Ledger.ReadBaseDelay,
		ReadPace:      conf.Ledger.ReadPace,
	}, m)

	apiService := service.NewAPI(&api.APIConfig{
		Storage:        stg,
		Voting:         coordinator,
		Results:        aggregator,
		Auth:           auth.NewSessionStore(stg),
		Eligibility:    gate,
		Metrics:        registry,
		RequestTimeout: conf.Ledger.ConfirmTimeout + requestTimeoutMargin,
	}, conf.Listen.Host, conf.Listen.Port)
	if err := apiService.Start(ctx); err != nil {
		return err
	}
	defer apiService.Stop()

	janitor := service.NewLockJanitor(locks, conf.Locks.MaxAge, conf.Locks.SweepInterval)
	if err := janitor.Start(ctx); err != nil {
		return err
	}
	defer janitor.Stop()

	log.Infow("electiond started", "address", apiService.Addr().String())
	<-ctx.Done()
	log.Info("shutting down")
	return nil
}
