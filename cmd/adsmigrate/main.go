// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// adsmigrate imports a legacy rewards state file into the transaction ledger.
// It runs once per ledger; later runs are refused.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/luxfi/adengine/internal/stores"
	"github.com/luxfi/adengine/pkg/clock"
	"github.com/luxfi/adengine/pkg/config"
	"github.com/luxfi/adengine/pkg/ledger"
	"github.com/luxfi/adengine/pkg/log"
	"github.com/luxfi/adengine/pkg/migration"
)

func main() {
	flags := pflag.NewFlagSet("adsmigrate", pflag.ExitOnError)
	configPath := flags.String("config", "", "Path to the adsd YAML config (storage section is used)")
	statePath := flags.String("legacy-state", "", "Path to the legacy rewards state JSON")
	dryRun := flags.Bool("dry-run", false, "Report what would be imported without writing")
	_ = flags.Parse(os.Args[1:])

	if *statePath == "" {
		fmt.Fprintln(os.Stderr, "Error: --legacy-state is required")
		os.Exit(1)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
			os.Exit(1)
		}
	}

	logger := log.NewWithLevel(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *statePath, *dryRun, logger); err != nil {
		logger.Error("migration failed", log.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, statePath string, dryRun bool, logger log.Logger) error {
	f, err := os.Open(statePath)
	if err != nil {
		return err
	}
	state, err := migration.ParseLegacyState(f, logger)
	_ = f.Close()
	if err != nil {
		return err
	}

	clk := clock.Real()
	if dryRun {
		now := clk.Now().UTC()
		logger.Info("dry run",
			log.Int("this_month", len(migration.GetTransactionsForThisMonth(state.Transactions, now))),
			log.String("unredeemed_previous", migration.BuildUnredeemedTransactionForPreviousMonths(
				migration.GetTransactionsForPreviousMonths(state.Transactions, now), now).Value.String()),
			log.String("redeemed_last_month", migration.BuildRedeemedTransactionForLastMonth(state.Payments, now).Value.String()))
		return nil
	}

	backends, err := stores.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() { _ = backends.Close() }()

	l := ledger.New(backends.Ledger, clk, nil, logger)
	defer l.Close()

	result, err := migration.NewMigrator(l, backends.State, clk, logger).Migrate(ctx, state)
	if errors.Is(err, migration.ErrAlreadyMigrated) {
		logger.Info("legacy state already migrated, nothing to do")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("imported %d transactions from this month\n", result.ThisMonth)
	if tx := result.UnredeemedPrevious; tx != nil {
		fmt.Printf("unredeemed earlier months: %s\n", tx.Value)
	}
	if tx := result.RedeemedLastMonth; tx != nil {
		fmt.Printf("redeemed last month: %s\n", tx.Value)
	}
	return nil
}
