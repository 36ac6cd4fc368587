package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pairScope/internal/amm"
	"pairScope/internal/config"
	"pairScope/internal/ledger"
	"pairScope/internal/model"
	"pairScope/internal/registry"
	"pairScope/internal/storage"
	"pairScope/internal/storage/postgres"
)

type reverseQuote struct {
	Offer        model.Asset `json:"offer"`
	Ask          model.Asset `json:"ask"`
	ReturnAmount string      `json:"return_amount"`
	SpreadAmount string      `json:"spread_amount"`
	FeeAmount    string      `json:"fee_amount"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Pool == "" {
		return fmt.Errorf("pool is required")
	}
	info, err := model.ParseAssetInfo(cfg.Asset)
	if err != nil {
		return err
	}
	amount, err := amm.ParseAmount(cfg.Amount)
	if err != nil {
		return err
	}
	oracle, err := ledger.ParseTaxRates(cfg.TaxRates)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var snapshots storage.SnapshotStore
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		snapshots = store.SnapshotStore(cfg.SnapshotName)
	} else {
		snapshots = storage.NewFileSnapshotStore(cfg.Snapshot, true)
	}

	snapshot, ok, err := snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return fmt.Errorf("no snapshot found")
	}

	bank := ledger.NewMemoryBank()
	if err := bank.Restore(snapshot.Balances); err != nil {
		return fmt.Errorf("restore balances: %w", err)
	}
	reg := registry.New(registry.Config{Bank: bank, Tax: oracle, TaxCollector: cfg.TaxCollector, Logger: logger})
	if err := reg.Restore(snapshot.Pools); err != nil {
		return fmt.Errorf("restore pools: %w", err)
	}

	var out interface{}
	if cfg.Reverse {
		offer, quote, err := reg.QueryReverseSimulation(ctx, cfg.Pool, amm.AssetAmount{Info: info, Amount: amount})
		if err != nil {
			return err
		}
		out = reverseQuote{
			Offer:        offer.ToModel(),
			Ask:          model.Asset{Info: info, Amount: amount.Dec()},
			ReturnAmount: quote.ReturnAmount.Dec(),
			SpreadAmount: quote.SpreadAmount.Dec(),
			FeeAmount:    quote.FeeAmount.Dec(),
		}
	} else {
		res, err := reg.QuerySimulation(ctx, cfg.Pool, amm.AssetAmount{Info: info, Amount: amount})
		if err != nil {
			return err
		}
		out = model.SwapData{
			Offer:          res.Offer.ToModel(),
			AskInfo:        res.AskInfo,
			ReturnAmount:   res.ReturnAmount.Dec(),
			SpreadAmount:   res.SpreadAmount.Dec(),
			FeeAmount:      res.FeeAmount.Dec(),
			TaxAmount:      res.TaxAmount.Dec(),
			ReceivedAmount: res.ReceivedAmount.Dec(),
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
