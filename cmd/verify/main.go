// Command verify is an operator preflight: it signs a balance request,
// lists the symbols a scan cycle would consider and prints any journaled
// orders still awaiting manual reconciliation. No orders are placed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bybit-scan-bot/internal/account"
	"bybit-scan-bot/internal/bybit/rest"
	"bybit-scan-bot/internal/config"
	"bybit-scan-bot/internal/logging"
	"bybit-scan-bot/internal/market"
	"bybit-scan-bot/internal/state"
	"bybit-scan-bot/internal/state/sqlite"
)

const (
	defaultRESTBaseURL    = "https://api.bybit.com"
	defaultRESTTimeout    = 10 * time.Second
	defaultLiquidityFloor = 1_000_000
)

func main() {
	configPath := flag.String("config", "", "optional config path")
	maxSymbols := flag.Int("symbols", 10, "number of filtered symbols to print")
	skipBalance := flag.Bool("skip-balance", false, "skip the signed balance request")
	flag.Parse()

	if err := config.LoadEnv(".env"); err != nil {
		fatal(err)
	}

	logCfg := config.LoggingConfig{Level: "info"}
	baseURL := defaultRESTBaseURL
	timeout := defaultRESTTimeout
	liquidityFloor := float64(defaultLiquidityFloor)
	statePath := ""
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fatal(err)
		}
		logCfg = cfg.Log
		baseURL = cfg.REST.BaseURL
		timeout = cfg.REST.Timeout
		liquidityFloor = cfg.Scanner.LiquidityFloor
		statePath = cfg.State.SQLitePath
	}
	log := logging.New(logCfg)
	defer func() { _ = log.Sync() }()

	creds, err := config.LoadCredentials()
	if err != nil {
		fatal(err)
	}
	restClient := rest.New(baseURL, creds.APIKey, creds.APISecret, timeout, log)
	ctx := context.Background()

	if !*skipBalance {
		accountClient := account.New(restClient, log)
		balance, err := accountClient.Balance(ctx)
		if err != nil {
			fatal(fmt.Errorf("balance check failed: %w", err))
		}
		fmt.Printf("USDT balance: %.4f\n", balance)

		positions, err := accountClient.OpenPositions(ctx)
		if err != nil {
			fatal(fmt.Errorf("position check failed: %w", err))
		}
		fmt.Printf("open positions: %d %v\n", len(positions), positions)
	}

	md := market.New(restClient, nil, log)
	instruments, err := md.FilteredSymbols(ctx, liquidityFloor)
	if err != nil {
		fatal(fmt.Errorf("symbol listing failed: %w", err))
	}
	fmt.Printf("symbols above %.0f turnover: %d\n", liquidityFloor, len(instruments))
	for i, instrument := range instruments {
		if i >= *maxSymbols {
			break
		}
		fmt.Printf("  %s turnover24h=%.0f\n", instrument.Symbol, instrument.Turnover24)
	}

	if statePath != "" {
		if _, err := os.Stat(statePath); err == nil {
			store, err := sqlite.New(statePath)
			if err != nil {
				fatal(err)
			}
			defer store.Close()
			flagged, err := state.OrdersNeedingReview(ctx, store)
			if err != nil {
				fatal(err)
			}
			fmt.Printf("orders needing review: %d\n", len(flagged))
			for _, record := range flagged {
				fmt.Printf("  %s %s link_id=%s submitted_at_ms=%d\n",
					record.Symbol, record.Side, record.LinkID, record.SubmittedAtMS)
			}
		}
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
