// Package scanner drives the scan cycle: pick liquid symbols, fan them out
// to a bounded worker pool, then reconcile and manage open trades once the
// pool has drained.
package scanner

import (
	"context"
	"errors"
	"sync"
	"time"

	"bybit-scan-bot/internal/config"
	"bybit-scan-bot/internal/exec"
	"bybit-scan-bot/internal/market"
	"bybit-scan-bot/internal/metrics"

	"go.uber.org/zap"
)

// SymbolSource lists tradable symbols above the liquidity floor.
type SymbolSource interface {
	FilteredSymbols(ctx context.Context, liquidityFloor float64) ([]market.Instrument, error)
}

// Processor runs the per-symbol pipeline and the cross-cycle maintenance.
type Processor interface {
	Process(ctx context.Context, symbol string) error
	Reconcile(ctx context.Context) error
	ManageOpen(ctx context.Context)
}

type Scanner struct {
	source  SymbolSource
	proc    Processor
	cfg     config.ScannerConfig
	metrics *metrics.Metrics
	log     *zap.Logger
}

func New(source SymbolSource, proc Processor, cfg config.ScannerConfig, m *metrics.Metrics, log *zap.Logger) *Scanner {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Scanner{source: source, proc: proc, cfg: cfg, metrics: m, log: log}
}

// Run loops scan cycles until the context is cancelled. A failed cycle is
// logged and the loop continues: the next cycle starts from fresh data.
func (s *Scanner) Run(ctx context.Context) error {
	for {
		start := time.Now()
		if err := s.RunCycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			s.log.Error("scan cycle failed", zap.Error(err))
		}
		s.log.Debug("scan cycle done", zap.Duration("elapsed", time.Since(start)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.Interval):
		}
	}
}

// RunCycle executes one full cycle. Reconciliation and open-trade
// management only start after every dispatched symbol has finished.
func (s *Scanner) RunCycle(ctx context.Context) error {
	instruments, err := s.source.FilteredSymbols(ctx, s.cfg.LiquidityFloor)
	if err != nil {
		return err
	}
	s.log.Info("scanning symbols", zap.Int("count", len(instruments)))

	sem := make(chan struct{}, s.cfg.Workers)
	var wg sync.WaitGroup
	for _, instrument := range instruments {
		if ctx.Err() != nil {
			break
		}
		symbol := instrument.Symbol
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.proc.Process(ctx, symbol); err != nil {
				switch {
				case errors.Is(err, exec.ErrBudgetExceeded), errors.Is(err, exec.ErrDuplicate):
					s.log.Debug("symbol not processed", zap.String("symbol", symbol), zap.Error(err))
				default:
					s.log.Warn("symbol pipeline failed", zap.String("symbol", symbol), zap.Error(err))
				}
			}
		}()
		if s.cfg.Stagger > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.cfg.Stagger):
			}
		}
	}
	wg.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := s.proc.Reconcile(ctx); err != nil {
		s.log.Warn("reconcile failed", zap.Error(err))
	}
	s.proc.ManageOpen(ctx)
	s.metrics.CyclesCompleted.Inc()
	return nil
}
