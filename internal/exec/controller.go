package exec

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bybit-scan-bot/internal/account"
	"bybit-scan-bot/internal/market"
	"bybit-scan-bot/internal/metrics"
	"bybit-scan-bot/internal/state"
	"bybit-scan-bot/internal/strategy"

	"go.uber.org/zap"
)

// MarketData is the slice of the market gateway the controller needs.
type MarketData interface {
	LiveQuote(ctx context.Context, symbol string) (market.Quote, error)
	Klines(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error)
	Watch(ctx context.Context, symbol string)
	Unwatch(ctx context.Context, symbol string)
}

// Gateway is the account side: balance, positions and order operations.
type Gateway interface {
	Balance(ctx context.Context) (float64, error)
	OpenPositions(ctx context.Context) ([]string, error)
	SubmitOrder(ctx context.Context, req account.OrderRequest) (string, error)
	AmendStopLoss(ctx context.Context, symbol, orderID string, newSL float64) error
}

// FeatureSource hands out the indicator vector for one symbol.
type FeatureSource interface {
	Snapshot(ctx context.Context, symbol, interval string) (strategy.FeatureSnapshot, error)
}

// Notifier delivers trade events out of band. All methods are
// fire-and-forget.
type Notifier interface {
	NotifyTrade(ctx context.Context, symbol, side string, qty, entry, takeProfit, stopLoss float64)
	NotifyStopMoved(ctx context.Context, symbol string, stopLoss float64)
	NotifyError(ctx context.Context, symbol string, err error)
}

// Recorder receives decision and trade events for offline analysis.
// Implementations must not block.
type Recorder interface {
	RecordDecision(symbol string, direction strategy.Direction, confidence float64, hasScore bool, reason string)
	RecordTrade(symbol, side, orderID, linkID string, qty, entry, tp1, stopLoss float64)
}

// Config carries the sizing knobs the controller applies per trade.
type Config struct {
	RiskPercent   float64
	QtyStep       float64
	KlineInterval string
	KlineLimit    int
}

// Controller drives one symbol at a time through evaluate, size and submit,
// under the open-trade budget. It owns the registry and the order journal;
// everything else is injected.
type Controller struct {
	market    MarketData
	gateway   Gateway
	features  FeatureSource
	evaluator *strategy.Evaluator
	registry  *Registry
	store     state.Store
	metrics   *metrics.Metrics
	alerts    Notifier
	recorder  Recorder
	cfg       Config
	log       *zap.Logger

	now func() time.Time
}

// failStage backs the machine out to idle and tags the error with the
// stage the pipeline stopped in, so cycle logs show how far a symbol got.
func failStage(machine *strategy.StateMachine, err error) error {
	stage := machine.Current()
	machine.Apply(strategy.EventSkip)
	return fmt.Errorf("%s: %w", strings.ToLower(string(stage)), err)
}

// SetRecorder attaches an optional decision/trade sink. Call before the
// first cycle starts.
func (c *Controller) SetRecorder(r Recorder) {
	c.recorder = r
}

func NewController(
	market MarketData,
	gateway Gateway,
	features FeatureSource,
	evaluator *strategy.Evaluator,
	registry *Registry,
	store state.Store,
	m *metrics.Metrics,
	alerts Notifier,
	cfg Config,
	log *zap.Logger,
) *Controller {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Controller{
		market:    market,
		gateway:   gateway,
		features:  features,
		evaluator: evaluator,
		registry:  registry,
		store:     store,
		metrics:   m,
		alerts:    alerts,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Process runs the full pipeline for one symbol. A non-nil error means the
// symbol was abandoned this cycle; every early exit releases the budget slot.
func (c *Controller) Process(ctx context.Context, symbol string) error {
	machine := strategy.NewStateMachine()
	machine.Apply(strategy.EventDispatch)

	if err := c.registry.TryReserve(symbol); err != nil {
		if errors.Is(err, ErrBudgetExceeded) {
			c.metrics.BudgetExceeded.Inc()
			c.log.Debug("budget full", zap.String("symbol", symbol))
		}
		return err
	}
	confirmed := false
	defer func() {
		if !confirmed {
			c.registry.Release(symbol)
		}
	}()

	snapshot, err := c.features.Snapshot(ctx, symbol, c.cfg.KlineInterval)
	if err != nil {
		return failStage(machine, err)
	}
	signal, err := c.evaluator.Evaluate(snapshot)
	if err != nil {
		return failStage(machine, err)
	}
	if signal.Direction == strategy.NoTrade {
		c.metrics.SymbolsSkipped.Inc()
		if c.recorder != nil {
			reason := "rules"
			if signal.HasScore {
				reason = "confidence"
			}
			c.recorder.RecordDecision(symbol, signal.Direction, signal.Confidence, signal.HasScore, reason)
		}
		machine.Apply(strategy.EventSkip)
		return nil
	}
	if c.recorder != nil {
		c.recorder.RecordDecision(symbol, signal.Direction, signal.Confidence, signal.HasScore, "signal")
	}
	if signal.Direction == strategy.Buy {
		c.metrics.SignalsBuy.Inc()
	} else {
		c.metrics.SignalsSell.Inc()
	}
	machine.Apply(strategy.EventSignal)

	entry := snapshot.Close
	if quote, err := c.market.LiveQuote(ctx, symbol); err == nil && quote.Close > 0 {
		entry = quote.Close
	}
	balance, err := c.gateway.Balance(ctx)
	if err != nil {
		return failStage(machine, err)
	}
	risk := c.cfg.RiskPercent
	if candles, err := c.market.Klines(ctx, symbol, c.cfg.KlineInterval, c.cfg.KlineLimit); err == nil && len(candles) > 1 {
		closes := make([]float64, 0, len(candles))
		for _, candle := range candles {
			closes = append(closes, candle.Close)
		}
		risk = strategy.AdjustRiskForVolatility(strategy.VolatilityIndex(closes), risk)
	}
	qty, err := strategy.PositionSize(balance, risk, entry, c.cfg.QtyStep)
	if err != nil {
		return failStage(machine, err)
	}
	if qty <= 0 {
		c.log.Debug("position size rounds to zero",
			zap.String("symbol", symbol), zap.Float64("balance", balance))
		machine.Apply(strategy.EventSkip)
		return nil
	}
	levels, err := strategy.ComputeTradeLevels(entry, signal.Direction)
	if err != nil {
		return failStage(machine, err)
	}
	machine.Apply(strategy.EventSized)

	submittedAt := c.now()
	linkID := account.NewLinkID(symbol, submittedAt)
	if prior, ok, err := state.FlaggedOrder(ctx, c.store, symbol); err != nil {
		c.log.Warn("order journal read failed",
			zap.String("symbol", symbol), zap.Error(err))
	} else if ok {
		// An earlier submission was accepted without an identifier.
		// Resubmitting under its link ID makes the exchange collapse the
		// retry onto the original order instead of opening a second one.
		linkID = prior.LinkID
		c.log.Info("reusing journaled link id",
			zap.String("symbol", symbol), zap.String("link_id", linkID))
	}
	req := account.OrderRequest{
		Symbol:       symbol,
		Side:         string(signal.Direction),
		Qty:          qty,
		EntryPrice:   entry,
		TakeProfit:   levels.TP1,
		TakeProfit2:  levels.TP2,
		TakeProfit3:  levels.TP3,
		StopLoss:     levels.StopLoss,
		TrailingStop: levels.TrailingStop,
		LinkID:       linkID,
	}
	orderID, err := c.gateway.SubmitOrder(ctx, req)
	if err != nil {
		c.metrics.OrdersFailed.Inc()
		if c.alerts != nil {
			c.alerts.NotifyError(ctx, symbol, err)
		}
		return failStage(machine, err)
	}

	record := state.OrderRecord{
		LinkID:        req.LinkID,
		Symbol:        symbol,
		Side:          req.Side,
		OrderID:       orderID,
		Qty:           qty,
		EntryPrice:    entry,
		SubmittedAtMS: submittedAt.UnixMilli(),
		NeedsReview:   orderID == "",
	}
	if err := state.SaveOrder(ctx, c.store, record); err != nil {
		c.log.Warn("order journal write failed",
			zap.String("symbol", symbol), zap.Error(err))
	}

	if orderID == "" {
		// Accepted without an identifier. The trade is journaled for
		// manual reconciliation but not registered: the next cycle
		// retries under the same link ID, which the exchange deduplicates.
		c.metrics.OrdersUnconfirmed.Inc()
		c.log.Warn("order unconfirmed", zap.String("symbol", symbol),
			zap.String("link_id", req.LinkID),
			zap.String("stage", string(machine.Current())))
		machine.Apply(strategy.EventSkip)
		return nil
	}

	c.registry.Confirm(symbol, OpenTrade{
		OrderID:     orderID,
		LinkID:      req.LinkID,
		Side:        req.Side,
		Entry:       entry,
		TP1:         levels.TP1,
		SubmittedAt: submittedAt,
	})
	confirmed = true
	c.metrics.OrdersPlaced.Inc()
	if c.recorder != nil {
		c.recorder.RecordTrade(symbol, req.Side, orderID, req.LinkID, qty, entry, levels.TP1, levels.StopLoss)
	}
	c.market.Watch(ctx, symbol)
	stage := machine.Apply(strategy.EventAccepted)
	if c.alerts != nil {
		c.alerts.NotifyTrade(ctx, symbol, req.Side, qty, entry, levels.TP1, levels.StopLoss)
	}
	c.log.Info("order placed",
		zap.String("symbol", symbol),
		zap.String("side", req.Side),
		zap.Float64("qty", qty),
		zap.Float64("entry", entry),
		zap.String("order_id", orderID),
		zap.String("stage", string(stage)),
	)
	return nil
}

// Reconcile aligns the registry with the exchange's position list: closed
// positions free their slot and stop being watched, positions the registry
// does not know are adopted so the budget counts them.
func (c *Controller) Reconcile(ctx context.Context) error {
	live, err := c.gateway.OpenPositions(ctx)
	if err != nil {
		return err
	}
	liveSet := make(map[string]struct{}, len(live))
	for _, symbol := range live {
		liveSet[symbol] = struct{}{}
	}
	for symbol, trade := range c.registry.Open() {
		if _, ok := liveSet[symbol]; ok {
			continue
		}
		c.registry.Remove(symbol)
		c.market.Unwatch(ctx, symbol)
		if trade.LinkID != "" {
			if err := state.DeleteOrder(ctx, c.store, trade.LinkID); err != nil {
				c.log.Warn("order journal delete failed",
					zap.String("symbol", symbol), zap.Error(err))
			}
		}
		c.log.Info("position closed", zap.String("symbol", symbol))
	}
	for symbol := range liveSet {
		if c.registry.Adopt(symbol, c.now()) {
			c.market.Watch(ctx, symbol)
			c.log.Info("position adopted", zap.String("symbol", symbol))
		}
	}
	return nil
}

// ManageOpen tightens stops on trades whose price has cleared the first
// take-profit: the stop moves to entry so the remainder cannot lose. Amend
// failures are logged and retried on the next cycle.
func (c *Controller) ManageOpen(ctx context.Context) {
	for symbol, trade := range c.registry.Open() {
		if trade.AtBreakeven || trade.OrderID == "" {
			continue
		}
		quote, err := c.market.LiveQuote(ctx, symbol)
		if err != nil {
			c.log.Warn("quote unavailable", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		cleared := (trade.Side == account.SideBuy && quote.Close >= trade.TP1) ||
			(trade.Side == account.SideSell && quote.Close <= trade.TP1)
		if !cleared {
			continue
		}
		if err := c.gateway.AmendStopLoss(ctx, symbol, trade.OrderID, trade.Entry); err != nil {
			c.log.Warn("stop amend failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		c.registry.MarkBreakeven(symbol)
		c.metrics.StopsTightened.Inc()
		if c.alerts != nil {
			c.alerts.NotifyStopMoved(ctx, symbol, trade.Entry)
		}
		c.log.Info("stop moved to breakeven",
			zap.String("symbol", symbol), zap.Float64("stop", trade.Entry))
	}
}
