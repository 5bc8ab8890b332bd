package app

import (
	"time"

	"bybit-scan-bot/internal/strategy"
	"bybit-scan-bot/internal/timescale"
)

// timescaleRecorder bridges controller events onto the writer's queues.
type timescaleRecorder struct {
	writer *timescale.Writer
}

func (r *timescaleRecorder) RecordDecision(symbol string, direction strategy.Direction, confidence float64, hasScore bool, reason string) {
	r.writer.EnqueueDecision(timescale.Decision{
		Time:       time.Now().UTC(),
		Symbol:     symbol,
		Direction:  string(direction),
		Confidence: confidence,
		HasScore:   hasScore,
		Reason:     reason,
	})
}

func (r *timescaleRecorder) RecordTrade(symbol, side, orderID, linkID string, qty, entry, tp1, stopLoss float64) {
	r.writer.EnqueueTrade(timescale.Trade{
		Time:     time.Now().UTC(),
		Symbol:   symbol,
		Side:     side,
		OrderID:  orderID,
		LinkID:   linkID,
		Qty:      qty,
		Entry:    entry,
		TP1:      tp1,
		StopLoss: stopLoss,
	})
}
