// Package timescale streams decisions and placed trades into TimescaleDB
// for offline analysis. Writes are fire-and-forget through a bounded queue:
// a slow or absent database never stalls the scan loop.
package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"bybit-scan-bot/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// Decision is one evaluation outcome, traded or not.
type Decision struct {
	Time       time.Time
	Symbol     string
	Direction  string
	Confidence float64
	HasScore   bool
	Reason     string
}

// Trade is one accepted order submission.
type Trade struct {
	Time     time.Time
	Symbol   string
	Side     string
	OrderID  string
	LinkID   string
	Qty      float64
	Entry    float64
	TP1      float64
	StopLoss float64
}

type Writer struct {
	db        *sql.DB
	log       *zap.Logger
	schema    string
	decisions chan Decision
	trades    chan Trade
	started   atomic.Bool
	dropDec   atomic.Uint64
	dropTrade atomic.Uint64
}

func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := &Writer{
		db:        db,
		log:       log,
		schema:    schema,
		decisions: make(chan Decision, queueSize),
		trades:    make(chan Trade, queueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) EnqueueDecision(decision Decision) {
	if w == nil {
		return
	}
	select {
	case w.decisions <- decision:
		return
	default:
		if w.dropDec.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale decision queue full")
		}
	}
}

func (w *Writer) EnqueueTrade(trade Trade) {
	if w == nil {
		return
	}
	select {
	case w.trades <- trade:
		return
	default:
		if w.dropTrade.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale trade queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case decision := <-w.decisions:
			w.writeDecision(ctx, decision)
		case trade := <-w.trades:
			w.writeTrade(ctx, trade)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		has_score BOOLEAN NOT NULL,
		reason TEXT NOT NULL DEFAULT ''
	)`, w.table("decision_log"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		order_id TEXT NOT NULL,
		link_id TEXT NOT NULL,
		qty DOUBLE PRECISION NOT NULL,
		entry DOUBLE PRECISION NOT NULL,
		tp1 DOUBLE PRECISION NOT NULL,
		stop_loss DOUBLE PRECISION NOT NULL
	)`, w.table("trades"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("decision_log"))); err != nil && w.log != nil {
		w.log.Warn("timescale decision_log hypertable create failed", zap.Error(err))
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("trades"))); err != nil && w.log != nil {
		w.log.Warn("timescale trades hypertable create failed", zap.Error(err))
	}
	return nil
}

func (w *Writer) writeDecision(ctx context.Context, decision Decision) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, symbol, direction, confidence, has_score, reason
	) VALUES ($1,$2,$3,$4,$5,$6)`, w.table("decision_log"))
	if _, err := w.db.ExecContext(ctx, query,
		decision.Time,
		decision.Symbol,
		decision.Direction,
		decision.Confidence,
		decision.HasScore,
		decision.Reason,
	); err != nil && w.log != nil {
		w.log.Warn("timescale decision insert failed", zap.Error(err))
	}
}

func (w *Writer) writeTrade(ctx context.Context, trade Trade) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, symbol, side, order_id, link_id, qty, entry, tp1, stop_loss
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, w.table("trades"))
	if _, err := w.db.ExecContext(ctx, query,
		trade.Time,
		trade.Symbol,
		trade.Side,
		trade.OrderID,
		trade.LinkID,
		trade.Qty,
		trade.Entry,
		trade.TP1,
		trade.StopLoss,
	); err != nil && w.log != nil {
		w.log.Warn("timescale trade insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
