package market

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"bybit-scan-bot/internal/bybit/rest"
	"bybit-scan-bot/internal/bybit/ws"

	"go.uber.org/zap"
)

// ErrNoData marks an empty or malformed but otherwise successful response:
// nothing to trade for this symbol right now, as opposed to the exchange
// being unreachable.
var ErrNoData = errors.New("no market data")

const tickerCacheTTL = 10 * time.Second

type cachedTicker struct {
	quote Quote
	seen  time.Time
}

// MarketData is the market side of the gateway: instrument universe, kline
// history and live quotes. A websocket ticker cache serves quotes for
// watched symbols so open positions can be managed without extra REST calls.
type MarketData struct {
	rest *rest.Client
	ws   *ws.Client
	log  *zap.Logger

	mu      sync.RWMutex
	tickers map[string]cachedTicker
}

func New(restClient *rest.Client, wsClient *ws.Client, log *zap.Logger) *MarketData {
	return &MarketData{
		rest:    restClient,
		ws:      wsClient,
		log:     log,
		tickers: make(map[string]cachedTicker),
	}
}

// Start connects the public stream and begins feeding the ticker cache.
func (m *MarketData) Start(ctx context.Context) error {
	if m.ws == nil {
		return nil
	}
	if err := m.ws.Connect(ctx); err != nil {
		return err
	}
	go func() {
		err := m.ws.Run(ctx, m.handleMessage)
		if err != nil && !errors.Is(err, context.Canceled) {
			// Quotes degrade to REST snapshots from here on.
			m.log.Error("ticker stream terminated", zap.Error(err))
		}
	}()
	return nil
}

// Watch subscribes the symbol's ticker topic on the public stream.
func (m *MarketData) Watch(ctx context.Context, symbol string) {
	if m.ws == nil {
		return
	}
	if err := m.ws.Subscribe(ctx, "tickers."+symbol); err != nil {
		m.log.Warn("ticker subscribe failed", zap.String("symbol", symbol), zap.Error(err))
	}
}

func (m *MarketData) Unwatch(ctx context.Context, symbol string) {
	if m.ws == nil {
		return
	}
	if err := m.ws.Unsubscribe(ctx, "tickers."+symbol); err != nil {
		m.log.Warn("ticker unsubscribe failed", zap.String("symbol", symbol), zap.Error(err))
	}
	m.mu.Lock()
	delete(m.tickers, symbol)
	m.mu.Unlock()
}

// FilteredSymbols returns the linear contracts whose 24h turnover clears the
// liquidity floor.
func (m *MarketData) FilteredSymbols(ctx context.Context, liquidityFloor float64) ([]Instrument, error) {
	body, err := m.rest.Get(ctx, "/v5/market/tickers", map[string]string{"category": "linear"}, false)
	if err != nil {
		return nil, err
	}
	list, ok := resultList(body)
	if !ok || len(list) == 0 {
		return nil, ErrNoData
	}
	instruments := make([]Instrument, 0, len(list))
	for _, item := range list {
		entry, ok := toMap(item)
		if !ok {
			continue
		}
		symbol := stringFromMap(entry, "symbol")
		if symbol == "" {
			continue
		}
		turnover := floatFromMap(entry, "turnover24h", "volume24h")
		if turnover > liquidityFloor {
			instruments = append(instruments, Instrument{Symbol: symbol, Turnover24: turnover})
		}
	}
	if len(instruments) == 0 {
		return nil, ErrNoData
	}
	return instruments, nil
}

// Klines returns the symbol's OHLCV history ordered oldest to newest.
func (m *MarketData) Klines(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	params := map[string]string{
		"category": "linear",
		"symbol":   symbol,
		"interval": interval,
		"limit":    strconv.Itoa(limit),
	}
	body, err := m.rest.Get(ctx, "/v5/market/kline", params, false)
	if err != nil {
		return nil, err
	}
	list, ok := resultList(body)
	if !ok || len(list) == 0 {
		return nil, ErrNoData
	}
	candles := make([]Candle, 0, len(list))
	// The exchange returns rows newest first.
	for i := len(list) - 1; i >= 0; i-- {
		row, ok := toSlice(list[i])
		if !ok || len(row) < 7 {
			continue
		}
		startMS, _ := floatFromAny(row[0])
		open, _ := floatFromAny(row[1])
		high, _ := floatFromAny(row[2])
		low, _ := floatFromAny(row[3])
		closePx, _ := floatFromAny(row[4])
		volume, _ := floatFromAny(row[5])
		turnover, _ := floatFromAny(row[6])
		if closePx == 0 {
			continue
		}
		candles = append(candles, Candle{
			Symbol:   symbol,
			Interval: interval,
			Start:    time.UnixMilli(int64(startMS)).UTC(),
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closePx,
			Volume:   volume,
			Turnover: turnover,
		})
	}
	if len(candles) == 0 {
		return nil, ErrNoData
	}
	return candles, nil
}

// LiveQuote serves from the websocket cache when it is fresh and falls back
// to a REST ticker snapshot otherwise.
func (m *MarketData) LiveQuote(ctx context.Context, symbol string) (Quote, error) {
	m.mu.RLock()
	cached, ok := m.tickers[symbol]
	m.mu.RUnlock()
	if ok && time.Since(cached.seen) < tickerCacheTTL {
		return cached.quote, nil
	}

	body, err := m.rest.Get(ctx, "/v5/market/tickers", map[string]string{"category": "linear", "symbol": symbol}, false)
	if err != nil {
		return Quote{}, err
	}
	list, ok := resultList(body)
	if !ok || len(list) == 0 {
		return Quote{}, ErrNoData
	}
	entry, ok := toMap(list[0])
	if !ok {
		return Quote{}, ErrNoData
	}
	quote := quoteFromTicker(symbol, entry)
	if quote.Close == 0 {
		return Quote{}, ErrNoData
	}
	return quote, nil
}

func (m *MarketData) handleMessage(msg json.RawMessage) {
	var envelope struct {
		Topic string          `json:"topic"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(msg, &envelope); err != nil {
		return
	}
	symbol, ok := strings.CutPrefix(envelope.Topic, "tickers.")
	if !ok || len(envelope.Data) == 0 {
		return
	}
	var data map[string]any
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return
	}
	quote := quoteFromTicker(symbol, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	prev, exists := m.tickers[symbol]
	if exists {
		// Delta frames omit unchanged fields; keep the previous values.
		quote = mergeQuote(prev.quote, quote)
	}
	if quote.Close == 0 {
		return
	}
	m.tickers[symbol] = cachedTicker{quote: quote, seen: time.Now()}
}

func quoteFromTicker(symbol string, entry map[string]any) Quote {
	return Quote{
		Symbol:   symbol,
		Open:     floatFromMap(entry, "prevPrice24h"),
		High:     floatFromMap(entry, "highPrice24h"),
		Low:      floatFromMap(entry, "lowPrice24h"),
		Close:    floatFromMap(entry, "lastPrice"),
		Volume:   floatFromMap(entry, "volume24h"),
		Turnover: floatFromMap(entry, "turnover24h"),
		At:       time.Now().UTC(),
	}
}

func mergeQuote(prev, next Quote) Quote {
	merged := next
	if merged.Open == 0 {
		merged.Open = prev.Open
	}
	if merged.High == 0 {
		merged.High = prev.High
	}
	if merged.Low == 0 {
		merged.Low = prev.Low
	}
	if merged.Close == 0 {
		merged.Close = prev.Close
	}
	if merged.Volume == 0 {
		merged.Volume = prev.Volume
	}
	if merged.Turnover == 0 {
		merged.Turnover = prev.Turnover
	}
	return merged
}
