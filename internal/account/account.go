package account

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"bybit-scan-bot/internal/bybit/rest"

	"go.uber.org/zap"
)

// ErrNoData marks a successful response that carried nothing usable.
var ErrNoData = errors.New("no account data")

const (
	SideBuy  = "Buy"
	SideSell = "Sell"
)

// OrderRequest is immutable once constructed. LinkID is the client-chosen
// order identifier; the exchange deduplicates submissions by it.
type OrderRequest struct {
	Symbol       string
	Side         string
	Qty          float64
	EntryPrice   float64
	TakeProfit   float64
	TakeProfit2  float64
	TakeProfit3  float64
	StopLoss     float64
	TrailingStop float64
	LinkID       string
}

// Account is the account side of the gateway: balance, open positions and
// order operations over the signed REST client.
type Account struct {
	rest *rest.Client
	log  *zap.Logger
}

func New(restClient *rest.Client, log *zap.Logger) *Account {
	return &Account{rest: restClient, log: log}
}

// Balance returns the available USDT wallet balance of the unified account.
func (a *Account) Balance(ctx context.Context) (float64, error) {
	body, err := a.rest.Get(ctx, "/v5/account/wallet-balance", map[string]string{"accountType": "UNIFIED"}, true)
	if err != nil {
		return 0, err
	}
	list, ok := resultList(body)
	if !ok || len(list) == 0 {
		return 0, ErrNoData
	}
	wallet, ok := list[0].(map[string]any)
	if !ok {
		return 0, ErrNoData
	}
	coins, ok := wallet["coin"].([]any)
	if !ok {
		return 0, ErrNoData
	}
	for _, item := range coins {
		coin, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if stringField(coin, "coin") != "USDT" {
			continue
		}
		if balance, ok := floatField(coin, "walletBalance"); ok {
			return balance, nil
		}
	}
	return 0, ErrNoData
}

// OpenPositions returns the symbols with a non-zero linear position. An
// empty list is a valid answer here, not ErrNoData: a flat account is normal.
func (a *Account) OpenPositions(ctx context.Context) ([]string, error) {
	params := map[string]string{"category": "linear", "settleCoin": "USDT"}
	body, err := a.rest.Get(ctx, "/v5/position/list", params, true)
	if err != nil {
		return nil, err
	}
	list, ok := resultList(body)
	if !ok {
		return nil, ErrNoData
	}
	symbols := make([]string, 0, len(list))
	for _, item := range list {
		position, ok := item.(map[string]any)
		if !ok {
			continue
		}
		size, _ := floatField(position, "size")
		if size <= 0 {
			continue
		}
		if symbol := stringField(position, "symbol"); symbol != "" {
			symbols = append(symbols, symbol)
		}
	}
	return symbols, nil
}

// SubmitOrder places a market order with its protective levels attached.
// The returned order id may be empty: the exchange accepted the order but
// did not identify it, which the caller must treat as unconfirmed.
func (a *Account) SubmitOrder(ctx context.Context, req OrderRequest) (string, error) {
	params := map[string]string{
		"category":    "linear",
		"symbol":      req.Symbol,
		"side":        req.Side,
		"orderType":   "Market",
		"qty":         formatFloat(req.Qty),
		"takeProfit":  formatFloat(req.TakeProfit),
		"stopLoss":    formatFloat(req.StopLoss),
		"timeInForce": "GoodTillCancel",
	}
	if req.TrailingStop > 0 {
		params["trailingStop"] = formatFloat(req.TrailingStop)
	}
	if req.LinkID != "" {
		params["orderLinkId"] = req.LinkID
	}
	body, err := a.rest.Post(ctx, "/v5/order/create", params, true)
	if err != nil {
		return "", err
	}
	result, _ := body["result"].(map[string]any)
	orderID := stringField(result, "orderId")
	if orderID == "" {
		a.log.Warn("order accepted without id",
			zap.String("symbol", req.Symbol),
			zap.String("link_id", req.LinkID),
		)
	}
	return orderID, nil
}

// AmendStopLoss tightens the stop of an open position's order.
func (a *Account) AmendStopLoss(ctx context.Context, symbol, orderID string, newSL float64) error {
	params := map[string]string{
		"category": "linear",
		"symbol":   symbol,
		"orderId":  orderID,
		"stopLoss": formatFloat(newSL),
	}
	_, err := a.rest.Post(ctx, "/v5/order/amend", params, true)
	return err
}

func resultList(body map[string]any) ([]any, bool) {
	result, ok := body["result"].(map[string]any)
	if !ok {
		return nil, false
	}
	list, ok := result["list"].([]any)
	return list, ok
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func floatField(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NewLinkID derives the client order id for a symbol and cycle timestamp.
// Reusing the same id across a retry makes resubmission duplicate-safe.
func NewLinkID(symbol string, at time.Time) string {
	return "scan-" + symbol + "-" + strconv.FormatInt(at.UnixMilli(), 10)
}
