package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	maxAttempts  = 3
	retryBackoff = 2 * time.Second
)

// Client signs and sends requests to the exchange REST API. It retries
// transient failures up to a fixed bound and classifies terminal errors so
// callers never have to look at HTTP statuses or return codes themselves.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
	log       *zap.Logger
	backoff   time.Duration
	now       func() time.Time
}

func New(baseURL, apiKey, apiSecret string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http: &http.Client{
			Timeout: timeout,
		},
		log:     log,
		backoff: retryBackoff,
		now:     time.Now,
	}
}

func (c *Client) Get(ctx context.Context, endpoint string, params map[string]string, auth bool) (map[string]any, error) {
	return c.Send(ctx, endpoint, params, http.MethodGet, auth)
}

func (c *Client) Post(ctx context.Context, endpoint string, params map[string]string, auth bool) (map[string]any, error) {
	return c.Send(ctx, endpoint, params, http.MethodPost, auth)
}

// Send performs one logical request. Authenticated calls get apiKey, a
// millisecond timestamp and the HMAC signature attached before transmission.
// A 401 and a non-zero exchange return code are terminal; everything else
// transient is retried with a fixed backoff until the attempt budget runs out.
func (c *Client) Send(ctx context.Context, endpoint string, params map[string]string, method string, auth bool) (map[string]any, error) {
	signed := make(map[string]string, len(params)+3)
	for k, v := range params {
		signed[k] = v
	}
	if auth {
		signed["apiKey"] = c.apiKey
		signed["timestamp"] = strconv.FormatInt(c.now().UnixMilli(), 10)
		signed["sign"] = Sign(signed, c.apiSecret)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		body, err := c.do(ctx, endpoint, signed, method, auth)
		if err == nil {
			return body, nil
		}
		var re *Error
		if errors.As(err, &re) && re.Kind != KindTransport {
			return nil, err
		}
		lastErr = err
		c.log.Warn("request failed",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err),
		)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, &Error{Kind: KindUnavailable, Endpoint: endpoint, Err: ctx.Err()}
		case <-time.After(c.backoff):
		}
	}
	return nil, &Error{Kind: KindUnavailable, Endpoint: endpoint, Err: lastErr}
}

func (c *Client) do(ctx context.Context, endpoint string, params map[string]string, method string, auth bool) (map[string]any, error) {
	req, err := c.buildRequest(ctx, endpoint, params, method)
	if err != nil {
		return nil, err
	}
	if auth {
		req.Header.Set("X-BYBIT-API-KEY", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &Error{Kind: KindAuth, Endpoint: endpoint, Status: resp.StatusCode, Msg: "invalid API key or insufficient permissions"}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &Error{
			Kind:     KindTransport,
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("http %d: %s", resp.StatusCode, string(body)),
		}
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &Error{Kind: KindTransport, Endpoint: endpoint, Err: err}
	}
	if code, ok := retCode(data); ok && code != 0 {
		msg, _ := data["retMsg"].(string)
		return nil, &Error{Kind: KindExchange, Endpoint: endpoint, RetCode: code, Msg: msg}
	}
	return data, nil
}

func (c *Client) buildRequest(ctx context.Context, endpoint string, params map[string]string, method string) (*http.Request, error) {
	target := c.baseURL + endpoint
	if method == http.MethodGet {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		query := url.Values{}
		for k, v := range params {
			query.Set(k, v)
		}
		req.URL.RawQuery = query.Encode()
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func retCode(data map[string]any) (int, bool) {
	v, ok := data["retCode"]
	if !ok {
		return 0, false
	}
	switch code := v.(type) {
	case float64:
		return int(code), true
	case json.Number:
		n, err := code.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
