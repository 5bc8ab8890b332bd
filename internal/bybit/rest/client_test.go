package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c := New(baseURL, "test-key", "test-secret", 2*time.Second, zap.NewNop())
	c.backoff = time.Millisecond
	return c
}

func TestSignDeterministic(t *testing.T) {
	params := map[string]string{
		"symbol":    "BTCUSDT",
		"category":  "linear",
		"timestamp": "1700000000000",
	}
	first := Sign(params, "secret")
	second := Sign(params, "secret")
	if first != second {
		t.Fatalf("same params signed twice differ: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected hex sha256 signature, got %q", first)
	}
}

func TestSignSensitiveToValueAndKey(t *testing.T) {
	base := map[string]string{"a": "1", "b": "2"}
	sig := Sign(base, "secret")
	changedValue := map[string]string{"a": "1", "b": "3"}
	if Sign(changedValue, "secret") == sig {
		t.Fatalf("changing a value did not change the signature")
	}
	changedKey := map[string]string{"a": "1", "c": "2"}
	if Sign(changedKey, "secret") == sig {
		t.Fatalf("changing a key did not change the signature")
	}
	if Sign(base, "other") == sig {
		t.Fatalf("changing the secret did not change the signature")
	}
}

func TestSignOrderIndependent(t *testing.T) {
	// Signature is over lexicographically sorted pairs, so the map
	// iteration order must never matter.
	sig := Sign(map[string]string{"z": "9", "a": "1", "m": "5"}, "secret")
	for i := 0; i < 20; i++ {
		if Sign(map[string]string{"m": "5", "z": "9", "a": "1"}, "secret") != sig {
			t.Fatalf("signature varies with construction order")
		}
	}
}

func TestRetryBoundOnTransientFailure(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Get(context.Background(), "/v5/market/tickers", nil, false)
	if err == nil {
		t.Fatalf("expected error from always-failing server")
	}
	if attempts != maxAttempts {
		t.Fatalf("expected %d attempts, got %d", maxAttempts, attempts)
	}
	if !IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestAuthFailureIsTerminal(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Get(context.Background(), "/v5/account/wallet-balance", nil, true)
	if err == nil {
		t.Fatalf("expected auth error")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly one attempt for 401, got %d", attempts)
	}
	if !IsAuth(err) {
		t.Fatalf("expected auth error kind, got %v", err)
	}
}

func TestExchangeLogicalErrorIsTerminal(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"retCode":10001,"retMsg":"params error"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Post(context.Background(), "/v5/order/create", map[string]string{"symbol": "BTCUSDT"}, true)
	if err == nil {
		t.Fatalf("expected exchange error")
	}
	if attempts != 1 {
		t.Fatalf("expected one attempt for logical error, got %d", attempts)
	}
	if !IsExchange(err) {
		t.Fatalf("expected exchange error kind, got %v", err)
	}
	var re *Error
	if !errors.As(err, &re) || re.RetCode != 10001 {
		t.Fatalf("expected retCode 10001, got %v", err)
	}
}

func TestAuthenticatedRequestCarriesSignature(t *testing.T) {
	var gotSign, gotKey, gotTimestamp string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotSign = q.Get("sign")
		gotKey = q.Get("apiKey")
		gotTimestamp = q.Get("timestamp")
		_, _ = w.Write([]byte(`{"retCode":0,"result":{}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	if _, err := c.Get(context.Background(), "/v5/position/list", map[string]string{"category": "linear"}, true); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotKey != "test-key" {
		t.Fatalf("expected apiKey param, got %q", gotKey)
	}
	if gotTimestamp != "1700000000000" {
		t.Fatalf("expected millisecond timestamp, got %q", gotTimestamp)
	}
	want := Sign(map[string]string{
		"category":  "linear",
		"apiKey":    "test-key",
		"timestamp": "1700000000000",
	}, "test-secret")
	if gotSign != want {
		t.Fatalf("signature mismatch: got %q want %q", gotSign, want)
	}
}

func TestSuccessAfterTransientRetry(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"retCode":0,"result":{"list":[]}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	body, err := c.Get(context.Background(), "/v5/market/kline", nil, false)
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if _, ok := body["result"]; !ok {
		t.Fatalf("expected decoded body, got %v", body)
	}
}
