package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

func startEchoServer(t *testing.T, ctx context.Context, msgCh chan map[string]any) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept ws: %v", err)
			return
		}
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg map[string]any
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			select {
			case msgCh <- msg:
			default:
			}
		}
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestClientSendsPing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	msgCh := make(chan map[string]any, 1)
	wsURL := startEchoServer(t, ctx, msgCh)
	client := New(wsURL, 10*time.Millisecond, 20*time.Millisecond, zap.NewNop())
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() {
		_ = client.Run(runCtx, nil)
	}()

	select {
	case msg := <-msgCh:
		if msg["op"] != "ping" {
			t.Fatalf("expected ping frame, got %v", msg)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for ping")
	}
}

func TestSubscribeSendsTopicFrame(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	msgCh := make(chan map[string]any, 4)
	wsURL := startEchoServer(t, ctx, msgCh)
	client := New(wsURL, 10*time.Millisecond, time.Second, zap.NewNop())
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := client.Subscribe(ctx, "tickers.BTCUSDT"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	select {
	case msg := <-msgCh:
		if msg["op"] != "subscribe" {
			t.Fatalf("expected subscribe frame, got %v", msg)
		}
		args, ok := msg["args"].([]any)
		if !ok || len(args) != 1 || args[0] != "tickers.BTCUSDT" {
			t.Fatalf("expected tickers.BTCUSDT arg, got %v", msg["args"])
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for subscribe frame")
	}

	// Re-subscribing the same topic must not send another frame.
	if err := client.Subscribe(ctx, "tickers.BTCUSDT"); err != nil {
		t.Fatalf("re-subscribe: %v", err)
	}
	select {
	case msg := <-msgCh:
		t.Fatalf("unexpected second frame: %v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}
