package sqlite

import (
	"context"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "key", "value"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	val, ok, err := store.Get(ctx, "key")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !ok || val != "value" {
		t.Fatalf("unexpected value: %v (ok=%v)", val, ok)
	}
	if err := store.Delete(ctx, "key"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	_, ok, err = store.Get(ctx, "key")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if ok {
		t.Fatalf("expected key to be deleted")
	}
}

func TestStoreListByPrefix(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	pairs := map[string]string{
		"order:a": "1",
		"order:b": "2",
		"misc:c":  "3",
	}
	for k, v := range pairs {
		if err := store.Set(ctx, k, v); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	rows, err := store.List(ctx, "order:")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %v", rows)
	}
	if rows["order:a"] != "1" || rows["order:b"] != "2" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}
