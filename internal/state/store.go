package state

import "context"

// Store is a small durable key/value surface. It backs the order journal:
// an idempotency and audit record, never a source of position truth.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) (map[string]string, error)
	Close() error
}
