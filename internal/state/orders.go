package state

import (
	"context"
	"encoding/base64"

	"github.com/vmihailenco/msgpack/v5"
)

const orderKeyPrefix = "order:"

// OrderRecord journals one submission keyed by its client link ID. Records
// with an empty OrderID were accepted by the exchange without an identifier
// and are flagged for manual reconciliation.
type OrderRecord struct {
	LinkID        string  `msgpack:"link_id"`
	Symbol        string  `msgpack:"symbol"`
	Side          string  `msgpack:"side"`
	OrderID       string  `msgpack:"order_id"`
	Qty           float64 `msgpack:"qty"`
	EntryPrice    float64 `msgpack:"entry_price"`
	SubmittedAtMS int64   `msgpack:"submitted_at_ms"`
	NeedsReview   bool    `msgpack:"needs_review"`
}

func SaveOrder(ctx context.Context, store Store, record OrderRecord) error {
	if store == nil || record.LinkID == "" {
		return nil
	}
	data, err := msgpack.Marshal(record)
	if err != nil {
		return err
	}
	return store.Set(ctx, orderKeyPrefix+record.LinkID, base64.StdEncoding.EncodeToString(data))
}

func LoadOrder(ctx context.Context, store Store, linkID string) (OrderRecord, bool, error) {
	if store == nil {
		return OrderRecord{}, false, nil
	}
	raw, ok, err := store.Get(ctx, orderKeyPrefix+linkID)
	if err != nil || !ok {
		return OrderRecord{}, false, err
	}
	record, err := decodeOrder(raw)
	if err != nil {
		return OrderRecord{}, false, err
	}
	return record, true, nil
}

func DeleteOrder(ctx context.Context, store Store, linkID string) error {
	if store == nil {
		return nil
	}
	return store.Delete(ctx, orderKeyPrefix+linkID)
}

// FlaggedOrder returns symbol's journaled submission still awaiting an
// order identifier, if one exists. Resubmissions reuse its link ID so the
// exchange collapses the retry onto the original order.
func FlaggedOrder(ctx context.Context, store Store, symbol string) (OrderRecord, bool, error) {
	flagged, err := OrdersNeedingReview(ctx, store)
	if err != nil {
		return OrderRecord{}, false, err
	}
	for _, record := range flagged {
		if record.Symbol == symbol {
			return record, true, nil
		}
	}
	return OrderRecord{}, false, nil
}

// OrdersNeedingReview returns the journaled submissions that were accepted
// without an order identifier and still await manual reconciliation.
func OrdersNeedingReview(ctx context.Context, store Store) ([]OrderRecord, error) {
	if store == nil {
		return nil, nil
	}
	rows, err := store.List(ctx, orderKeyPrefix)
	if err != nil {
		return nil, err
	}
	var flagged []OrderRecord
	for _, raw := range rows {
		record, err := decodeOrder(raw)
		if err != nil {
			continue
		}
		if record.NeedsReview {
			flagged = append(flagged, record)
		}
	}
	return flagged, nil
}

func decodeOrder(raw string) (OrderRecord, error) {
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return OrderRecord{}, err
	}
	var record OrderRecord
	if err := msgpack.Unmarshal(data, &record); err != nil {
		return OrderRecord{}, err
	}
	return record, nil
}
