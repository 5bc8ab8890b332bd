package exec

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrBudgetExceeded rejects a reservation when every open-trade slot
	// is taken. The symbol is retried on a later cycle.
	ErrBudgetExceeded = errors.New("open trade budget exceeded")

	// ErrDuplicate rejects a reservation for a symbol that already holds
	// a slot, reserved or open.
	ErrDuplicate = errors.New("symbol already active")
)

// OpenTrade is one registry entry. Entries adopted from the exchange after
// a restart carry an empty OrderID and LinkID.
type OpenTrade struct {
	OrderID     string
	LinkID      string
	Side        string
	Entry       float64
	TP1         float64
	SubmittedAt time.Time
	AtBreakeven bool
}

type slot struct {
	trade     OpenTrade
	confirmed bool
}

// Registry holds the in-memory open-trade set and enforces the budget.
// Reserve-then-confirm keeps the check and the slot claim atomic, so
// concurrent scans can never overshoot the budget between them. The raw
// count is deliberately not exposed.
type Registry struct {
	mu      sync.Mutex
	maxOpen int
	slots   map[string]*slot
}

func NewRegistry(maxOpen int) *Registry {
	return &Registry{
		maxOpen: maxOpen,
		slots:   make(map[string]*slot),
	}
}

// TryReserve claims a slot for symbol before any exchange call is made.
// The reservation counts against the budget until Confirm or Release.
func (r *Registry) TryReserve(symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[symbol]; ok {
		return ErrDuplicate
	}
	if len(r.slots) >= r.maxOpen {
		return ErrBudgetExceeded
	}
	r.slots[symbol] = &slot{}
	return nil
}

// Release frees an unconfirmed reservation. Confirmed trades stay until
// Remove observes the position closed.
func (r *Registry) Release(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[symbol]; ok && !s.confirmed {
		delete(r.slots, symbol)
	}
}

// Confirm upgrades a reservation into an open trade. A symbol without a
// reservation is ignored: every slot must pass through TryReserve, so the
// budget cannot be bypassed.
func (r *Registry) Confirm(symbol string, trade OpenTrade) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[symbol]
	if !ok {
		return
	}
	s.trade = trade
	s.confirmed = true
}

// Adopt registers a position discovered on the exchange that the registry
// does not know, so the budget accounts for it. No-op when the symbol is
// already tracked or the budget is full.
func (r *Registry) Adopt(symbol string, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[symbol]; ok {
		return false
	}
	if len(r.slots) >= r.maxOpen {
		return false
	}
	r.slots[symbol] = &slot{trade: OpenTrade{SubmittedAt: at}, confirmed: true}
	return true
}

func (r *Registry) Remove(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.slots, symbol)
}

// Open returns the confirmed trades keyed by symbol.
func (r *Registry) Open() map[string]OpenTrade {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]OpenTrade, len(r.slots))
	for symbol, s := range r.slots {
		if s.confirmed {
			out[symbol] = s.trade
		}
	}
	return out
}

func (r *Registry) MarkBreakeven(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.slots[symbol]; ok && s.confirmed {
		s.trade.AtBreakeven = true
	}
}
