package pset

import (
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"

	"github.com/elementswallet/wallet-core/store"
)

// reservation is an in-flight hold on a UTXO: between Build emitting a PSET
// and that PSET either broadcasting or being discarded, the UTXO it
// selected must not be handed to a second, concurrent Build call. A PSET
// can still go stale if its inputs are spent by something outside this
// process; reservations only close the in-process half of that gap.
type reservation struct {
	expiresAt time.Time
}

// Reservations tracks UTXOs claimed by an unbroadcast PSET, expiring a
// claim automatically after its TTL so a crashed or abandoned build does
// not permanently starve coin selection.
type Reservations struct {
	mu    sync.Mutex
	held  map[string]reservation
	clock clock.Clock
}

// NewReservations constructs an empty reservation tracker using the
// system clock.
func NewReservations() *Reservations {
	return &Reservations{held: make(map[string]reservation), clock: clock.NewDefaultClock()}
}

// WithClock overrides the clock, letting tests exercise TTL expiry with a
// clock.TestClock instead of a real sleep.
func (r *Reservations) WithClock(c clock.Clock) *Reservations {
	r.clock = c
	return r
}

// Reserve claims every outpoint in keys for ttl, failing the whole batch if
// any single one is already held.
func (r *Reservations) Reserve(keys []string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	for _, k := range keys {
		if res, exists := r.held[k]; exists && now.Before(res.expiresAt) {
			return ErrUTXOReserved
		}
	}
	exp := now.Add(ttl)
	for _, k := range keys {
		r.held[k] = reservation{expiresAt: exp}
	}
	return nil
}

// Release drops a reservation, e.g. after successful broadcast or when the
// caller discards the PSET.
func (r *Reservations) Release(keys []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		delete(r.held, k)
	}
}

// isHeld reports whether key is currently reserved; expired entries count
// as free without needing a separate cleanup pass.
func (r *Reservations) isHeld(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, exists := r.held[key]
	return exists && r.clock.Now().Before(res.expiresAt)
}

// outpointKey mirrors store.OutPoint.Key for reservation bookkeeping.
func outpointKey(op store.OutPoint) string {
	return op.Key()
}
