// Package wallet wires the descriptor, store, synchronizer, UTXO view, and
// PSET builder into one embeddable watch-only wallet handle: the entry
// point "open wallet", "sendlbtc", and "issueasset" operations run against.
package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/lightningnetwork/lnd/ticker"

	"github.com/elementswallet/wallet-core/chainclient"
	"github.com/elementswallet/wallet-core/descriptor"
	netcfg "github.com/elementswallet/wallet-core/network"
	"github.com/elementswallet/wallet-core/pset"
	"github.com/elementswallet/wallet-core/store"
	"github.com/elementswallet/wallet-core/utxoview"
	"github.com/elementswallet/wallet-core/walletsync"
)

var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger, and propagates it to the
// sub-packages whose loggers are otherwise independently silent.
func UseLogger(logger btclog.Logger) {
	log = logger
	store.UseLogger(logger)
	walletsync.UseLogger(logger)
	pset.UseLogger(logger)
}

// Wallet is a watch-only confidential wallet handle: one descriptor, one
// on-disk store, one network configuration. All mutating operations
// (Sync, send/issuance PSET construction, which advances the address
// frontier) are serialized through mu; readers take the read lock so
// balance/utxo/transaction queries never block on each other
// (single-writer, multi-reader).
type Wallet struct {
	mu sync.RWMutex

	cfg          *netcfg.Config
	desc         *descriptor.Descriptor
	store        *store.Store
	blinder      pset.BlindingPrimitive
	reservations *pset.Reservations

	policyAsset [32]byte
}

// Open parses desc, opens (or initializes) the on-disk store under
// cfg.DataRoot for this descriptor's wallet_id, and returns a ready Wallet.
// It performs no network I/O; callers call Sync explicitly.
func Open(cfg *netcfg.Config, descriptorString string) (*Wallet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	desc, err := descriptor.Parse(descriptorString)
	if err != nil {
		return nil, err
	}

	var policyAsset [32]byte
	if err := decodeHexInto(policyAsset[:], cfg.PolicyAsset); err != nil {
		return nil, fmt.Errorf("wallet: decoding policy asset: %w", err)
	}

	fp := store.Fingerprint(descriptorString, networkFingerprint(cfg))
	walletID := store.WalletID(descriptorString, networkFingerprint(cfg))
	s, err := store.Open(cfg.DataRoot, walletID, fp)
	if err != nil {
		return nil, err
	}

	w := &Wallet{
		cfg:          cfg,
		desc:         desc,
		store:        s,
		blinder:      pset.NewGoElementsBlinder(),
		reservations: pset.NewReservations(),
		policyAsset:  policyAsset,
	}
	log.Infof("wallet: opened wallet_id=%s", walletID)
	return w, nil
}

// Close releases the store's exclusive file lock.
func (w *Wallet) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.Close()
}

// Address derives the receive address at index, advancing nothing (pure
// derivation; callers decide when to persist a new frontier via Sync's
// discovery or via NextAddress).
func (w *Wallet) Address(index uint32) (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.desc.DeriveAddress(index, w.cfg.Params)
}

// NextAddress derives and persists the next unused external address,
// advancing and persisting last_index before the derived address is
// returned.
func (w *Wallet) NextAddress() (string, uint32, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := w.store.LastIndex() + 1
	script, _, _, err := w.desc.DeriveScript(idx)
	if err != nil {
		return "", 0, err
	}
	addr, err := w.desc.DeriveAddress(idx, w.cfg.Params)
	if err != nil {
		return "", 0, err
	}
	if err := w.store.Apply(store.Mutations{
		LastIndex: &idx,
		NewPaths:  map[string]uint32{hexEncode(script): idx},
	}); err != nil {
		return "", 0, err
	}
	return addr, idx, nil
}

// Tip returns the last-synced chain tip.
func (w *Wallet) Tip() (store.Tip, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.store.Tip()
}

// Sync runs one synchronizer round against backend and commits its
// mutations atomically, returning whether anything changed.
func (w *Wallet) Sync(ctx context.Context, backend chainclient.Backend) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	mutations, changed, err := walletsync.Round(ctx, w.desc, backend, w.store, w.cfg.EffectiveGapLimit())
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	if err := w.store.Apply(mutations); err != nil {
		return false, err
	}
	return true, nil
}

// AutoSync runs Sync on a fixed interval until the returned stop func is
// called. Errors from a single round are logged and do not stop the
// ticker; a transient backend outage should not silently end polling.
func (w *Wallet) AutoSync(ctx context.Context, backend chainclient.Backend, interval time.Duration) (stop func()) {
	t := ticker.New(interval)
	t.Resume()

	done := make(chan struct{})
	go func() {
		defer t.Stop()
		for {
			select {
			case <-t.Ticks():
				if _, err := w.Sync(ctx, backend); err != nil {
					log.Errorf("wallet: auto-sync round failed: %v", err)
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() { close(done) }
}

// Balance returns the per-asset spendable balance; the policy asset key is
// always present.
func (w *Wallet) Balance() (map[[32]byte]uint64, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return utxoview.Balance(w.store, w.policyAsset)
}

// Utxos returns the wallet's spendable outputs, sorted descending by
// value.
func (w *Wallet) Utxos() ([]utxoview.UnblindedTXO, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return utxoview.Utxos(w.store)
}

// Transactions returns the wallet's history, sorted by height descending.
func (w *Wallet) Transactions() []utxoview.TxEntry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return utxoview.Transactions(w.store)
}

// SendLBTC builds a PSET paying amount of the policy asset to address.
func (w *Wallet) SendLBTC(amount uint64, address string) (*pset.Pset, error) {
	return w.SendMany([]pset.Addressee{{Value: amount, Address: address}})
}

// SendAsset builds a PSET paying amount of asset (hex id) to address.
func (w *Wallet) SendAsset(amount uint64, address, asset string) (*pset.Pset, error) {
	return w.SendMany([]pset.Addressee{{Value: amount, Address: address, Asset: asset}})
}

// SendMany builds a PSET paying every addressee in one transaction,
// sharing coin selection and a single fee and change set across them.
// Building a PSET takes the write lock: change derivation advances and
// persists last_index, so it must be serialized with sync and other
// PSET construction.
func (w *Wallet) SendMany(addressees []pset.Addressee) (*pset.Pset, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	builder := pset.NewBuilder(w.store, w.desc, w.cfg.Params, w.policyAsset, w.blinder).WithReservations(w.reservations)
	return builder.Build(addressees, nil)
}

// IssueAsset builds an issuance PSET minting satoshiAsset units of a new
// asset and, if satoshiToken > 0, a matching reissuance token.
func (w *Wallet) IssueAsset(satoshiAsset, satoshiToken uint64) (*pset.Pset, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	builder := pset.NewBuilder(w.store, w.desc, w.cfg.Params, w.policyAsset, w.blinder).WithReservations(w.reservations)
	return builder.BuildIssuance(satoshiAsset, satoshiToken, nil)
}

// Broadcast finalizes tx (given externally-signed witnesses) and submits
// it via backend, verifying the returned txid locally.
func (w *Wallet) Broadcast(ctx context.Context, backend chainclient.Backend, p *pset.Pset, signedWitnesses [][][]byte) ([32]byte, error) {
	tx, err := pset.Finalize(p, signedWitnesses)
	if err != nil {
		return [32]byte{}, err
	}
	return pset.Broadcast(ctx, backend, tx)
}

func networkFingerprint(cfg *netcfg.Config) string {
	return cfg.PolicyAsset + "|" + cfg.IndexerURL
}
