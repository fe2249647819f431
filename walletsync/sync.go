// Package walletsync implements the synchronizer: it drives the indexer
// backend to discover new transactions for derived scripts, unblinds
// their outputs, and produces a Mutations value the caller commits to the
// store atomically. Sync is modeled as a pure function from a read-only
// snapshot and backend responses to a Mutations value; Round itself does
// not call store.Apply, so reorg and partial-failure behavior is testable
// without a live backend.
package walletsync

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btclog"
	"github.com/vulpemventures/go-elements/confidential"
	"github.com/vulpemventures/go-elements/transaction"

	"github.com/elementswallet/wallet-core/chainclient"
	"github.com/elementswallet/wallet-core/descriptor"
	"github.com/elementswallet/wallet-core/store"
)

var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// Snapshot is the read-only view of the store a Round consults. It is
// satisfied by *store.Store directly; tests can substitute a fake.
type Snapshot interface {
	LastIndex() uint32
	PathFor(scriptHex string) (uint32, bool)
	GetTx(txidHex string) ([]byte, bool)
	HeightOf(txidHex string) (*uint32, bool)
	IterHeights(fn func(txidHex string, height *uint32) bool)
	IterUnblinded(fn func(op store.OutPoint, u store.Unblinded) bool)
}

// Round runs one synchronization round: tip refresh, gap-limit scan,
// transaction materialization, unblinding, height reconciliation, and
// reorg detection. It returns the Mutations the caller must commit via
// store.Apply and whether anything changed. It performs no writes itself.
func Round(ctx context.Context, desc *descriptor.Descriptor, backend chainclient.Backend, snap Snapshot, gapLimit uint32) (store.Mutations, bool, error) {
	var out store.Mutations

	tip, err := backend.Tip(ctx)
	if err != nil {
		return store.Mutations{}, false, fmt.Errorf("%w: fetching tip: %v", ErrRoundAborted, err)
	}
	out.Tip = &store.Tip{Height: tip.Height, BlockHash: tip.BlockHash}

	newLastIndex := snap.LastIndex()
	boundary := newLastIndex + gapLimit
	if !desc.Wildcard {
		// A fixed descriptor derives a single script, at index 0.
		boundary = 0
	}

	historiesByScript := map[string][]chainclient.History{}
	indexByScript := map[string]uint32{}
	allSeenTxids := map[string]struct{}{}

	i := uint32(0)
	for i <= boundary {
		chunkEnd := boundary
		if chunkEnd > i+gapLimit-1 {
			chunkEnd = i + gapLimit - 1
		}
		scripts := make([][]byte, 0, chunkEnd-i+1)
		indices := make([]uint32, 0, chunkEnd-i+1)
		for j := i; j <= chunkEnd; j++ {
			script, _, _, err := desc.DeriveScript(j)
			if err != nil {
				return store.Mutations{}, false, fmt.Errorf("%w: deriving script %d: %w", ErrRoundAborted, j, err)
			}
			scripts = append(scripts, script)
			indices = append(indices, j)
		}

		histories, err := backend.GetScriptsHistory(ctx, scripts)
		if err != nil {
			return store.Mutations{}, false, fmt.Errorf("%w: scripts history: %v", ErrRoundAborted, err)
		}
		if len(histories) != len(scripts) {
			return store.Mutations{}, false, fmt.Errorf("%w: %v", ErrRoundAborted, chainclient.ErrBackendMalformed)
		}

		for k, h := range histories {
			idx := indices[k]
			scriptHex := hex.EncodeToString(scripts[k])
			if len(h) == 0 {
				continue
			}
			if idx > newLastIndex {
				newLastIndex = idx
			}
			historiesByScript[scriptHex] = h
			indexByScript[scriptHex] = idx
			if desc.Wildcard && idx+gapLimit > boundary {
				boundary = idx + gapLimit
			}
			out.NewPaths = addPath(out.NewPaths, scriptHex, idx)
			for _, entry := range h {
				allSeenTxids[hex.EncodeToString(entry.Txid[:])] = struct{}{}
			}
		}
		i = chunkEnd + 1
	}
	if newLastIndex != snap.LastIndex() {
		li := newLastIndex
		out.LastIndex = &li
	}

	txidsToFetch := make([][32]byte, 0)
	for txidHex := range allSeenTxids {
		if _, known := snap.GetTx(txidHex); known {
			continue
		}
		raw, err := hex.DecodeString(txidHex)
		if err != nil || len(raw) != 32 {
			return store.Mutations{}, false, fmt.Errorf("%w: malformed txid %q", ErrRoundAborted, txidHex)
		}
		var txid [32]byte
		copy(txid[:], raw)
		txidsToFetch = append(txidsToFetch, txid)
	}

	if len(txidsToFetch) > 0 {
		rawTxs, err := backend.GetTransactions(ctx, txidsToFetch)
		if err != nil {
			return store.Mutations{}, false, fmt.Errorf("%w: fetching transactions: %v", ErrRoundAborted, err)
		}
		if len(rawTxs) != len(txidsToFetch) {
			return store.Mutations{}, false, fmt.Errorf("%w: %v", ErrRoundAborted, chainclient.ErrBackendMalformed)
		}
		out.NewTxs = map[string][]byte{}
		for i, raw := range rawTxs {
			wantTxid := txidsToFetch[i]
			parsed, err := transaction.NewTxFromHex(hex.EncodeToString(raw))
			if err != nil {
				return store.Mutations{}, false, fmt.Errorf("%w: unparseable tx for %x: %v", ErrRoundAborted, wantTxid, err)
			}
			gotHash := parsed.TxHash()
			if hex.EncodeToString(gotHash[:]) != hex.EncodeToString(wantTxid[:]) {
				return store.Mutations{}, false, fmt.Errorf("%w: txid mismatch, wanted %x", ErrRoundAborted, wantTxid)
			}
			out.NewTxs[hex.EncodeToString(wantTxid[:])] = raw

			for vout, output := range parsed.Outputs {
				scriptHex := hex.EncodeToString(output.Script)
				_, owned := indexByScript[scriptHex]
				if !owned {
					_, owned = lookupStoredPath(snap, scriptHex)
				}
				if !owned {
					continue
				}
				u, ok := unblind(desc, output)
				if !ok {
					continue
				}
				op := store.OutPoint{Txid: wantTxid, Vout: uint32(vout)}
				if out.UnblindedUpserts == nil {
					out.UnblindedUpserts = map[string]store.Unblinded{}
				}
				out.UnblindedUpserts[op.Key()] = u
			}
		}
	}

	out.HeightUpdates = map[string]*uint32{}
	for _, histories := range historiesByScript {
		for _, h := range histories {
			txidHex := hex.EncodeToString(h.Txid[:])
			out.HeightUpdates[txidHex] = h.Height
		}
	}

	snap.IterHeights(func(txidHex string, height *uint32) bool {
		if _, stillSeen := allSeenTxids[txidHex]; stillSeen {
			return true
		}
		out.HeightRemovals = append(out.HeightRemovals, txidHex)
		return true
	})
	forgotten := map[string]struct{}{}
	for _, txidHex := range out.HeightRemovals {
		forgotten[txidHex] = struct{}{}
	}
	if len(forgotten) > 0 {
		snap.IterUnblinded(func(op store.OutPoint, u store.Unblinded) bool {
			if _, isForgotten := forgotten[hex.EncodeToString(op.Txid[:])]; isForgotten {
				out.UnblindedRemovals = append(out.UnblindedRemovals, op.Key())
			}
			return true
		})
	}

	log.Debugf("walletsync: round complete, last_index=%d new_txs=%d", newLastIndex, len(out.NewTxs))
	return out, !out.IsEmpty(), nil
}

func addPath(m map[string]uint32, scriptHex string, idx uint32) map[string]uint32 {
	if m == nil {
		m = map[string]uint32{}
	}
	m[scriptHex] = idx
	return m
}

func lookupStoredPath(snap Snapshot, scriptHex string) (uint32, bool) {
	return snap.PathFor(scriptHex)
}

// unblind attempts to open the commitment on output using desc's blinding
// secret for its script; failure (not addressed to us, or decryption
// fails) is not an error — the caller skips it.
func unblind(desc *descriptor.Descriptor, output *transaction.TxOutput) (store.Unblinded, bool) {
	priv, err := desc.BlindingPrivkeyFor(output.Script)
	if err != nil {
		return store.Unblinded{}, false
	}
	result, err := confidential.UnblindOutputWithKey(output, priv.Serialize())
	if err != nil {
		return store.Unblinded{}, false
	}
	var u store.Unblinded
	copy(u.Asset[:], result.Asset)
	u.Value = result.Value
	copy(u.ABF[:], result.AssetBlindingFactor)
	copy(u.VBF[:], result.ValueBlindingFactor)
	return u, true
}
