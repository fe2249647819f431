// Package utxoview derives spendable outputs and per-asset balances from a
// store snapshot: owned outputs minus spent inputs, folded into balances
// and sorted transaction history. Every function here is a pure read over
// the store — no mutation, no network I/O.
package utxoview

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/vulpemventures/go-elements/transaction"

	"github.com/elementswallet/wallet-core/store"
)

// TXO is an output the wallet can see: its outpoint, script, and
// confirmation height (nil = unconfirmed, unknown if the parent tx isn't
// in history).
type TXO struct {
	OutPoint store.OutPoint
	Script   []byte
	Height   *uint32
}

// UnblindedTXO pairs a TXO with its opened commitment.
type UnblindedTXO struct {
	TXO       TXO
	Unblinded store.Unblinded
}

// Utxos computes owned outputs minus spent inputs, sorted descending by
// unblinded value.
func Utxos(s *store.Store) ([]UnblindedTXO, error) {
	spent, err := s.SpentOutpoints()
	if err != nil {
		return nil, fmt.Errorf("utxoview: computing spent outpoints: %w", err)
	}

	var out []UnblindedTXO
	var iterErr error
	s.IterUnblinded(func(op store.OutPoint, u store.Unblinded) bool {
		if _, isSpent := spent[op.Key()]; isSpent {
			return true
		}
		txo, err := resolveTXO(s, op)
		if err != nil {
			iterErr = err
			return false
		}
		out = append(out, UnblindedTXO{TXO: txo, Unblinded: u})
		return true
	})
	if iterErr != nil {
		return nil, iterErr
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Unblinded.Value != out[j].Unblinded.Value {
			return out[i].Unblinded.Value > out[j].Unblinded.Value
		}
		return bytes.Compare(outpointBytes(out[i].TXO.OutPoint), outpointBytes(out[j].TXO.OutPoint)) < 0
	})
	return out, nil
}

func resolveTXO(s *store.Store, op store.OutPoint) (TXO, error) {
	txidHex := hex.EncodeToString(op.Txid[:])
	raw, ok := s.GetTx(txidHex)
	if !ok {
		return TXO{}, fmt.Errorf("%w: %s", store.ErrMissingTransaction, txidHex)
	}
	t, err := transaction.NewTxFromHex(hex.EncodeToString(raw))
	if err != nil {
		return TXO{}, fmt.Errorf("%w: %s: %v", store.ErrStoreCorrupt, txidHex, err)
	}
	if int(op.Vout) >= len(t.Outputs) {
		return TXO{}, fmt.Errorf("%w: %s:%d", store.ErrMissingVout, txidHex, op.Vout)
	}
	height, _ := s.HeightOf(txidHex)
	return TXO{OutPoint: op, Script: t.Outputs[op.Vout].Script, Height: height}, nil
}

func outpointBytes(op store.OutPoint) []byte {
	b := make([]byte, 36)
	copy(b, op.Txid[:])
	b[32] = byte(op.Vout >> 24)
	b[33] = byte(op.Vout >> 16)
	b[34] = byte(op.Vout >> 8)
	b[35] = byte(op.Vout)
	return b
}

// Balance folds Utxos() per asset; policyAsset is always present, even if
// zero.
func Balance(s *store.Store, policyAsset [32]byte) (map[[32]byte]uint64, error) {
	utxos, err := Utxos(s)
	if err != nil {
		return nil, err
	}
	balances := map[[32]byte]uint64{policyAsset: 0}
	for _, u := range utxos {
		balances[u.Unblinded.Asset] += u.Unblinded.Value
	}
	return balances, nil
}

// TxEntry is one entry of Transactions(): the raw transaction bytes and
// its confirmation height.
type TxEntry struct {
	Txid   [32]byte
	Raw    []byte
	Height *uint32
}

// Transactions returns the wallet's transaction history sorted by height
// descending (unconfirmed sorts highest), tie-broken by txid descending.
func Transactions(s *store.Store) []TxEntry {
	var out []TxEntry
	s.IterHeights(func(txidHex string, height *uint32) bool {
		raw, ok := s.GetTx(txidHex)
		if !ok {
			return true
		}
		txidBytes, err := hex.DecodeString(txidHex)
		if err != nil || len(txidBytes) != 32 {
			return true
		}
		var txid [32]byte
		copy(txid[:], txidBytes)
		out = append(out, TxEntry{Txid: txid, Raw: raw, Height: height})
		return true
	})

	sort.SliceStable(out, func(i, j int) bool {
		hi, hj := effectiveHeight(out[i].Height), effectiveHeight(out[j].Height)
		if hi != hj {
			return hi > hj
		}
		return bytes.Compare(out[i].Txid[:], out[j].Txid[:]) > 0
	})
	return out
}

func effectiveHeight(h *uint32) uint32 {
	if h == nil {
		return ^uint32(0)
	}
	return *h
}
