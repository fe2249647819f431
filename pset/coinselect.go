package pset

import (
	"bytes"
	"sort"

	"github.com/elementswallet/wallet-core/utxoview"
)

// selectCoins consumes descending-value UTXOs of a single asset from
// candidates until the running sum is >= required, tie-breaking by
// outpoint bytes for determinism. candidates is assumed already filtered
// to one asset; it is re-sorted defensively so callers don't need to
// pre-sort.
func selectCoins(candidates []utxoview.UnblindedTXO, required uint64) ([]utxoview.UnblindedTXO, uint64, bool) {
	sorted := make([]utxoview.UnblindedTXO, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Unblinded.Value != sorted[j].Unblinded.Value {
			return sorted[i].Unblinded.Value > sorted[j].Unblinded.Value
		}
		return bytes.Compare(outpointKeyBytes(sorted[i]), outpointKeyBytes(sorted[j])) < 0
	})

	var selected []utxoview.UnblindedTXO
	var sum uint64
	for _, u := range sorted {
		if sum >= required {
			break
		}
		selected = append(selected, u)
		sum += u.Unblinded.Value
	}
	return selected, sum, sum >= required
}

func outpointKeyBytes(u utxoview.UnblindedTXO) []byte {
	b := make([]byte, 36)
	copy(b, u.TXO.OutPoint.Txid[:])
	v := u.TXO.OutPoint.Vout
	b[32] = byte(v >> 24)
	b[33] = byte(v >> 16)
	b[34] = byte(v >> 8)
	b[35] = byte(v)
	return b
}

// byAsset groups utxos by asset id.
func byAsset(utxos []utxoview.UnblindedTXO) map[[32]byte][]utxoview.UnblindedTXO {
	out := map[[32]byte][]utxoview.UnblindedTXO{}
	for _, u := range utxos {
		out[u.Unblinded.Asset] = append(out[u.Unblinded.Asset], u)
	}
	return out
}
