package store

// Mutations is the output of one synchronization round (or one address
// issuance): a set of changes applied atomically by Store.Apply. Every
// field is additive/replacing only — Mutations never expresses an
// operation that would violate the frontier-monotonicity or
// append-only-unless-reorg invariants; those are enforced by whoever
// constructs a Mutations value (the synchronizer, the address-issuance
// path).
type Mutations struct {
	// Tip replaces the stored tip if non-nil.
	Tip *Tip

	// LastIndex replaces last_index if non-nil. Callers MUST ensure this
	// is never less than the previously stored value.
	LastIndex *uint32

	// NewPaths adds script_pubkey (hex) -> child_index entries.
	NewPaths map[string]uint32

	// NewTxs adds txid (hex) -> raw transaction bytes entries.
	NewTxs map[string][]byte

	// HeightUpdates sets heights[txid] = height (nil pointer value means
	// unconfirmed). A txid key with no prior heights entry is a new
	// member of the wallet's history.
	HeightUpdates map[string]*uint32

	// UnblindedUpserts adds or replaces unblinded[outpoint] entries,
	// keyed by OutPoint.Key().
	UnblindedUpserts map[string]Unblinded

	// UnblindedRemovals removes unblinded entries by OutPoint.Key(); used
	// only by reorg handling when an output becomes orphaned.
	UnblindedRemovals []string

	// HeightRemovals removes a txid's heights entry entirely (it no
	// longer counts as part of the wallet's history), used by reorg
	// handling when the backend "forgets" a transaction. The transaction
	// itself is left in all_txs if still referenced as a parent.
	HeightRemovals []string
}

// IsEmpty reports whether this Mutations value would change nothing were
// it applied; the synchronizer uses this to decide its "changed" return
// value without a separate diff pass.
func (m Mutations) IsEmpty() bool {
	return m.Tip == nil &&
		m.LastIndex == nil &&
		len(m.NewPaths) == 0 &&
		len(m.NewTxs) == 0 &&
		len(m.HeightUpdates) == 0 &&
		len(m.UnblindedUpserts) == 0 &&
		len(m.UnblindedRemovals) == 0 &&
		len(m.HeightRemovals) == 0
}

// Merge folds other into m in place, for synchronizer code that
// accumulates mutations across several internal steps before one commit.
func (m *Mutations) Merge(other Mutations) {
	if other.Tip != nil {
		m.Tip = other.Tip
	}
	if other.LastIndex != nil {
		m.LastIndex = other.LastIndex
	}
	for k, v := range other.NewPaths {
		if m.NewPaths == nil {
			m.NewPaths = map[string]uint32{}
		}
		m.NewPaths[k] = v
	}
	for k, v := range other.NewTxs {
		if m.NewTxs == nil {
			m.NewTxs = map[string][]byte{}
		}
		m.NewTxs[k] = v
	}
	for k, v := range other.HeightUpdates {
		if m.HeightUpdates == nil {
			m.HeightUpdates = map[string]*uint32{}
		}
		m.HeightUpdates[k] = v
	}
	for k, v := range other.UnblindedUpserts {
		if m.UnblindedUpserts == nil {
			m.UnblindedUpserts = map[string]Unblinded{}
		}
		m.UnblindedUpserts[k] = v
	}
	m.UnblindedRemovals = append(m.UnblindedRemovals, other.UnblindedRemovals...)
	m.HeightRemovals = append(m.HeightRemovals, other.HeightRemovals...)
}
