// Package chainclient defines the capability set the synchronizer depends
// on and the shared wire-level types backends exchange. Concrete
// backends (package chainclient/esplora) implement Backend against a real
// indexer; transport itself — HTTP, Electrum, or otherwise — is an
// external collaborator the interface exists precisely to keep out of the
// synchronizer's reach.
package chainclient

import "context"

// Capability names a backend feature beyond the baseline capability set.
type Capability string

// Waterfalls is the batch-history optimization: a single round-trip
// returning the full owned history for a descriptor, optionally
// age-encrypted to a server-advertised recipient, in place of a per-script
// gap-limit scan.
const Waterfalls Capability = "waterfalls"

// BlockHeader is the minimal header data the synchronizer needs.
type BlockHeader struct {
	Height    uint32
	BlockHash [32]byte
}

// History is one entry in a script's transaction history.
type History struct {
	Txid   [32]byte
	Height *uint32 // nil = unconfirmed
}

// WaterfallsState is opaque server-side cursor state a prior waterfalls
// response returned, replayed on the next call to resume incrementally.
type WaterfallsState []byte

// WaterfallsResult is the batch response: per-script histories aligned by
// index, plus updated cursor state.
type WaterfallsResult struct {
	Histories [][]History
	State     WaterfallsState
}

// Backend is the capability set the synchronizer depends on. Every method
// is a blocking, synchronous call; an implementation wrapping an
// asynchronous transport MUST build this as a cooperative adapter sharing
// one runtime, never spawning nested event loops per call.
type Backend interface {
	// Tip returns the current chain tip.
	Tip(ctx context.Context) (BlockHeader, error)

	// Broadcast submits a raw transaction and returns the txid the
	// backend accepted it under.
	Broadcast(ctx context.Context, rawTx []byte) ([32]byte, error)

	// GetTransactions fetches full transactions by txid; the result
	// order matches the input order.
	GetTransactions(ctx context.Context, txids [][32]byte) ([][]byte, error)

	// GetHeaders fetches headers for the given heights; known is a hint
	// of heights the caller already has a hash for, letting the backend
	// skip re-sending unchanged headers.
	GetHeaders(ctx context.Context, heights []uint32, known map[uint32][32]byte) ([]BlockHeader, error)

	// GetScriptsHistory returns, for each input script (aligned by
	// index), the list of histories referencing it. An empty inner slice
	// means no history.
	GetScriptsHistory(ctx context.Context, scripts [][]byte) ([][]History, error)

	// Capabilities reports the optional features this backend supports.
	Capabilities() map[Capability]bool

	// GetHistoryWaterfalls is only valid when Capabilities()[Waterfalls];
	// descriptor is the descriptor string sent to the server as given; any
	// encryption of it is left to the caller.
	GetHistoryWaterfalls(ctx context.Context, descriptor string, state WaterfallsState) (WaterfallsResult, error)
}
