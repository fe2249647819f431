package store

import "errors"

var (
	// ErrStoreLocked is returned when a second handle is opened against a
	// wallet_id already held open by another process.
	ErrStoreLocked = errors.New("store: wallet is locked by another process")

	// ErrStoreCorrupt is returned when the persisted document fails its
	// version or descriptor-fingerprint integrity check.
	ErrStoreCorrupt = errors.New("store: persisted document failed integrity check")

	// ErrMissingTransaction is returned when an operation references a
	// txid that is not present in the store.
	ErrMissingTransaction = errors.New("store: referenced transaction is not in the store")

	// ErrMissingVout is returned when an operation references a vout past
	// the end of its transaction's output list.
	ErrMissingVout = errors.New("store: referenced output index is out of range")
)
