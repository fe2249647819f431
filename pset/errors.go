package pset

import "errors"

var (
	// ErrNotConfidentialAddress is returned when a recipient address
	// parses but lacks a blinding pubkey.
	ErrNotConfidentialAddress = errors.New("pset: recipient address is not confidential")

	// ErrInvalidAsset is returned when an asset string fails to parse.
	ErrInvalidAsset = errors.New("pset: invalid asset identifier")

	// ErrInsufficientFunds is returned when any asset's selected sum is
	// less than the amount required.
	ErrInsufficientFunds = errors.New("pset: insufficient funds")

	// ErrBroadcastTxidMismatch is returned when the backend-reported
	// txid after broadcast does not match the locally computed txid.
	ErrBroadcastTxidMismatch = errors.New("pset: backend-reported txid does not match local txid")

	// ErrUTXOReserved is returned when Reservations.Reserve is asked to
	// claim an outpoint another in-flight PSET already holds.
	ErrUTXOReserved = errors.New("pset: utxo already reserved by an in-flight pset")
)
