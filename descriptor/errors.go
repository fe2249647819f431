package descriptor

import "errors"

// Sentinel errors raised by the descriptor adapter. Callers should compare
// with errors.Is; wrapped context is added with fmt.Errorf("...: %w", err).
var (
	// ErrInvalidDescriptor is returned when a descriptor string fails to
	// parse, or when it names a Bare blinding variant.
	ErrInvalidDescriptor = errors.New("descriptor: invalid or unsupported descriptor string")

	// ErrBlindingBareUnsupported is returned when the adapter is asked to
	// derive a blinding secret or pubkey from a Bare blinding variant.
	ErrBlindingBareUnsupported = errors.New("descriptor: bare blinding keys are not supported")

	// ErrUnexpectedHardenedDerivation is returned by the script-to-index
	// reverse lookup when the stored path names a hardened child; this is
	// unreachable for a well-formed external-chain descriptor but is
	// checked defensively.
	ErrUnexpectedHardenedDerivation = errors.New("descriptor: unexpected hardened derivation in external chain")

	// ErrFixedIndexOutOfRange is returned when DeriveScript is called
	// with a non-zero index against a non-wildcard (fixed) descriptor.
	ErrFixedIndexOutOfRange = errors.New("descriptor: index out of range for a fixed (non-wildcard) descriptor")
)
