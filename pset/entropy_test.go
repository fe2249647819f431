package pset

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestIssuanceEntropy_SecondKnownVector cross-checks the fast-Merkle-root
// plumbing (serializeHashPrevout + fastMerkleRoot2) against a second
// prevout/contract pair, independently computed from the same definition,
// so a mistake isolated to one input shape (e.g. an endian slip that only
// shows up for a non-zero vout) doesn't hide behind a single fixture.
func TestIssuanceEntropy_SecondKnownVector(t *testing.T) {
	var txid [32]byte
	var contractHash [32]byte
	for i := range txid {
		txid[i] = 0x11
		contractHash[i] = 0x22
	}

	entropy := issuanceEntropy(txid, 1, contractHash)
	require.Equal(t, "e12eecd8299445eba93383c5f057d77c2be66cd00adb3527f542b1ff5ef9c425",
		hex.EncodeToString(entropy[:]))

	asset := calculateAsset(entropy)
	require.Equal(t, "d2be3c54d8e01342b3007657c5ef43b35923f7aaae8a1d3ef8af523df2d5ded1",
		hex.EncodeToString(asset[:]))
}
