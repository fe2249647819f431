package pset

import (
	"crypto/sha256"
	"encoding/binary"
)

// dsha256 is the double-SHA256 used by SerializeHash: Bitcoin/Elements'
// usual hash of a serialized object (here, a prevout).
func dsha256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// fastMerkleRoot2 combines two leaves with Elements' "fast" Merkle root:
// a single SHA256 of the concatenated leaves, not a double-SHA256. This
// is the node-combine function ComputeFastMerkleRoot uses internally;
// every issuance id in this file is a two-leaf instance of it, so the
// general N-leaf tree-walk is unneeded.
func fastMerkleRoot2(a, b [32]byte) [32]byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, a[:]...)
	buf = append(buf, b[:]...)
	return sha256.Sum256(buf)
}

// serializeHashPrevout is SerializeHash(prevout): the double-SHA256 of the
// serialized outpoint (32-byte txid in internal byte order, 4-byte
// little-endian vout).
func serializeHashPrevout(prevTxid [32]byte, prevVout uint32) [32]byte {
	buf := make([]byte, 0, 36)
	buf = append(buf, prevTxid[:]...)
	voutBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(voutBuf, prevVout)
	buf = append(buf, voutBuf...)
	return dsha256(buf)
}

// issuanceEntropy computes GenerateAssetEntropy(prevout, contract_hash):
// the fast Merkle root of the two leaves [SerializeHash(prevout),
// contract_hash]. No third-party library in the corpus exposes it, so it
// is implemented directly against the consensus rule.
func issuanceEntropy(prevTxid [32]byte, prevVout uint32, contractHash [32]byte) [32]byte {
	return fastMerkleRoot2(serializeHashPrevout(prevTxid, prevVout), contractHash)
}

// calculateAsset derives the asset id from issuance entropy: the fast
// Merkle root of [entropy, 0x00...00] (CalculateAsset).
func calculateAsset(entropy [32]byte) [32]byte {
	return fastMerkleRoot2(entropy, [32]byte{})
}

// calculateReissuanceToken derives the reissuance token id from issuance
// entropy: the fast Merkle root of [entropy, tag], where tag's first byte
// distinguishes confidential (2) from unconfidential (1) issuance and the
// remaining 31 bytes are zero (CalculateReissuanceToken).
func calculateReissuanceToken(entropy [32]byte, confidential bool) [32]byte {
	var tag [32]byte
	if confidential {
		tag[0] = 0x02
	} else {
		tag[0] = 0x01
	}
	return fastMerkleRoot2(entropy, tag)
}
