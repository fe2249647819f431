// Package pset assembles PSET v2 payloads from a store snapshot and a set
// of requested payments or an issuance request: recipient/asset
// validation, per-asset coin selection with change, input/output assembly,
// issuance entropy, and the call into the blinding primitive. The wallet
// never signs — PSETs leave this package for an external signer and come
// back through Finalize.
package pset

import (
	"github.com/lightningnetwork/lnd/keychain"

	"github.com/elementswallet/wallet-core/store"
)

// ExternalChainFamily is the key family this wallet's single derivation
// path is tagged with when describing a key to an external signer via a
// keychain.KeyLocator. A watch-only descriptor has no internal/change
// family of its own — every descriptor here derives a single external
// chain — so one family value is enough to namespace it from families a
// signer might use for unrelated purposes.
const ExternalChainFamily keychain.KeyFamily = 0

// Bip32Derivation is one entry of an input's bip32_derivation map: the
// signer pubkey and the path an external signer must walk from its master
// key to reproduce the matching private key. Locator carries the same
// derivation index as a keychain.KeyLocator, the form an lnd-style remote
// signer expects instead of a raw path.
type Bip32Derivation struct {
	PubKey            []byte
	MasterFingerprint [4]byte
	Path              []uint32
	Locator           keychain.KeyLocator
}

// Input is one PSET input. WitnessAsset/WitnessValue/WitnessScript mirror
// the PSBT witness_utxo field's unblinded view, which the watch-only
// wallet always has for its own outputs.
type Input struct {
	PrevTxid [32]byte
	PrevVout uint32

	WitnessAsset  [32]byte
	WitnessValue  uint64
	WitnessScript []byte

	Bip32Derivations []Bip32Derivation

	// Issuance fields are zero on a non-issuance input.
	IssuanceValueAmount   uint64
	IssuanceInflationKeys uint64
	IssuanceAssetEntropy  [32]byte

	// unblinded carries the opened commitment the blinding primitive needs
	// to balance blinding factors; it is not part of the wire PSET.
	unblinded store.Unblinded
}

// Output is one PSET output. A fee output has IsFee set, an empty script,
// and no blinding key. Asset/Value are always the plaintext values the
// builder computed; AssetCommitment/ValueCommitment/EphemeralPubkey are
// populated by the blinding primitive for every output with a non-nil
// BlindingPubkey. Range and surjection proof bytes are the blinding
// primitive's responsibility to attach to the wire PSET it hands to an
// external signer; this package's Pset value carries the commitments the
// core needs to reason about (balance, change, finalize) and leaves proof
// bytes to whatever wire encoder sits downstream of BlindingPrimitive.
type Output struct {
	Script         []byte
	Asset          [32]byte
	Value          uint64
	BlindingPubkey []byte
	BlinderIndex   uint32
	IsFee          bool
	IsChange       bool

	AssetCommitment []byte
	ValueCommitment []byte
	EphemeralPubkey []byte
}

// Pset is this package's in-memory PSET v2 representation. It is not a
// wire-format codec; Finalize converts it into a network-serializable
// transaction after external signing.
type Pset struct {
	Inputs  []Input
	Outputs []Output
}

// outputTotals sums every output per asset, the fee output included; used
// by test assertions for property 4.
func (p *Pset) outputTotals() map[[32]byte]uint64 {
	totals := map[[32]byte]uint64{}
	for _, o := range p.Outputs {
		totals[o.Asset] += o.Value
	}
	return totals
}

func (p *Pset) inputTotals() map[[32]byte]uint64 {
	totals := map[[32]byte]uint64{}
	for _, in := range p.Inputs {
		totals[in.WitnessAsset] += in.WitnessValue
	}
	return totals
}
