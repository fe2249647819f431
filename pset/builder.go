package pset

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/lightningnetwork/lnd/keychain"
	"github.com/vulpemventures/go-elements/network"
	"github.com/vulpemventures/go-elements/transaction"

	"github.com/elementswallet/wallet-core/chainclient"
	"github.com/elementswallet/wallet-core/descriptor"
	"github.com/elementswallet/wallet-core/store"
	"github.com/elementswallet/wallet-core/utxoview"
)

var log btclog.Logger = btclog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// DefaultFee is the fixed policy-asset fee charged when callers don't
// provide an explicit override.
const DefaultFee uint64 = 1000

// reservationTTL bounds how long a Build's coin selection excludes its
// chosen UTXOs from a concurrent Build before the hold expires on its own.
const reservationTTL = 2 * time.Minute

// Builder assembles PSETs against one wallet's store, descriptor, and
// network parameters, invoking blinder for the cryptographic step.
type Builder struct {
	store        *store.Store
	desc         *descriptor.Descriptor
	params       *network.Network
	policyAsset  [32]byte
	blinder      BlindingPrimitive
	reservations *Reservations
}

// NewBuilder constructs a Builder. blinder may be nil, in which case
// NewGoElementsBlinder() is used.
func NewBuilder(s *store.Store, desc *descriptor.Descriptor, params *network.Network, policyAsset [32]byte, blinder BlindingPrimitive) *Builder {
	if blinder == nil {
		blinder = NewGoElementsBlinder()
	}
	return &Builder{store: s, desc: desc, params: params, policyAsset: policyAsset, blinder: blinder}
}

// WithReservations attaches an in-flight UTXO reservation tracker shared
// across a wallet's Builders, so two concurrent Build calls never select
// the same coin. Returns b for chaining.
func (b *Builder) WithReservations(r *Reservations) *Builder {
	b.reservations = r
	return b
}

func (b *Builder) excludeReserved(utxos []utxoview.UnblindedTXO) []utxoview.UnblindedTXO {
	if b.reservations == nil {
		return utxos
	}
	out := make([]utxoview.UnblindedTXO, 0, len(utxos))
	for _, u := range utxos {
		if b.reservations.isHeld(outpointKey(u.TXO.OutPoint)) {
			continue
		}
		out = append(out, u)
	}
	return out
}

// Build validates recipients, selects coins per asset, derives change, and
// assembles and blinds a payment PSET. feeOverride of nil uses DefaultFee.
func (b *Builder) Build(addressees []Addressee, feeOverride *uint64) (*Pset, error) {
	fee := DefaultFee
	if feeOverride != nil {
		fee = *feeOverride
	}

	resolved := make([]resolvedAddressee, 0, len(addressees))
	for _, a := range addressees {
		r, err := validateAddressee(a, b.params, b.policyAsset)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, r)
	}

	totals := map[[32]byte]uint64{}
	for _, r := range resolved {
		totals[r.asset] += r.value
	}
	totals[b.policyAsset] += fee

	utxos, err := utxoview.Utxos(b.store)
	if err != nil {
		return nil, fmt.Errorf("pset: listing utxos: %w", err)
	}
	available := byAsset(b.excludeReserved(utxos))

	type selection struct {
		asset  [32]byte
		coins  []utxoview.UnblindedTXO
		change uint64
	}
	var selections []selection
	for asset, required := range totals {
		coins, sum, ok := selectCoins(available[asset], required)
		if !ok {
			return nil, fmt.Errorf("%w: asset %x needs %d, have %d", ErrInsufficientFunds, asset, required, sum)
		}
		selections = append(selections, selection{asset: asset, coins: coins, change: sum - required})
	}

	p := &Pset{}
	nextChangeIndex := b.store.LastIndex() + 1
	newPaths := map[string]uint32{}

	for _, sel := range selections {
		for _, u := range sel.coins {
			in, err := b.inputFor(u)
			if err != nil {
				return nil, err
			}
			p.Inputs = append(p.Inputs, in)
		}
	}

	for _, r := range resolved {
		p.Outputs = append(p.Outputs, Output{
			Script:         r.script,
			Asset:          r.asset,
			Value:          r.value,
			BlindingPubkey: r.blindingPub,
			BlinderIndex:   0,
		})
	}

	for _, sel := range selections {
		if sel.change == 0 {
			continue
		}
		changeIdx := nextChangeIndex
		nextChangeIndex++
		script, _, _, err := b.desc.DeriveScript(changeIdx)
		if err != nil {
			return nil, fmt.Errorf("pset: deriving change script: %w", err)
		}
		blindingPub, err := b.desc.BlindingPubkeyFor(script)
		if err != nil {
			return nil, fmt.Errorf("pset: deriving change blinding key: %w", err)
		}
		newPaths[hex.EncodeToString(script)] = changeIdx
		p.Outputs = append(p.Outputs, Output{
			Script:         script,
			Asset:          sel.asset,
			Value:          sel.change,
			BlindingPubkey: blindingPub.SerializeCompressed(),
			BlinderIndex:   0,
			IsChange:       true,
		})
	}

	p.Outputs = append(p.Outputs, Output{
		Asset: b.policyAsset,
		Value: fee,
		IsFee: true,
	})

	if len(newPaths) > 0 {
		last := nextChangeIndex - 1
		if err := b.store.Apply(store.Mutations{LastIndex: &last, NewPaths: newPaths}); err != nil {
			return nil, fmt.Errorf("pset: persisting change index: %w", err)
		}
	}

	if b.reservations != nil {
		keys := make([]string, 0, len(p.Inputs))
		for _, in := range p.Inputs {
			keys = append(keys, store.OutPoint{Txid: in.PrevTxid, Vout: in.PrevVout}.Key())
		}
		if err := b.reservations.Reserve(keys, reservationTTL); err != nil {
			return nil, err
		}
	}

	if err := b.blinder.BlindLast(p); err != nil {
		return nil, err
	}
	return p, nil
}

// BuildIssuance selects policy-asset UTXOs (largest first) until they cover
// the fee, makes the first of them the issuance input, and assembles an
// issuance PSET with up to 4 outputs: issued asset, reissuance token (only
// when satoshiToken > 0), policy-asset change (only when non-zero), and fee.
func (b *Builder) BuildIssuance(satoshiAsset, satoshiToken uint64, feeOverride *uint64) (*Pset, error) {
	fee := DefaultFee
	if feeOverride != nil {
		fee = *feeOverride
	}

	utxos, err := utxoview.Utxos(b.store)
	if err != nil {
		return nil, fmt.Errorf("pset: listing utxos: %w", err)
	}
	coins, sum, ok := selectCoins(byAsset(b.excludeReserved(utxos))[b.policyAsset], fee)
	if !ok {
		return nil, fmt.Errorf("%w: policy asset needs %d for issuance fee, have %d", ErrInsufficientFunds, fee, sum)
	}
	issuanceUtxo := coins[0]
	change := sum - fee

	var contractHash [32]byte // no contract binding for this issuance
	entropy := issuanceEntropy(issuanceUtxo.TXO.OutPoint.Txid, issuanceUtxo.TXO.OutPoint.Vout, contractHash)
	assetID := calculateAsset(entropy)

	p := &Pset{}
	for _, u := range coins {
		in, err := b.inputFor(u)
		if err != nil {
			return nil, err
		}
		if u.TXO.OutPoint == issuanceUtxo.TXO.OutPoint {
			in.IssuanceValueAmount = satoshiAsset
			in.IssuanceInflationKeys = satoshiToken
			in.IssuanceAssetEntropy = entropy
		}
		p.Inputs = append(p.Inputs, in)
	}

	nextIdx := b.store.LastIndex() + 1
	newPaths := map[string]uint32{}

	assetScript, _, _, err := b.desc.DeriveScript(nextIdx)
	if err != nil {
		return nil, fmt.Errorf("pset: deriving issuance-asset script: %w", err)
	}
	assetBlindingPub, err := b.desc.BlindingPubkeyFor(assetScript)
	if err != nil {
		return nil, fmt.Errorf("pset: deriving issuance-asset blinding key: %w", err)
	}
	newPaths[hex.EncodeToString(assetScript)] = nextIdx
	p.Outputs = append(p.Outputs, Output{
		Script:         assetScript,
		Asset:          assetID,
		Value:          satoshiAsset,
		BlindingPubkey: assetBlindingPub.SerializeCompressed(),
		BlinderIndex:   0,
	})
	nextIdx++

	if satoshiToken > 0 {
		tokenID := calculateReissuanceToken(entropy, true)
		tokenScript, _, _, err := b.desc.DeriveScript(nextIdx)
		if err != nil {
			return nil, fmt.Errorf("pset: deriving reissuance-token script: %w", err)
		}
		tokenBlindingPub, err := b.desc.BlindingPubkeyFor(tokenScript)
		if err != nil {
			return nil, fmt.Errorf("pset: deriving reissuance-token blinding key: %w", err)
		}
		newPaths[hex.EncodeToString(tokenScript)] = nextIdx
		p.Outputs = append(p.Outputs, Output{
			Script:         tokenScript,
			Asset:          tokenID,
			Value:          satoshiToken,
			BlindingPubkey: tokenBlindingPub.SerializeCompressed(),
			BlinderIndex:   0,
		})
		nextIdx++
	}

	if change > 0 {
		changeScript, _, _, err := b.desc.DeriveScript(nextIdx)
		if err != nil {
			return nil, fmt.Errorf("pset: deriving change script: %w", err)
		}
		changeBlindingPub, err := b.desc.BlindingPubkeyFor(changeScript)
		if err != nil {
			return nil, fmt.Errorf("pset: deriving change blinding key: %w", err)
		}
		newPaths[hex.EncodeToString(changeScript)] = nextIdx
		p.Outputs = append(p.Outputs, Output{
			Script:         changeScript,
			Asset:          b.policyAsset,
			Value:          change,
			BlindingPubkey: changeBlindingPub.SerializeCompressed(),
			BlinderIndex:   0,
			IsChange:       true,
		})
		nextIdx++
	}

	p.Outputs = append(p.Outputs, Output{
		Asset: b.policyAsset,
		Value: fee,
		IsFee: true,
	})

	last := nextIdx - 1
	if err := b.store.Apply(store.Mutations{LastIndex: &last, NewPaths: newPaths}); err != nil {
		return nil, fmt.Errorf("pset: persisting issuance output indices: %w", err)
	}

	if b.reservations != nil {
		keys := make([]string, 0, len(p.Inputs))
		for _, in := range p.Inputs {
			keys = append(keys, store.OutPoint{Txid: in.PrevTxid, Vout: in.PrevVout}.Key())
		}
		if err := b.reservations.Reserve(keys, reservationTTL); err != nil {
			return nil, err
		}
	}

	if err := b.blinder.BlindLast(p); err != nil {
		return nil, err
	}
	return p, nil
}

// inputFor builds an Input from a selected UTXO, populating bip32
// derivation metadata from the descriptor's script-to-index reverse
// lookup. The master fingerprint is left zero: a watch-only builder has
// no master key to compute a real one from, so signers are expected to
// match by Path or Locator instead.
func (b *Builder) inputFor(u utxoview.UnblindedTXO) (Input, error) {
	scriptHex := hex.EncodeToString(u.TXO.Script)
	idx, ok := b.store.PathFor(scriptHex)
	if !ok {
		return Input{}, fmt.Errorf("%w: script %s not in paths", store.ErrMissingVout, scriptHex)
	}
	_, pubKeys, path, err := b.desc.DeriveScript(idx)
	if err != nil {
		return Input{}, fmt.Errorf("pset: re-deriving script at index %d: %w", idx, err)
	}
	derivations := make([]Bip32Derivation, 0, len(pubKeys))
	for _, pk := range pubKeys {
		derivations = append(derivations, Bip32Derivation{
			PubKey:            pk.SerializeCompressed(),
			MasterFingerprint: [4]byte{},
			Path:              path,
			Locator:           keychain.KeyLocator{Family: ExternalChainFamily, Index: idx},
		})
	}
	return Input{
		PrevTxid:         u.TXO.OutPoint.Txid,
		PrevVout:         u.TXO.OutPoint.Vout,
		WitnessAsset:     u.Unblinded.Asset,
		WitnessValue:     u.Unblinded.Value,
		WitnessScript:    u.TXO.Script,
		Bip32Derivations: derivations,
		unblinded:        u.Unblinded,
	}, nil
}

// Finalize resolves witness data for each input per the descriptor and
// extracts the final network-serializable transaction. It expects the
// PSET to already carry the final witness stacks an external signer
// attached (signedWitnesses, aligned by input index); this package never
// signs.
func Finalize(p *Pset, signedWitnesses [][][]byte) (*transaction.Transaction, error) {
	if len(signedWitnesses) != len(p.Inputs) {
		return nil, fmt.Errorf("pset: expected %d witness stacks, got %d", len(p.Inputs), len(signedWitnesses))
	}
	tx := transaction.NewTransaction(2, 0)
	for i, in := range p.Inputs {
		txIn := transaction.NewTxInput(in.PrevTxid[:], in.PrevVout)
		txIn.Witness = signedWitnesses[i]
		tx.Inputs = append(tx.Inputs, txIn)
	}
	for _, o := range p.Outputs {
		if o.IsFee {
			tx.Outputs = append(tx.Outputs, transaction.NewTxOutput(prefixedAsset(o.Asset), prefixedValue(o.Value), nil))
			continue
		}
		if o.AssetCommitment != nil {
			out := transaction.NewTxOutput(o.AssetCommitment, o.ValueCommitment, o.Script)
			out.Nonce = o.EphemeralPubkey
			tx.Outputs = append(tx.Outputs, out)
			continue
		}
		tx.Outputs = append(tx.Outputs, transaction.NewTxOutput(prefixedAsset(o.Asset), prefixedValue(o.Value), o.Script))
	}
	return tx, nil
}

// Broadcast serializes tx and submits it via backend, verifying the
// returned txid matches the locally computed one.
func Broadcast(ctx context.Context, backend chainclient.Backend, tx *transaction.Transaction) ([32]byte, error) {
	rawHex, err := tx.ToHex()
	if err != nil {
		return [32]byte{}, fmt.Errorf("pset: serializing transaction: %w", err)
	}
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return [32]byte{}, fmt.Errorf("pset: decoding serialized transaction: %w", err)
	}
	localTxid := tx.TxHash()

	remoteTxid, err := backend.Broadcast(ctx, raw)
	if err != nil {
		return [32]byte{}, fmt.Errorf("%w: %v", chainclient.ErrBackendTransport, err)
	}
	if remoteTxid != localTxid {
		return [32]byte{}, ErrBroadcastTxidMismatch
	}
	log.Infof("pset: broadcast tx %x", localTxid)
	return localTxid, nil
}

func prefixedAsset(asset [32]byte) []byte {
	return append([]byte{0x01}, asset[:]...)
}

func prefixedValue(value uint64) []byte {
	buf := make([]byte, 9)
	buf[0] = 0x01
	for i := 0; i < 8; i++ {
		buf[8-i] = byte(value >> (8 * i))
	}
	return buf
}
