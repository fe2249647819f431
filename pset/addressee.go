package pset

import (
	"encoding/hex"
	"fmt"

	"github.com/vulpemventures/go-elements/address"
	"github.com/vulpemventures/go-elements/network"
)

// Addressee is one requested payment: an amount of an asset to a
// confidential address. An empty Asset means the network's policy asset.
type Addressee struct {
	Value   uint64
	Address string
	Asset   string
}

// resolvedAddressee is an Addressee after validation: the address decoded
// to a script and blinding pubkey, and the asset decoded to its 32-byte id.
type resolvedAddressee struct {
	value       uint64
	script      []byte
	blindingPub []byte
	asset       [32]byte
}

// validateAddressee parses a.Address under params and a.Asset against
// policyAsset, rejecting non-confidential addresses and malformed assets.
func validateAddressee(a Addressee, params *network.Network, policyAsset [32]byte) (resolvedAddressee, error) {
	script, blindingPub, err := validateAddress(a.Address, params)
	if err != nil {
		return resolvedAddressee{}, err
	}
	asset, err := validateAsset(a.Asset, policyAsset)
	if err != nil {
		return resolvedAddressee{}, err
	}
	return resolvedAddressee{value: a.Value, script: script, blindingPub: blindingPub, asset: asset}, nil
}

// validateAddress decodes a confidential address string into its script
// pubkey and blinding pubkey; a well-formed but unconfidential address
// (no blinding key) is rejected.
func validateAddress(addr string, params *network.Network) (script []byte, blindingPub []byte, err error) {
	script, err = address.ToOutputScript(addr)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNotConfidentialAddress, err)
	}
	isConfidential, err := address.IsConfidential(addr)
	if err != nil || !isConfidential {
		return nil, nil, ErrNotConfidentialAddress
	}
	confidential, err := address.FromConfidential(addr)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNotConfidentialAddress, err)
	}
	return script, confidential.BlindingKey, nil
}

// validateAsset decodes a hex asset id, or returns policyAsset for "".
func validateAsset(assetStr string, policyAsset [32]byte) ([32]byte, error) {
	if assetStr == "" {
		return policyAsset, nil
	}
	raw, err := hex.DecodeString(assetStr)
	if err != nil || len(raw) != 32 {
		return [32]byte{}, fmt.Errorf("%w: %q", ErrInvalidAsset, assetStr)
	}
	var out [32]byte
	copy(out[:], raw)
	return out, nil
}
