package descriptor

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// BlindingKey is the closed tagged union of the three confidential-
// descriptor blinding variants, closed rather than left open for deep
// subtyping; the unexported method seals it to this package.
type BlindingKey interface {
	isBlindingKey()
}

// Slip77Key is a deterministic symmetric master blinding secret. Per-script
// tweaks are derived with HMAC-SHA256(master_secret, script_pubkey), the
// scheme published as SLIP-0077.
type Slip77Key struct {
	Secret [32]byte
}

func (Slip77Key) isBlindingKey() {}

// ViewKey is a view-only extended private key used only to derive
// per-script blinding tweaks, never to sign.
type ViewKey struct {
	ExtKey *hdkeychain.ExtendedKey
}

func (ViewKey) isBlindingKey() {}

// BareKey is a raw (non-extended) blinding key. It is always rejected: see
// ErrBlindingBareUnsupported.
type BareKey struct {
	Raw []byte
}

func (BareKey) isBlindingKey() {}

// secp256k1 group order, used to reduce HMAC/hash output into a valid
// scalar before constructing a private key.
var secp256k1N, _ = new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141", 16)

// parseBlindingKey dispatches the blinding sub-expression of a descriptor
// into one of the three variants.
func parseBlindingKey(s string) (BlindingKey, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "slip77(") && strings.HasSuffix(s, ")"):
		hexSecret := s[len("slip77(") : len(s)-1]
		if len(hexSecret) != 64 {
			return nil, fmt.Errorf("%w: slip77 secret must be 32 bytes hex", ErrInvalidDescriptor)
		}
		var secret [32]byte
		if _, err := fmt.Sscanf(hexSecret, "%x", &secret); err != nil {
			return nil, fmt.Errorf("%w: invalid slip77 hex: %v", ErrInvalidDescriptor, err)
		}
		return Slip77Key{Secret: secret}, nil
	default:
		// Try to parse as an extended key (view variant); any extended
		// key string (tprv/xprv/tpub/xpub) lands here.
		if ext, err := hdkeychain.NewKeyFromString(s); err == nil {
			if !ext.IsPrivate() {
				// A view key exists to unblind the wallet's own outputs; a
				// public-only extended key never had a private scalar to
				// do that with, so reject it rather than open a wallet
				// that can never read its own balance.
				return nil, fmt.Errorf("%w: view blinding key must be an extended private key", ErrInvalidDescriptor)
			}
			return ViewKey{ExtKey: ext}, nil
		}
		// Anything else is a bare/raw key: always unsupported.
		return BareKey{Raw: []byte(s)}, nil
	}
}

// BlindingPrivkeyFor returns the private scalar that unblinds (and
// generates the confidential address for) the given output script.
func (d *Descriptor) BlindingPrivkeyFor(script []byte) (*btcec.PrivateKey, error) {
	switch b := d.Blinding.(type) {
	case Slip77Key:
		mac := hmac.New(sha256.New, b.Secret[:])
		mac.Write(script)
		tweak := mac.Sum(nil)
		priv, _ := btcec.PrivKeyFromBytes(reduceScalar(tweak))
		return priv, nil
	case ViewKey:
		viewPriv, err := b.ExtKey.ECPrivKey()
		if err != nil {
			return nil, fmt.Errorf("view key has no private scalar: %w", err)
		}
		viewPub := viewPriv.PubKey()
		h := sha256.New()
		h.Write(viewPub.SerializeCompressed())
		h.Write(consensusEncodeScript(script))
		tweak := h.Sum(nil)
		sum := new(big.Int).Add(
			new(big.Int).SetBytes(viewPriv.Serialize()),
			new(big.Int).SetBytes(tweak),
		)
		sum.Mod(sum, secp256k1N)
		priv, _ := btcec.PrivKeyFromBytes(leftPad32(sum.Bytes()))
		return priv, nil
	case BareKey:
		return nil, ErrBlindingBareUnsupported
	default:
		return nil, fmt.Errorf("%w: unrecognized blinding variant", ErrInvalidDescriptor)
	}
}

// BlindingPubkeyFor returns the public blinding key corresponding to
// BlindingPrivkeyFor(script); this is what gets embedded in derived
// confidential addresses.
func (d *Descriptor) BlindingPubkeyFor(script []byte) (*btcec.PublicKey, error) {
	priv, err := d.BlindingPrivkeyFor(script)
	if err != nil {
		return nil, err
	}
	return priv.PubKey(), nil
}

func reduceScalar(b []byte) []byte {
	n := new(big.Int).SetBytes(b)
	n.Mod(n, secp256k1N)
	return leftPad32(n.Bytes())
}

func leftPad32(b []byte) []byte {
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

// consensusEncodeScript serializes script the way Script::consensus_encode
// does: a CompactSize length prefix followed by the raw bytes. The view-key
// tweak hashes this encoding, not the bare script, so it must match exactly.
func consensusEncodeScript(script []byte) []byte {
	out := make([]byte, 0, 9+len(script))
	out = appendCompactSize(out, uint64(len(script)))
	return append(out, script...)
}

func appendCompactSize(b []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(b, byte(n))
	case n <= 0xffff:
		b = append(b, 0xfd, byte(n), byte(n>>8))
		return b
	case n <= 0xffffffff:
		b = append(b, 0xfe, byte(n), byte(n>>8), byte(n>>16), byte(n>>24))
		return b
	default:
		b = append(b, 0xff, byte(n), byte(n>>8), byte(n>>16), byte(n>>24),
			byte(n>>32), byte(n>>40), byte(n>>48), byte(n>>56))
		return b
	}
}
