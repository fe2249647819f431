package pset

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/vulpemventures/go-elements/confidential"
)

// BlindingPrimitive is the seam between PSET assembly and the elliptic
// curve / zero-knowledge machinery that turns plaintext output amounts and
// assets into Pedersen commitments plus range and surjection proofs: a
// CSPRNG, an EC context, and the input secrets, invoked as a collaborator
// rather than folded into the builder's own logic.
type BlindingPrimitive interface {
	// BlindLast blinds every output in p with a non-nil BlindingPubkey,
	// balancing the residual blinding factors into the last non-fee
	// blinded output.
	BlindLast(p *Pset) error
}

// secp256k1N is the order of the secp256k1 group; blinding factor
// arithmetic for the balancing output is scalar arithmetic mod this value.
var secp256k1N, _ = new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141", 16)

// GoElementsBlinder is the production BlindingPrimitive. It computes asset
// and value Pedersen commitments via go-elements' confidential package and
// balances the last blinded output's value-blinding-factor with scalar
// arithmetic so that the transaction's blinded totals net to zero per
// asset. Range and surjection proof generation — the deep zero-knowledge
// machinery proving the commitments are well-formed without revealing
// amounts — is left to a downstream signer/finalizer with access to the
// secp256k1-zkp bindings; this type only produces the commitments the
// proofs attest to.
type GoElementsBlinder struct{}

// NewGoElementsBlinder constructs the default blinding primitive.
func NewGoElementsBlinder() *GoElementsBlinder {
	return &GoElementsBlinder{}
}

// BlindLast implements BlindingPrimitive.
func (b *GoElementsBlinder) BlindLast(p *Pset) error {
	blindedIdx := blindedOutputIndices(p)
	if len(blindedIdx) == 0 {
		return nil
	}
	lastBlinded := blindedIdx[len(blindedIdx)-1]

	inputVbfSum := new(big.Int)
	for _, in := range p.Inputs {
		inputVbfSum.Add(inputVbfSum, new(big.Int).SetBytes(in.unblinded.VBF[:]))
	}
	otherOutVbfSum := new(big.Int)

	outAbfs := make([][]byte, len(p.Outputs))
	outVbfs := make([][]byte, len(p.Outputs))

	for _, i := range blindedIdx {
		if i == lastBlinded {
			continue
		}
		abf := randomScalar32()
		vbf := randomScalar32()
		outAbfs[i] = abf
		outVbfs[i] = vbf
		otherOutVbfSum.Add(otherOutVbfSum, new(big.Int).SetBytes(vbf))
	}

	finalVbf := new(big.Int).Sub(inputVbfSum, otherOutVbfSum)
	finalVbf.Mod(finalVbf, secp256k1N)
	outAbfs[lastBlinded] = randomScalar32()
	outVbfs[lastBlinded] = leftPad32(finalVbf.Bytes())

	for _, i := range blindedIdx {
		o := &p.Outputs[i]
		assetCommitment, err := confidential.AssetCommitment(o.Asset[:], outAbfs[i])
		if err != nil {
			return fmt.Errorf("pset: computing asset commitment: %w", err)
		}
		valueCommitment, err := confidential.ValueCommitment(o.Value, assetCommitment, outVbfs[i])
		if err != nil {
			return fmt.Errorf("pset: computing value commitment: %w", err)
		}
		o.AssetCommitment = assetCommitment
		o.ValueCommitment = valueCommitment

		ephPriv, err := btcec.NewPrivateKey()
		if err != nil {
			return fmt.Errorf("pset: generating ephemeral key: %w", err)
		}
		o.EphemeralPubkey = ephPriv.PubKey().SerializeCompressed()
	}

	return nil
}

func blindedOutputIndices(p *Pset) []int {
	var idx []int
	for i, o := range p.Outputs {
		if !o.IsFee && o.BlindingPubkey != nil {
			idx = append(idx, i)
		}
	}
	return idx
}

func randomScalar32() []byte {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return b
}

func leftPad32(b []byte) []byte {
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
