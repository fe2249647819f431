package store

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Unblinded is the opened tuple of a confidential output the wallet can
// decrypt: the plaintext asset and value, and the blinding factors used to
// reconstruct the Pedersen commitments (needed by the PSET builder to
// re-blind inputs when spending them).
type Unblinded struct {
	Asset [32]byte
	Value uint64
	ABF   [32]byte
	VBF   [32]byte
}

// OutPoint identifies a transaction output: (txid, vout).
type OutPoint struct {
	Txid [32]byte
	Vout uint32
}

// Key returns the canonical "txid:vout" string used as a map/bucket key.
func (o OutPoint) Key() string {
	return fmt.Sprintf("%s:%d", hex.EncodeToString(o.Txid[:]), o.Vout)
}

// ParseOutPointKey is the inverse of OutPoint.Key.
func ParseOutPointKey(k string) (OutPoint, error) {
	sep := strings.LastIndexByte(k, ':')
	if sep != 64 {
		return OutPoint{}, fmt.Errorf("store: malformed outpoint key %q", k)
	}
	raw, err := hex.DecodeString(k[:sep])
	if err != nil || len(raw) != 32 {
		return OutPoint{}, fmt.Errorf("store: malformed txid in outpoint key %q", k)
	}
	vout, err := strconv.ParseUint(k[sep+1:], 10, 32)
	if err != nil {
		return OutPoint{}, fmt.Errorf("store: malformed vout in outpoint key %q: %w", k, err)
	}
	var op OutPoint
	copy(op.Txid[:], raw)
	op.Vout = uint32(vout)
	return op, nil
}

// Tip is the chain tip the store last observed.
type Tip struct {
	Height    uint32
	BlockHash [32]byte
}

func encodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func decodeUint32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

// heightSentinel marks an unconfirmed height entry; chosen as the maximum
// uint32 so that sort-by-height-descending naturally ranks unconfirmed
// transactions first (see utxoview.Transactions).
const heightSentinel uint32 = 0xFFFFFFFF

func encodeHeight(h *uint32) []byte {
	if h == nil {
		return encodeUint32(heightSentinel)
	}
	return encodeUint32(*h)
}

func decodeHeight(b []byte) *uint32 {
	v := decodeUint32(b)
	if v == heightSentinel {
		return nil
	}
	h := v
	return &h
}
