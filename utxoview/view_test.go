package utxoview

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/go-elements/transaction"

	"github.com/elementswallet/wallet-core/store"
)

func buildSimpleTx(t *testing.T, scripts [][]byte, values []uint64) *transaction.Transaction {
	t.Helper()
	tx := transaction.NewTransaction(2, 0)
	for i, script := range scripts {
		out := transaction.NewTxOutput(assetBytes(), valueBytes(values[i]), script)
		tx.Outputs = append(tx.Outputs, out)
	}
	return tx
}

func assetBytes() []byte {
	b := make([]byte, 33)
	b[0] = 0x01 // explicit (unconfidential) asset prefix
	return b
}

func valueBytes(v uint64) []byte {
	b := make([]byte, 9)
	b[0] = 0x01 // explicit (unconfidential) value prefix
	for i := 0; i < 8; i++ {
		b[8-i] = byte(v >> (8 * i))
	}
	return b
}

func openViewStore(t *testing.T) *store.Store {
	t.Helper()
	fp := store.Fingerprint("ct(test)", "regtest")
	s, err := store.Open(t.TempDir(), "walletid", fp)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUtxos_ListsUnspentOwnedOutput(t *testing.T) {
	s := openViewStore(t)

	fundingTx := buildSimpleTx(t, [][]byte{{0x00, 0x14}}, []uint64{100_000})
	raw, err := fundingTx.ToHex()
	require.NoError(t, err)
	rawBytes, err := hex.DecodeString(raw)
	require.NoError(t, err)
	txid := fundingTx.TxHash()

	var txidArr [32]byte
	copy(txidArr[:], txid[:])
	op := store.OutPoint{Txid: txidArr, Vout: 0}

	err = s.Apply(store.Mutations{
		NewTxs:           map[string][]byte{hex.EncodeToString(txidArr[:]): rawBytes},
		UnblindedUpserts: map[string]store.Unblinded{op.Key(): {Value: 100_000}},
	})
	require.NoError(t, err)

	utxos, err := Utxos(s)
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	require.Equal(t, uint64(100_000), utxos[0].Unblinded.Value)
}

func TestBalance_AlwaysIncludesPolicyAsset(t *testing.T) {
	s := openViewStore(t)
	var policy [32]byte
	policy[0] = 0xAA

	bal, err := Balance(s, policy)
	require.NoError(t, err)
	v, ok := bal[policy]
	require.True(t, ok)
	require.Equal(t, uint64(0), v)
}

func TestEffectiveHeight_UnconfirmedSortsHighest(t *testing.T) {
	require.Greater(t, effectiveHeight(nil), effectiveHeight(uint32Ptr(1_000_000)))
}

func uint32Ptr(v uint32) *uint32 { return &v }
