package wallet

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/go-elements/transaction"

	"github.com/elementswallet/wallet-core/chainclient"
	"github.com/elementswallet/wallet-core/descriptor"
	netcfg "github.com/elementswallet/wallet-core/network"
	"github.com/elementswallet/wallet-core/store"
)

const walletTestDescriptor = "ct(slip77(9c8e4f05c7711a98c838be228bcb84924d4570ca53f35fa1c793e58841d47023),elwpkh(tpubDD7tXK8KeQ3YY83yWq755fHY2JW8Ha8Q765tknUM5rSvjPcGWfUppDFMpQ1ScziKfW3ZNtZvAD7M3u7bSs7HofjTD3KP3YxPK7X6hwV8Rk2))#qw2qy2ml"

func testConfig(t *testing.T) *netcfg.Config {
	t.Helper()
	cfg := netcfg.Regtest()
	cfg.PolicyAsset = "aa00000000000000000000000000000000000000000000000000000000000000"
	cfg.DataRoot = t.TempDir()
	cfg.IndexerURL = "http://127.0.0.1:0"
	return cfg
}

func TestOpen_AddressMatchesDescriptorDerivation(t *testing.T) {
	cfg := testConfig(t)
	w, err := Open(cfg, walletTestDescriptor)
	require.NoError(t, err)
	defer w.Close()

	addr, err := w.Address(0)
	require.NoError(t, err)

	desc, err := descriptor.Parse(walletTestDescriptor)
	require.NoError(t, err)
	want, err := desc.DeriveAddress(0, cfg.Params)
	require.NoError(t, err)
	require.Equal(t, want, addr)
}

func TestOpen_SecondHandleSameDescriptorIsLocked(t *testing.T) {
	cfg := testConfig(t)
	w, err := Open(cfg, walletTestDescriptor)
	require.NoError(t, err)
	defer w.Close()

	_, err = Open(cfg, walletTestDescriptor)
	require.ErrorIs(t, err, store.ErrStoreLocked)
}

func TestNextAddress_AdvancesFrontierMonotonically(t *testing.T) {
	cfg := testConfig(t)
	w, err := Open(cfg, walletTestDescriptor)
	require.NoError(t, err)
	defer w.Close()

	_, idx1, err := w.NextAddress()
	require.NoError(t, err)
	_, idx2, err := w.NextAddress()
	require.NoError(t, err)
	require.Greater(t, idx2, idx1)
}

func TestBalance_ReflectsDirectlyAppliedUtxo(t *testing.T) {
	cfg := testConfig(t)
	w, err := Open(cfg, walletTestDescriptor)
	require.NoError(t, err)
	defer w.Close()

	var policyAsset [32]byte
	raw, err := hex.DecodeString(cfg.PolicyAsset)
	require.NoError(t, err)
	copy(policyAsset[:], raw)

	script, _, _, err := w.desc.DeriveScript(0)
	require.NoError(t, err)

	tx := transaction.NewTransaction(2, 0)
	asset := append([]byte{0x01}, policyAsset[:]...)
	val := make([]byte, 9)
	val[0] = 0x01
	val[8] = 0x64 // 100
	tx.Outputs = append(tx.Outputs, transaction.NewTxOutput(asset, val, script))
	rawHex, err := tx.ToHex()
	require.NoError(t, err)
	txRaw, err := hex.DecodeString(rawHex)
	require.NoError(t, err)
	txid := tx.TxHash()
	txidHex := hex.EncodeToString(txid[:])

	err = w.store.Apply(store.Mutations{
		NewPaths:      map[string]uint32{hex.EncodeToString(script): 0},
		NewTxs:        map[string][]byte{txidHex: txRaw},
		HeightUpdates: map[string]*uint32{txidHex: nil},
		UnblindedUpserts: map[string]store.Unblinded{
			store.OutPoint{Txid: txid, Vout: 0}.Key(): {Asset: policyAsset, Value: 100},
		},
	})
	require.NoError(t, err)

	balances, err := w.Balance()
	require.NoError(t, err)
	require.Equal(t, uint64(100), balances[policyAsset])

	utxos, err := w.Utxos()
	require.NoError(t, err)
	require.Len(t, utxos, 1)
}

type noopBackend struct{ tip chainclient.BlockHeader }

func (b *noopBackend) Tip(ctx context.Context) (chainclient.BlockHeader, error) { return b.tip, nil }
func (b *noopBackend) Broadcast(ctx context.Context, raw []byte) ([32]byte, error) {
	return [32]byte{}, nil
}
func (b *noopBackend) GetTransactions(ctx context.Context, txids [][32]byte) ([][]byte, error) {
	return make([][]byte, len(txids)), nil
}
func (b *noopBackend) GetHeaders(ctx context.Context, heights []uint32, known map[uint32][32]byte) ([]chainclient.BlockHeader, error) {
	return nil, nil
}
func (b *noopBackend) GetScriptsHistory(ctx context.Context, scripts [][]byte) ([][]chainclient.History, error) {
	return make([][]chainclient.History, len(scripts)), nil
}
func (b *noopBackend) Capabilities() map[chainclient.Capability]bool { return nil }
func (b *noopBackend) GetHistoryWaterfalls(ctx context.Context, desc string, state chainclient.WaterfallsState) (chainclient.WaterfallsResult, error) {
	return chainclient.WaterfallsResult{}, nil
}

func TestSync_TipAdvancesWithEmptyHistory(t *testing.T) {
	cfg := testConfig(t)
	w, err := Open(cfg, walletTestDescriptor)
	require.NoError(t, err)
	defer w.Close()

	changed, err := w.Sync(context.Background(), &noopBackend{tip: chainclient.BlockHeader{Height: 42}})
	require.NoError(t, err)
	require.True(t, changed)

	tip, ok := w.Tip()
	require.True(t, ok)
	require.Equal(t, uint32(42), tip.Height)
}
