package walletsync

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/go-elements/transaction"

	"github.com/elementswallet/wallet-core/chainclient"
	"github.com/elementswallet/wallet-core/descriptor"
	"github.com/elementswallet/wallet-core/store"
)

const testDescriptor = "ct(slip77(9c8e4f05c7711a98c838be228bcb84924d4570ca53f35fa1c793e58841d47023),elsh(wpkh(tpubDC2Q4xK4XH72GLdvD62W5NsFiD3HmTScXpopTsf3b4AUqkQwBd7wmWAJki61sov1MVuyU4MuGLJHF7h3j1b3e1FY2wvUVVx7vagmxdPvVsv/0/*)))#yfhwtmd8"

type fakeBackend struct {
	tip       chainclient.BlockHeader
	histories map[int][]chainclient.History // script index -> history
	txs       map[[32]byte][]byte
	served    int // scripts answered so far; Round asks for indices in ascending order from 0
}

func (f *fakeBackend) Tip(ctx context.Context) (chainclient.BlockHeader, error) { return f.tip, nil }

func (f *fakeBackend) Broadcast(ctx context.Context, rawTx []byte) ([32]byte, error) {
	return [32]byte{}, nil
}

func (f *fakeBackend) GetTransactions(ctx context.Context, txids [][32]byte) ([][]byte, error) {
	out := make([][]byte, len(txids))
	for i, txid := range txids {
		out[i] = f.txs[txid]
	}
	return out, nil
}

func (f *fakeBackend) GetHeaders(ctx context.Context, heights []uint32, known map[uint32][32]byte) ([]chainclient.BlockHeader, error) {
	return nil, nil
}

func (f *fakeBackend) GetScriptsHistory(ctx context.Context, scripts [][]byte) ([][]chainclient.History, error) {
	out := make([][]chainclient.History, len(scripts))
	for i := range scripts {
		out[i] = f.histories[f.served+i]
	}
	f.served += len(scripts)
	return out, nil
}

func (f *fakeBackend) Capabilities() map[chainclient.Capability]bool { return nil }

func (f *fakeBackend) GetHistoryWaterfalls(ctx context.Context, desc string, state chainclient.WaterfallsState) (chainclient.WaterfallsResult, error) {
	return chainclient.WaterfallsResult{}, nil
}

func openSyncStore(t *testing.T) *store.Store {
	t.Helper()
	fp := store.Fingerprint(testDescriptor, "regtest")
	s, err := store.Open(t.TempDir(), "walletid", fp)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRound_EmptyHistoryAdvancesNothingButTip(t *testing.T) {
	desc, err := descriptor.Parse(testDescriptor)
	require.NoError(t, err)

	s := openSyncStore(t)
	backend := &fakeBackend{
		tip:       chainclient.BlockHeader{Height: 100},
		histories: map[int][]chainclient.History{},
	}

	mutations, changed, err := Round(context.Background(), desc, backend, s, 5)
	require.NoError(t, err)
	require.True(t, changed) // tip always counts as a change here
	require.NotNil(t, mutations.Tip)
	require.Equal(t, uint32(100), mutations.Tip.Height)
	require.Nil(t, mutations.LastIndex)
}

func TestRound_HistoryBeyondFrontierExtendsLastIndex(t *testing.T) {
	desc, err := descriptor.Parse(testDescriptor)
	require.NoError(t, err)

	script, _, _, err := desc.DeriveScript(3)
	require.NoError(t, err)

	asset := make([]byte, 33)
	asset[0] = 0x01
	value := make([]byte, 9)
	value[0] = 0x01
	value[8] = 0x10

	tx := transaction.NewTransaction(2, 0)
	tx.Outputs = append(tx.Outputs, transaction.NewTxOutput(asset, value, script))
	rawHex, err := tx.ToHex()
	require.NoError(t, err)
	raw, err := hex.DecodeString(rawHex)
	require.NoError(t, err)
	txid := tx.TxHash()

	s := openSyncStore(t)
	backend := &fakeBackend{
		tip: chainclient.BlockHeader{Height: 1},
		histories: map[int][]chainclient.History{
			3: {{Txid: txid, Height: nil}},
		},
		txs: map[[32]byte][]byte{txid: raw},
	}

	mutations, changed, err := Round(context.Background(), desc, backend, s, 5)
	require.NoError(t, err)
	require.True(t, changed)
	require.NotNil(t, mutations.LastIndex)
	require.Equal(t, uint32(3), *mutations.LastIndex)
	require.Contains(t, mutations.HeightUpdates, hex.EncodeToString(txid[:]))
	require.Equal(t, raw, mutations.NewTxs[hex.EncodeToString(txid[:])])
}
