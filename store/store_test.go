package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	fp := Fingerprint("ct(test)", "regtest")
	s, err := Open(t.TempDir(), "walletid", fp)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_SecondHandleIsLocked(t *testing.T) {
	dir := t.TempDir()
	fp := Fingerprint("ct(test)", "regtest")

	s1, err := Open(dir, "walletid", fp)
	require.NoError(t, err)
	defer s1.Close()

	_, err = Open(dir, "walletid", fp)
	require.ErrorIs(t, err, ErrStoreLocked)
}

func TestOpen_DescriptorFingerprintMismatchIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	fp := Fingerprint("ct(test)", "regtest")

	s1, err := Open(dir, "walletid", fp)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	otherFP := Fingerprint("ct(other)", "regtest")
	_, err = Open(dir, "walletid", otherFP)
	require.ErrorIs(t, err, ErrStoreCorrupt)
}

func TestApply_LastIndexMonotonic(t *testing.T) {
	s := openTestStore(t)

	five := uint32(5)
	require.NoError(t, s.Apply(Mutations{LastIndex: &five}))
	require.Equal(t, uint32(5), s.LastIndex())

	two := uint32(2)
	err := s.Apply(Mutations{LastIndex: &two})
	require.Error(t, err)
	require.Equal(t, uint32(5), s.LastIndex())
}

func TestApply_PathsAndUnblindedRoundtrip(t *testing.T) {
	s := openTestStore(t)

	var txid [32]byte
	txid[0] = 0xAB
	op := OutPoint{Txid: txid, Vout: 1}

	u := Unblinded{Value: 100_000}
	u.Asset[0] = 0x01

	err := s.Apply(Mutations{
		NewPaths:         map[string]uint32{"deadbeef": 7},
		UnblindedUpserts: map[string]Unblinded{op.Key(): u},
	})
	require.NoError(t, err)

	idx, ok := s.PathFor("deadbeef")
	require.True(t, ok)
	require.Equal(t, uint32(7), idx)

	got, ok := s.UnblindedFor(op)
	require.True(t, ok)
	require.Equal(t, u, got)
}

func TestApply_UnblindedRemoval(t *testing.T) {
	s := openTestStore(t)

	var txid [32]byte
	op := OutPoint{Txid: txid, Vout: 0}
	u := Unblinded{Value: 1}

	require.NoError(t, s.Apply(Mutations{UnblindedUpserts: map[string]Unblinded{op.Key(): u}}))
	_, ok := s.UnblindedFor(op)
	require.True(t, ok)

	require.NoError(t, s.Apply(Mutations{UnblindedRemovals: []string{op.Key()}}))
	_, ok = s.UnblindedFor(op)
	require.False(t, ok)
}

func TestApply_HeightUpdatesUnconfirmedVsConfirmed(t *testing.T) {
	s := openTestStore(t)

	h := uint32(100)
	require.NoError(t, s.Apply(Mutations{HeightUpdates: map[string]*uint32{"txid1": &h}}))
	got, ok := s.HeightOf("txid1")
	require.True(t, ok)
	require.Equal(t, uint32(100), *got)

	require.NoError(t, s.Apply(Mutations{HeightUpdates: map[string]*uint32{"txid1": nil}}))
	got, ok = s.HeightOf("txid1")
	require.True(t, ok)
	require.Nil(t, got)
}

func TestOutPointKeyRoundtrip(t *testing.T) {
	var txid [32]byte
	txid[31] = 0x42
	op := OutPoint{Txid: txid, Vout: 3}

	parsed, err := ParseOutPointKey(op.Key())
	require.NoError(t, err)
	require.Equal(t, op, parsed)
}
