package descriptor

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/go-elements/network"
)

const (
	fixedWpkhDescriptor = "ct(slip77(9c8e4f05c7711a98c838be228bcb84924d4570ca53f35fa1c793e58841d47023),elwpkh(tpubDD7tXK8KeQ3YY83yWq755fHY2JW8Ha8Q765tknUM5rSvjPcGWfUppDFMpQ1ScziKfW3ZNtZvAD7M3u7bSs7HofjTD3KP3YxPK7X6hwV8Rk2))#qw2qy2ml"
	wildcardShWpkhDescriptor = "ct(slip77(9c8e4f05c7711a98c838be228bcb84924d4570ca53f35fa1c793e58841d47023),elsh(wpkh(tpubDC2Q4xK4XH72GLdvD62W5NsFiD3HmTScXpopTsf3b4AUqkQwBd7wmWAJki61sov1MVuyU4MuGLJHF7h3j1b3e1FY2wvUVVx7vagmxdPvVsv/0/*)))#yfhwtmd8"
	bareDescriptor = "ct(02f3b07e5507da2b0a8459671e50c1936d68e1dd8c5ff3ea40a0caf82edc9da29,elwpkh(tpubDD7tXK8KeQ3YY83yWq755fHY2JW8Ha8Q765tknUM5rSvjPcGWfUppDFMpQ1ScziKfW3ZNtZvAD7M3u7bSs7HofjTD3KP3YxPK7X6hwV8Rk2))#00000000"
)

// S1: a fixed (non-wildcard) elwpkh descriptor parses and derives a stable
// address at index 0.
func TestParse_FixedWpkh(t *testing.T) {
	d, err := Parse(fixedWpkhDescriptor)
	require.NoError(t, err)
	require.Equal(t, KindWpkh, d.Kind)
	require.False(t, d.Wildcard)

	addr1, err := d.DeriveAddress(0, &network.Regtest)
	require.NoError(t, err)
	require.Equal(t, "el1qqthj9zn320epzlcgd07kktp5ae2xgx82fkm42qqxaqg80l0fszueszj4mdsceqqfpv24x0cmkvd8awux8agrc32m9nj9sp0hk", addr1)

	// Property 1: address derivation is pure and stable across calls.
	addr2, err := d.DeriveAddress(0, &network.Regtest)
	require.NoError(t, err)
	require.Equal(t, addr1, addr2)

	_, _, _, err = d.DeriveScript(1)
	require.ErrorIs(t, err, ErrFixedIndexOutOfRange)
}

// S2: a wildcard elsh(wpkh(.../0/*)) descriptor derives distinct addresses
// at distinct indices.
func TestParse_WildcardShWpkh(t *testing.T) {
	d, err := Parse(wildcardShWpkhDescriptor)
	require.NoError(t, err)
	require.Equal(t, KindShWpkh, d.Kind)
	require.True(t, d.Wildcard)

	addr0, err := d.DeriveAddress(0, &network.Testnet)
	require.NoError(t, err)
	require.Equal(t, "vjTwLVioiKrDJ7zZZn9iQQrxP6RPpcvpHBhzZrbdZKKVZE29FuXSnkXdKcxK3qD5t1rYsdxcm9KYRMji", addr0)

	addr1, err := d.DeriveAddress(1, &network.Testnet)
	require.NoError(t, err)
	require.Equal(t, "vjTuhaPWWbywbSy2EeRWWQ8bN2pPLmM4gFQTkA7DPX7uaCApKuav1e6LW1GKHuLUHdbv9Eag5MybsZoy", addr1)
}

// S6: a bare (non-slip77, non-extended) blinding key fails to parse before
// any store mutation could occur.
func TestParse_BareBlindingRejected(t *testing.T) {
	_, err := Parse(bareDescriptor)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestDeriveScript_Wpkh_IsP2WPKHTemplate(t *testing.T) {
	d, err := Parse(fixedWpkhDescriptor)
	require.NoError(t, err)

	script, pubKeys, path, err := d.DeriveScript(0)
	require.NoError(t, err)
	require.Len(t, pubKeys, 1)
	require.Empty(t, path)
	require.Len(t, script, 22)
	require.Equal(t, byte(0x00), script[0])
	require.Equal(t, byte(0x14), script[1])
}

func TestDeriveScript_ShWpkh_IsP2SHTemplate(t *testing.T) {
	d, err := Parse(wildcardShWpkhDescriptor)
	require.NoError(t, err)

	script, pubKeys, path, err := d.DeriveScript(3)
	require.NoError(t, err)
	require.Len(t, pubKeys, 1)
	require.Equal(t, []uint32{0, 3}, path)
	require.Len(t, script, 23)
	require.Equal(t, byte(0xa9), script[0])
	require.Equal(t, byte(0x87), script[len(script)-1])
}

func TestBlindingPrivkeyFor_Slip77IsDeterministic(t *testing.T) {
	d, err := Parse(fixedWpkhDescriptor)
	require.NoError(t, err)

	script, _, _, err := d.DeriveScript(0)
	require.NoError(t, err)

	p1, err := d.BlindingPrivkeyFor(script)
	require.NoError(t, err)
	p2, err := d.BlindingPrivkeyFor(script)
	require.NoError(t, err)
	require.Equal(t, p1.Serialize(), p2.Serialize())
}
