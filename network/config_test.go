package network

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFlags_RegtestRequiresExplicitPolicyAsset(t *testing.T) {
	cfg, err := ParseFlags([]string{
		"--chain=regtest",
		"--policyasset=" + "aa00000000000000000000000000000000000000000000000000000000000000",
		"--indexerurl=http://127.0.0.1:3000",
		"--dataroot=/tmp/wallet-data",
	})
	require.NoError(t, err)
	require.Same(t, Regtest().Params, cfg.Params)
	require.Equal(t, "aa00000000000000000000000000000000000000000000000000000000000000", cfg.PolicyAsset)
	require.NoError(t, cfg.Validate())
}

func TestParseFlags_UnknownChainRejected(t *testing.T) {
	_, err := ParseFlags([]string{
		"--chain=mainnet",
		"--indexerurl=http://127.0.0.1:3000",
		"--dataroot=/tmp/wallet-data",
	})
	require.Error(t, err)
}

func TestParseFlags_LiquidUsesPresetPolicyAssetByDefault(t *testing.T) {
	cfg, err := ParseFlags([]string{
		"--indexerurl=https://blockstream.info/liquid/api",
		"--dataroot=/tmp/wallet-data",
	})
	require.NoError(t, err)
	require.Equal(t, Liquid().PolicyAsset, cfg.PolicyAsset)
}
