// Package network holds the chain-wide parameters a wallet is configured
// with: the policy asset, address version bytes, indexer endpoint, and the
// on-disk data root. A Config is immutable for the lifetime of a wallet.
package network

import (
	"fmt"

	flags "github.com/jessevdk/go-flags"
	"github.com/vulpemventures/go-elements/network"
)

// Config is the network configuration a Wallet is opened with. It is
// immutable once constructed.
type Config struct {
	// Params carries the address version bytes and HRP for the target
	// chain (network.Liquid, network.Testnet, network.Regtest, or a
	// custom network.Network for a private sidechain).
	Params *network.Network

	// PolicyAsset is the chain's native asset id, big-endian hex as it
	// appears in block explorers (32 bytes reversed from the internal
	// little-endian wire form).
	PolicyAsset string

	// IndexerURL is the base URL of the chain indexer backend (an
	// Esplora-style HTTP API). Transport itself is out of scope; this is
	// only the endpoint the Backend implementation is pointed at.
	IndexerURL string

	// TLSInsecureSkipVerify disables TLS certificate verification; only
	// ever set for local regtest fixtures.
	TLSInsecureSkipVerify bool

	// DataRoot is the directory under which `<wallet_id>/` store
	// directories are created.
	DataRoot string

	// GapLimit overrides the synchronizer's default gap limit (20) when
	// non-zero.
	GapLimit uint32
}

// DefaultGapLimit is the number of consecutive unused addresses scanned
// before the synchronizer concludes a descriptor has no further history.
const DefaultGapLimit = 20

// Validate checks that the configuration is usable. It does not attempt
// any network I/O.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("network: nil config")
	}
	if c.Params == nil {
		return fmt.Errorf("network: params is required")
	}
	if c.PolicyAsset == "" {
		return fmt.Errorf("network: policy asset is required")
	}
	if len(c.PolicyAsset) != 64 {
		return fmt.Errorf("network: policy asset must be a 32-byte hex id, got %d chars", len(c.PolicyAsset))
	}
	if c.DataRoot == "" {
		return fmt.Errorf("network: data root is required")
	}
	return nil
}

// Liquid returns a Config pre-populated with the Liquid mainnet address
// parameters and native asset id. Callers still need to set IndexerURL
// and DataRoot.
func Liquid() *Config {
	return &Config{
		Params:      &network.Liquid,
		PolicyAsset: network.Liquid.AssetID,
		GapLimit:    DefaultGapLimit,
	}
}

// Testnet returns a Config pre-populated with the Liquid testnet address
// parameters and native asset id.
func Testnet() *Config {
	return &Config{
		Params:      &network.Testnet,
		PolicyAsset: network.Testnet.AssetID,
		GapLimit:    DefaultGapLimit,
	}
}

// Regtest returns a Config pre-populated with the Elements regtest address
// parameters. PolicyAsset must still be set by the caller since regtest
// federations mint their own native asset id at genesis.
func Regtest() *Config {
	return &Config{
		Params:   &network.Regtest,
		GapLimit: DefaultGapLimit,
	}
}

// EffectiveGapLimit returns c.GapLimit if set, else DefaultGapLimit.
func (c *Config) EffectiveGapLimit() uint32 {
	if c.GapLimit == 0 {
		return DefaultGapLimit
	}
	return c.GapLimit
}

// Flags is the command-line/config-file surface an embedding CLI parses
// with go-flags before turning it into a Config. It exists separately from
// Config because Params is a *network.Network, not a flag-friendly type;
// Chain selects which preset supplies it.
type Flags struct {
	Chain                 string `long:"chain" description:"liquid, testnet, or regtest" default:"liquid"`
	PolicyAsset           string `long:"policyasset" description:"hex asset id of the chain's native asset; required for regtest, optional override otherwise"`
	IndexerURL            string `long:"indexerurl" description:"base URL of the Esplora-style chain indexer" required:"true"`
	TLSInsecureSkipVerify bool   `long:"tlsinsecureskipverify" description:"skip TLS certificate verification (regtest fixtures only)"`
	DataRoot              string `long:"dataroot" description:"directory under which per-wallet store directories are created" required:"true"`
	GapLimit              uint32 `long:"gaplimit" description:"consecutive unused addresses scanned before a sync round concludes (0 = default)"`
}

// ParseFlags parses args (typically os.Args[1:]) into a Config via Flags.
// It does not call Config.Validate; callers do that once, after any
// additional fields (e.g. a private Params for a custom sidechain) are
// filled in.
func ParseFlags(args []string) (*Config, error) {
	var f Flags
	if _, err := flags.ParseArgs(&f, args); err != nil {
		return nil, err
	}
	return f.toConfig()
}

func (f *Flags) toConfig() (*Config, error) {
	var cfg *Config
	switch f.Chain {
	case "liquid":
		cfg = Liquid()
	case "testnet":
		cfg = Testnet()
	case "regtest":
		cfg = Regtest()
	default:
		return nil, fmt.Errorf("network: unknown chain %q", f.Chain)
	}
	if f.PolicyAsset != "" {
		cfg.PolicyAsset = f.PolicyAsset
	}
	cfg.IndexerURL = f.IndexerURL
	cfg.TLSInsecureSkipVerify = f.TLSInsecureSkipVerify
	cfg.DataRoot = f.DataRoot
	cfg.GapLimit = f.GapLimit
	return cfg, nil
}
