package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/kelseyhightower/envconfig"

	"blockmsg/artifact"
	"blockmsg/wallet"
)

// FileName is the config file kept in the user's home directory.
const FileName = ".blockmsg-config.json"

// Config represents the application configuration
type Config struct {
	Networks        []Network `json:"networks"`
	Keystore        string    `json:"keystore,omitempty"`
	ContractAddress string    `json:"contract_address,omitempty"`
	RequiredChainID string    `json:"required_chain_id,omitempty"`
	Artifact        string    `json:"artifact,omitempty"`
	AutoApprove     bool      `json:"auto_approve"`
	Logger          bool      `json:"logger"`
}

// Network represents a network the wallet knows
type Network struct {
	Name     string          `json:"name"`
	ChainID  uint64          `json:"chain_id"`
	URL      string          `json:"url"`
	Active   bool            `json:"active"`
	Currency wallet.Currency `json:"currency"`
}

// Params converts the entry for the wallet.
func (n Network) Params() wallet.ChainParams {
	return wallet.ChainParams{ChainID: n.ChainID, Name: n.Name, RPCURL: n.URL, Currency: n.Currency}
}

// NetworkFromParams is the inverse of Params.
func NetworkFromParams(p wallet.ChainParams) Network {
	return Network{Name: p.Name, ChainID: p.ChainID, URL: p.RPCURL, Currency: p.Currency}
}

// Env holds the BLOCKMSG_* environment overrides.
type Env struct {
	ContractAddress  string   `envconfig:"CONTRACT_ADDRESS"`
	ContractChainID  string   `envconfig:"CONTRACT_CHAIN_ID"`
	RPCURL           string   `envconfig:"RPC_URL"`
	PrivateKeys      []string `envconfig:"PRIVATE_KEYS"`
	Keystore         string   `envconfig:"KEYSTORE"`
	KeystorePassword string   `envconfig:"KEYSTORE_PASSWORD"`
}

// LoadEnv reads the BLOCKMSG_* variables.
func LoadEnv() (Env, error) {
	var env Env
	if err := envconfig.Process("blockmsg", &env); err != nil {
		return Env{}, fmt.Errorf("failed to process env: %w", err)
	}
	return env, nil
}

// DefaultPath returns ~/.blockmsg-config.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return FileName
	}
	return filepath.Join(home, FileName)
}

// Load reads the config from the specified path
func Load(path string) Config {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}

	return cfg
}

// Save writes the config to the specified path
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// DefaultConfig returns a new configuration with sensible defaults
func DefaultConfig() Config {
	local := NetworkFromParams(wallet.LocalChain)
	local.Active = true
	return Config{
		Networks: []Network{
			local,
			{
				Name:     "Sepolia",
				ChainID:  11155111,
				URL:      "https://ethereum-sepolia-rpc.publicnode.com",
				Currency: wallet.Currency{Name: "Sepolia Ether", Symbol: "ETH", Decimals: 18},
			},
		},
		Logger: false,
	}
}

// LoadOrCreate loads config from path, or creates a default one if not found
func LoadOrCreate(path string) Config {
	data, err := os.ReadFile(path)
	if err != nil {
		cfg := DefaultConfig()
		_ = Save(path, cfg)
		return cfg
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig()
	}
	if len(cfg.Networks) == 0 {
		cfg.Networks = DefaultConfig().Networks
	}
	return cfg
}

// ActiveNetwork returns the active network, or the first one.
func (c Config) ActiveNetwork() (Network, bool) {
	for _, n := range c.Networks {
		if n.Active {
			return n, true
		}
	}
	if len(c.Networks) > 0 {
		return c.Networks[0], true
	}
	return Network{}, false
}

// SetActive marks the network with chainID active.
func (c *Config) SetActive(chainID uint64) {
	for i := range c.Networks {
		c.Networks[i].Active = c.Networks[i].ChainID == chainID
	}
}

// MergeNetworks adds networks not yet in the config, keeping existing entries.
func (c *Config) MergeNetworks(params []wallet.ChainParams) bool {
	changed := false
	for _, p := range params {
		found := false
		for _, n := range c.Networks {
			if n.ChainID == p.ChainID {
				found = true
				break
			}
		}
		if !found {
			c.Networks = append(c.Networks, NetworkFromParams(p))
			changed = true
		}
	}
	return changed
}

// ApplyEnv overlays environment values that replace file values.
func (c *Config) ApplyEnv(env Env) {
	if env.RPCURL != "" {
		if len(c.Networks) == 0 {
			c.Networks = []Network{{Name: "Custom", URL: env.RPCURL, Active: true}}
		} else {
			idx := 0
			for i, n := range c.Networks {
				if n.Active {
					idx = i
					break
				}
			}
			c.Networks[idx].URL = env.RPCURL
		}
	}
	if env.Keystore != "" {
		c.Keystore = env.Keystore
	}
	if env.ContractAddress != "" {
		c.ContractAddress = env.ContractAddress
	}
	if env.ContractChainID != "" {
		c.RequiredChainID = env.ContractChainID
	}
}

// Resolved is the contract configuration the dApp starts with.
type Resolved struct {
	ContractAddress string
	ABI             abi.ABI
	RequiredChainID uint64
	Enforced        bool
	ArtifactSource  string
}

// Resolve picks the contract address and network expectation: the config
// (already overlaid with env) wins over the deployment artifact.
func Resolve(cfg Config, art artifact.Artifact) (Resolved, error) {
	parsed, err := art.ParsedABI()
	if err != nil {
		return Resolved{}, err
	}
	r := Resolved{
		ContractAddress: strings.TrimSpace(cfg.ContractAddress),
		ABI:             parsed,
		ArtifactSource:  art.Source,
	}
	if r.ContractAddress == "" {
		r.ContractAddress = art.Address
	}

	chain := strings.TrimSpace(cfg.RequiredChainID)
	if chain == "" {
		chain = art.ChainID
	}
	if chain != "" {
		id, err := wallet.ParseChainID(chain)
		if err != nil {
			return Resolved{}, fmt.Errorf("required chain id: %w", err)
		}
		r.RequiredChainID = id
		r.Enforced = true
	}
	return r, nil
}
