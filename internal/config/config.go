// Package config centralizes runtime configuration for the oasis node. A
// config file (JSON, YAML or TOML) is optional: missing keys fall back to
// defaults and any key can be overridden with an OASIS_ environment variable,
// e.g. OASIS_API_PORT=9090 or OASIS_STORE_BACKEND=badger.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "OASIS"

// Config holds configurable options for the node.
type Config struct {
	Node    NodeConfig    `mapstructure:"node"`
	Store   StoreConfig   `mapstructure:"store"`
	ABCI    ABCIConfig    `mapstructure:"abci"`
	RPC     RPCConfig     `mapstructure:"rpc"`
	API     APIConfig     `mapstructure:"api"`
	Log     LogConfig     `mapstructure:"log"`
	Economy EconomyConfig `mapstructure:"economy"`
	Staking StakingConfig `mapstructure:"staking"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
}

type NodeConfig struct {
	Home        string `mapstructure:"home"`
	KeyFile     string `mapstructure:"key_file"`
	GenesisFile string `mapstructure:"genesis_file"`
	ChainID     string `mapstructure:"chain_id"`
}

type StoreConfig struct {
	Backend       string `mapstructure:"backend"` // sqlite or badger
	Path          string `mapstructure:"path"`
	KeepSnapshots int    `mapstructure:"keep_snapshots"`
	MaxBackups    int    `mapstructure:"max_backups"`
}

type ABCIConfig struct {
	Address   string `mapstructure:"address"`
	Transport string `mapstructure:"transport"`
}

type RPCConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type APIConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	RingSize   int    `mapstructure:"ring_size"`
}

// EconomyConfig seeds genesis when no genesis file is given. Amounts are
// whole tokens; PricePerToken is in native base units.
type EconomyConfig struct {
	MintReward    uint64 `mapstructure:"mint_reward"`
	BurnReward    uint64 `mapstructure:"burn_reward"`
	PricePerToken string `mapstructure:"price_per_token"`
}

type StakingConfig struct {
	RewardPerDay uint64 `mapstructure:"reward_per_day"`
}

// LedgerConfig bounds the work a single transaction may request.
type LedgerConfig struct {
	MaxBatch uint64 `mapstructure:"max_batch"`
}

var defaults = map[string]any{
	"node.home":         ".oasis",
	"node.key_file":     "oasis_key.pem",
	"node.genesis_file": "",
	"node.chain_id":     "oasis-local",

	"store.backend":        "sqlite",
	"store.path":           "ledger.db",
	"store.keep_snapshots": 100,
	"store.max_backups":    20,

	"abci.address":   "tcp://127.0.0.1:26658",
	"abci.transport": "socket",
	"rpc.url":        "http://127.0.0.1:26657",
	"rpc.timeout":    10 * time.Second,
	"api.port":       8080,

	"log.level":        "info",
	"log.file":         "oasis.log",
	"log.max_size_mb":  50,
	"log.max_backups":  5,
	"log.max_age_days": 28,
	"log.ring_size":    500,

	"economy.mint_reward":     50_000,
	"economy.burn_reward":     10_000,
	"economy.price_per_token": "",
	"staking.reward_per_day":  864,
	"ledger.max_batch":        500,
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads the file at path. If the file does not exist or cannot
// be parsed, LoadConfig returns defaults (plus environment overrides) and no
// error so the node runs in development with minimal friction.
func LoadConfig(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			// file missing or unreadable -> defaults
			v = newViper()
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
