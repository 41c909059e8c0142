// Package config loads this process's configuration from a .env file
// and the environment with viper + godotenv. Every variable here is a
// flat scalar, so there is no config-file tree to merge.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config carries every environment variable this process recognizes:
// the indexing knobs plus what's needed to actually run the process
// (database, HTTP, logging, metrics, fee-refresh tuning and the
// unknown-transaction persistence toggle).
type Config struct {
	RPCURL    string `mapstructure:"rpcUrl"`
	WSURL     string `mapstructure:"wsUrl"`
	ProgramID string `mapstructure:"programId"`
	Pools     string `mapstructure:"pools"` // csv, optional

	DiscoverPools       bool `mapstructure:"discoverPools"`
	DiscoveryRefreshSec int  `mapstructure:"discoveryRefreshSec"`
	SignatureLookback   int  `mapstructure:"signatureLookback"`
	TradesPollMs        int  `mapstructure:"tradesPollMs"`
	BackfillMaxPerPool  int  `mapstructure:"backfillMaxPerPool"`
	BackfillPageSize    int  `mapstructure:"backfillPageSize"`
	CandlesTickMs       int  `mapstructure:"candlesTickMs"`
	CandlesFlushMs      int  `mapstructure:"candlesFlushMs"`

	CorsOrigins    string `mapstructure:"corsOrigins"`
	WsTicketTtlSec int    `mapstructure:"wsTicketTtlSec"`

	StakeVaultID        string `mapstructure:"stakeVaultId"` // token-vault scan address; empty disables the indexer
	StakeMint           string `mapstructure:"stakeMint"`
	StakeFlushMs        int    `mapstructure:"stakeFlushMs"`
	NFTVaultScanAddress string `mapstructure:"nftVaultScanAddress"` // NFT-stake scan address; empty disables the indexer
	NFTUnlockWindowSec  int64  `mapstructure:"nftUnlockWindowSec"`
	NFTUnlockCheckSec   int    `mapstructure:"nftUnlockCheckSec"`

	// Operational settings for running the process as a service.
	DatabaseURL           string `mapstructure:"databaseUrl"`
	HTTPAddr              string `mapstructure:"httpAddr"`
	LogLevel              string `mapstructure:"logLevel"`
	MetricsAddr           string `mapstructure:"metricsAddr"`
	FeeDebounceMs         int64  `mapstructure:"feeDebounceMs"`
	FeeMinIntervalMs      int64  `mapstructure:"feeMinIntervalMs"`
	EventPersistUnknownTx bool   `mapstructure:"eventPersistUnknownTx"`
}

func withDefaults(v *viper.Viper) {
	v.SetDefault("wsUrl", "")
	v.SetDefault("discoverPools", false)
	v.SetDefault("discoveryRefreshSec", 60)
	v.SetDefault("signatureLookback", 50)
	v.SetDefault("tradesPollMs", 2000)
	v.SetDefault("backfillMaxPerPool", 0)
	v.SetDefault("backfillPageSize", 1000)
	v.SetDefault("candlesTickMs", 1000)
	v.SetDefault("candlesFlushMs", 1000)
	v.SetDefault("corsOrigins", "")
	v.SetDefault("wsTicketTtlSec", 30)
	v.SetDefault("stakeVaultId", "")
	v.SetDefault("stakeMint", "")
	v.SetDefault("stakeFlushMs", 1000)
	v.SetDefault("nftVaultScanAddress", "")
	v.SetDefault("nftUnlockWindowSec", 0)
	v.SetDefault("nftUnlockCheckSec", 60)
	v.SetDefault("databaseUrl", "")
	v.SetDefault("httpAddr", ":8080")
	v.SetDefault("logLevel", "info")
	v.SetDefault("metricsAddr", ":9090")
	v.SetDefault("feeDebounceMs", 500)
	v.SetDefault("feeMinIntervalMs", 1000)
	v.SetDefault("eventPersistUnknownTx", true)
}

// Load reads .env (if present, never required) then the process
// environment: one entry point, no config-file search path.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional; missing .env is not an error

	v := viper.New()
	withDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, key := range []string{
		"rpcUrl", "wsUrl", "programId", "pools", "discoverPools", "discoveryRefreshSec",
		"signatureLookback", "tradesPollMs", "backfillMaxPerPool", "backfillPageSize",
		"candlesTickMs", "candlesFlushMs", "corsOrigins", "wsTicketTtlSec",
		"databaseUrl", "httpAddr", "logLevel", "metricsAddr",
		"feeDebounceMs", "feeMinIntervalMs", "eventPersistUnknownTx",
		"stakeVaultId", "stakeMint", "stakeFlushMs",
		"nftVaultScanAddress", "nftUnlockWindowSec", "nftUnlockCheckSec",
	} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("config: rpcUrl is required")
	}
	if cfg.ProgramID == "" {
		return nil, fmt.Errorf("config: programId is required")
	}
	return &cfg, nil
}

// PoolList splits the csv Pools field into a slice, trimming
// whitespace and dropping empty entries.
func (c *Config) PoolList() []string {
	if c.Pools == "" {
		return nil
	}
	parts := strings.Split(c.Pools, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CorsOriginList splits the csv CorsOrigins field the same way.
func (c *Config) CorsOriginList() []string {
	if c.CorsOrigins == "" {
		return nil
	}
	parts := strings.Split(c.CorsOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FeeDebounce and FeeMinInterval convert the millisecond config
// fields to time.Duration for feevault.Config.
func (c *Config) FeeDebounce() time.Duration    { return time.Duration(c.FeeDebounceMs) * time.Millisecond }
func (c *Config) FeeMinInterval() time.Duration { return time.Duration(c.FeeMinIntervalMs) * time.Millisecond }
