package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// defaultYAML is a starting point operators copy and edit, not
// something this process reads automatically (Load reads .env/env
// vars only).
type defaultYAML struct {
	RPCURL              string `yaml:"rpcUrl"`
	ProgramID           string `yaml:"programId"`
	Pools               string `yaml:"pools"`
	DiscoverPools       bool   `yaml:"discoverPools"`
	DiscoveryRefreshSec int    `yaml:"discoveryRefreshSec"`
	SignatureLookback   int    `yaml:"signatureLookback"`
	TradesPollMs        int    `yaml:"tradesPollMs"`
	CandlesTickMs       int    `yaml:"candlesTickMs"`
	CandlesFlushMs      int    `yaml:"candlesFlushMs"`
	CorsOrigins         string `yaml:"corsOrigins"`
	WsTicketTtlSec      int    `yaml:"wsTicketTtlSec"`
	DatabaseURL         string `yaml:"databaseUrl"`
	HTTPAddr            string `yaml:"httpAddr"`
	LogLevel            string `yaml:"logLevel"`
	MetricsAddr         string `yaml:"metricsAddr"`
	StakeVaultID        string `yaml:"stakeVaultId"`
	StakeMint           string `yaml:"stakeMint"`
	StakeFlushMs        int    `yaml:"stakeFlushMs"`
	NFTVaultScanAddress string `yaml:"nftVaultScanAddress"`
	NFTUnlockWindowSec  int64  `yaml:"nftUnlockWindowSec"`
	NFTUnlockCheckSec   int    `yaml:"nftUnlockCheckSec"`
}

// WriteDefaultYAML writes a starter config file to path, used by
// `cmd/indexer config-init`.
func WriteDefaultYAML(path string) error {
	doc := defaultYAML{
		RPCURL:              "https://api.mainnet-beta.solana.com",
		ProgramID:           "",
		DiscoverPools:       false,
		DiscoveryRefreshSec: 60,
		SignatureLookback:   50,
		TradesPollMs:        2000,
		CandlesTickMs:       1000,
		CandlesFlushMs:      1000,
		WsTicketTtlSec:      30,
		DatabaseURL:         "postgres://localhost:5432/orbit_finance",
		HTTPAddr:            ":8080",
		LogLevel:            "info",
		MetricsAddr:         ":9090",
		StakeVaultID:        "",
		StakeMint:           "",
		StakeFlushMs:        1000,
		NFTVaultScanAddress: "",
		NFTUnlockWindowSec:  0,
		NFTUnlockCheckSec:   60,
	}
	b, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
