// Package config loads the operator's YAML configuration file, following
// the same Load/Default-with-fallback shape the rest of the corpus uses.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full operator configuration. Keys
// are flat, top-level YAML fields matching the documented configuration
// surface, not grouped into nested sections.
type Config struct {
	RPCURL          string `yaml:"rpc_url"`
	WrapperAddr     string `yaml:"wrapper_addr"`
	DistributorAddr string `yaml:"distributor_addr"`
	TokenAddr       string `yaml:"token_addr"` // informational only; tokens are discovered via Chain.Tokens
	PrivateKey      string `yaml:"private_key"`

	OperatorFeePercent float64 `yaml:"operator_fee"` // e.g. 10 for 10%
	OutputFile         string  `yaml:"output_file"`
	ConcurrencyCap     int     `yaml:"concurrency_cap"`

	GatewayURL string `yaml:"ipfs_gateway"`
	APIURL     string `yaml:"ipfs_api"` // Kubo add-API endpoint; not part of the read path, needed for Put
	CacheDir   string `yaml:"cache_dir"`

	MetricsListen string `yaml:"metrics_listen"`
}

// Load reads path as YAML; a missing file falls back to Default() rather
// than erroring. Default() sets no contract addresses, so `distrib
// generate` still needs a config file that supplies them.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	applyDefaults(c)
	return c, nil
}

func applyDefaults(c *Config) {
	if c.ConcurrencyCap <= 0 {
		c.ConcurrencyCap = 8
	}
	if c.OutputFile == "" {
		c.OutputFile = "./distribution.json"
	}
	if c.GatewayURL == "" {
		c.GatewayURL = "https://ipfs.io"
	}
	if c.APIURL == "" {
		c.APIURL = "http://127.0.0.1:5001"
	}
	if c.CacheDir == "" {
		c.CacheDir = "./data"
	}
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		RPCURL:             "http://127.0.0.1:8545",
		OperatorFeePercent: 0,
		OutputFile:         "./distribution.json",
		ConcurrencyCap:     8,
		GatewayURL:         "https://ipfs.io",
		APIURL:             "http://127.0.0.1:5001",
		CacheDir:           "./data",
	}
}
