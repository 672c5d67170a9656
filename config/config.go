package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"salegate/native/sale"
)

// Config is the daemon configuration loaded from TOML.
type Config struct {
	RPCAddress        string              `toml:"RPCAddress"`
	AdminToken        string              `toml:"AdminToken"`
	DataDir           string              `toml:"DataDir"`
	Engine            string              `toml:"Engine"`
	RequestsPerMinute float64             `toml:"RequestsPerMinute"`
	RequestBurst      int                 `toml:"RequestBurst"`
	Sale              sale.SaleConfig     `toml:"sale"`
	Security          sale.SecurityConfig `toml:"security"`
	Roles             map[string][]string `toml:"roles"`
	Genesis           Genesis             `toml:"genesis"`
}

// Genesis seeds the in-process ledgers on first boot.
type Genesis struct {
	// AssetSupply is minted to the engine address as initial inventory.
	AssetSupply string `toml:"AssetSupply"`
	// PaymentFaucet maps bech32 addresses to initial payment balances.
	// Intended for development deployments.
	PaymentFaucet map[string]string `toml:"PaymentFaucet"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s contains unknown keys: %s", path, strings.Join(keys, ", "))
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./saled-data"
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 600
	}
	if cfg.RequestBurst <= 0 {
		cfg.RequestBurst = 20
	}
	if cfg.Roles == nil {
		cfg.Roles = map[string][]string{}
	}
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Engine) == "" {
		return fmt.Errorf("config: Engine address required")
	}
	if strings.TrimSpace(cfg.AdminToken) == "" {
		return fmt.Errorf("config: AdminToken required for privileged RPC methods")
	}
	if _, err := cfg.Sale.Parameters(); err != nil {
		return err
	}
	if _, err := cfg.Security.Parameters(); err != nil {
		return err
	}
	return nil
}
