package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Trust    TrustConfig    `yaml:"trust"`
	Billing  BillingConfig  `yaml:"billing"`
	Chain    ChainConfig    `yaml:"chain"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Env  string `yaml:"env"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type TrustConfig struct {
	// ScoreCacheTTLSeconds is how long a category's scored list stays
	// valid without an intervening invalidation.
	ScoreCacheTTLSeconds int    `yaml:"score_cache_ttl_seconds"`
	ScoreCachePrefix     string `yaml:"score_cache_prefix"`

	// BatchThreshold is the per-scope queue depth that triggers an
	// on-chain reputation flush.
	BatchThreshold     int `yaml:"batch_threshold"`
	BatchFlushSeconds  int `yaml:"batch_flush_seconds"`
	BudgetResetSeconds int `yaml:"budget_reset_seconds"`
}

type BillingConfig struct {
	// EstimatedGasUSD is the constant per-transaction gas estimate used
	// when live estimation is off or fails. Base L2 average.
	EstimatedGasUSD     float64 `yaml:"estimated_gas_usd"`
	GasBufferMultiplier float64 `yaml:"gas_buffer_multiplier"`
	MaxPaymentUSD       float64 `yaml:"max_payment_usd"`
}

type ChainConfig struct {
	RPCURL          string  `yaml:"rpc_url"`
	RegistryAddress string  `yaml:"registry_address"`
	OperatorAddress string  `yaml:"operator_address"`
	ETHPriceUSD     float64 `yaml:"eth_price_usd"`
	TimeoutMs       int     `yaml:"timeout_ms"`
}

// Default returns the configuration used when no yaml file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Env:  "development",
		},
		Database: DatabaseConfig{
			URL: "postgres://localhost:5432/fabric?sslmode=disable",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Trust: TrustConfig{
			ScoreCacheTTLSeconds: 300,
			ScoreCachePrefix:     "trust:score:",
			BatchThreshold:       100,
			BatchFlushSeconds:    300,
			BudgetResetSeconds:   300,
		},
		Billing: BillingConfig{
			EstimatedGasUSD:     0.00025,
			GasBufferMultiplier: 1.2,
			MaxPaymentUSD:       10000,
		},
		Chain: ChainConfig{
			RPCURL:      "https://sepolia.base.org",
			ETHPriceUSD: 3000,
			TimeoutMs:   5000,
		},
	}
}

// Load reads the yaml config at path over the defaults, then applies
// environment overrides. A missing path is not an error: env-only
// deployments (Cloud Run) pass an empty path.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("FABRIC_ENV"); v != "" {
		c.Server.Env = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("CHAIN_RPC_URL"); v != "" {
		c.Chain.RPCURL = v
	}
	if v := os.Getenv("FABRIC_REGISTRY_ADDRESS"); v != "" {
		c.Chain.RegistryAddress = v
	}
	if v := os.Getenv("FABRIC_OPERATOR_ADDRESS"); v != "" {
		c.Chain.OperatorAddress = v
	}
	if v := os.Getenv("ETH_PRICE_USD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Chain.ETHPriceUSD = f
		}
	}
}

func (c *Config) ScoreCacheTTL() time.Duration {
	return time.Duration(c.Trust.ScoreCacheTTLSeconds) * time.Second
}

func (c *Config) BatchFlushInterval() time.Duration {
	return time.Duration(c.Trust.BatchFlushSeconds) * time.Second
}

func (c *Config) BudgetResetInterval() time.Duration {
	return time.Duration(c.Trust.BudgetResetSeconds) * time.Second
}
