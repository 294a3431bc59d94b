// Package config loads the service's runtime configuration: a YAML
// defaults file for the Morpho per-chain RPC endpoint and contract address
// table, layered under environment variables for every other tunable
// (spec.md §6.1). Environment variables always win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/flare-signals/signal-engine/internal/fetcher/morpho"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	WebhookSecret     string
	WebhookTimeout    time.Duration
	WebhookMaxRetries int

	SchedulerTickInterval time.Duration
	WorkerPoolSize        int
	ChainConcurrency      int

	QueueRedisAddr string
	StoreDSN       string

	Chains map[int64]*morpho.ChainConfig
}

const (
	envWebhookSecret     = "WEBHOOK_SECRET"
	envWebhookTimeoutMs  = "WEBHOOK_TIMEOUT_MS"
	envWebhookMaxRetries = "WEBHOOK_MAX_RETRIES"
	envTickInterval      = "SCHEDULER_TICK_INTERVAL"
	envWorkerPoolSize    = "WORKER_POOL_SIZE"
	envChainConcurrency  = "WORKER_CHAIN_CONCURRENCY"
	envQueueRedisAddr    = "QUEUE_REDIS_ADDR"
	envStoreDSN          = "STORE_DSN"
	envMorphoSeedFile    = "MORPHO_SEED_FILE"
)

// seedChainEntry mirrors one [[chains]] table in the optional TOML seed
// file named by MORPHO_SEED_FILE.
type seedChainEntry struct {
	ChainID         int64  `toml:"chain_id"`
	RPCURL          string `toml:"rpc_url"`
	ContractAddress string `toml:"contract_address"`
	AvgBlockTimeMs  int64  `toml:"avg_block_time_ms"`
}

type seedFile struct {
	Chains []seedChainEntry `toml:"chains"`
}

// loadSeedChains reads a static morpho_addresses.toml-style seed file, if
// MORPHO_SEED_FILE is set. It exists for operators who want to check a
// known-good chain/contract-address table into version control separately
// from the YAML defaults file; entries here are overridden by anything the
// YAML config also declares for the same chain id.
func loadSeedChains() (map[int64]*morpho.ChainConfig, error) {
	path := os.Getenv(envMorphoSeedFile)
	if path == "" {
		return nil, nil
	}

	var seed seedFile
	if _, err := toml.DecodeFile(path, &seed); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	out := make(map[int64]*morpho.ChainConfig, len(seed.Chains))
	for _, entry := range seed.Chains {
		out[entry.ChainID] = &morpho.ChainConfig{
			ChainID:         entry.ChainID,
			RPCURL:          entry.RPCURL,
			ContractAddress: common.HexToAddress(entry.ContractAddress),
			AvgBlockTime:    time.Duration(entry.AvgBlockTimeMs) * time.Millisecond,
		}
	}
	return out, nil
}

// Load reads configPath (if present, a YAML file supplying Morpho chain
// defaults) then overlays environment variables for every other field.
// Per spec.md §9, an unset or empty WEBHOOK_SECRET means signing is off —
// Load preserves this by leaving WebhookSecret as the empty string rather
// than erroring.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetDefault("webhook.timeout_ms", 5000)
	v.SetDefault("webhook.max_retries", 3)
	v.SetDefault("scheduler.tick_interval", "1m")
	v.SetDefault("worker.pool_size", 8)
	v.SetDefault("worker.chain_concurrency", 4)
	v.SetDefault("queue.redis_addr", "localhost:6379")

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: statting %s: %w", configPath, err)
	}

	chains, err := loadSeedChains()
	if err != nil {
		return nil, fmt.Errorf("config: loading seed chains: %w", err)
	}
	if chains == nil {
		chains = make(map[int64]*morpho.ChainConfig)
	}

	yamlChains, err := parseChains(v)
	if err != nil {
		return nil, fmt.Errorf("config: parsing chains: %w", err)
	}
	for id, c := range yamlChains {
		chains[id] = c
	}

	if len(chains) == 0 {
		chains = morpho.DefaultChainConfigs()
	}

	cfg := &Config{
		WebhookSecret:         os.Getenv(envWebhookSecret),
		WebhookTimeout:        durationMs(v.GetInt("webhook.timeout_ms"), envWebhookTimeoutMs),
		WebhookMaxRetries:     intOrDefault(v.GetInt("webhook.max_retries"), envWebhookMaxRetries),
		SchedulerTickInterval: durationOrDefault(v.GetString("scheduler.tick_interval"), envTickInterval),
		WorkerPoolSize:        intOrDefault(v.GetInt("worker.pool_size"), envWorkerPoolSize),
		ChainConcurrency:      intOrDefault(v.GetInt("worker.chain_concurrency"), envChainConcurrency),
		QueueRedisAddr:        stringOrDefault(v.GetString("queue.redis_addr"), envQueueRedisAddr),
		StoreDSN:              stringOrDefault(v.GetString("store.dsn"), envStoreDSN),
		Chains:                chains,
	}
	return cfg, nil
}

// parseChains reads the optional `chains` YAML list. Load layers these
// entries over the seed-file entries by chain id; morpho.DefaultChainConfigs()
// is used only when neither source declares any chain. Structurally this
// mirrors labelmutex.ParseMutexGroups's list-of-maps parsing: absence of
// the key is not an error, every entry is validated individually.
func parseChains(v *viper.Viper) (map[int64]*morpho.ChainConfig, error) {
	raw := v.Get("chains")
	if raw == nil {
		return nil, nil
	}
	rawSlice, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("chains must be a list, got %T", raw)
	}

	out := make(map[int64]*morpho.ChainConfig, len(rawSlice))
	for i, item := range rawSlice {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("chains[%d]: expected map, got %T", i, item)
		}
		chainID, err := toInt64(m["chain_id"])
		if err != nil {
			return nil, fmt.Errorf("chains[%d].chain_id: %w", i, err)
		}
		rpcURL, _ := m["rpc_url"].(string)
		contractAddr, _ := m["contract_address"].(string)
		avgBlockMs, err := toInt64(m["avg_block_time_ms"])
		if err != nil {
			return nil, fmt.Errorf("chains[%d].avg_block_time_ms: %w", i, err)
		}

		out[chainID] = &morpho.ChainConfig{
			ChainID:         chainID,
			RPCURL:          rpcURL,
			ContractAddress: common.HexToAddress(contractAddr),
			AvgBlockTime:    time.Duration(avgBlockMs) * time.Millisecond,
		}
	}
	return out, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	default:
		return 0, fmt.Errorf("expected numeric value, got %T", v)
	}
}

func stringOrDefault(def string, envKey string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return def
}

func intOrDefault(def int, envKey string) int {
	if v := os.Getenv(envKey); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func durationMs(defMs int, envKey string) time.Duration {
	if v := os.Getenv(envKey); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return time.Duration(defMs) * time.Millisecond
}

func durationOrDefault(def string, envKey string) time.Duration {
	raw := def
	if v := os.Getenv(envKey); v != "" {
		raw = v
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return time.Minute
	}
	return d
}
