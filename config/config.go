package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	Config struct {
		App        `json:"app"        toml:"app"`
		Blockchain `json:"blockchain" toml:"blockchain"`
		Feed       `json:"feed"       toml:"feed"`
		HTTP       `json:"http"       toml:"http"`
		Log        `json:"logger"     toml:"logger"`
	}

	App struct {
		Name        string `json:"name"        toml:"name"        env:"APP_NAME"`
		Environment string `json:"environment" toml:"environment" env:"ENV_NAME" env-default:"dev"`
		Debug       bool   `json:"debug"       toml:"debug"       env:"DEBUG"    env-default:"false"`
	}

	Blockchain struct {
		RPCURL  string `json:"rpc_url"  toml:"rpc_url"  env:"RPC_URL"`
		ChainID uint64 `json:"chain_id" toml:"chain_id" env:"CHAIN_ID"   env-default:"1"`
		Name    string `json:"name"     toml:"name"     env:"CHAIN_NAME" env-default:"Ethereum"`
		Symbol  string `json:"symbol"   toml:"symbol"   env:"CHAIN_SYMBOL" env-default:"ETH"`
	}

	// Feed tunes the ingestion pipeline. Durations are taken from the environment or defaults only.
	Feed struct {
		Capacity          int           `json:"capacity"        toml:"capacity"        env:"FEED_CAPACITY"        env-default:"100"`
		BootstrapDepth    int           `json:"bootstrap_depth" toml:"bootstrap_depth" env:"FEED_BOOTSTRAP_DEPTH" env-default:"2"`
		BatchSize         int           `json:"batch_size"      toml:"batch_size"      env:"FEED_BATCH_SIZE"      env-default:"5"`
		PollInterval      time.Duration `json:"-"               toml:"-"               env:"FEED_POLL_INTERVAL"   env-default:"2s"`
		BatchDelay        time.Duration `json:"-"               toml:"-"               env:"FEED_BATCH_DELAY"     env-default:"100ms"`
		RequestTimeout    time.Duration `json:"-"               toml:"-"               env:"FEED_REQUEST_TIMEOUT" env-default:"10s"`
		BroadcastInterval time.Duration `json:"-"               toml:"-"               env:"FEED_BROADCAST_INTERVAL" env-default:"1s"`
	}

	HTTP struct {
		Port string `json:"port" toml:"port" env:"HTTP_PORT" env-default:"8080"`
	}

	Log struct {
		Level slog.Level `json:"level" toml:"level" env:"LOG_LEVEL"`
	}
)

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	_, b, _, _ := runtime.Caller(0)
	basePath := filepath.Dir(b)

	configTomlPath := filepath.Join(basePath, "config.toml")
	err := cleanenv.ReadConfig(configTomlPath, cfg)
	if err != nil {
		configJsonPath := filepath.Join(basePath, "config.json")
		err = cleanenv.ReadConfig(configJsonPath, cfg)
		if err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	}

	err = cleanenv.ReadEnv(cfg)
	if err != nil {
		return nil, fmt.Errorf("env read error: %w", err)
	}

	return cfg, nil
}
