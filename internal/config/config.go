// Package config carries endpoint and retry settings for the Circles
// clients. It is opaque to the core pipeline; components take the
// concrete values they need.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"circles-flow/internal/domain"
)

// Config holds Circles network settings.
type Config struct {
	// RPCURL is the Circles index RPC endpoint.
	RPCURL string
	// PathfinderURL is the pathfinder JSON-RPC endpoint.
	PathfinderURL string
	// HubAddress is the v2 hub contract.
	HubAddress domain.Address
	// ChainID identifies the chain (100 for Gnosis Chain).
	ChainID int64
	// DefaultGasLimit is the gas limit attached to assembled calls.
	DefaultGasLimit uint64

	RequestTimeout time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
}

const (
	defaultRPCURL        = "https://rpc.aboutcircles.com/"
	defaultPathfinderURL = "https://pathfinder.aboutcircles.com"
	defaultHubAddress    = "0xc12C1E50ABB450d6205Ea2C3Fa861b3B834d13e8"
)

// GnosisChain returns the production Gnosis Chain configuration.
func GnosisChain() Config {
	return Config{
		RPCURL:          "https://rpc.gnosischain.com",
		PathfinderURL:   defaultPathfinderURL,
		HubAddress:      domain.MustAddress(defaultHubAddress),
		ChainID:         100,
		DefaultGasLimit: 500_000,
		RequestTimeout:  30 * time.Second,
		MaxRetries:      3,
		RetryDelay:      1 * time.Second,
	}
}

// Chiado returns the Gnosis testnet configuration.
func Chiado() Config {
	cfg := GnosisChain()
	cfg.RPCURL = defaultRPCURL
	cfg.ChainID = 10200
	return cfg
}

// FromEnv loads configuration from CIRCLES_* environment variables,
// falling back to Gnosis Chain defaults for unset values.
func FromEnv() (Config, error) {
	cfg := GnosisChain()
	cfg.RPCURL = envOr("CIRCLES_RPC_URL", defaultRPCURL)
	cfg.PathfinderURL = envOr("CIRCLES_PATHFINDER_URL", defaultPathfinderURL)

	hub := envOr("CIRCLES_V2_HUB_ADDRESS", defaultHubAddress)
	addr, err := domain.ParseAddress(hub)
	if err != nil {
		return Config{}, fmt.Errorf("CIRCLES_V2_HUB_ADDRESS: %w", err)
	}
	cfg.HubAddress = addr

	if err := envInt64("CIRCLES_CHAIN_ID", &cfg.ChainID); err != nil {
		return Config{}, err
	}
	if err := envUint64("CIRCLES_DEFAULT_GAS_LIMIT", &cfg.DefaultGasLimit); err != nil {
		return Config{}, err
	}
	if err := envDuration("CIRCLES_REQUEST_TIMEOUT", &cfg.RequestTimeout); err != nil {
		return Config{}, err
	}
	if err := envDuration("CIRCLES_RETRY_DELAY", &cfg.RetryDelay); err != nil {
		return Config{}, err
	}

	retries := int64(cfg.MaxRetries)
	if err := envInt64("CIRCLES_MAX_RETRIES", &retries); err != nil {
		return Config{}, err
	}
	cfg.MaxRetries = int(retries)

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, dst *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envUint64(key string, dst *uint64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
