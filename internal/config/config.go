package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	defaultAppName             = "DRFMS"
	defaultAppEnv              = "development"
	defaultPort                = "8080"
	defaultLogLevel            = "info"
	defaultLogFormat           = "json"
	defaultLedgerBackend       = LedgerBackendRPC
	defaultConfirmTimeout      = 5 * time.Minute
	defaultReceiptPollInterval = 2 * time.Second
	defaultShutdownDelay       = 10 * time.Second
	defaultIdempotencyTTL      = 24 * time.Hour
	defaultWriteRateLimit      = 30
	defaultDateTimezone        = "UTC"
)

// Ledger backends.
const (
	LedgerBackendRPC       = "rpc"
	LedgerBackendSimulated = "simulated"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName   string
	AppEnv    string
	Port      string
	LogLevel  string
	LogFormat string

	LedgerBackend       string
	RPCURL              string
	SignerURL           string
	ContractAddress     common.Address
	DevAccount          common.Address
	ConfirmTimeout      time.Duration
	ReceiptPollInterval time.Duration
	DateLocation        *time.Location

	DatabaseURL       string
	RedisURL          string
	OperatorTokenHash []byte

	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	WriteRateLimit int
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:       getEnv("APP_NAME", defaultAppName),
		AppEnv:        getEnv("APP_ENV", defaultAppEnv),
		Port:          getEnv("PORT", defaultPort),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat:     strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		LedgerBackend: strings.ToLower(getEnv("LEDGER_BACKEND", defaultLedgerBackend)),
		RPCURL:        os.Getenv("RPC_URL"),
		SignerURL:     os.Getenv("SIGNER_URL"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
	}

	var err error
	if cfg.ConfirmTimeout, err = durationEnv("CONFIRM_TIMEOUT", defaultConfirmTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ReceiptPollInterval, err = durationEnv("RECEIPT_POLL_INTERVAL", defaultReceiptPollInterval); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}

	cfg.WriteRateLimit = defaultWriteRateLimit
	if v := os.Getenv("WRITE_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid WRITE_RATE_LIMIT: %w", err)
		}
		cfg.WriteRateLimit = n
	}

	tz := getEnv("DATE_TIMEZONE", defaultDateTimezone)
	if cfg.DateLocation, err = time.LoadLocation(tz); err != nil {
		return Config{}, fmt.Errorf("invalid DATE_TIMEZONE: %w", err)
	}

	if v := os.Getenv("OPERATOR_TOKEN_HASH"); v != "" {
		cfg.OperatorTokenHash = []byte(v)
	}

	if v := os.Getenv("CONTRACT_ADDRESS"); v != "" {
		if !common.IsHexAddress(v) {
			return Config{}, fmt.Errorf("invalid CONTRACT_ADDRESS %q", v)
		}
		cfg.ContractAddress = common.HexToAddress(v)
	}
	if v := os.Getenv("DEV_ACCOUNT"); v != "" {
		if !common.IsHexAddress(v) {
			return Config{}, fmt.Errorf("invalid DEV_ACCOUNT %q", v)
		}
		cfg.DevAccount = common.HexToAddress(v)
	}

	switch cfg.LedgerBackend {
	case LedgerBackendRPC:
		if cfg.RPCURL == "" {
			return Config{}, fmt.Errorf("RPC_URL must be set when LEDGER_BACKEND=%s", LedgerBackendRPC)
		}
		if cfg.ContractAddress == (common.Address{}) {
			return Config{}, fmt.Errorf("CONTRACT_ADDRESS must be set when LEDGER_BACKEND=%s", LedgerBackendRPC)
		}
	case LedgerBackendSimulated:
		if cfg.ContractAddress == (common.Address{}) {
			cfg.ContractAddress = simulatedContract
		}
		if cfg.DevAccount == (common.Address{}) {
			cfg.DevAccount = simulatedDevAccount
		}
	default:
		return Config{}, fmt.Errorf("unknown LEDGER_BACKEND %q", cfg.LedgerBackend)
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

var (
	simulatedContract   = common.HexToAddress("0xd7f3a5c0e1b2d3c4a5b6c7d8e9f0a1b2c3d4e5f6")
	simulatedDevAccount = common.HexToAddress("0x9a1e6f0c3b2d4e5f60718293a4b5c6d7e8f90a1b")
)

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the service runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// durationEnv accepts a Go duration ("90s") or whole seconds ("90").
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
