// Package config loads service configuration from a .env file (if present) and
// environment variables. Environment variables take precedence over .env values.
package config

import (
	stderrors "errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stellar/go-stellar-sdk/network"
)

// Ledger backends.
const (
	BackendHorizon = "horizon"
	BackendMemory  = "memory"
)

// Config holds all configuration for the payment service.
type Config struct {
	// HTTP
	Port        int           `env:"PORT,default=5000"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT,default=30s"`

	// Stellar network
	HorizonURL        string `env:"HORIZON_URL,default=https://horizon-testnet.stellar.org"`
	FriendbotURL      string `env:"FRIENDBOT_URL,default=https://friendbot.stellar.org"`
	NetworkPassphrase string `env:"NETWORK_PASSPHRASE"`
	LedgerBackend     string `env:"LEDGER_BACKEND,default=horizon"`

	// Transactions
	TxTimeout  time.Duration `env:"TX_TIMEOUT,default=30s"`
	DynamicFee bool          `env:"DYNAMIC_FEE,default=false"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`
}

// Load reads the given .env files, then decodes the environment into a Config.
// Missing .env files are ignored. With no paths, ".env" is tried.
func Load(dotenvPaths ...string) (*Config, error) {
	if len(dotenvPaths) == 0 {
		dotenvPaths = []string{".env"}
	}
	for _, path := range dotenvPaths {
		if err := godotenv.Load(path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "load %s", path)
		}
	}

	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, errors.Wrap(err, "decode environment")
	}
	if cfg.NetworkPassphrase == "" {
		cfg.NetworkPassphrase = network.TestNetworkPassphrase
	}
	cfg.LedgerBackend = strings.ToLower(cfg.LedgerBackend)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return errors.Errorf("PORT %d is out of range", c.Port)
	case c.LedgerBackend != BackendHorizon && c.LedgerBackend != BackendMemory:
		return errors.Errorf("LEDGER_BACKEND must be %q or %q, got %q", BackendHorizon, BackendMemory, c.LedgerBackend)
	case c.LedgerBackend == BackendHorizon && c.HorizonURL == "":
		return errors.New("HORIZON_URL is required for the horizon backend")
	case c.TxTimeout <= 0:
		return errors.Errorf("TX_TIMEOUT must be positive, got %s", c.TxTimeout)
	case c.HTTPTimeout <= 0:
		return errors.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "LOG_LEVEL")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return errors.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// NewLogger builds the process logger from the logging settings.
func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
