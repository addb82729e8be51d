package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"miniswap/internal/amm"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL         string
	Deployment     string
	Network        string
	PGDSN          string
	PrivateKey     string
	FeeNumerator   uint64
	FeeDenominator uint64
	Slippage       string
	QuoteDebounce  time.Duration
	SnapshotMaxAge time.Duration
	ConfirmTimeout time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	ReadRPS        float64
	ReadBurst      int
	RedisAddr      string
	PollInterval   time.Duration
	Addr           string
	APIRPS         float64
	APIBurst       int
	LogLevel       string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MINISWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc", "http://127.0.0.1:8545")
	v.SetDefault("deployment", "./deployments.json")
	v.SetDefault("fee-numerator", amm.DefaultFee.Numerator)
	v.SetDefault("fee-denominator", amm.DefaultFee.Denominator)
	v.SetDefault("slippage", amm.DefaultTolerance.String())
	v.SetDefault("quote-debounce", 500*time.Millisecond)
	v.SetDefault("snapshot-max-age", 10*time.Second)
	v.SetDefault("confirm-timeout", 2*time.Minute)
	v.SetDefault("max-retries", 2)
	v.SetDefault("retry-backoff", 250*time.Millisecond)
	v.SetDefault("read-burst", 10)
	v.SetDefault("poll-interval", 2*time.Second)
	v.SetDefault("addr", ":8090")
	v.SetDefault("api-rps", 5.0)
	v.SetDefault("api-burst", 10)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:         v.GetString("rpc"),
		Deployment:     v.GetString("deployment"),
		Network:        v.GetString("network"),
		PGDSN:          v.GetString("pg-dsn"),
		PrivateKey:     v.GetString("private-key"),
		FeeNumerator:   v.GetUint64("fee-numerator"),
		FeeDenominator: v.GetUint64("fee-denominator"),
		Slippage:       v.GetString("slippage"),
		QuoteDebounce:  v.GetDuration("quote-debounce"),
		SnapshotMaxAge: v.GetDuration("snapshot-max-age"),
		ConfirmTimeout: v.GetDuration("confirm-timeout"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		ReadRPS:        v.GetFloat64("read-rps"),
		ReadBurst:      v.GetInt("read-burst"),
		RedisAddr:      v.GetString("redis-addr"),
		PollInterval:   v.GetDuration("poll-interval"),
		Addr:           v.GetString("addr"),
		APIRPS:         v.GetFloat64("api-rps"),
		APIBurst:       v.GetInt("api-burst"),
		LogLevel:       v.GetString("log-level"),
	}

	if _, err := cfg.Fee(); err != nil {
		return Config{}, err
	}
	if _, err := cfg.Tolerance(); err != nil {
		return Config{}, fmt.Errorf("slippage: %w", err)
	}
	return cfg, nil
}

// Fee is the configured pool fee.
func (c Config) Fee() (amm.Fee, error) {
	fee := amm.Fee{Numerator: c.FeeNumerator, Denominator: c.FeeDenominator}
	if err := fee.Validate(); err != nil {
		return amm.Fee{}, err
	}
	return fee, nil
}

// Tolerance is the configured default slippage tolerance.
func (c Config) Tolerance() (amm.Tolerance, error) {
	return amm.ParseTolerance(c.Slippage)
}
