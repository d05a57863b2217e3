// Package config loads game server settings from flags, environment and an
// optional config file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const (
	EnvPrefix = "GAMESERVER"

	KeyConfigFile            = "config"
	KeyDatabaseURL           = "database_url"
	KeyListenAddr            = "listen_addr"
	KeyLogLevel              = "log_level"
	KeyCommitRetryAttempts   = "commit_retry_attempts"
	KeyCommitRetryBackoff    = "commit_retry_backoff"
	KeyPINHashCost           = "pin_hash_cost"
	KeyAccountNumberAttempts = "account_number_attempts"
	KeyHistoryDefaultLimit   = "history_default_limit"
	KeyStartingCash          = "starting_cash"
	KeyJWTSigningKey         = "jwt_signing_key"
	KeyJWTIssuer             = "jwt_issuer"
	KeyJWTTTL                = "jwt_ttl"
	KeyAllowedOrigins        = "allowed_origins"
	KeyRateLimitRPS          = "rate_limit_rps"
	KeyRateLimitBurst        = "rate_limit_burst"
	KeyShutdownTimeout       = "shutdown_timeout"

	defaultDatabaseURL           = "sqlite://data/gameserver.db"
	defaultListenAddr            = ":8080"
	defaultLogLevel              = "info"
	defaultCommitRetryAttempts   = 3
	defaultCommitRetryBackoff    = 50 * time.Millisecond
	defaultPINHashCost           = 12
	defaultAccountNumberAttempts = 10
	defaultHistoryLimit          = 50
	defaultStartingCash          = 5000
	defaultJWTIssuer             = "gameserver"
	defaultJWTTTL                = 24 * time.Hour
	defaultAllowedOrigin         = "http://localhost:3000"
	defaultRateLimitRPS          = 20.0
	defaultRateLimitBurst        = 40
	defaultShutdownTimeout       = 5 * time.Second

	minSigningKeyBytes = 16
	minBcryptCost      = 4
	maxBcryptCost      = 31
	maxHistoryLimit    = 500
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config aggregates runtime settings for the game server.
type Config struct {
	DatabaseURL           string
	ListenAddr            string
	LogLevel              string
	CommitRetryAttempts   int
	CommitRetryBackoff    time.Duration
	PINHashCost           int
	AccountNumberAttempts int
	HistoryDefaultLimit   int
	StartingCash          int64
	JWTSigningKey         string
	JWTIssuer             string
	JWTTTL                time.Duration
	AllowedOrigins        []string
	RateLimitRPS          float64
	RateLimitBurst        int
	ShutdownTimeout       time.Duration
}

// New returns a viper instance with defaults and GAMESERVER_* environment binding.
func New() *viper.Viper {
	settings := viper.New()
	settings.SetEnvPrefix(EnvPrefix)
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	settings.AutomaticEnv()
	SetDefaults(settings)
	return settings
}

func SetDefaults(settings *viper.Viper) {
	settings.SetDefault(KeyDatabaseURL, defaultDatabaseURL)
	settings.SetDefault(KeyListenAddr, defaultListenAddr)
	settings.SetDefault(KeyLogLevel, defaultLogLevel)
	settings.SetDefault(KeyCommitRetryAttempts, defaultCommitRetryAttempts)
	settings.SetDefault(KeyCommitRetryBackoff, defaultCommitRetryBackoff)
	settings.SetDefault(KeyPINHashCost, defaultPINHashCost)
	settings.SetDefault(KeyAccountNumberAttempts, defaultAccountNumberAttempts)
	settings.SetDefault(KeyHistoryDefaultLimit, defaultHistoryLimit)
	settings.SetDefault(KeyStartingCash, defaultStartingCash)
	settings.SetDefault(KeyJWTIssuer, defaultJWTIssuer)
	settings.SetDefault(KeyJWTTTL, defaultJWTTTL)
	settings.SetDefault(KeyAllowedOrigins, []string{defaultAllowedOrigin})
	settings.SetDefault(KeyRateLimitRPS, defaultRateLimitRPS)
	settings.SetDefault(KeyRateLimitBurst, defaultRateLimitBurst)
	settings.SetDefault(KeyShutdownTimeout, defaultShutdownTimeout)
}

// RegisterFlags declares the command line flags that mirror config keys.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String(flagName(KeyConfigFile), "", "Optional config file (yaml, json or toml)")
	flags.String(flagName(KeyDatabaseURL), defaultDatabaseURL, "postgres:// URL or sqlite:// path")
	flags.String(flagName(KeyListenAddr), defaultListenAddr, "HTTP listen address")
	flags.String(flagName(KeyLogLevel), defaultLogLevel, "Log level (debug, info, warn, error)")
	flags.Int(flagName(KeyCommitRetryAttempts), defaultCommitRetryAttempts, "Commit attempts on transient storage faults")
	flags.Duration(flagName(KeyCommitRetryBackoff), defaultCommitRetryBackoff, "Backoff step between commit attempts")
}

// BindFlags binds every registered flag to its config key.
func BindFlags(settings *viper.Viper, flags *pflag.FlagSet) error {
	for _, key := range []string{KeyConfigFile, KeyDatabaseURL, KeyListenAddr, KeyLogLevel, KeyCommitRetryAttempts, KeyCommitRetryBackoff} {
		flag := flags.Lookup(flagName(key))
		if flag == nil {
			continue
		}
		if err := settings.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the optional config file and decodes settings.
func Load(settings *viper.Viper) (Config, error) {
	if path := settings.GetString(KeyConfigFile); path != "" {
		settings.SetConfigFile(path)
		if err := settings.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	cfg := Config{
		DatabaseURL:           settings.GetString(KeyDatabaseURL),
		ListenAddr:            settings.GetString(KeyListenAddr),
		LogLevel:              settings.GetString(KeyLogLevel),
		CommitRetryAttempts:   settings.GetInt(KeyCommitRetryAttempts),
		CommitRetryBackoff:    settings.GetDuration(KeyCommitRetryBackoff),
		PINHashCost:           settings.GetInt(KeyPINHashCost),
		AccountNumberAttempts: settings.GetInt(KeyAccountNumberAttempts),
		HistoryDefaultLimit:   settings.GetInt(KeyHistoryDefaultLimit),
		StartingCash:          settings.GetInt64(KeyStartingCash),
		JWTSigningKey:         settings.GetString(KeyJWTSigningKey),
		JWTIssuer:             settings.GetString(KeyJWTIssuer),
		JWTTTL:                settings.GetDuration(KeyJWTTTL),
		AllowedOrigins:        ParseAllowedOrigins(settings.GetStringSlice(KeyAllowedOrigins)),
		RateLimitRPS:          settings.GetFloat64(KeyRateLimitRPS),
		RateLimitBurst:        settings.GetInt(KeyRateLimitBurst),
		ShutdownTimeout:       settings.GetDuration(KeyShutdownTimeout),
	}
	return cfg, nil
}

// ValidateStorage checks the settings needed to reach the database.
func (cfg *Config) ValidateStorage() error {
	var problems []string
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		problems = append(problems, "database url is required")
	}
	if cfg.CommitRetryAttempts < 1 {
		problems = append(problems, "commit retry attempts must be at least 1")
	}
	if cfg.CommitRetryBackoff < 0 {
		problems = append(problems, "commit retry backoff must not be negative")
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("log level %q is unknown", cfg.LogLevel))
	}
	return joinProblems(problems)
}

// Validate checks every setting the server needs.
func (cfg *Config) Validate() error {
	var problems []string
	if err := cfg.ValidateStorage(); err != nil {
		problems = append(problems, strings.TrimPrefix(err.Error(), ErrInvalidConfig.Error()+": "))
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		problems = append(problems, "listen addr is required")
	}
	if cfg.PINHashCost < minBcryptCost || cfg.PINHashCost > maxBcryptCost {
		problems = append(problems, fmt.Sprintf("pin hash cost must be between %d and %d", minBcryptCost, maxBcryptCost))
	}
	if cfg.AccountNumberAttempts < 1 {
		problems = append(problems, "account number attempts must be at least 1")
	}
	if cfg.HistoryDefaultLimit < 1 || cfg.HistoryDefaultLimit > maxHistoryLimit {
		problems = append(problems, fmt.Sprintf("history default limit must be between 1 and %d", maxHistoryLimit))
	}
	if cfg.StartingCash < 0 {
		problems = append(problems, "starting cash must not be negative")
	}
	if len(cfg.JWTSigningKey) < minSigningKeyBytes {
		problems = append(problems, fmt.Sprintf("jwt signing key must have at least %d bytes", minSigningKeyBytes))
	}
	if strings.TrimSpace(cfg.JWTIssuer) == "" {
		problems = append(problems, "jwt issuer is required")
	}
	if cfg.JWTTTL <= 0 {
		problems = append(problems, "jwt ttl must be positive")
	}
	if cfg.RateLimitRPS <= 0 || cfg.RateLimitBurst < 1 {
		problems = append(problems, "rate limit must be positive")
	}
	if len(cfg.AllowedOrigins) == 0 {
		problems = append(problems, "at least one allowed origin is required")
	}
	return joinProblems(problems)
}

// ParseAllowedOrigins splits comma-delimited origins and drops blanks.
func ParseAllowedOrigins(values []string) []string {
	origins := make([]string, 0, len(values))
	for _, value := range values {
		for _, origin := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	return origins
}

func joinProblems(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}
