package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "0123456789abcdef0123"

func TestLoadDefaults(test *testing.T) {
	settings := New()
	settings.Set(KeyJWTSigningKey, testSigningKey)

	cfg, err := Load(settings)
	require.NoError(test, err)
	require.NoError(test, cfg.Validate())

	assert.Equal(test, defaultDatabaseURL, cfg.DatabaseURL)
	assert.Equal(test, defaultListenAddr, cfg.ListenAddr)
	assert.Equal(test, defaultCommitRetryAttempts, cfg.CommitRetryAttempts)
	assert.Equal(test, defaultCommitRetryBackoff, cfg.CommitRetryBackoff)
	assert.Equal(test, int64(defaultStartingCash), cfg.StartingCash)
	assert.Equal(test, []string{defaultAllowedOrigin}, cfg.AllowedOrigins)
	assert.Equal(test, 24*time.Hour, cfg.JWTTTL)
}

func TestEnvironmentOverridesDefaults(test *testing.T) {
	test.Setenv("GAMESERVER_DATABASE_URL", "postgres://game@localhost/game")
	test.Setenv("GAMESERVER_HISTORY_DEFAULT_LIMIT", "25")
	test.Setenv("GAMESERVER_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(New())
	require.NoError(test, err)
	assert.Equal(test, "postgres://game@localhost/game", cfg.DatabaseURL)
	assert.Equal(test, 25, cfg.HistoryDefaultLimit)
	assert.Equal(test, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestFlagsAndConfigFile(test *testing.T) {
	path := filepath.Join(test.TempDir(), "gameserver.yaml")
	require.NoError(test, os.WriteFile(path, []byte("listen_addr: \":9999\"\nstarting_cash: 750\n"), 0o600))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(test, flags.Parse([]string{"--config", path, "--log-level", "debug", "--commit-retry-attempts", "7"}))

	settings := New()
	require.NoError(test, BindFlags(settings, flags))
	cfg, err := Load(settings)
	require.NoError(test, err)

	assert.Equal(test, ":9999", cfg.ListenAddr)
	assert.Equal(test, int64(750), cfg.StartingCash)
	assert.Equal(test, "debug", cfg.LogLevel)
	assert.Equal(test, 7, cfg.CommitRetryAttempts)
}

func TestValidateAggregatesProblems(test *testing.T) {
	cfg := Config{
		LogLevel:            "loud",
		CommitRetryAttempts: 0,
		PINHashCost:         2,
		HistoryDefaultLimit: 1000,
		JWTSigningKey:       "short",
	}
	err := cfg.Validate()
	require.ErrorIs(test, err, ErrInvalidConfig)
	for _, fragment := range []string{
		"database url is required",
		"commit retry attempts",
		"log level \"loud\" is unknown",
		"listen addr is required",
		"pin hash cost",
		"history default limit",
		"jwt signing key",
		"rate limit",
	} {
		assert.Contains(test, err.Error(), fragment)
	}

	storageOnly := Config{DatabaseURL: "sqlite://x.db", CommitRetryAttempts: 1, LogLevel: "info"}
	assert.NoError(test, storageOnly.ValidateStorage())
}
