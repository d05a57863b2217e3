package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(test *testing.T, args ...string) (string, error) {
	test.Helper()
	cmd := newRootCommand()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return output.String(), err
}

func TestSeedJobsAgainstSQLite(test *testing.T) {
	databaseURL := "sqlite://" + filepath.Join(test.TempDir(), "cli.db")

	output, err := runCommand(test, "seed-jobs", "--database-url", databaseURL, "--log-level", "error")
	require.NoError(test, err)
	assert.Contains(test, output, "created 5 jobs")

	output, err = runCommand(test, "seed-jobs", "--database-url", databaseURL, "--log-level", "error")
	require.NoError(test, err)
	assert.Contains(test, output, "created 0 jobs")
}

func TestPromoteUnknownPlayerFails(test *testing.T) {
	databaseURL := "sqlite://" + filepath.Join(test.TempDir(), "cli.db")
	_, err := runCommand(test, "promote", "--database-url", databaseURL, "--log-level", "error", "--username", "ghost")
	require.Error(test, err)
}

func TestMigrateRejectsSQLite(test *testing.T) {
	_, err := runCommand(test, "migrate", "up", "--database-url", "sqlite://"+filepath.Join(test.TempDir(), "cli.db"))
	require.Error(test, err)
}

func TestInvalidLogLevelFailsBeforeRunning(test *testing.T) {
	_, err := runCommand(test, "seed-jobs", "--log-level", "loud")
	require.Error(test, err)
}

func TestServeRequiresSigningKey(test *testing.T) {
	test.Setenv("GAMESERVER_JWT_SIGNING_KEY", "")
	_, err := runCommand(test, "serve", "--database-url", "sqlite://"+filepath.Join(test.TempDir(), "cli.db"))
	require.ErrorContains(test, err, "jwt signing key")
}
