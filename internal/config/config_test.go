package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{"QUSIC_DATA_DIR", "QUSIC_STORE", "QUSIC_DB_PATH", "QUSIC_LOG_LEVEL", "QUSIC_LOG_PRETTY", "QUSIC_HTTP_ADDR"}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, &Config{
		DataDir:  DefaultDataDir,
		Store:    DefaultStore,
		LogLevel: DefaultLogLevel,
		HTTPAddr: DefaultHTTPAddr,
	}, cfg)
}

func TestLoadEnvFileAndOverrides(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("QUSIC_STORE=sqlite\nQUSIC_DB_PATH=/tmp/q.db\nQUSIC_LOG_PRETTY=true\n"), 0o644))
	t.Setenv("QUSIC_HTTP_ADDR", "127.0.0.1:9000")

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store)
	assert.Equal(t, "/tmp/q.db", cfg.DBPath)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
}

func TestValidateRejectsUnknownStore(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUSIC_STORE", "postgres")
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)

	cfg := &Config{Store: "file", HTTPAddr: ":1"}
	assert.Error(t, cfg.Validate())
	cfg.Store = "memory"
	assert.NoError(t, cfg.Validate())
}
