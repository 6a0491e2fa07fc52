package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/soundlab/internal/config"
)

func TestFlagDefaults(t *testing.T) {
	require.NotNil(t, listen)
	assert.Equal(t, ":8080", *listen)
	assert.False(t, *devMode)
	assert.False(t, *showVersion)
	assert.Empty(t, *configPath)
	assert.False(t, flagSet("listen"))
}

func TestLoadConfigWithoutFile(t *testing.T) {
	// Run from an empty directory so the default path does not exist.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.EmptyLabConfig(), cfg)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("settle_duration: 1s\nseed: 99\n"), 0644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	opts := sessionOptions(cfg)
	assert.Equal(t, time.Second, opts.Settle)
	require.NotNil(t, opts.Seed)
	assert.Equal(t, uint64(99), *opts.Seed)
	assert.Equal(t, 20.0, opts.DefaultTemperatureC)
	assert.Equal(t, 0.5, opts.Tolerances.DelayMs)
	assert.Equal(t, 30*time.Minute, opts.TTL)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
