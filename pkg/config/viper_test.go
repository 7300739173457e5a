package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	v, err := Load(t.TempDir(), "absent")
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "relay.yaml"), []byte("mailbox:\n  ttl: 5m\n"), 0o600))

	v, err := Load(dir, "relay")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, Duration(v, "mailbox.ttl", time.Minute))
}

func TestLoadExplicitFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server:\n  port: 9999\n"), 0o600))
	t.Setenv(EnvConfigFile, file)

	v, err := Load("./nowhere", "config")
	require.NoError(t, err)
	assert.Equal(t, 9999, v.GetInt("server.port"))
}

func TestLoadBrokenFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [\n"), 0o600))

	_, err := Load(dir, "config")
	require.Error(t, err)
}

func TestDurationFallback(t *testing.T) {
	v, err := Load(t.TempDir(), "absent")
	require.NoError(t, err)

	v.Set("a", "garbage")
	v.Set("b", "-3s")
	v.Set("c", "250ms")
	assert.Equal(t, time.Second, Duration(v, "a", time.Second))
	assert.Equal(t, time.Second, Duration(v, "b", time.Second))
	assert.Equal(t, 250*time.Millisecond, Duration(v, "c", time.Second))
	assert.Equal(t, time.Second, Duration(v, "missing", time.Second))
}
