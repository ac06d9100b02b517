package a2a

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a2a.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
base_url = "http://localhost:8000/api"
timeout = "2s"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api", cfg.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
}

func TestLoadConfigDefaultsTimeout(t *testing.T) {
	path := writeConfig(t, `base_url = "https://tools.example.com"`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
}

func TestLoadConfigMissingBaseURL(t *testing.T) {
	path := writeConfig(t, `timeout = "1s"`)
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigBadFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)

	path := writeConfig(t, `base_url = not quoted`)
	_, err = LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigBadDuration(t *testing.T) {
	path := writeConfig(t, `
base_url = "http://localhost:8000"
timeout = "soon"
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
}
