package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.IsDefault())
	assert.True(t, cfg.GetFollowRedirects())
	assert.True(t, cfg.GetValidateSSL())
	assert.False(t, cfg.GetStopOnFail())
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
}

func TestGetters_NilPointers(t *testing.T) {
	cfg := &Config{}
	assert.True(t, cfg.GetFollowRedirects())
	assert.True(t, cfg.GetValidateSSL())
	assert.False(t, cfg.GetVerbose())
	assert.False(t, cfg.GetNoColor())
	assert.False(t, cfg.GetDistinct())
}

func TestFindAndLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	content := `timeout: 5000
validateSSL: false
stopOnFail: true
rateLimit: 2.5
headers:
  X-Team: qa
vars:
  host: http://localhost:8080
history: runs.db
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".testhttp.yaml"), []byte(content), 0644))

	cfg, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Timeout)
	assert.False(t, cfg.GetValidateSSL())
	assert.True(t, cfg.GetFollowRedirects(), "unset fields keep defaults")
	assert.True(t, cfg.GetStopOnFail())
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, "qa", cfg.Headers["X-Team"])
	assert.Equal(t, "http://localhost:8080", cfg.Vars["host"])
	assert.Equal(t, "runs.db", cfg.History)
	assert.False(t, cfg.IsDefault())
}

func TestFindAndLoadConfig_JSON(t *testing.T) {
	dir := t.TempDir()
	content := `{"timeout": 1000, "verbose": true, "maxRedirects": 3}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".testhttp.json"), []byte(content), 0644))

	cfg, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRedirects)
	assert.True(t, cfg.GetVerbose())
}

func TestFindAndLoadConfig_SearchOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".testhttprc"), []byte("timeout: 1"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".testhttp.yml"), []byte("timeout: 2"), 0644))

	cfg, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Timeout)
}

func TestFindAndLoadConfig_NoFile(t *testing.T) {
	cfg, err := FindAndLoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.True(t, cfg.IsDefault())
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("timeout: [1"), 0644))
	_, err := LoadConfig(bad)
	assert.Error(t, err)

	negative := filepath.Join(dir, "negative.yaml")
	require.NoError(t, os.WriteFile(negative, []byte("rateLimit: -1"), 0644))
	_, err = LoadConfig(negative)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rateLimit must not be negative")

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"A": "1", "B": "1"}
	base.Vars = map[string]string{"host": "file"}

	merged := base.Merge(&Config{
		Timeout:    100,
		Verbose:    BoolPtr(true),
		Headers:    map[string]string{"B": "2"},
		Vars:       map[string]string{"host": "cli"},
		RateLimit:  4,
		StopOnFail: BoolPtr(true),
	})

	assert.Equal(t, 100, merged.Timeout)
	assert.True(t, merged.GetVerbose())
	assert.True(t, merged.GetStopOnFail())
	assert.True(t, merged.GetValidateSSL())
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, merged.Headers)
	assert.Equal(t, "cli", merged.Vars["host"])
	assert.Equal(t, 4.0, merged.RateLimit)

	assert.Equal(t, "1", base.Headers["B"], "merge does not mutate the receiver")
	assert.Same(t, base, base.Merge(nil))
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".testhttp.yaml")
	cfg := DefaultConfig()
	cfg.Proxy = "http://proxy:3128"
	require.NoError(t, cfg.SaveConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://proxy:3128", loaded.Proxy)
	assert.True(t, loaded.GetFollowRedirects())
}
