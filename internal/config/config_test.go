package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarkusio/jbang-catalog/internal/config"
)

// newFlags mirrors the publish command's flag set.
func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()

	fs := pflag.NewFlagSet("publish", pflag.ContinueOnError)
	config.AddPersistentFlags(fs)
	fs.StringP(config.KeyWorkDir, "w", "", "")
	fs.StringP(config.KeyRegistryURL, "u", "", "")
	fs.StringP(config.KeyToken, "t", "", "")
	fs.BoolP(config.KeyAll, "a", false, "")
	fs.Bool(config.KeyDryRun, false, "")

	require.NoError(t, fs.Parse(args))

	return fs
}

// isolate points the default config location at an empty directory and
// clears the variables Load reads.
func isolate(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	for _, k := range []string{"REGISTRY_URL", "REGISTRY_TOKEN", "CATALOG_REGISTRY_URL", "CATALOG_TOKEN", "CATALOG_RETRIES", "CATALOG_DRY_RUN"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	s, err := config.Load(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultRetries, s.Retries)
	assert.Zero(t, s.Timeout)
	assert.Empty(t, s.RegistryURL)
	assert.Empty(t, s.ConfigFile)
	assert.NotEmpty(t, s.MavenSettings)
}

func TestLoad_Flags(t *testing.T) {
	isolate(t)

	s, err := config.Load(newFlags(t,
		"-w", "/work", "-u", "https://registry.acme.io", "-t", "s3cret", "-a",
		"--retries", "5", "--timeout", "30s", "--rate-limit", "2.5", "--dry-run",
	))
	require.NoError(t, err)

	assert.Equal(t, "/work", s.WorkDir)
	assert.Equal(t, "https://registry.acme.io", s.RegistryURL)
	assert.Equal(t, "s3cret", s.Token)
	assert.True(t, s.All)
	assert.True(t, s.DryRun)
	assert.Equal(t, 5, s.Retries)
	assert.Equal(t, 30*time.Second, s.Timeout)
	assert.InEpsilon(t, 2.5, s.RateLimit, 1e-9)
}

func TestLoad_RegistryEnv(t *testing.T) {
	isolate(t)
	t.Setenv("REGISTRY_URL", "https://env.acme.io")
	t.Setenv("REGISTRY_TOKEN", "from-env")
	t.Setenv("CATALOG_RETRIES", "7")

	s, err := config.Load(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, "https://env.acme.io", s.RegistryURL)
	assert.Equal(t, "from-env", s.Token)
	assert.Equal(t, 7, s.Retries)
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	isolate(t)
	t.Setenv("REGISTRY_URL", "https://env.acme.io")

	s, err := config.Load(newFlags(t, "-u", "https://flag.acme.io"))
	require.NoError(t, err)
	assert.Equal(t, "https://flag.acme.io", s.RegistryURL)
}

func TestLoad_DefaultConfigFile(t *testing.T) {
	dir := isolate(t)

	path := filepath.Join(dir, "catalog", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("registry-url: https://file.acme.io\nretries: 4\ntimeout: 1m\n"), 0o644))

	s, err := config.Load(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, "https://file.acme.io", s.RegistryURL)
	assert.Equal(t, 4, s.Retries)
	assert.Equal(t, time.Minute, s.Timeout)
	assert.Equal(t, path, s.ConfigFile)
}

func TestLoad_EnvBeatsConfigFile(t *testing.T) {
	dir := isolate(t)
	t.Setenv("CATALOG_REGISTRY_URL", "https://env.acme.io")

	path := filepath.Join(dir, "explicit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("registry-url: https://file.acme.io\n"), 0o644))

	s, err := config.Load(newFlags(t, "--config", path))
	require.NoError(t, err)
	assert.Equal(t, "https://env.acme.io", s.RegistryURL)
}

func TestLoad_ExplicitConfigMustExist(t *testing.T) {
	dir := isolate(t)

	_, err := config.Load(newFlags(t, "--config", filepath.Join(dir, "missing.yaml")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.yaml")
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	dir := isolate(t)

	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{invalid"), 0o644))

	_, err := config.Load(newFlags(t, "--config", path))
	require.Error(t, err)
}

func TestLoad_NegativeRetries(t *testing.T) {
	isolate(t)

	_, err := config.Load(newFlags(t, "--retries", "-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retries")
}

func TestSettings_Require(t *testing.T) {
	t.Parallel()

	s := &config.Settings{}
	require.Error(t, s.RequireWorkDir())
	require.Error(t, s.RequireRegistry())

	s.WorkDir = "."
	s.RegistryURL = "https://registry.acme.io"
	require.NoError(t, s.RequireWorkDir())
	require.NoError(t, s.RequireRegistry())
}

func TestDefaultConfigDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	assert.Equal(t, filepath.Join("/custom/config", "catalog"), config.DefaultConfigDir())
}
