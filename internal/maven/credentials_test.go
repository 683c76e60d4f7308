package maven_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarkusio/jbang-catalog/internal/maven"
)

const settingsXML = `<?xml version="1.0" encoding="UTF-8"?>
<settings xmlns="http://maven.apache.org/SETTINGS/1.0.0">
  <servers>
    <server>
      <id>redhat-ga</id>
      <username>alice</username>
      <password>s3cret</password>
    </server>
    <server>
      <id>from-env</id>
      <username>${env.CATALOG_TEST_USER}</username>
      <password>${env.CATALOG_TEST_PASSWORD}</password>
    </server>
  </servers>
</settings>`

func TestLoadCredentials(t *testing.T) {
	t.Setenv("CATALOG_TEST_USER", "bob")
	t.Setenv("CATALOG_TEST_PASSWORD", "hunter2")

	path := filepath.Join(t.TempDir(), "settings.xml")
	require.NoError(t, os.WriteFile(path, []byte(settingsXML), 0o644))

	creds, err := maven.LoadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, 2, creds.Len())

	s, ok := creds.Lookup("redhat-ga")
	require.True(t, ok)
	assert.Equal(t, "alice", s.Username)

	s, ok = creds.Lookup("from-env")
	require.True(t, ok)
	assert.Equal(t, "bob", s.Username)
	assert.Equal(t, "hunter2", s.Password)

	header, ok := creds.BasicAuth("redhat-ga")
	require.True(t, ok)
	assert.Equal(t, "Basic YWxpY2U6czNjcmV0", header)

	_, ok = creds.BasicAuth("unknown")
	assert.False(t, ok)

	_, ok = creds.BasicAuth("")
	assert.False(t, ok)
}

func TestCredentials_EmptyValuesAreUnusable(t *testing.T) {
	t.Setenv("CATALOG_TEST_USER", "bot")
	t.Setenv("CATALOG_TEST_PASSWORD", "")

	path := filepath.Join(t.TempDir(), "settings.xml")
	require.NoError(t, os.WriteFile(path, []byte(settingsXML), 0o644))

	creds, err := maven.LoadCredentials(path)
	require.NoError(t, err)

	s, ok := creds.Lookup("from-env")
	require.True(t, ok)
	assert.Equal(t, "bot", s.Username)
	assert.Empty(t, s.Password)

	header, ok := creds.BasicAuth("from-env")
	assert.False(t, ok)
	assert.Empty(t, header)

	_, ok = maven.NewCredentials(maven.Server{ID: "anon", Password: "x"}).BasicAuth("anon")
	assert.False(t, ok)
}

func TestLoadCredentials_MissingFile(t *testing.T) {
	t.Parallel()

	creds, err := maven.LoadCredentials(filepath.Join(t.TempDir(), "absent.xml"))
	require.NoError(t, err)
	assert.Zero(t, creds.Len())
}

func TestLoadCredentials_Malformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.xml")
	require.NoError(t, os.WriteFile(path, []byte("<settings><servers>"), 0o644))

	_, err := maven.LoadCredentials(path)
	require.Error(t, err)
}

func TestCredentials_NilStore(t *testing.T) {
	t.Parallel()

	var creds *maven.Credentials
	_, ok := creds.BasicAuth("any")
	assert.False(t, ok)
	assert.Zero(t, creds.Len())
}
