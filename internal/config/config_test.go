package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("domain: example.com\nsearch_base: DC=example,DC=com\n"), "test")
	require.NoError(t, err)

	assert.Equal(t, "example.com", cfg.Domain)
	assert.Equal(t, "DC=example,DC=com", cfg.SearchBase)
	assert.Equal(t, "/etc/krb5.conf", cfg.Krb5Conf)
	assert.Equal(t, 30, cfg.TimeoutSeconds)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.True(t, cfg.UseTLS)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestParseOverridesDefaults(t *testing.T) {
	doc := `
uri: ldaps://dc01.example.com
search_base: DC=example,DC=com
krb5_conf: /tmp/krb5.conf
timeout_seconds: 5
use_tls: false
max_retries: 1
`
	cfg, err := Parse([]byte(doc), "test")
	require.NoError(t, err)

	assert.Equal(t, "ldaps://dc01.example.com", cfg.URI)
	assert.Equal(t, "/tmp/krb5.conf", cfg.Krb5Conf)
	assert.Equal(t, 5*time.Second, cfg.Timeout())
	assert.False(t, cfg.UseTLS)
	assert.Equal(t, 1, cfg.MaxRetries)
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("ADMC_TEST_SECRET", "hunter2")

	cfg, err := Parse([]byte("domain: example.com\nsearch_base: DC=example,DC=com\nbind_secret: $ADMC_TEST_SECRET\n"), "test")
	require.NoError(t, err)

	assert.Equal(t, "hunter2", cfg.BindSecret)
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	_, err := Parse([]byte(":\n\t- bad"), "test")

	require.Error(t, err)
	assert.False(t, IsMissing(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"uri only", Config{URI: "ldap://dc01", SearchBase: "DC=example,DC=com"}, ""},
		{"domain only", Config{Domain: "example.com", SearchBase: "DC=example,DC=com"}, ""},
		{"no server", Config{SearchBase: "DC=example,DC=com"}, "missing configuration parameter: one of uri or domain is required"},
		{"no search base", Config{Domain: "example.com"}, "missing configuration parameter: search_base is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.wantErr)
				assert.False(t, IsMissing(err))
			}
		})
	}
}

func TestLoadFromPrefersFirstExistingFile(t *testing.T) {
	dir := t.TempDir()
	user := writeConfig(t, dir, "user.yaml", "domain: user.example.com\nsearch_base: DC=user,DC=example,DC=com\n")
	system := writeConfig(t, dir, "system.yaml", "domain: system.example.com\nsearch_base: DC=system,DC=example,DC=com\n")

	cfg, err := LoadFrom(user, system)
	require.NoError(t, err)
	assert.Equal(t, "user.example.com", cfg.Domain)
}

func TestLoadFromFallsBackToSystemFile(t *testing.T) {
	dir := t.TempDir()
	system := writeConfig(t, dir, "system.yaml", "domain: system.example.com\nsearch_base: DC=system,DC=example,DC=com\n")

	cfg, err := LoadFrom(filepath.Join(dir, "missing.yaml"), system)
	require.NoError(t, err)
	assert.Equal(t, "system.example.com", cfg.Domain)
}

func TestLoadFromNoFileAnywhere(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFrom(filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yaml"))

	require.Error(t, err)
	assert.True(t, IsMissing(err))
}

func TestLoadFromUnreadableFile(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	dir := t.TempDir()
	path := writeConfig(t, dir, "locked.yaml", "domain: example.com\n")
	require.NoError(t, os.Chmod(path, 0o000))

	_, err := LoadFrom(path)

	require.Error(t, err)
	assert.True(t, IsMissing(err))
}

func TestUserConfigPathHonorsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, filepath.Join("/custom/config", "admc", "admc.yaml"), UserConfigPath())
}
