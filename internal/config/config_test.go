package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metcalfc/pdfjson/internal/client"
	"github.com/metcalfc/pdfjson/internal/upload"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	return Load(NewFlagSet("pdfjson"), args)
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{"PDFJSON_BASE_URL", "PDFJSON_VARIANT", "PDFJSON_TIMEOUT", "PDFJSON_HISTORY", "PDFJSON_LOG_FILE"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, client.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, upload.DefaultVariant, cfg.Variant)
	assert.Equal(t, time.Duration(0), cfg.Timeout)
	assert.True(t, cfg.History)
	assert.False(t, cfg.Print)
	assert.Empty(t, cfg.Args)
}

func TestLoad_Flags(t *testing.T) {
	isolate(t)

	cfg, err := load(t, "-u", "http://localhost:8080", "--variant", "basic", "--timeout", "30s", "--history=false", "cv.pdf")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, "basic", cfg.Variant)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.False(t, cfg.History)
	assert.Equal(t, []string{"cv.pdf"}, cfg.Args)

	v, err := cfg.PanelVariant()
	require.NoError(t, err)
	assert.Equal(t, "/upload", v.Path)
}

func TestLoad_Env(t *testing.T) {
	isolate(t)
	t.Setenv("PDFJSON_BASE_URL", "http://parser.internal")
	t.Setenv("PDFJSON_TIMEOUT", "2m")

	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, "http://parser.internal", cfg.BaseURL)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)

	// Flags win over the environment
	cfg, err = load(t, "--url", "http://flag.example")
	require.NoError(t, err)
	assert.Equal(t, "http://flag.example", cfg.BaseURL)
}

func TestLoad_ConfigFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("variant: formats\nlog_file: /tmp/pdfjson.log\n"), 0644))

	cfg, err := load(t, "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "formats", cfg.Variant)
	assert.Equal(t, "/tmp/pdfjson.log", cfg.LogFile)
}

func TestLoad_DefaultConfigLocation(t *testing.T) {
	isolate(t)
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, "pdfjson"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(home, "pdfjson", "config.yaml"), []byte("base_url: http://from-file\n"), 0644))

	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, "http://from-file", cfg.BaseURL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown variant", []string{"--variant", "fancy"}},
		{"bad scheme", []string{"--url", "ftp://example.com"}},
		{"negative timeout", []string{"--timeout", "-1s"}},
		{"print without file", []string{"--print"}},
		{"missing config file", []string{"--config", "/nonexistent/pdfjson.yaml"}},
		{"unknown flag", []string{"--bogus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, err := load(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
