package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "exifai/internal/errors"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func clearVendorEnv(t *testing.T) {
	for _, key := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "ANTHROPIC_API_KEY", "CLOUDFLARE_API_TOKEN", "CLOUDFLARE_ACCOUNT_ID"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	clearVendorEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultOrder, cfg.ServiceOrder)
	assert.Equal(t, "gpt-4o-mini", cfg.AIServices.OpenAI.Model)
	assert.Equal(t, "gemini-2.0-flash", cfg.AIServices.Gemini.Model)
	assert.Equal(t, "@cf/llava-hf/llava-1.5-7b-hf", cfg.AIServices.Cloudflare.Model)
	assert.True(t, cfg.AIServices.OpenAI.Enabled)
	assert.False(t, cfg.AIServices.Local.Enabled)
	assert.True(t, cfg.Output.BackupOriginals)
	assert.False(t, cfg.Output.DryRun)
	assert.Equal(t, 60, cfg.Processing.TimeoutSecs)
	assert.GreaterOrEqual(t, cfg.Workers(), 1)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	sel := cfg.Selection()
	assert.True(t, sel.WriteTitle && sel.WriteDescription && sel.WriteTags && sel.WriteGPS && sel.WriteSubject)
	assert.False(t, sel.OverwriteExisting)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)
	clearVendorEnv(t)

	yaml := `
ai_services:
  gemini:
    api_key: g-key
    requests_per_minute: 15
  openai:
    enabled: false
service_order: [gemini, openai]
exif_fields:
  write_gps: false
  overwrite_existing: true
output:
  dry_run: true
processing:
  concurrency: 3
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "g-key", cfg.AIServices.Gemini.APIKey)
	assert.Equal(t, 15, cfg.AIServices.Gemini.RequestsPerMinute)
	assert.Equal(t, "gemini-2.0-flash", cfg.AIServices.Gemini.Model, "defaults still apply for unset values")
	assert.False(t, cfg.AIServices.OpenAI.Enabled)
	assert.Equal(t, []string{"gemini", "openai"}, cfg.ServiceOrder)
	assert.False(t, cfg.ExifFields.WriteGPS)
	assert.True(t, cfg.ExifFields.OverwriteExisting)
	assert.True(t, cfg.Output.DryRun)
	assert.True(t, cfg.Output.BackupOriginals)
	assert.Equal(t, 3, cfg.Workers())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"gemini"}, cfg.EnabledServices())
}

func TestLoadExplicitPath(t *testing.T) {
	chdirTemp(t)
	clearVendorEnv(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("processing:\n  timeout_secs: 5\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Processing.TimeoutSecs)
}

func TestLoadMissingExplicitPathFails(t *testing.T) {
	chdirTemp(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.InvalidConfig))
}

func TestLoadEnv(t *testing.T) {
	chdirTemp(t)
	clearVendorEnv(t)
	t.Setenv("OPENAI_API_KEY", "vendor-key")
	t.Setenv("CLOUDFLARE_ACCOUNT_ID", "acct")
	t.Setenv("CLOUDFLARE_API_TOKEN", "token")
	t.Setenv("EXIFAI_OUTPUT_DRY_RUN", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "vendor-key", cfg.AIServices.OpenAI.APIKey)
	assert.True(t, cfg.Output.DryRun)
	assert.Equal(t, []string{OpenAI, Cloudflare}, cfg.EnabledServices())
}

func TestPrefixedEnvWinsOverVendorEnv(t *testing.T) {
	chdirTemp(t)
	clearVendorEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "vendor")
	t.Setenv("EXIFAI_AI_SERVICES_ANTHROPIC_API_KEY", "prefixed")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.AIServices.Anthropic.APIKey)
}

func TestEnabledServicesFiltersAndDeduplicates(t *testing.T) {
	cfg := Default()
	cfg.AIServices.OpenAI.APIKey = "k"
	cfg.AIServices.Gemini.APIKey = "k"
	cfg.AIServices.Gemini.Enabled = false
	cfg.AIServices.Cloudflare.AccountID = "only-account"
	cfg.AIServices.Local.Enabled = true
	cfg.AIServices.Local.ModelDir = "/models"
	cfg.ServiceOrder = []string{"local", "OpenAI", "openai", "gemini", "cloudflare"}

	assert.Equal(t, []string{Local, OpenAI}, cfg.EnabledServices())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"usable backend", func(c *Config) { c.AIServices.OpenAI.APIKey = "k" }, true},
		{"no credentials anywhere", func(c *Config) {}, false},
		{"unknown service", func(c *Config) {
			c.AIServices.OpenAI.APIKey = "k"
			c.ServiceOrder = []string{"openai", "mystery"}
		}, false},
		{"zero timeout", func(c *Config) {
			c.AIServices.OpenAI.APIKey = "k"
			c.Processing.TimeoutSecs = 0
		}, false},
		{"bad log format", func(c *Config) {
			c.AIServices.OpenAI.APIKey = "k"
			c.Log.Format = "xml"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.InvalidConfig))
		})
	}
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	chdirTemp(t)
	clearVendorEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	want := Default()
	assert.Equal(t, want.ServiceOrder, cfg.ServiceOrder)
	assert.Equal(t, want.AIServices.Gemini, cfg.AIServices.Gemini)
	assert.Equal(t, want.ExifFields, cfg.ExifFields)

	err = WriteDefault(path)
	require.Error(t, err, "an existing config must never be replaced")
	assert.True(t, appErrors.Is(err, appErrors.InvalidConfig))
}
