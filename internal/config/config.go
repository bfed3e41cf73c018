package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"exifai/internal/domain"
	appErrors "exifai/internal/errors"
)

// Backend names, in the default failover order.
const (
	OpenAI     = "openai"
	Gemini     = "gemini"
	Cloudflare = "cloudflare"
	Anthropic  = "anthropic"
	Local      = "local"
)

// DefaultOrder is the failover order used when service_order is unset.
var DefaultOrder = []string{OpenAI, Gemini, Cloudflare, Anthropic, Local}

// Config holds the full application configuration.
type Config struct {
	AIServices   AIServices       `yaml:"ai_services" mapstructure:"ai_services"`
	ServiceOrder []string         `yaml:"service_order" mapstructure:"service_order"`
	ExifFields   ExifFieldsConfig `yaml:"exif_fields" mapstructure:"exif_fields"`
	Output       OutputConfig     `yaml:"output" mapstructure:"output"`
	Processing   ProcessingConfig `yaml:"processing" mapstructure:"processing"`
	Log          LogConfig        `yaml:"log" mapstructure:"log"`
}

// AIServices holds one block per backend.
type AIServices struct {
	OpenAI     ServiceConfig `yaml:"openai" mapstructure:"openai"`
	Gemini     ServiceConfig `yaml:"gemini" mapstructure:"gemini"`
	Cloudflare ServiceConfig `yaml:"cloudflare" mapstructure:"cloudflare"`
	Anthropic  ServiceConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Local      ServiceConfig `yaml:"local" mapstructure:"local"`
}

// ServiceConfig configures a single backend. Only the credential fields the
// backend needs are read.
type ServiceConfig struct {
	Enabled           bool   `yaml:"enabled" mapstructure:"enabled"`
	APIKey            string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	AccountID         string `yaml:"account_id,omitempty" mapstructure:"account_id"`
	APIToken          string `yaml:"api_token,omitempty" mapstructure:"api_token"`
	Model             string `yaml:"model,omitempty" mapstructure:"model"`
	BaseURL           string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	ModelDir          string `yaml:"model_dir,omitempty" mapstructure:"model_dir"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// ExifFieldsConfig selects the fields to write.
type ExifFieldsConfig struct {
	WriteTitle        bool `yaml:"write_title" mapstructure:"write_title"`
	WriteDescription  bool `yaml:"write_description" mapstructure:"write_description"`
	WriteTags         bool `yaml:"write_tags" mapstructure:"write_tags"`
	WriteGPS          bool `yaml:"write_gps" mapstructure:"write_gps"`
	WriteSubject      bool `yaml:"write_subject" mapstructure:"write_subject"`
	OverwriteExisting bool `yaml:"overwrite_existing" mapstructure:"overwrite_existing"`
}

// OutputConfig controls what the pipeline does to files on disk.
type OutputConfig struct {
	DryRun          bool   `yaml:"dry_run" mapstructure:"dry_run"`
	BackupOriginals bool   `yaml:"backup_originals" mapstructure:"backup_originals"`
	LogFile         string `yaml:"log_file,omitempty" mapstructure:"log_file"`
}

// ProcessingConfig bounds batch concurrency and backend calls.
type ProcessingConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Default returns the configuration used when no file or env overrides exist.
func Default() Config {
	return Config{
		AIServices: AIServices{
			OpenAI:     ServiceConfig{Enabled: true, Model: "gpt-4o-mini", BaseURL: "https://api.openai.com/v1"},
			Gemini:     ServiceConfig{Enabled: true, Model: "gemini-2.0-flash", BaseURL: "https://generativelanguage.googleapis.com/v1beta"},
			Cloudflare: ServiceConfig{Enabled: true, Model: "@cf/llava-hf/llava-1.5-7b-hf", BaseURL: "https://api.cloudflare.com/client/v4"},
			Anthropic:  ServiceConfig{Enabled: true, Model: "claude-haiku-4-5-20251001"},
			Local:      ServiceConfig{Enabled: false, BaseURL: "http://127.0.0.1:8765", ModelDir: defaultModelDir()},
		},
		ServiceOrder: append([]string(nil), DefaultOrder...),
		ExifFields: ExifFieldsConfig{
			WriteTitle:       true,
			WriteDescription: true,
			WriteTags:        true,
			WriteGPS:         true,
			WriteSubject:     true,
		},
		Output:     OutputConfig{BackupOriginals: true},
		Processing: ProcessingConfig{Concurrency: runtime.NumCPU(), TimeoutSecs: 60},
		Log:        LogConfig{Level: "info", Format: "console"},
	}
}

func defaultModelDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "exifai", "blip")
}

// Load reads configuration from file and environment. An empty path searches
// the working directory for config.yaml; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("EXIFAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindVendorEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, appErrors.Wrap(appErrors.InvalidConfig, "config.load", path, eris.Wrap(err, "config: read file"))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, appErrors.Wrap(appErrors.InvalidConfig, "config.load", path, eris.Wrap(err, "config: unmarshal"))
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	services := map[string]ServiceConfig{
		OpenAI:     d.AIServices.OpenAI,
		Gemini:     d.AIServices.Gemini,
		Cloudflare: d.AIServices.Cloudflare,
		Anthropic:  d.AIServices.Anthropic,
		Local:      d.AIServices.Local,
	}
	for name, s := range services {
		prefix := "ai_services." + name + "."
		v.SetDefault(prefix+"enabled", s.Enabled)
		v.SetDefault(prefix+"api_key", "")
		v.SetDefault(prefix+"account_id", "")
		v.SetDefault(prefix+"api_token", "")
		v.SetDefault(prefix+"model", s.Model)
		v.SetDefault(prefix+"base_url", s.BaseURL)
		v.SetDefault(prefix+"model_dir", s.ModelDir)
		v.SetDefault(prefix+"requests_per_minute", 0)
	}

	v.SetDefault("service_order", d.ServiceOrder)
	v.SetDefault("exif_fields.write_title", true)
	v.SetDefault("exif_fields.write_description", true)
	v.SetDefault("exif_fields.write_tags", true)
	v.SetDefault("exif_fields.write_gps", true)
	v.SetDefault("exif_fields.write_subject", true)
	v.SetDefault("exif_fields.overwrite_existing", false)
	v.SetDefault("output.dry_run", false)
	v.SetDefault("output.backup_originals", true)
	v.SetDefault("output.log_file", "")
	v.SetDefault("processing.concurrency", d.Processing.Concurrency)
	v.SetDefault("processing.timeout_secs", d.Processing.TimeoutSecs)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// bindVendorEnv lets the usual vendor variables fill credentials. The
// EXIFAI_ name is listed first and wins when both are set.
func bindVendorEnv(v *viper.Viper) {
	bind := func(key, vendor string) {
		_ = v.BindEnv(key, "EXIFAI_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), vendor)
	}
	bind("ai_services.openai.api_key", "OPENAI_API_KEY")
	bind("ai_services.gemini.api_key", "GEMINI_API_KEY")
	bind("ai_services.anthropic.api_key", "ANTHROPIC_API_KEY")
	bind("ai_services.cloudflare.api_token", "CLOUDFLARE_API_TOKEN")
	bind("ai_services.cloudflare.account_id", "CLOUDFLARE_ACCOUNT_ID")
}

// Service returns the block for a backend name.
func (s AIServices) Service(name string) (ServiceConfig, bool) {
	switch name {
	case OpenAI:
		return s.OpenAI, true
	case Gemini:
		return s.Gemini, true
	case Cloudflare:
		return s.Cloudflare, true
	case Anthropic:
		return s.Anthropic, true
	case Local:
		return s.Local, true
	default:
		return ServiceConfig{}, false
	}
}

// HasCredentials reports whether the fields a backend needs are filled in.
func (s ServiceConfig) HasCredentials(name string) bool {
	switch name {
	case Cloudflare:
		return s.AccountID != "" && s.APIToken != ""
	case Local:
		return s.ModelDir != ""
	default:
		return s.APIKey != ""
	}
}

// EnabledServices returns the backends to try, in failover order: listed in
// service_order, enabled, and carrying credentials. Duplicates are dropped.
func (c *Config) EnabledServices() []string {
	order := c.ServiceOrder
	if len(order) == 0 {
		order = DefaultOrder
	}
	seen := map[string]bool{}
	var out []string
	for _, raw := range order {
		name := strings.ToLower(strings.TrimSpace(raw))
		if seen[name] {
			continue
		}
		seen[name] = true
		s, ok := c.AIServices.Service(name)
		if !ok || !s.Enabled || !s.HasCredentials(name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Validate reports configuration problems that make every image fail.
func (c *Config) Validate() error {
	for _, raw := range c.ServiceOrder {
		name := strings.ToLower(strings.TrimSpace(raw))
		if _, ok := c.AIServices.Service(name); !ok {
			return appErrors.Wrap(appErrors.InvalidConfig, "config.validate", "", eris.Errorf("config: unknown service %q in service_order", raw))
		}
	}
	if len(c.EnabledServices()) == 0 {
		return appErrors.Wrap(appErrors.InvalidConfig, "config.validate", "", eris.New("config: no AI service is enabled with credentials"))
	}
	if c.Processing.TimeoutSecs <= 0 {
		return appErrors.Wrap(appErrors.InvalidConfig, "config.validate", "", eris.Errorf("config: processing.timeout_secs must be positive, got %d", c.Processing.TimeoutSecs))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return appErrors.Wrap(appErrors.InvalidConfig, "config.validate", "", eris.Errorf("config: unknown log.format %q", c.Log.Format))
	}
	return nil
}

// Selection maps exif_fields onto the domain selection.
func (c *Config) Selection() domain.FieldSelection {
	f := c.ExifFields
	return domain.FieldSelection{
		WriteTitle:        f.WriteTitle,
		WriteDescription:  f.WriteDescription,
		WriteTags:         f.WriteTags,
		WriteGPS:          f.WriteGPS,
		WriteSubject:      f.WriteSubject,
		OverwriteExisting: f.OverwriteExisting,
	}
}

// Timeout is the per-call backend timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Processing.TimeoutSecs) * time.Second
}

// Workers is the batch concurrency, at least 1.
func (c *Config) Workers() int {
	if c.Processing.Concurrency < 1 {
		return 1
	}
	return c.Processing.Concurrency
}

// WriteDefault writes the default configuration as YAML. An existing file is
// never replaced.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return appErrors.Wrap(appErrors.InvalidConfig, "config.init", path, eris.New("config: file already exists"))
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return eris.Wrap(err, "config: marshal defaults")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrap(err, "config: create directory")
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return appErrors.Wrap(appErrors.WriteError, "config.init", path, eris.Wrap(err, "config: write file"))
	}
	return nil
}
