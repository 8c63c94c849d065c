// Package config loads service settings from the environment, an optional
// .env file and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSupabase = "supabase"
)

// Config is the full service configuration.
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	MetricsEnabled bool
	CORSOrigins    []string

	STT    STTConfig
	Store  StoreConfig
	Upload UploadConfig
}

// STTConfig holds speech provider credentials and polling bounds.
type STTConfig struct {
	Provider string

	DeepgramAPIKey   string
	DeepgramURL      string
	DeepgramModel    string
	DeepgramLanguage string

	AssemblyAIAPIKey string
	AssemblyAIURL    string

	OpenAIAPIKey string
	OpenAIURL    string
	OpenAIModel  string

	GoogleProjectID string
	GoogleKeyFile   string

	PollInterval    time.Duration
	PollMaxAttempts int
	Timeout         time.Duration
}

// StoreConfig selects and configures the row store.
type StoreConfig struct {
	Driver        string
	DatabaseURL   string
	SupabaseURL   string
	SupabaseKey   string
	SupabaseTable string
}

// UploadConfig limits accepted uploads.
type UploadConfig struct {
	MaxSize           int64
	AllowedExtensions []string
}

var providerNames = []string{"deepgram", "assemblyai", "openai", "google"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("CORS_ORIGINS", "*")

	v.SetDefault("STT_PROVIDER", "deepgram")
	v.SetDefault("DEEPGRAM_API_KEY", "")
	v.SetDefault("DEEPGRAM_URL", "https://api.deepgram.com")
	v.SetDefault("DEEPGRAM_MODEL", "nova-2")
	v.SetDefault("DEEPGRAM_LANGUAGE", "en")
	v.SetDefault("ASSEMBLYAI_API_KEY", "")
	v.SetDefault("ASSEMBLYAI_URL", "https://api.assemblyai.com")
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_MODEL", "whisper-1")
	v.SetDefault("GOOGLE_STT_PROJECT_ID", "")
	v.SetDefault("GOOGLE_STT_KEY_FILE", "")
	v.SetDefault("POLL_INTERVAL", time.Second)
	v.SetDefault("POLL_MAX_ATTEMPTS", 600)
	v.SetDefault("PROVIDER_TIMEOUT", 10*time.Minute)

	v.SetDefault("STORE_DRIVER", DriverMemory)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SUPABASE_URL", "")
	v.SetDefault("SUPABASE_KEY", "")
	v.SetDefault("SUPABASE_TABLE", "transcriptions")

	v.SetDefault("MAX_UPLOAD_SIZE", int64(1<<30))
	v.SetDefault("ALLOWED_EXTENSIONS", "wav,mp3,m4a,flac,ogg,webm")
}

// Load reads the configuration. Variables already set in the environment
// win over .env entries; both win over the YAML file named by CONFIG_FILE.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Port:           v.GetString("PORT"),
		GinMode:        v.GetString("GIN_MODE"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		LogFormat:      v.GetString("LOG_FORMAT"),
		MetricsEnabled: v.GetBool("METRICS_ENABLED"),
		CORSOrigins:    splitList(v.GetString("CORS_ORIGINS")),
		STT: STTConfig{
			Provider:         strings.ToLower(strings.TrimSpace(v.GetString("STT_PROVIDER"))),
			DeepgramAPIKey:   v.GetString("DEEPGRAM_API_KEY"),
			DeepgramURL:      v.GetString("DEEPGRAM_URL"),
			DeepgramModel:    v.GetString("DEEPGRAM_MODEL"),
			DeepgramLanguage: v.GetString("DEEPGRAM_LANGUAGE"),
			AssemblyAIAPIKey: v.GetString("ASSEMBLYAI_API_KEY"),
			AssemblyAIURL:    v.GetString("ASSEMBLYAI_URL"),
			OpenAIAPIKey:     v.GetString("OPENAI_API_KEY"),
			OpenAIURL:        v.GetString("OPENAI_URL"),
			OpenAIModel:      v.GetString("OPENAI_MODEL"),
			GoogleProjectID:  v.GetString("GOOGLE_STT_PROJECT_ID"),
			GoogleKeyFile:    v.GetString("GOOGLE_STT_KEY_FILE"),
			PollInterval:     v.GetDuration("POLL_INTERVAL"),
			PollMaxAttempts:  v.GetInt("POLL_MAX_ATTEMPTS"),
			Timeout:          v.GetDuration("PROVIDER_TIMEOUT"),
		},
		Store: StoreConfig{
			Driver:        strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
			DatabaseURL:   v.GetString("DATABASE_URL"),
			SupabaseURL:   v.GetString("SUPABASE_URL"),
			SupabaseKey:   v.GetString("SUPABASE_KEY"),
			SupabaseTable: v.GetString("SUPABASE_TABLE"),
		},
		Upload: UploadConfig{
			MaxSize:           v.GetInt64("MAX_UPLOAD_SIZE"),
			AllowedExtensions: normalizeExtensions(splitList(v.GetString("ALLOWED_EXTENSIONS"))),
		},
	}
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	var errs []error

	if !contains(providerNames, c.STT.Provider) {
		errs = append(errs, fmt.Errorf("STT_PROVIDER %q is not one of %s", c.STT.Provider, strings.Join(providerNames, ", ")))
	}
	if c.STT.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	if c.STT.PollMaxAttempts <= 0 {
		errs = append(errs, errors.New("POLL_MAX_ATTEMPTS must be positive"))
	}
	if c.STT.Timeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_TIMEOUT must be positive"))
	}
	if c.Upload.MaxSize <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_SIZE must be positive"))
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		errs = append(errs, errors.New("ALLOWED_EXTENSIONS must not be empty"))
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case DriverSupabase:
		if c.Store.SupabaseURL == "" || c.Store.SupabaseKey == "" {
			errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_KEY are required for the supabase store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not one of memory, postgres, supabase", c.Store.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeExtensions lowercases and strips leading dots.
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		out = append(out, strings.TrimPrefix(strings.ToLower(e), "."))
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
