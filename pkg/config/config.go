package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/helmcode/cropdoc/pkg/backend"
)

const (
	KeyBaseURL        = "api.base_url"
	KeyVariant        = "api.variant"
	KeyTimeout        = "api.timeout"
	KeyStatusInterval = "status.interval"
	KeyModelURL       = "model.url"
	KeyModelThreshold = "model.threshold"
	KeyLogLevel       = "log.level"
	KeyServeAddr      = "serve.addr"
	KeyRateLimit      = "serve.rate_limit"
)

const EnvPrefix = "CROPDOC"

type Config struct {
	BaseURL        string
	Variant        backend.Variant
	Timeout        time.Duration
	StatusInterval time.Duration
	ModelURL       string
	ModelThreshold float64
	LogLevel       string
	ServeAddr      string
	RateLimit      int
	// SessionID is filled from the cache by the caller, not from config
	SessionID string
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyBaseURL, "http://localhost:8000")
	v.SetDefault(KeyVariant, string(backend.VariantA))
	v.SetDefault(KeyTimeout, 60*time.Second)
	v.SetDefault(KeyStatusInterval, 3*time.Second)
	v.SetDefault(KeyModelURL, "")
	v.SetDefault(KeyModelThreshold, 0.7)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyServeAddr, ":8080")
	v.SetDefault(KeyRateLimit, 30)
}

// Init wires defaults, a .env file, the optional config file and CROPDOC_*
// environment variables into v. A missing default config file is not an
// error; a missing explicit one is.
func Init(v *viper.Viper, cfgFile string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("could not load .env file")
	}

	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigType("yaml")
		v.SetConfigName(".cropdoc")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}
	log.WithField("file", v.ConfigFileUsed()).Debug("using config file")
	return nil
}

// Load reads and validates the settings from v.
func Load(v *viper.Viper) (*Config, error) {
	variant, err := backend.ParseVariant(v.GetString(KeyVariant))
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		BaseURL:        strings.TrimRight(strings.TrimSpace(v.GetString(KeyBaseURL)), "/"),
		Variant:        variant,
		Timeout:        v.GetDuration(KeyTimeout),
		StatusInterval: v.GetDuration(KeyStatusInterval),
		ModelURL:       strings.TrimSpace(v.GetString(KeyModelURL)),
		ModelThreshold: v.GetFloat64(KeyModelThreshold),
		LogLevel:       v.GetString(KeyLogLevel),
		ServeAddr:      v.GetString(KeyServeAddr),
		RateLimit:      v.GetInt(KeyRateLimit),
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s must be set", KeyBaseURL)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %s", KeyTimeout, cfg.Timeout)
	}
	if cfg.StatusInterval <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %s", KeyStatusInterval, cfg.StatusInterval)
	}
	if cfg.ModelThreshold <= 0 || cfg.ModelThreshold > 1 {
		return nil, fmt.Errorf("%s must be in (0, 1], got %v", KeyModelThreshold, cfg.ModelThreshold)
	}
	return cfg, nil
}

func (c *Config) Backend() backend.Config {
	return backend.Config{BaseURL: c.BaseURL, Variant: c.Variant, Timeout: c.Timeout, SessionID: c.SessionID}
}

// SessionID returns the id cached under the user cache directory, creating
// it on first use.
func SessionID() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate cache dir: %w", err)
	}
	return sessionIDAt(filepath.Join(dir, "cropdoc", "session-id"))
}

func sessionIDAt(path string) (string, error) {
	if data, err := os.ReadFile(path); err == nil {
		if id, err := uuid.Parse(strings.TrimSpace(string(data))); err == nil {
			return id.String(), nil
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write session id: %w", err)
	}
	return id, nil
}
