// Package config loads the client configuration from an optional YAML file,
// RENTARIDE_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Errors returned by the config package.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("config: invalid configuration")
	// ErrConfigNotFound is returned when an explicitly named config file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")
)

// EnvPrefix is the prefix of environment variables that override file values.
const EnvPrefix = "RENTARIDE"

// Config holds all client configuration
type Config struct {
	App     AppConfig
	Target  TargetConfig
	Auth    AuthConfig
	Assets  AssetsConfig
	Store   StoreConfig
	Log     LogConfig
	Redis   RedisConfig
	Metrics MetricsConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string `validate:"required"`
	Env  string `validate:"oneof=development staging production test"`
}

// TargetConfig describes the REST backend.
type TargetConfig struct {
	// BaseURL is the backend origin, e.g. "http://localhost:3000".
	BaseURL string `validate:"required,url"`

	// APIPrefix is prepended to every resource path. Default: "/api"
	APIPrefix string

	// Timeout bounds a single HTTP exchange. Default: 20s
	Timeout time.Duration `validate:"gt=0"`

	// Headers are added to every request.
	Headers map[string]string

	// RetryCount is the number of extra attempts for idempotent reads.
	RetryCount   int           `validate:"gte=0,lte=10"`
	RetryWait    time.Duration `validate:"gte=0"`
	RetryMaxWait time.Duration `validate:"gte=0"`

	// RateLimit caps outgoing requests per second. Zero disables limiting.
	RateLimit float64 `validate:"gte=0"`
	Burst     int     `validate:"gte=0"`

	UserAgent string
}

// AuthConfig holds bearer-token settings.
type AuthConfig struct {
	// Token is a static bearer token. It seeds the token store when set.
	Token string

	// TokenFile persists the session token between runs. Empty keeps it in memory.
	TokenFile string

	// SignOutOnUnauthorized clears the stored token after a 401/403 answer.
	SignOutOnUnauthorized bool
}

// AssetsConfig controls image path resolution.
type AssetsConfig struct {
	StaticRoot  string `validate:"required"`
	Placeholder string `validate:"required"`
	DefaultExt  string `validate:"required,startswith=."`
}

// StoreConfig holds list store tuning.
type StoreConfig struct {
	LoadTimeout     time.Duration `validate:"gt=0"`
	RefetchDebounce time.Duration `validate:"gte=0"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn warning error"`
	Format string `validate:"oneof=json console"`
	Output string
}

// RedisConfig holds the refetch signal relay connection.
type RedisConfig struct {
	Enabled  bool
	Addr     string `validate:"required_if=Enabled true"`
	Password string
	DB       int    `validate:"gte=0"`
	Channel  string `validate:"required_if=Enabled true"`
}

// MetricsConfig holds the Prometheus exporter settings.
type MetricsConfig struct {
	Enabled bool
	Addr    string `validate:"required_if=Enabled true"`
	Path    string
}

// Load loads configuration.
// Priority (highest to lowest):
// 1. Environment variables with RENTARIDE_ prefix (e.g., RENTARIDE_TARGET_BASE_URL)
// 2. the YAML file at path, or rentaride.yaml found in ., ./config or $HOME/.rentaride
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rentaride")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.rentaride")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case path != "" && (errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)):
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		case errors.As(err, &notFound):
			// No file is fine; defaults and env vars still apply.
		default:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Target: TargetConfig{
			BaseURL:      v.GetString("target.base_url"),
			APIPrefix:    v.GetString("target.api_prefix"),
			Timeout:      v.GetDuration("target.timeout"),
			Headers:      v.GetStringMapString("target.headers"),
			RetryCount:   v.GetInt("target.retry_count"),
			RetryWait:    v.GetDuration("target.retry_wait"),
			RetryMaxWait: v.GetDuration("target.retry_max_wait"),
			RateLimit:    v.GetFloat64("target.rate_limit"),
			Burst:        v.GetInt("target.burst"),
			UserAgent:    v.GetString("target.user_agent"),
		},
		Auth: AuthConfig{
			Token:                 v.GetString("auth.token"),
			TokenFile:             v.GetString("auth.token_file"),
			SignOutOnUnauthorized: v.GetBool("auth.sign_out_on_unauthorized"),
		},
		Assets: AssetsConfig{
			StaticRoot:  v.GetString("assets.static_root"),
			Placeholder: v.GetString("assets.placeholder"),
			DefaultExt:  v.GetString("assets.default_ext"),
		},
		Store: StoreConfig{
			LoadTimeout:     v.GetDuration("store.load_timeout"),
			RefetchDebounce: v.GetDuration("store.refetch_debounce"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Channel:  v.GetString("redis.channel"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
			Addr:    v.GetString("metrics.addr"),
			Path:    v.GetString("metrics.path"),
		},
	}

	// retry_count of zero is meaningful, so only default it when unset.
	if !v.IsSet("target.retry_count") {
		cfg.Target.RetryCount = 2
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading files or env.
func Default() *Config {
	cfg := &Config{}
	cfg.Target.RetryCount = 2
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "rentctl"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Target.BaseURL == "" {
		cfg.Target.BaseURL = "http://localhost:3000"
	}
	if cfg.Target.APIPrefix == "" {
		cfg.Target.APIPrefix = "/api"
	}
	if cfg.Target.Timeout == 0 {
		cfg.Target.Timeout = 20 * time.Second
	}
	if cfg.Target.RetryWait == 0 {
		cfg.Target.RetryWait = 200 * time.Millisecond
	}
	if cfg.Target.RetryMaxWait == 0 {
		cfg.Target.RetryMaxWait = 2 * time.Second
	}
	if cfg.Target.RateLimit > 0 && cfg.Target.Burst == 0 {
		cfg.Target.Burst = 1
	}
	if cfg.Target.UserAgent == "" {
		cfg.Target.UserAgent = "rentctl/1.0"
	}
	if cfg.Assets.StaticRoot == "" {
		cfg.Assets.StaticRoot = "/uploads/vehicles"
	}
	if cfg.Assets.Placeholder == "" {
		cfg.Assets.Placeholder = "/images/car-placeholder.jpg"
	}
	if cfg.Assets.DefaultExt == "" {
		cfg.Assets.DefaultExt = ".jpg"
	}
	if cfg.Store.LoadTimeout == 0 {
		cfg.Store.LoadTimeout = 20 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "rentaride:refetch"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q", ErrInvalidConfig, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Target.RetryMaxWait < c.Target.RetryWait {
		return fmt.Errorf("%w: target.retry_max_wait (%s) is shorter than target.retry_wait (%s)",
			ErrInvalidConfig, c.Target.RetryMaxWait, c.Target.RetryWait)
	}
	if c.Target.APIPrefix != "" && !strings.HasPrefix(c.Target.APIPrefix, "/") {
		return fmt.Errorf("%w: target.api_prefix must start with '/'", ErrInvalidConfig)
	}

	if c.App.Env == "production" {
		u, err := url.Parse(c.Target.BaseURL)
		if err != nil || u.Scheme != "https" {
			return fmt.Errorf("%w: target.base_url must use https in production", ErrInvalidConfig)
		}
	}
	return nil
}
