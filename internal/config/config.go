package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

type CacheType string

const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

type Locale string

const (
	LocaleEnglish Locale = "en"
	LocaleChinese Locale = "zh"
)

// Config holds the configuration for the swim4love server.
type Config struct {
	// Listen is the address the server will listen on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// ServerURL is the public base URL of the server.
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
	// Development enables development-only routes such as self registration.
	Development bool `yaml:"development" mapstructure:"development"`
	// Locale selects the language of response messages.
	Locale Locale `yaml:"locale" mapstructure:"locale"`
	// SessionKey is the key used to sign session cookies.
	SessionKey string `yaml:"session_key" mapstructure:"session_key"`
	// SessionMaxAge is the maximum age of a session in seconds.
	SessionMaxAge int `yaml:"session_max_age" mapstructure:"session_max_age"`
	// AdminPassword is the password of the built-in "admin" account.
	// Falls back to SessionKey when empty.
	AdminPassword string `yaml:"admin_password" mapstructure:"admin_password"`
	// SwimmerIDLength is the exact number of digits of a swimmer ID.
	SwimmerIDLength int `yaml:"swimmer_id_length" mapstructure:"swimmer_id_length"`
	// LapLength is the length of one lap in metres.
	LapLength int `yaml:"lap_length" mapstructure:"lap_length"`
	// Database holds the database configuration.
	Database *DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Cache holds the standings cache configuration.
	Cache *CacheConfig `yaml:"cache" mapstructure:"cache"`
	// Live holds the real-time leaderboard configuration.
	Live *LiveConfig `yaml:"live" mapstructure:"live"`
	// Auth holds the authentication configuration.
	Auth *AuthConfig `yaml:"auth" mapstructure:"auth"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	// Path is the path to the sqlite database file.
	Path string `yaml:"path" mapstructure:"path"`
}

// CacheConfig holds the configuration for the standings cache.
type CacheConfig struct {
	// Type is the cache backend ("memory" or "redis").
	Type CacheType `yaml:"type" mapstructure:"type"`
	// RedisURL is the address of the redis server when Type is "redis".
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	// TTL bounds how long a cached snapshot may live even without mutations.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// LiveConfig holds the configuration for leaderboard viewers.
type LiveConfig struct {
	// ResyncInterval is how often the full standings are republished. Zero disables it.
	ResyncInterval time.Duration `yaml:"resync_interval" mapstructure:"resync_interval"`
	// QueueSize is the number of pending events a viewer may lag behind before it is dropped.
	QueueSize int `yaml:"queue_size" mapstructure:"queue_size"`
}

// AuthConfig holds the authentication configuration.
type AuthConfig struct {
	// RestrictLapsToLinked limits lap changes by non-admin volunteers to their linked swimmers.
	RestrictLapsToLinked bool `yaml:"restrict_laps_to_linked" mapstructure:"restrict_laps_to_linked"`
	// OIDC holds the OpenID Connect configuration.
	OIDC *OIDCConfig `yaml:"oidc" mapstructure:"oidc"`
}

// OIDCConfig holds the OpenID Connect configuration.
type OIDCConfig struct {
	// Enabled indicates whether OIDC authentication is enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Name is the display name for the OIDC provider.
	Name string `yaml:"name" mapstructure:"name"`
	// Issuer is the OIDC issuer URL.
	Issuer string `yaml:"issuer" mapstructure:"issuer"`
	// ClientID is the OIDC client ID.
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	// ClientSecret is the OIDC client secret.
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	// RedirectURL is the redirect URL for the oidc flow.
	RedirectURL string `yaml:"redirect_url" mapstructure:"redirect_url"`
	// AdminGroup is the group that has admin privileges.
	AdminGroup string `yaml:"admin_group" mapstructure:"admin_group"`
}

// Load reads the configuration from the specified path and returns a Config struct.
// If path is empty, it will use default search paths for config files.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("SWIM4LOVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var configFileFound bool
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.swim4love")
		v.AddConfigPath("/etc/swim4love")
	}

	if err := v.ReadInConfig(); err != nil {
		// If no config file is found, use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		configFileFound = true
	}

	if configFileFound {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
		log.Debug("Environment variables with SWIM4LOVE_ prefix will override config file values")
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	sanitizeConfig(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// setDefaults sets default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "0.0.0.0:5000")
	v.SetDefault("server_url", "http://localhost:5000")
	v.SetDefault("development", false)
	v.SetDefault("locale", LocaleEnglish)
	v.SetDefault("session_key", "")
	v.SetDefault("session_max_age", 43200) // 12 hours, one event day
	v.SetDefault("admin_password", "")
	v.SetDefault("swimmer_id_length", 3)
	v.SetDefault("lap_length", 50)

	v.SetDefault("database.path", "./data/swim4love.db")

	v.SetDefault("cache.type", CacheTypeMemory)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("live.resync_interval", time.Minute)
	v.SetDefault("live.queue_size", 16)

	v.SetDefault("auth.restrict_laps_to_linked", false)
	v.SetDefault("auth.oidc.enabled", false)
	v.SetDefault("auth.oidc.name", "OIDC")
	v.SetDefault("auth.oidc.issuer", "")
	v.SetDefault("auth.oidc.client_id", "")
	v.SetDefault("auth.oidc.client_secret", "")
	v.SetDefault("auth.oidc.redirect_url", "")
	v.SetDefault("auth.oidc.admin_group", "")
}

// validateConfig validates the configuration.
func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing swim4love config")
	}

	if c.SessionKey == "" {
		return fmt.Errorf("session key is required")
	}

	if c.SwimmerIDLength < 1 || c.SwimmerIDLength > 9 {
		return fmt.Errorf("swimmer ID length must be between 1 and 9, got %d", c.SwimmerIDLength)
	}

	if c.LapLength <= 0 {
		return fmt.Errorf("lap length must be greater than 0")
	}

	switch c.Locale {
	case LocaleEnglish, LocaleChinese:
	default:
		return fmt.Errorf("unsupported locale %q", c.Locale)
	}

	if c.Database == nil || c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Cache != nil {
		if c.Cache.Type == "" {
			return fmt.Errorf("cache type is required when cache is configured")
		}
		if c.Cache.Type == CacheTypeRedis && c.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when Redis cache is enabled") //nolint:staticcheck
		}
	} else {
		c.Cache = &CacheConfig{
			Type: CacheTypeMemory,
		}
	}

	if c.Live == nil {
		c.Live = &LiveConfig{}
	}
	if c.Live.ResyncInterval < 0 {
		return fmt.Errorf("live resync interval must not be negative")
	}

	if c.Auth == nil {
		c.Auth = &AuthConfig{}
	}

	if c.Auth.OIDC != nil && c.Auth.OIDC.Enabled {
		if c.Auth.OIDC.Issuer == "" {
			return fmt.Errorf("OIDC issuer is required when OIDC is enabled")
		}
		if c.Auth.OIDC.ClientID == "" {
			return fmt.Errorf("OIDC client ID is required when OIDC is enabled")
		}
		if c.Auth.OIDC.ClientSecret == "" {
			return fmt.Errorf("OIDC client secret is required when OIDC is enabled")
		}
		if c.Auth.OIDC.RedirectURL == "" {
			return fmt.Errorf("OIDC redirect URL is required when OIDC is enabled")
		}
		if c.Auth.OIDC.AdminGroup == "" {
			return fmt.Errorf("OIDC admin group is required when OIDC is enabled")
		}
	}

	if c.AdminPassword == "" {
		log.Warn("No admin password configured, the admin account uses the session key as password")
	}

	return nil
}

// sanitizeConfig sanitizes the configuration values.
func sanitizeConfig(c *Config) {
	if c == nil {
		return
	}

	c.Listen = urlSanitize(c.Listen)
	c.Locale = Locale(strings.ToLower(strings.TrimSpace(string(c.Locale))))

	if c.ServerURL != "" {
		c.ServerURL = urlSanitize(c.ServerURL)
	}

	if c.Auth != nil && c.Auth.OIDC != nil {
		c.Auth.OIDC.Issuer = urlSanitize(c.Auth.OIDC.Issuer)
	}
}

func urlSanitize(url string) string {
	return strings.TrimSuffix(strings.TrimSpace(url), "/")
}

// AdminSecret returns the password of the built-in admin account.
func (c *Config) AdminSecret() string {
	if c.AdminPassword != "" {
		return c.AdminPassword
	}
	return c.SessionKey
}

// GetQueueSize returns the viewer queue size with proper defaults.
func (c *LiveConfig) GetQueueSize() int {
	if c == nil || c.QueueSize <= 0 {
		return 16
	}
	return c.QueueSize
}

// IsOIDCEnabled returns true if OIDC login is configured.
func (c *Config) IsOIDCEnabled() bool {
	return c.Auth != nil && c.Auth.OIDC != nil && c.Auth.OIDC.Enabled
}
