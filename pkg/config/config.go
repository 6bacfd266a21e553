package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Security SecurityConfig `mapstructure:"security"`
	API      APIConfig      `mapstructure:"api"`
	Status   StatusConfig   `mapstructure:"status"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // gin mode: debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLS          TLSConfig     `mapstructure:"tls"`
}

// TLSConfig holds TLS/SSL configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Type         string        `mapstructure:"type"` // postgres, sqlite
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	DBName       string        `mapstructure:"dbname"`
	Path         string        `mapstructure:"path"`    // For SQLite
	SSLMode      string        `mapstructure:"sslmode"` // For PostgreSQL
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
	Migrate      bool          `mapstructure:"migrate"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// SecurityConfig holds token and session settings
type SecurityConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	TokenLifetime   time.Duration `mapstructure:"token_lifetime"`
	SessionCookie   string        `mapstructure:"session_cookie"`
	SessionLifetime time.Duration `mapstructure:"session_lifetime"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"` // expired session cleanup, 0 disables
	SecureCookies   bool          `mapstructure:"secure_cookies"`
}

// APIConfig holds API-related configuration
type APIConfig struct {
	RateLimit    int        `mapstructure:"rate_limit"` // requests per minute
	BurstLimit   int        `mapstructure:"burst_limit"`
	CORS         CORSConfig `mapstructure:"cors"`
	DisabledApps []string   `mapstructure:"disabled_apps"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// Default project-specific status codes.
const (
	DefaultInvalidTokenStatus = 498
	DefaultLinkFailureStatus  = 599
)

// StatusConfig holds the project-specific status codes used by the error classifier.
type StatusConfig struct {
	InvalidToken int `mapstructure:"invalid_token"`
	LinkFailure  int `mapstructure:"link_failure"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("PORTAL")

	if err := v.ReadInConfig(); err != nil {
		// SetConfigFile reports a missing file as a path error, not ConfigFileNotFoundError.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || errors.Is(err, fs.ErrNotExist) {
			fmt.Printf("Warning: Config file not found at %s, using defaults\n", configPath)
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	overrideWithEnvVars(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")

	// Database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "./portal.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_lifetime", "5m")
	v.SetDefault("database.migrate", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "./logs/app.log")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Security defaults
	v.SetDefault("security.token_lifetime", "4h")
	v.SetDefault("security.session_cookie", "portal_session")
	v.SetDefault("security.session_lifetime", "4h")
	v.SetDefault("security.sweep_interval", "10m")
	v.SetDefault("security.secure_cookies", false)

	// API defaults
	v.SetDefault("api.rate_limit", 100)
	v.SetDefault("api.burst_limit", 200)
	v.SetDefault("api.cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("api.cors.allow_credentials", true)
	v.SetDefault("api.cors.max_age", 86400)
	v.SetDefault("api.disabled_apps", []string{})

	// Status code defaults
	v.SetDefault("status.invalid_token", DefaultInvalidTokenStatus)
	v.SetDefault("status.link_failure", DefaultLinkFailureStatus)
}

// overrideWithEnvVars overrides config with specific environment variables
func overrideWithEnvVars(v *viper.Viper) {
	// The cookie password doubles as the token secret; JWT_SECRET wins when both are set.
	envMappings := []struct {
		env string
		key string
	}{
		{"SECRET_COOKIE_PASSWORD", "security.jwt_secret"},
		{"JWT_SECRET", "security.jwt_secret"},
		{"DB_PASSWORD", "database.password"},
		{"DB_USER", "database.user"},
		{"DB_HOST", "database.host"},
		{"DB_NAME", "database.dbname"},
		{"DB_PATH", "database.path"},
		{"GIN_MODE", "server.mode"},
	}

	for _, m := range envMappings {
		if value := os.Getenv(m.env); value != "" {
			v.Set(m.key, value)
		}
	}
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Security.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required (set SECRET_COOKIE_PASSWORD)")
	}

	if config.Security.TokenLifetime <= 0 {
		return fmt.Errorf("token lifetime must be positive")
	}

	if config.Security.SessionCookie == "" {
		return fmt.Errorf("session cookie name is required")
	}

	if config.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch config.Database.Type {
	case "postgres":
		if config.Database.Host == "" || config.Database.User == "" {
			return fmt.Errorf("postgres requires host and user")
		}
	case "sqlite":
		if config.Database.Path == "" {
			return fmt.Errorf("sqlite requires path")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", config.Database.Type)
	}

	return validateStatusCodes(config.Status)
}

// validateStatusCodes keeps the custom codes apart from every code the classifier
// already uses and from each other.
func validateStatusCodes(s StatusConfig) error {
	reserved := map[int]bool{
		http.StatusBadRequest:          true,
		http.StatusUnauthorized:        true,
		http.StatusForbidden:           true,
		http.StatusMethodNotAllowed:    true,
		http.StatusInternalServerError: true,
	}

	for name, code := range map[string]int{"invalid_token": s.InvalidToken, "link_failure": s.LinkFailure} {
		if code < 100 || code > 999 {
			return fmt.Errorf("status.%s must be a three digit code, got %d", name, code)
		}
		if reserved[code] {
			return fmt.Errorf("status.%s must not reuse status %d", name, code)
		}
	}

	if s.InvalidToken == s.LinkFailure {
		return fmt.Errorf("status.invalid_token and status.link_failure must differ")
	}

	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	switch c.Database.Type {
	case "postgres":
		sslMode := c.Database.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Database.Host, c.Database.Port, c.Database.User,
			c.Database.Password, c.Database.DBName, sslMode)
	case "sqlite":
		return c.Database.Path
	default:
		return ""
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Mode == "release" || c.Server.Mode == "production"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// AppEnabled reports whether the named app is not listed in api.disabled_apps.
func (c *Config) AppEnabled(name string) bool {
	for _, disabled := range c.API.DisabledApps {
		if strings.EqualFold(disabled, name) {
			return false
		}
	}
	return true
}

// SanitizeForLogging returns a copy of the config with sensitive data redacted
func (c *Config) SanitizeForLogging() *Config {
	sanitized := *c

	if sanitized.Database.Password != "" {
		sanitized.Database.Password = "[REDACTED]"
	}

	if sanitized.Security.JWTSecret != "" {
		sanitized.Security.JWTSecret = "[REDACTED]"
	}

	return &sanitized
}
