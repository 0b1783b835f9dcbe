package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Client   ClientConfig   `mapstructure:"client"`
	Channel  ChannelConfig  `mapstructure:"channel"`
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ClientConfig configures the REST side of the chat client
type ClientConfig struct {
	BaseURL          string        `mapstructure:"base_url" validate:"required,url"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	AuthToken        string        `mapstructure:"auth_token"`
	CookieName       string        `mapstructure:"cookie_name" validate:"required"`
	MaxResponseBytes int64         `mapstructure:"max_response_bytes" validate:"gt=0"`
}

// ChannelConfig configures the live event channel
type ChannelConfig struct {
	Path             string        `mapstructure:"path" validate:"required,startswith=/"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" validate:"gt=0"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
}

// URL derives the websocket endpoint from a REST base URL
func (c ChannelConfig) URL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + c.Path
	q := url.Values{}
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// BackendConfig configures the reference backend
type BackendConfig struct {
	Store          string        `mapstructure:"store" validate:"oneof=memory postgres"`
	ReplyDelay     time.Duration `mapstructure:"reply_delay" validate:"gte=0"`
	PingInterval   time.Duration `mapstructure:"ping_interval" validate:"gt=0"`
	PingTimeout    time.Duration `mapstructure:"ping_timeout" validate:"gt=0"`
	HistoryLimit   int           `mapstructure:"history_limit" validate:"gt=0"`
	MigrationsPath string        `mapstructure:"migrations_path"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Enabled reports whether a Redis host was configured
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	CookieName   string        `mapstructure:"cookie_name"`
	SecureCookie bool          `mapstructure:"secure_cookie"`
}

type SecurityConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute" validate:"gte=0"`
	Burst             int `mapstructure:"burst" validate:"gte=0"`
}

type LoggingConfig struct {
	Level        string        `mapstructure:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format       string        `mapstructure:"format" validate:"oneof=json console"`
	File         string        `mapstructure:"file"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time"`
}

var validate = validator.New()

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_PATH"))
}

// LoadFile reads configuration from the given file (optional) and environment variables
func LoadFile(configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	// Override with environment variables, e.g. APEX_CLIENT_BASE_URL
	v.SetEnvPrefix("apex")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Client
	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.request_timeout", "30s")
	v.SetDefault("client.cookie_name", "token")
	v.SetDefault("client.max_response_bytes", 10*1024*1024)

	// Channel
	v.SetDefault("channel.path", "/socket.io/")
	v.SetDefault("channel.handshake_timeout", "15s")
	v.SetDefault("channel.write_timeout", "10s")

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Backend
	v.SetDefault("backend.store", "memory")
	v.SetDefault("backend.reply_delay", "0s")
	v.SetDefault("backend.ping_interval", "25s")
	v.SetDefault("backend.ping_timeout", "20s")
	v.SetDefault("backend.history_limit", 200)
	v.SetDefault("backend.migrations_path", "file://migrations")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "apexchat")
	v.SetDefault("database.database", "apexchat")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)

	// Redis
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Auth
	v.SetDefault("auth.jwt_secret", "change-me-in-production")
	v.SetDefault("auth.token_ttl", "168h") // 7 days
	v.SetDefault("auth.cookie_name", "token")
	v.SetDefault("auth.secure_cookie", false)

	// Security
	v.SetDefault("security.rate_limit.requests_per_minute", 30)
	v.SetDefault("security.rate_limit.burst", 5)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.max_age", "168h")
	v.SetDefault("logging.rotation_time", "24h")
}

func bindEnvVars(v *viper.Viper) {
	// Client
	v.BindEnv("client.base_url", "APEX_BASE_URL")
	v.BindEnv("client.auth_token", "APEX_CLIENT_AUTH_TOKEN")

	// Database
	v.BindEnv("database.password", "POSTGRES_PASSWORD")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Auth
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
}
