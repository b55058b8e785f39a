// Package config loads the gateway configuration from an optional YAML
// file and the environment using viper.
//
// Environment variables use the SWRGATE_ prefix with dots replaced by
// underscores (SWRGATE_UPSTREAM_MAX_ATTEMPTS=5). The unprefixed names PORT,
// JSON_PLACEHOLDER_API_URL and NODE_ENV are also honoured.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Keksclan/swrgate/cache"
	"github.com/Keksclan/swrgate/retry"
	"github.com/Keksclan/swrgate/security"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "SWRGATE"

// Config is the complete gateway configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	GRPC        GRPCConfig        `mapstructure:"grpc"`
	Log         LogConfig         `mapstructure:"log"`
	Upstream    UpstreamConfig    `mapstructure:"upstream"`
	Cache       CacheConfig       `mapstructure:"cache"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Security    SecurityConfig    `mapstructure:"security"`
	Compression CompressionConfig `mapstructure:"compression"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	Environment       string        `mapstructure:"environment"` // "development" or "production"
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	// DrainDelay is how long /health reports 503 before the listeners close.
	DrainDelay        time.Duration `mapstructure:"drain_delay"`
	Docs              bool          `mapstructure:"docs"` // serve / and /docs
}

// Addr returns host:port for net.Listen.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Production reports whether the server runs in production mode.
func (s ServerConfig) Production() bool {
	return strings.EqualFold(s.Environment, "production")
}

type GRPCConfig struct {
	HealthPort int `mapstructure:"health_port"` // 0 disables the gRPC health listener
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console", "json" or "" (by environment)
}

type UpstreamConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	Backoff     string        `mapstructure:"backoff"` // "fixed" or "exponential"
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	Jitter      float64       `mapstructure:"jitter"`
	Breaker     BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	FailureThreshold   int           `mapstructure:"failure_threshold"`
	OpenTimeout        time.Duration `mapstructure:"open_timeout"`
	HalfOpenMaxSuccess int           `mapstructure:"half_open_max_success"`
}

type CacheConfig struct {
	Backend        string        `mapstructure:"backend"` // memory, redis, sqlite, tiered
	MaxEntries     int64         `mapstructure:"max_entries"`
	TTL            time.Duration `mapstructure:"ttl"` // 0 keeps entries forever
	Coalesce       bool          `mapstructure:"coalesce"`
	RefreshTimeout time.Duration `mapstructure:"refresh_timeout"`
	Redis          RedisConfig   `mapstructure:"redis"`
	SQLite         SQLiteConfig  `mapstructure:"sqlite"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"` // empty uses an in-memory database
}

type RateLimitConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Max        int           `mapstructure:"max"`
	Window     time.Duration `mapstructure:"window"`
	MaxClients int           `mapstructure:"max_clients"`
	Routes     []RouteConfig `mapstructure:"routes"`
}

// RouteConfig is a per-route policy group.
type RouteConfig struct {
	Name    string        `mapstructure:"name"`
	Exact   []string      `mapstructure:"exact"`
	Prefix  []string      `mapstructure:"prefix"`
	Regex   []string      `mapstructure:"regex"`
	Max     int           `mapstructure:"max"`
	Window  time.Duration `mapstructure:"window"`
	Exempt  bool          `mapstructure:"exempt"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SecurityConfig struct {
	IPBlock        IPBlockConfig `mapstructure:"ip_block"`
	TrustedProxies []string      `mapstructure:"trusted_proxies"`
}

type IPBlockConfig struct {
	Mode  string   `mapstructure:"mode"` // "allow" or "deny"
	CIDRs []string `mapstructure:"cidrs"`
}

type CompressionConfig struct {
	Enabled bool `mapstructure:"enabled"`
	MinSize int  `mapstructure:"min_size"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter"` // "stdout" or "none"
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// legacyEnv maps unprefixed environment variables to config keys.
var legacyEnv = map[string]string{
	"server.port":        "PORT",
	"upstream.base_url":  "JSON_PLACEHOLDER_API_URL",
	"server.environment": "NODE_ENV",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.read_header_timeout", "5s")
	v.SetDefault("server.drain_delay", "0s")
	v.SetDefault("server.docs", true)

	v.SetDefault("grpc.health_port", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")

	v.SetDefault("upstream.base_url", "https://jsonplaceholder.typicode.com")
	v.SetDefault("upstream.timeout", "5s")
	v.SetDefault("upstream.max_attempts", 3)
	v.SetDefault("upstream.retry_delay", "500ms")
	v.SetDefault("upstream.backoff", "fixed")
	v.SetDefault("upstream.max_delay", "5s")
	v.SetDefault("upstream.jitter", 0.0)
	v.SetDefault("upstream.breaker.enabled", false)
	v.SetDefault("upstream.breaker.failure_threshold", 5)
	v.SetDefault("upstream.breaker.open_timeout", "30s")
	v.SetDefault("upstream.breaker.half_open_max_success", 1)

	v.SetDefault("cache.backend", cache.BackendMemory)
	v.SetDefault("cache.max_entries", cache.DefaultMaxEntries)
	v.SetDefault("cache.ttl", "0s")
	v.SetDefault("cache.coalesce", false)
	v.SetDefault("cache.refresh_timeout", "30s")
	v.SetDefault("cache.redis.addr", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "swrgate:")
	v.SetDefault("cache.sqlite.path", "")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.max", 300)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("ratelimit.max_clients", 10_000)

	v.SetDefault("security.ip_block.mode", "deny")
	v.SetDefault("security.ip_block.cidrs", []string{})
	v.SetDefault("security.trusted_proxies", []string{})

	v.SetDefault("compression.enabled", true)
	v.SetDefault("compression.min_size", 1024)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads configuration from path (YAML; optional) and the environment.
// An empty path skips the file. Explicit SWRGATE_ variables win over the
// unprefixed legacy names.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return Config{}, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting in c.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}
	if c.Server.DrainDelay < 0 {
		errs = append(errs, fmt.Errorf("server.drain_delay must not be negative, got %s", c.Server.DrainDelay))
	}
	if c.Upstream.BaseURL == "" {
		errs = append(errs, errors.New("upstream.base_url must not be empty"))
	}
	if c.Upstream.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("upstream.max_attempts must be at least 1, got %d", c.Upstream.MaxAttempts))
	}
	if _, ok := retry.ParseStrategy(c.Upstream.Backoff); !ok {
		errs = append(errs, fmt.Errorf("upstream.backoff: unknown strategy %q", c.Upstream.Backoff))
	}
	switch c.Cache.Backend {
	case cache.BackendMemory, cache.BackendRedis, cache.BackendSQLite, cache.BackendTiered:
	default:
		errs = append(errs, fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend))
	}
	if c.Cache.Backend == cache.BackendRedis && c.Cache.Redis.Addr == "" {
		errs = append(errs, errors.New("cache.redis.addr is required for the redis backend"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("ratelimit.max and ratelimit.window must be positive"))
	}
	for _, r := range c.RateLimit.Routes {
		if r.Name == "" {
			errs = append(errs, errors.New("ratelimit.routes: every route needs a name"))
		}
		if r.Max > 0 && r.Window <= 0 {
			errs = append(errs, fmt.Errorf("ratelimit.routes[%s]: window must be positive", r.Name))
		}
		for _, re := range r.Regex {
			if _, err := regexp.Compile(re); err != nil {
				errs = append(errs, fmt.Errorf("ratelimit.routes[%s]: %w", r.Name, err))
			}
		}
	}
	if _, err := security.ParseMode(c.Security.IPBlock.Mode); err != nil {
		errs = append(errs, err)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path must start with '/', got %q", c.Metrics.Path))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
