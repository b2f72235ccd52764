package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
	ErrInvalidConfig         = errors.New("invalid configuration")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v1.0.0"

// CurrentVersion is the expected version of config.toml.
const CurrentVersion = 1

// EnvPrefix prefixes environment overrides, e.g. ROPROFILE_SERVER__PORT.
const EnvPrefix = "ROPROFILE_"

// Config represents the entire application configuration.
type Config struct {
	// Version of the config file.
	Version int `koanf:"version"`
	// Logging and profiling settings.
	Debug Debug `koanf:"debug"`
	// HTTP server settings.
	Server Server `koanf:"server"`
	// Roblox API client settings.
	Upstream Upstream `koanf:"upstream"`
	// Circuit breaker applied per Roblox host.
	CircuitBreaker CircuitBreaker `koanf:"circuit_breaker"`
	// Profile cache settings.
	Cache Cache `koanf:"cache"`
	// Request queue settings.
	Queue Queue `koanf:"queue"`
	// Redis connection used by the redis cache backend.
	Redis Redis `koanf:"redis"`
	// Tracing export settings.
	Telemetry Telemetry `koanf:"telemetry"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum number of log sessions to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Maximum number of lines kept in each log file.
	MaxLogLines int `koanf:"max_log_lines"`
	// Also write logs to stderr.
	LogToStderr bool `koanf:"log_to_stderr"`
	// Enable the pprof debug server.
	EnablePprof bool `koanf:"enable_pprof"`
	// Port for the pprof debug server.
	PprofPort int `koanf:"pprof_port"`
}

// Server contains HTTP server configuration.
type Server struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	// Read timeout in milliseconds.
	ReadTimeout int `koanf:"read_timeout"`
	// Write timeout in milliseconds.
	WriteTimeout int `koanf:"write_timeout"`
	// Graceful shutdown timeout in milliseconds.
	ShutdownTimeout int `koanf:"shutdown_timeout"`
	// Bearer token required by the cache endpoints. Empty disables them.
	AdminToken string `koanf:"admin_token"`
	// Allowed CORS origins.
	AllowedOrigins []string `koanf:"allowed_origins"`
	// Client IP detection.
	IP IPConfig `koanf:"ip"`
	// Per-client rate limiting.
	RateLimit RateLimit `koanf:"rate_limit"`
}

// IPConfig contains client IP detection configuration.
type IPConfig struct {
	// Read the client IP from proxy headers when the peer is trusted.
	EnableHeaderCheck bool `koanf:"enable_header_check"`
	// Proxies (IPs or CIDRs) whose headers are trusted.
	TrustedProxies []string `koanf:"trusted_proxies"`
	// Headers checked in order for the client IP.
	CustomHeaders []string `koanf:"custom_headers"`
	// Accept private and loopback client addresses.
	AllowLocalIPs bool `koanf:"allow_local_ips"`
}

// RateLimit contains rate limiting configuration.
type RateLimit struct {
	Enabled           bool    `koanf:"enabled"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	BurstSize         int     `koanf:"burst_size"`
	// Violations before a client is blocked.
	StrikeLimit int `koanf:"strike_limit"`
	// Block duration in seconds.
	BlockDuration int `koanf:"block_duration"`
}

// Upstream contains Roblox API client configuration.
type Upstream struct {
	// User-Agent sent with every call.
	UserAgent string `koanf:"user_agent"`
	// Timeout for identity and detail calls in milliseconds.
	RequiredTimeout int `koanf:"required_timeout"`
	// Timeout for enrichment calls in milliseconds.
	OptionalTimeout int `koanf:"optional_timeout"`
	// Maximum username history pages followed.
	HistoryPages int `koanf:"history_pages"`
	// Avatar used when the headshot cannot be fetched.
	AvatarPlaceholder string `koanf:"avatar_placeholder"`
	// API host overrides.
	BaseURLs BaseURLs `koanf:"base_urls"`
}

// BaseURLs contains the Roblox API hosts.
type BaseURLs struct {
	Users      string `koanf:"users"`
	Friends    string `koanf:"friends"`
	Groups     string `koanf:"groups"`
	Thumbnails string `koanf:"thumbnails"`
	Presence   string `koanf:"presence"`
}

// CircuitBreaker contains circuit breaker configuration.
type CircuitBreaker struct {
	Enabled     bool   `koanf:"enabled"`
	MaxRequests uint32 `koanf:"max_requests"`
	// Closed-state count reset interval in milliseconds.
	Interval int `koanf:"interval"`
	// Open-state duration in milliseconds.
	Timeout int `koanf:"timeout"`
}

// Cache contains profile cache configuration.
type Cache struct {
	// Backend is "memory" or "redis".
	Backend string `koanf:"backend"`
	// Entry lifetime in milliseconds.
	TTL int `koanf:"ttl"`
	// Lifetime for profiles with failed enrichment calls in milliseconds.
	PartialTTL int `koanf:"partial_ttl"`
	// Expired entry sweep interval in milliseconds for the memory backend.
	SweepInterval int `koanf:"sweep_interval"`
}

// Queue contains request queue configuration.
type Queue struct {
	BatchSize int `koanf:"batch_size"`
	// Delay between batches in milliseconds.
	BatchDelay int `koanf:"batch_delay"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// Telemetry contains tracing configuration.
type Telemetry struct {
	Enabled     bool   `koanf:"enabled"`
	DSN         string `koanf:"dsn"`
	ServiceName string `koanf:"service_name"`
	Environment string `koanf:"environment"`
}

// Milliseconds converts a millisecond config value into a duration.
func Milliseconds(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// defaults holds the values used when neither the file nor the environment sets a key.
var defaults = map[string]any{
	"version":                               CurrentVersion,
	"debug.log_level":                       "info",
	"debug.max_logs_to_keep":                10,
	"debug.max_log_lines":                   100000,
	"debug.log_to_stderr":                   true,
	"debug.enable_pprof":                    false,
	"debug.pprof_port":                      6060,
	"server.host":                           "0.0.0.0",
	"server.port":                           8080,
	"server.read_timeout":                   10000,
	"server.write_timeout":                  30000,
	"server.shutdown_timeout":               10000,
	"server.admin_token":                    "",
	"server.allowed_origins":                []string{"*"},
	"server.ip.enable_header_check":         false,
	"server.ip.trusted_proxies":             []string{},
	"server.ip.custom_headers":              []string{"X-Forwarded-For", "X-Real-IP"},
	"server.ip.allow_local_ips":             true,
	"server.rate_limit.enabled":             true,
	"server.rate_limit.requests_per_second": 2.0,
	"server.rate_limit.burst_size":          10,
	"server.rate_limit.strike_limit":        5,
	"server.rate_limit.block_duration":      60,
	"upstream.user_agent":                   "roprofile/1.0 (+https://github.com/robalyx/roprofile)",
	"upstream.required_timeout":             10000,
	"upstream.optional_timeout":             5000,
	"upstream.history_pages":                3,
	"upstream.avatar_placeholder":           "https://tr.rbxcdn.com/placeholder/420/420/AvatarHeadshot/Png",
	"upstream.base_urls.users":              "https://users.roblox.com",
	"upstream.base_urls.friends":            "https://friends.roblox.com",
	"upstream.base_urls.groups":             "https://groups.roblox.com",
	"upstream.base_urls.thumbnails":         "https://thumbnails.roblox.com",
	"upstream.base_urls.presence":           "https://presence.roblox.com",
	"circuit_breaker.enabled":               true,
	"circuit_breaker.max_requests":          1,
	"circuit_breaker.interval":              60000,
	"circuit_breaker.timeout":               30000,
	"cache.backend":                         "memory",
	"cache.ttl":                             300000,
	"cache.partial_ttl":                     60000,
	"cache.sweep_interval":                  60000,
	"queue.batch_size":                      5,
	"queue.batch_delay":                     1000,
	"redis.host":                            "localhost",
	"redis.port":                            6379,
	"redis.username":                        "",
	"redis.password":                        "",
	"redis.db":                              0,
	"telemetry.enabled":                     false,
	"telemetry.dsn":                         "",
	"telemetry.service_name":                "roprofile",
	"telemetry.environment":                 "production",
}

// LoadConfig loads configuration from defaults, then config.toml, then the environment.
// If path is empty the usual config directories are searched and a missing
// file is not an error. Returns the config and the directory of the file used.
func LoadConfig(path string) (*Config, string, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}

	usedConfigPath, err := loadFile(k, path)
	if err != nil {
		return nil, "", err
	}

	// Variables from a local .env file never override the real environment
	_ = godotenv.Load()

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load environment: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, "", err
	}

	return &config, usedConfigPath, nil
}

// loadFile merges config.toml into k after checking its version.
func loadFile(k *koanf.Koanf, path string) (string, error) {
	candidates := []string{path}
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}

		candidates = []string{
			".roprofile/config.toml",
			homeDir + "/.roprofile/config.toml",
			"/etc/roprofile/config.toml",
			"/app/config/config.toml",
			"config/config.toml",
			"config.toml",
		}
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}

		fileK := koanf.New(".")
		if err := fileK.Load(file.Provider(candidate), toml.Parser()); err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", candidate, err)
		}

		if err := checkConfigVersion(candidate, fileK.Int("version"), CurrentVersion); err != nil {
			return "", err
		}

		if err := k.Merge(fileK); err != nil {
			return "", fmt.Errorf("failed to merge %s: %w", candidate, err)
		}

		return candidate, nil
	}

	if path != "" {
		return "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
	}

	return "", nil
}

// envKey maps ROPROFILE_SERVER__RATE_LIMIT__BURST_SIZE to server.rate_limit.burst_size.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/robalyx/roprofile/tree/%s/config/config.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
		)
	}

	return nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Cache.Backend != "memory" && c.Cache.Backend != "redis":
		return fmt.Errorf("%w: cache.backend must be memory or redis, got %q", ErrInvalidConfig, c.Cache.Backend)
	case c.Cache.TTL <= 0:
		return fmt.Errorf("%w: cache.ttl must be positive", ErrInvalidConfig)
	case c.Queue.BatchSize <= 0:
		return fmt.Errorf("%w: queue.batch_size must be positive", ErrInvalidConfig)
	case c.Queue.BatchDelay < 0:
		return fmt.Errorf("%w: queue.batch_delay must not be negative", ErrInvalidConfig)
	case c.Upstream.RequiredTimeout <= 0 || c.Upstream.OptionalTimeout <= 0:
		return fmt.Errorf("%w: upstream timeouts must be positive", ErrInvalidConfig)
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: server.port out of range", ErrInvalidConfig)
	}

	if err := c.Server.RateLimit.validate(); err != nil {
		return err
	}

	return c.CircuitBreaker.validate()
}

func (r *RateLimit) validate() error {
	if !r.Enabled {
		return nil
	}

	switch {
	case r.RequestsPerSecond <= 0:
		return fmt.Errorf("%w: server.rate_limit.requests_per_second must be positive", ErrInvalidConfig)
	case r.BurstSize <= 0:
		return fmt.Errorf("%w: server.rate_limit.burst_size must be positive", ErrInvalidConfig)
	case r.StrikeLimit < 0:
		return fmt.Errorf("%w: server.rate_limit.strike_limit must not be negative", ErrInvalidConfig)
	case r.BlockDuration < 0:
		return fmt.Errorf("%w: server.rate_limit.block_duration must not be negative", ErrInvalidConfig)
	}

	return nil
}

func (b *CircuitBreaker) validate() error {
	if !b.Enabled {
		return nil
	}

	switch {
	case b.MaxRequests == 0:
		return fmt.Errorf("%w: circuit_breaker.max_requests must be positive", ErrInvalidConfig)
	case b.Interval < 0:
		return fmt.Errorf("%w: circuit_breaker.interval must not be negative", ErrInvalidConfig)
	case b.Timeout <= 0:
		return fmt.Errorf("%w: circuit_breaker.timeout must be positive", ErrInvalidConfig)
	}

	return nil
}
