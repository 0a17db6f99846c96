package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/turtacn/throttle/internal/domain/models"
	"github.com/turtacn/throttle/pkg/constants"
	"github.com/turtacn/throttle/pkg/errors"
)

// Rate limit store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Span exporters. With ExporterNone spans only correlate log lines by trace id.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// Config holds the application's configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Ops       OpsConfig       `mapstructure:"ops"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type ServerConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	EnablePprof        bool          `mapstructure:"enable_pprof"`
	CORSAllowedOrigins []string      `mapstructure:"cors_allowed_origins"`
}

// Address returns host:port.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// OpsConfig configures the listener serving metrics, health and the limiter table.
type OpsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// Address returns host:port.
func (c OpsConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type RateLimitConfig struct {
	Enabled        bool                     `mapstructure:"enabled"`
	Backend        string                   `mapstructure:"backend"`
	SweepInterval  time.Duration            `mapstructure:"sweep_interval"`
	TrustedSources []string                 `mapstructure:"trusted_sources"`
	Limiters       map[string]LimiterConfig `mapstructure:"limiters"`
}

// LimiterConfig overrides one named rule. Zero fields keep the built-in value;
// a name that is not built in must set window and max_requests.
type LimiterConfig struct {
	Window      time.Duration `mapstructure:"window"`
	MaxRequests int           `mapstructure:"max_requests"`
	KeyStrategy string        `mapstructure:"key_strategy"`
}

type RedisConfig struct {
	Addresses    []string      `mapstructure:"addresses"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
}

// JWTConfig configures principal extraction. An empty secret leaves every
// request anonymous.
type JWTConfig struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name"`
	Environment  string  `mapstructure:"environment"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
	Exporter     string  `mapstructure:"exporter"`
}

// Rules returns the built-in rule table with the configured overrides applied,
// sorted by name.
func (c RateLimitConfig) Rules() ([]models.RateLimitRule, error) {
	byName := make(map[string]models.RateLimitRule)
	for _, rule := range models.DefaultRules() {
		byName[rule.Name] = rule
	}

	for name, override := range c.Limiters {
		name = strings.ToLower(strings.TrimSpace(name))
		rule, exists := byName[name]
		if !exists {
			rule = models.RateLimitRule{Name: name, KeyStrategy: models.ByAddress}
		}
		if override.Window != 0 {
			rule.Window = override.Window
		}
		if override.MaxRequests != 0 {
			rule.MaxRequests = override.MaxRequests
		}
		if override.KeyStrategy != "" {
			if err := rule.KeyStrategy.UnmarshalText([]byte(override.KeyStrategy)); err != nil {
				return nil, errors.ErrInvalidConfig.WithMessage("rate_limit.limiters.%s", name).WithCause(err)
			}
		}
		if err := rule.Validate(); err != nil {
			return nil, errors.ErrInvalidConfig.WithMessage("rate_limit.limiters.%s", name).WithCause(err)
		}
		byName[name] = rule
	}

	rules := make([]models.RateLimitRule, 0, len(byName))
	for _, rule := range byName {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })
	return rules, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.ErrInvalidConfig.WithMessage("server.port %d out of range", c.Server.Port)
	}
	if c.Ops.Enabled {
		if c.Ops.Port <= 0 || c.Ops.Port > 65535 {
			return errors.ErrInvalidConfig.WithMessage("ops.port %d out of range", c.Ops.Port)
		}
		if c.Ops.Port == c.Server.Port && c.Ops.Host == c.Server.Host {
			return errors.ErrInvalidConfig.WithMessage("ops.port must differ from server.port")
		}
	}

	switch constants.LogLevel(strings.ToLower(c.Log.Level)) {
	case constants.LogLevelDebug, constants.LogLevelInfo, constants.LogLevelWarn, constants.LogLevelError:
	default:
		return errors.ErrInvalidConfig.WithMessage("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}

	switch c.RateLimit.Backend {
	case BackendMemory:
	case BackendRedis:
		if len(c.Redis.Addresses) == 0 {
			return errors.ErrInvalidConfig.WithMessage("redis.addresses is required for the redis backend")
		}
	default:
		return errors.ErrInvalidConfig.WithMessage("rate_limit.backend %q is not one of memory, redis", c.RateLimit.Backend)
	}
	if c.RateLimit.SweepInterval < 0 {
		return errors.ErrInvalidConfig.WithMessage("rate_limit.sweep_interval must not be negative")
	}
	if _, err := c.RateLimit.Rules(); err != nil {
		return err
	}

	if c.JWT.CacheTTL < 0 {
		return errors.ErrInvalidConfig.WithMessage("jwt.cache_ttl must not be negative")
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return errors.ErrInvalidConfig.WithMessage("tracing.sampling_rate %v out of range [0,1]", c.Tracing.SamplingRate)
	}
	switch c.Tracing.Exporter {
	case ExporterNone, ExporterStdout:
	default:
		return errors.ErrInvalidConfig.WithMessage("tracing.exporter %q is not one of none, stdout", c.Tracing.Exporter)
	}
	return nil
}
