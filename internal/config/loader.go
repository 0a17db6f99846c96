package config

import (
	stderrors "errors"
	"io/fs"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/turtacn/throttle/pkg/constants"
	"github.com/turtacn/throttle/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. THROTTLE_RATE_LIMIT_BACKEND.
const EnvPrefix = "THROTTLE"

// LoadConfig loads the configuration from defaults, an optional config file, a
// .env file and environment variables, in increasing order of precedence.
// An empty configFile searches /etc/throttle/ and the working directory.
func LoadConfig(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.ErrInvalidConfig.WithMessage("failed to load .env file").WithCause(err)
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/throttle/")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !stderrors.As(err, &notFound) {
			return nil, errors.ErrInvalidConfig.WithMessage("failed to read config file").WithCause(err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.ErrInvalidConfig.WithMessage("failed to unmarshal config").WithCause(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", constants.DefaultServicePort)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", constants.DefaultShutdownTimeout.String())
	v.SetDefault("server.enable_pprof", false)
	v.SetDefault("server.cors_allowed_origins", []string{"*"})

	v.SetDefault("ops.enabled", true)
	v.SetDefault("ops.host", "0.0.0.0")
	v.SetDefault("ops.port", constants.DefaultOpsPort)

	v.SetDefault("log.level", string(constants.LogLevelInfo))
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.backend", BackendMemory)
	v.SetDefault("rate_limit.sweep_interval", constants.DefaultSweepInterval.String())
	v.SetDefault("rate_limit.trusted_sources", constants.DefaultTrustedSources)

	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("jwt.cache_ttl", constants.DefaultPrincipalCacheTTL.String())

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "throttle")
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("tracing.sampling_rate", 0.1)
	v.SetDefault("tracing.exporter", ExporterNone)
}
