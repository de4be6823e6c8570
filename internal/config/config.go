package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/davidbz/polyglot/internal/domain"
	"github.com/davidbz/polyglot/internal/observability"
	"github.com/davidbz/polyglot/internal/prompt"
	"github.com/davidbz/polyglot/internal/provider/bootstrap"
	"github.com/davidbz/polyglot/internal/provider/openai"
	"github.com/davidbz/polyglot/internal/store/redis"
)

// Config represents the translator service configuration.
type Config struct {
	Server    ServerConfig
	CORS      CORSConfig
	Logging   observability.LogConfig
	Store     StoreConfig
	Redis     redis.Config
	Failover  domain.FailoverConfig
	Prompts   prompt.Config
	Providers bootstrap.Config
	OpenAI    openai.Config
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int `env:"SERVER_PORT"             envDefault:"8080"`
	ReadTimeout     int `env:"SERVER_READ_TIMEOUT"     envDefault:"30"`
	WriteTimeout    int `env:"SERVER_WRITE_TIMEOUT"    envDefault:"300"`
	ShutdownTimeout int `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization,X-Trace-ID"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"false"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Driver is one of memory, postgres, sqlite or redis.
	Driver string `env:"STORE_DRIVER" envDefault:"memory"`
	DSN    string `env:"STORE_DSN"`
}

// DepConfig is used for dependency injection with dig. Several packages name
// their settings Config, so the fields are named rather than embedded.
type DepConfig struct {
	dig.Out
	Server    *ServerConfig
	CORS      *CORSConfig
	Logging   *observability.LogConfig
	Store     *StoreConfig
	Redis     *redis.Config
	Failover  *domain.FailoverConfig
	Prompts   *prompt.Config
	Providers *bootstrap.Config
	OpenAI    *openai.Config
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		Server:    &cfg.Server,
		CORS:      &cfg.CORS,
		Logging:   &cfg.Logging,
		Store:     &cfg.Store,
		Redis:     &cfg.Redis,
		Failover:  &cfg.Failover,
		Prompts:   &cfg.Prompts,
		Providers: &cfg.Providers,
		OpenAI:    &cfg.OpenAI,
	}
}
