package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Server struct {
		Port            string        `mapstructure:"port" validate:"required"`
		Env             string        `mapstructure:"env" validate:"oneof=development production test"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	} `mapstructure:"server"`
	Store struct {
		Driver string `mapstructure:"driver" validate:"oneof=postgres memory"`
	} `mapstructure:"store"`
	Database struct {
		Host     string        `mapstructure:"host"`
		Port     int           `mapstructure:"port"`
		User     string        `mapstructure:"user"`
		Password string        `mapstructure:"password"`
		Name     string        `mapstructure:"name"`
		SSLMode  string        `mapstructure:"sslmode"`
		Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
	} `mapstructure:"database"`
	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	JWT struct {
		AccessSecret  string        `mapstructure:"access_secret" validate:"required"`
		RefreshSecret string        `mapstructure:"refresh_secret" validate:"required,nefield=AccessSecret"`
		AccessTTL     time.Duration `mapstructure:"access_ttl" validate:"gt=0"`
		RefreshTTL    time.Duration `mapstructure:"refresh_ttl" validate:"gt=0"`
		Issuer        string        `mapstructure:"issuer"`
	} `mapstructure:"jwt"`
	Auth struct {
		RefreshSessionTTL   time.Duration `mapstructure:"refresh_session_ttl" validate:"gt=0"`
		AllowRoleOnRegister bool          `mapstructure:"allow_role_on_register"`
	} `mapstructure:"auth"`
	Security struct {
		BcryptCost int `mapstructure:"bcrypt_cost" validate:"min=4,max=31"`
	} `mapstructure:"security"`
	RateLimit struct {
		MaxAttempts int           `mapstructure:"max_attempts" validate:"gt=0"`
		Window      time.Duration `mapstructure:"window" validate:"gt=0"`
	} `mapstructure:"rate_limit"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format" validate:"oneof=text json"`
	} `mapstructure:"log"`
}

// IsDevelopment reports whether internal error detail may be exposed in responses.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == EnvDevelopment
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", EnvDevelopment)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("store.driver", StoreDriverPostgres)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "auth")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timeout", 3*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Secrets have no usable default; they are registered so the
	// environment can supply them.
	v.SetDefault("jwt.access_secret", "")
	v.SetDefault("jwt.refresh_secret", "")
	v.SetDefault("jwt.access_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("jwt.issuer", "go-auth-api")

	v.SetDefault("auth.refresh_session_ttl", 7*24*time.Hour)
	v.SetDefault("auth.allow_role_on_register", false)

	v.SetDefault("security.bcrypt_cost", 12)

	v.SetDefault("rate_limit.max_attempts", 5)
	v.SetDefault("rate_limit.window", 15*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig reads config.yml from path (optional) and the environment.
// Environment variables use the upper-cased key with dots replaced by
// underscores, e.g. JWT_ACCESS_SECRET.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service must not start with.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
