package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultJWTSecret is the fallback signing secret. Running with it is a
// deployment misconfiguration and is refused in production.
const DefaultJWTSecret = "MY_SUPER_SECRET"

// Store drivers.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config contains runtime configuration values.
type Config struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	Port        int    `env:"PORT" envDefault:"9000" validate:"min=1,max=65535"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	StoreDriver   string        `env:"STORE_DRIVER" envDefault:"mongo" validate:"oneof=mongo postgres memory"`
	MongoURI      string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017" validate:"required_if=StoreDriver mongo"`
	MongoDatabase string        `env:"MONGO_DATABASE" envDefault:"sso"`
	DatabaseURL   string        `env:"DATABASE_URL" validate:"required_if=StoreDriver postgres"`
	StoreTimeout  time.Duration `env:"STORE_TIMEOUT" envDefault:"5s" validate:"gt=0"`

	JWTSecret  string        `env:"JWT_SECRET" envDefault:"MY_SUPER_SECRET" validate:"required"`
	JWTTTL     time.Duration `env:"JWT_TTL" envDefault:"1h" validate:"gt=0"`
	JWTIssuer  string        `env:"JWT_ISSUER" envDefault:"sso-user-microservice"`
	BcryptCost int           `env:"BCRYPT_COST" envDefault:"10" validate:"min=4,max=31"`

	LoginRate  string `env:"LOGIN_RATE" envDefault:"20-M"`
	TrustProxy bool   `env:"TRUST_PROXY" envDefault:"false"`
	RedisURL   string `env:"REDIS_URL"`

	Eureka EurekaConfig `envPrefix:"EUREKA_"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// EurekaConfig describes how this instance registers with the discovery server.
type EurekaConfig struct {
	Enabled   bool          `env:"ENABLED" envDefault:"false"`
	URL       string        `env:"URL" envDefault:"http://localhost:8761/eureka" validate:"omitempty,url"`
	App       string        `env:"APP" envDefault:"sso-user-microservice"`
	HostName  string        `env:"HOSTNAME" envDefault:"localhost"`
	IPAddr    string        `env:"IP" envDefault:"127.0.0.1"`
	VIP       string        `env:"VIP"`
	Heartbeat time.Duration `env:"HEARTBEAT" envDefault:"30s" validate:"gt=0"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the process environment.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Eureka.VIP == "" {
		cfg.Eureka.VIP = cfg.Eureka.App
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.IsProduction() && c.InsecureSecret() {
		return errors.New("invalid config: JWT_SECRET must be set in production")
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Environment == "production" }

// InsecureSecret reports whether tokens would be signed with the built-in secret.
func (c *Config) InsecureSecret() bool { return c.JWTSecret == DefaultJWTSecret }

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }
