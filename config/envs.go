// Package config loads process configuration from the environment, with an
// optional .env file for development.
package config

import (
	"errors"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// Config holds the application's configuration values.
type Config struct {
	HostIP   string `env:"HOST_IP" envDefault:"0.0.0.0"`
	RESTPort int    `env:"REST_PORT" envDefault:"8080"`

	MatchmakingPort     int `env:"MATCHMAKING_PORT" envDefault:"43113"`
	MatchmakingMaxPeers int `env:"MATCHMAKING_MAX_PEERS" envDefault:"1024"`

	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     int    `env:"DB_PORT" envDefault:"27017"`
	DBUser     string `env:"DB_USER" envDefault:""`
	DBPassword string `env:"DB_PASS" envDefault:""`
	DBName     string `env:"DB_NAME" envDefault:"netplay"`

	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`

	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"netplay-server"`

	GinMode  string `env:"GIN_MODE" envDefault:"release"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the .env file if present, then parses the environment. The JWT
// secret has no sane default and must be provided explicitly.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}

	return cfg, nil
}
