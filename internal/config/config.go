package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port                  int    `env:"PORT" envDefault:"8080"`
	DatabaseURL           string `env:"DATABASE_URL,required"`
	RedisURL              string `env:"REDIS_URL,required"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
	PairingRequestTTLDays int    `env:"PAIRING_REQUEST_TTL_DAYS" envDefault:"7"`
	DefaultMaxPatients    int    `env:"DEFAULT_MAX_PATIENTS" envDefault:"50"`
	HeartbeatSeconds      int    `env:"WS_HEARTBEAT_SECONDS" envDefault:"30"`
	IdleTimeoutSeconds    int    `env:"WS_IDLE_TIMEOUT_SECONDS" envDefault:"90"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DefaultMaxPatients <= 0 {
		return fmt.Errorf("DEFAULT_MAX_PATIENTS must be positive")
	}
	if c.IdleTimeoutSeconds <= c.HeartbeatSeconds {
		return fmt.Errorf("WS_IDLE_TIMEOUT_SECONDS must be greater than WS_HEARTBEAT_SECONDS")
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) PairingRequestTTL() time.Duration {
	return time.Duration(c.PairingRequestTTLDays) * 24 * time.Hour
}

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}
