// Package config loads service configuration from a YAML file with
// environment overrides for deployment secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	envDSN    = "TOGETHER_PG_DSN"
	envSecret = "TOGETHER_AUTH_SECRET"
	envAddr   = "TOGETHER_ADDR"
)

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type JWTConfig struct {
	Secret          string `yaml:"secret"`
	Issuer          string `yaml:"issuer"`
	AccessTokenTTL  string `yaml:"access_token_ttl"`
	RefreshTokenTTL string `yaml:"refresh_token_ttl"`
}

type RateLimitConfig struct {
	PerSecond int `yaml:"per_second"`
	Burst     int `yaml:"burst"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Load reads the YAML file at path (optional — an empty path yields
// defaults), applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server:    ServerConfig{Addr: ":8080"},
		Database:  DatabaseConfig{MaxOpenConns: 10, MaxIdleConns: 10},
		JWT:       JWTConfig{Issuer: "together-api", AccessTokenTTL: "15m", RefreshTokenTTL: "336h"},
		RateLimit: RateLimitConfig{PerSecond: 5, Burst: 10},
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv(envDSN); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv(envSecret); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv(envAddr); v != "" {
		cfg.Server.Addr = v
	}

	if cfg.JWT.Secret == "" {
		return nil, errors.New("auth secret is not configured (set jwt.secret or " + envSecret + ")")
	}
	if _, err := cfg.AccessTTL(); err != nil {
		return nil, err
	}
	if _, err := cfg.RefreshTTL(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AccessTTL parses the configured access token lifetime.
func (c *Config) AccessTTL() (time.Duration, error) {
	return parseTTL("jwt.access_token_ttl", c.JWT.AccessTokenTTL)
}

// RefreshTTL parses the configured refresh token lifetime.
func (c *Config) RefreshTTL() (time.Duration, error) {
	return parseTTL("jwt.refresh_token_ttl", c.JWT.RefreshTokenTTL)
}

func parseTTL(name, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	return d, nil
}
