// Package config содержит логику чтения конфигурации сервиса.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress = "localhost:8080"
	defaultTimeZone   = "UTC"
	defaultCacheTTL   = 5 * time.Minute
)

// ErrLocalTimeZone возвращается для TIME_ZONE=Local: имя "Local" не понимает PostgreSQL.
var ErrLocalTimeZone = errors.New("time zone must be an IANA name, not Local")

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress   string        `env:"RUN_ADDRESS"`
	DatabaseURI  string        `env:"DATABASE_URI"`
	RedisAddress string        `env:"REDIS_ADDRESS"`
	AuthSecret   string        `env:"AUTH_SECRET"`
	TimeZone     string        `env:"TIME_ZONE"`
	Production   bool          `env:"PRODUCTION"`
	CacheTTL     time.Duration `env:"CACHE_TTL"`

	// Учётная запись администратора платформы, создаваемая при старте.
	// Задаётся только через окружение.
	SuperAdminUsername string `env:"SUPER_ADMIN_USERNAME"`
	SuperAdminPassword string `env:"SUPER_ADMIN_PASSWORD"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := *cfg

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, in-memory store when empty")
	flag.StringVar(&cfg.RedisAddress, "r", "", "redis address for organization cache")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for signing access tokens")
	flag.StringVar(&cfg.TimeZone, "z", defaultTimeZone, "time zone for calendar reports")
	flag.BoolVar(&cfg.Production, "p", false, "production mode hides internal error details")

	flag.Parse()

	if fromEnv.RunAddress != "" {
		cfg.RunAddress = fromEnv.RunAddress
	}
	if fromEnv.DatabaseURI != "" {
		cfg.DatabaseURI = fromEnv.DatabaseURI
	}
	if fromEnv.RedisAddress != "" {
		cfg.RedisAddress = fromEnv.RedisAddress
	}
	if fromEnv.AuthSecret != "" {
		cfg.AuthSecret = fromEnv.AuthSecret
	}
	if fromEnv.TimeZone != "" {
		cfg.TimeZone = fromEnv.TimeZone
	}
	if fromEnv.Production {
		cfg.Production = true
	}
	cfg.CacheTTL = fromEnv.CacheTTL

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = defaultTimeZone
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}

	if (cfg.SuperAdminUsername == "") != (cfg.SuperAdminPassword == "") {
		return nil, errors.New("SUPER_ADMIN_USERNAME and SUPER_ADMIN_PASSWORD must be set together")
	}

	return cfg, nil
}

// Location загружает часовой пояс отчётов.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "Local" {
		return nil, ErrLocalTimeZone
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}
