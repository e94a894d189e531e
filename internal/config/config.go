package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/KurniaRadhit/Stockmate/internal/errs"
)

// Config is read from the environment with the STOCKMATE_ prefix, except
// the connection URLs which keep their conventional unprefixed names.
type Config struct {
	DataDir               string `envconfig:"DATA_DIR" default:"data"`
	DatabaseURL           string `envconfig:"DATABASE_URL"`
	RedisAddr             string `envconfig:"REDIS_ADDR"`
	RedisPassword         string `envconfig:"REDIS_PASSWORD"`
	RedisDB               int    `envconfig:"REDIS_DB" default:"0"`
	OrderTTLHours         int    `envconfig:"ORDER_TTL_HOURS" default:"12"`
	ReportCacheTTLSeconds int    `envconfig:"REPORT_CACHE_TTL_SECONDS" default:"60"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("stockmate", &cfg); err != nil {
		return Config{}, errs.Wrap(err, "load configuration")
	}
	if cfg.OrderTTLHours < 1 {
		cfg.OrderTTLHours = 12
	}
	if cfg.ReportCacheTTLSeconds < 0 {
		cfg.ReportCacheTTLSeconds = 0
	}
	return cfg, nil
}

func (c Config) OrderTTL() time.Duration {
	return time.Duration(c.OrderTTLHours) * time.Hour
}

func (c Config) ReportCacheTTL() time.Duration {
	return time.Duration(c.ReportCacheTTLSeconds) * time.Second
}
