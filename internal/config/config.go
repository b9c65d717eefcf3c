// Package config loads the gateway configuration from the environment.
// A .env file in the working directory is applied first when present, then
// struct tags drive parsing so every recognized option lives in one place.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string `env:"VCFGATE_ADDR" envDefault:":8080"`
	LogLevel    string `env:"VCFGATE_LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"VCFGATE_LOG_FORMAT" envDefault:"json"`
	TLSCertFile string `env:"VCFGATE_TLS_CERT"`
	TLSKeyFile  string `env:"VCFGATE_TLS_KEY"`

	VCFBaseURL        string  `env:"VCF_BASE_URL" envDefault:"https://vcf.example.local"`
	VCFVerifySSL      bool    `env:"VCF_VERIFY_SSL" envDefault:"true"`
	VCFTimeoutSeconds float64 `env:"VCF_TIMEOUT_SECONDS" envDefault:"10"`
	VCFRetryCount     int     `env:"VCF_RETRY_COUNT" envDefault:"2"`

	CORSAllowOrigins  []string `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	SessionTTLSeconds int      `env:"SESSION_TTL_SECONDS" envDefault:"3600"`

	RateGlobalRPS    float64       `env:"VCFGATE_RATE_GLOBAL_RPS"`
	RateGlobalBurst  int           `env:"VCFGATE_RATE_GLOBAL_BURST"`
	RateLoginLimit   int           `env:"VCFGATE_RATE_LOGIN_LIMIT"`
	RateLoginWindow  time.Duration `env:"VCFGATE_RATE_LOGIN_WINDOW" envDefault:"1m"`
	RateRedisAddr    string        `env:"VCFGATE_RATE_REDIS_ADDR"`
	RateRedisPass    string        `env:"VCFGATE_RATE_REDIS_PASSWORD"`
	RateRedisTimeout time.Duration `env:"VCFGATE_RATE_REDIS_TIMEOUT" envDefault:"2s"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	base := strings.TrimSpace(c.VCFBaseURL)
	parsed, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("parse VCF_BASE_URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("VCF_BASE_URL must include scheme and host")
	}
	if c.VCFTimeoutSeconds <= 0 {
		return fmt.Errorf("VCF_TIMEOUT_SECONDS must be positive")
	}
	if c.VCFRetryCount < 0 {
		return fmt.Errorf("VCF_RETRY_COUNT must not be negative")
	}
	if c.SessionTTLSeconds <= 0 {
		return fmt.Errorf("SESSION_TTL_SECONDS must be positive")
	}
	return nil
}

// VCFTimeout returns the per-attempt upstream timeout.
func (c Config) VCFTimeout() time.Duration {
	return time.Duration(c.VCFTimeoutSeconds * float64(time.Second))
}

// SessionTTL returns the fixed session lifetime.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}
