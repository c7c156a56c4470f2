package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	CORSOrigins []string `mapstructure:"cors_origins"`

	// Empty ValidatorURL admits every join; empty PersisterURL skips persistence.
	ValidatorURL string        `mapstructure:"validator_url"`
	PersisterURL string        `mapstructure:"persister_url"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`

	// JoinLimit joins per JoinInterval per user; 0 disables throttling.
	JoinLimit    int           `mapstructure:"join_limit"`
	JoinInterval time.Duration `mapstructure:"join_interval"`

	// Backpressure is "kick" or "drop".
	Backpressure string `mapstructure:"backpressure"`
}

var keys = []string{
	"mode", "port", "static_path", "read_limit", "ping_period", "write_wait", "send_buffer",
	"secret", "log_level", "cors_origins", "validator_url", "persister_url", "http_timeout",
	"join_limit", "join_interval", "backpressure",
}

func Load() (*Config, error) {
	// .env is optional, real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg("failed to read .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 3000)
	v.SetDefault("static_path", "")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("secret", "change-me")
	v.SetDefault("log_level", "info")
	v.SetDefault("cors_origins", "")
	v.SetDefault("validator_url", "")
	v.SetDefault("persister_url", "")
	v.SetDefault("http_timeout", "10s")
	v.SetDefault("join_limit", 0)
	v.SetDefault("join_interval", "10s")
	v.SetDefault("backpressure", "kick")

	for _, k := range keys {
		if err := v.BindEnv(k, strings.ToUpper(k)); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", k, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.CORSOrigins = cleanOrigins(cfg.CORSOrigins)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Bool("validator", cfg.ValidatorURL != "").Bool("persister", cfg.PersisterURL != "").Msg("config ready")
	return &cfg, nil
}

func cleanOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		for _, part := range strings.Split(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.PingPeriod <= 0 {
		return fmt.Errorf("ping_period must be positive")
	}
	if c.JoinLimit < 0 {
		return fmt.Errorf("join_limit must not be negative")
	}
	if c.JoinLimit > 0 && c.JoinInterval <= 0 {
		return fmt.Errorf("join_interval must be positive when join_limit is set")
	}
	switch c.Backpressure {
	case "kick", "drop":
	default:
		return fmt.Errorf("unknown backpressure policy %q", c.Backpressure)
	}
	return nil
}
