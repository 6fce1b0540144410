package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort    string `mapstructure:"SERVER_PORT"`
	PostgresURL   string `mapstructure:"POSTGRES_URL"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	ReportDir            string        `mapstructure:"REPORT_DIR"`
	CleanupDelay         time.Duration `mapstructure:"CLEANUP_DELAY"`
	MaxConcurrentBatches int           `mapstructure:"MAX_CONCURRENT_BATCHES"`
	VehicleNumber        string        `mapstructure:"VEHICLE_NUMBER"`
	LogoPath             string        `mapstructure:"LOGO_PATH"`
	FrontendDir          string        `mapstructure:"FRONTEND_DIR"`
	BodyLimitMB          int           `mapstructure:"BODY_LIMIT_MB"`
}

func Load() Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("SERVER_PORT", ":8080")
	v.SetDefault("POSTGRES_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REPORT_DIR", "/tmp/generated_pdfs")
	v.SetDefault("CLEANUP_DELAY", "1h")
	v.SetDefault("MAX_CONCURRENT_BATCHES", 2)
	v.SetDefault("VEHICLE_NUMBER", "TN93C4414")
	v.SetDefault("LOGO_PATH", "")
	v.SetDefault("FRONTEND_DIR", "frontend/build")
	v.SetDefault("BODY_LIMIT_MB", 64)

	var cfg Config
	_ = v.Unmarshal(&cfg)

	if cfg.CleanupDelay <= 0 {
		cfg.CleanupDelay = time.Hour
	}
	if cfg.MaxConcurrentBatches <= 0 {
		cfg.MaxConcurrentBatches = 1
	}
	if cfg.BodyLimitMB <= 0 {
		cfg.BodyLimitMB = 64
	}
	return cfg
}
