package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration (file + env overrides)
type Config struct {
	Server struct {
		Addr     string `mapstructure:"addr"`
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"server"`

	Postgres struct {
		Host         string `mapstructure:"host"`
		Port         int    `mapstructure:"port"`
		User         string `mapstructure:"user"`
		Password     string `mapstructure:"password"`
		DBName       string `mapstructure:"db_name"`
		SSLMode      string `mapstructure:"ssl_mode"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		MaxIdleConns int    `mapstructure:"max_idle_conns"`
	} `mapstructure:"postgres"`

	Pipeline struct {
		Concurrency   int    `mapstructure:"concurrency"`
		OutputDir     string `mapstructure:"output_dir"`
		QueueCapacity int    `mapstructure:"queue_capacity"`
	} `mapstructure:"pipeline"`

	Providers struct {
		MaxRetries       int `mapstructure:"max_retries"`
		BackoffBaseMs    int `mapstructure:"backoff_base_ms"`
		MaxInFlight      int `mapstructure:"max_in_flight"`
		RequestTimeoutMs int `mapstructure:"request_timeout_ms"`

		Gemini struct {
			APIKey   string `mapstructure:"api_key"`
			Model    string `mapstructure:"model"`
			Endpoint string `mapstructure:"endpoint"`
		} `mapstructure:"gemini"`

		Stability struct {
			APIKey   string `mapstructure:"api_key"`
			Engine   string `mapstructure:"engine"`
			Endpoint string `mapstructure:"endpoint"`
		} `mapstructure:"stability"`

		AssetDir string `mapstructure:"asset_dir"`
	} `mapstructure:"providers"`

	Compliance struct {
		// Sub-score weights. All-zero falls back to equal weighting.
		WeightVisual    float64 `mapstructure:"weight_visual"`
		WeightContent   float64 `mapstructure:"weight_content"`
		WeightCultural  float64 `mapstructure:"weight_cultural"`
		WeightTechnical float64 `mapstructure:"weight_technical"`

		MinScore         float64 `mapstructure:"min_score"`
		LocalizationCap  float64 `mapstructure:"localization_cap"`
		MinWidth         int     `mapstructure:"min_width"`
		MinHeight        int     `mapstructure:"min_height"`
		MaxFileSizeMB    float64 `mapstructure:"max_file_size_mb"`
		PaletteTolerance int     `mapstructure:"palette_tolerance"`
		PaletteCoverage  float64 `mapstructure:"palette_coverage"`

		// Extra cultural rule patterns keyed by locale, merged over the
		// built-in tables.
		CulturalRules map[string][]string `mapstructure:"cultural_rules"`
	} `mapstructure:"compliance"`

	Assembler struct {
		MaxOverlayFraction float64 `mapstructure:"max_overlay_fraction"`
	} `mapstructure:"assembler"`
}

func Load() Config {
	v := viper.New()
	v.SetConfigName("application")
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	_ = v.ReadInConfig() // optional; env can fully configure

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}
	validate(&cfg)
	return cfg
}

func validate(c *Config) {
	if c.Server.Addr == "" { c.Server.Addr = ":8080" }
	if c.Postgres.Port == 0 { c.Postgres.Port = 5432 }
	if c.Postgres.SSLMode == "" { c.Postgres.SSLMode = "disable" }
	if c.Postgres.MaxOpenConns == 0 { c.Postgres.MaxOpenConns = 10 }
	if c.Postgres.MaxIdleConns == 0 { c.Postgres.MaxIdleConns = 10 }
	if c.Pipeline.Concurrency <= 0 { c.Pipeline.Concurrency = 4 }
	if c.Pipeline.OutputDir == "" { c.Pipeline.OutputDir = "output" }
	if c.Pipeline.QueueCapacity <= 0 { c.Pipeline.QueueCapacity = 16 }
	if c.Providers.MaxRetries <= 0 { c.Providers.MaxRetries = 2 }
	if c.Providers.BackoffBaseMs <= 0 { c.Providers.BackoffBaseMs = 500 }
	if c.Providers.MaxInFlight <= 0 { c.Providers.MaxInFlight = 2 }
	if c.Providers.RequestTimeoutMs <= 0 { c.Providers.RequestTimeoutMs = 60000 }
	if c.Providers.Gemini.Model == "" { c.Providers.Gemini.Model = "gemini-2.0-flash-exp-image-generation" }
	if c.Providers.Stability.Engine == "" { c.Providers.Stability.Engine = "stable-diffusion-xl-1024-v1-0" }
	if c.Providers.AssetDir == "" { c.Providers.AssetDir = "assets/fallback" }
	if c.Compliance.MinScore == 0 { c.Compliance.MinScore = 85 }
	if c.Compliance.LocalizationCap == 0 { c.Compliance.LocalizationCap = 85 }
	if c.Compliance.MinWidth == 0 { c.Compliance.MinWidth = 800 }
	if c.Compliance.MinHeight == 0 { c.Compliance.MinHeight = 600 }
	if c.Compliance.MaxFileSizeMB == 0 { c.Compliance.MaxFileSizeMB = 5.0 }
	if c.Compliance.PaletteTolerance == 0 { c.Compliance.PaletteTolerance = 100 }
	if c.Compliance.PaletteCoverage == 0 { c.Compliance.PaletteCoverage = 0.10 }
	if c.Assembler.MaxOverlayFraction == 0 { c.Assembler.MaxOverlayFraction = 0.25 }
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.DBName,
		c.Postgres.SSLMode,
	)
}

func (c Config) ProviderBackoff() time.Duration {
	return time.Duration(c.Providers.BackoffBaseMs) * time.Millisecond
}

func (c Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Providers.RequestTimeoutMs) * time.Millisecond
}
