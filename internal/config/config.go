package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type SourceAPIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ProxyConfig struct {
	File string `mapstructure:"file"`
}

type WorkflowConfig struct {
	RequestDelay        time.Duration `mapstructure:"request_delay"`
	MaxRetries          int           `mapstructure:"max_retries"`
	RateLimitCooldown   time.Duration `mapstructure:"rate_limit_cooldown"`
	MaxParallelRequests int           `mapstructure:"max_parallel_requests"`
	MinRosterSize       int           `mapstructure:"min_roster_size"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type Config struct {
	ServerPort string          `mapstructure:"server_port"`
	DataDir    string          `mapstructure:"data_dir"`
	SourceAPI  SourceAPIConfig `mapstructure:"source_api"`
	Proxy      ProxyConfig     `mapstructure:"proxy"`
	Workflow   WorkflowConfig  `mapstructure:"workflow"`
	CORS       CORSConfig      `mapstructure:"cors"`
}

// Load reads the configuration from a YAML file and returns a Config
// instance. A missing file is tolerated; every field has a default.
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("Error reading config file: %v", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}
	if config.DataDir == "" {
		config.DataDir = "./data"
	}
	if config.SourceAPI.BaseURL == "" {
		config.SourceAPI.BaseURL = "http://localhost:8000"
	}
	if config.SourceAPI.Timeout == 0 {
		config.SourceAPI.Timeout = 30 * time.Second
	}
	if config.Proxy.File == "" {
		config.Proxy.File = "proxy.txt"
	}
	if config.Workflow.RequestDelay == 0 {
		config.Workflow.RequestDelay = 5 * time.Second
	}
	if config.Workflow.MaxRetries == 0 {
		config.Workflow.MaxRetries = 3
	}
	if config.Workflow.RateLimitCooldown == 0 {
		config.Workflow.RateLimitCooldown = 30 * time.Second
	}
	if config.Workflow.MaxParallelRequests == 0 {
		config.Workflow.MaxParallelRequests = 4
	}
	if config.Workflow.MinRosterSize == 0 {
		config.Workflow.MinRosterSize = 5
	}
	if len(config.CORS.AllowedOrigins) == 0 {
		config.CORS.AllowedOrigins = []string{"*"}
	}

	return &config
}
