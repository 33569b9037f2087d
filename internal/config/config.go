// Package config loads application configuration from a config file,
// environment variables and a local .env file. Explicit environment
// variables beat the file, which beats defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App      App      `mapstructure:"app"`
	Gemini   Gemini   `mapstructure:"gemini"`
	Fetch    Fetch    `mapstructure:"fetch"`
	Pipeline Pipeline `mapstructure:"pipeline"`
	Server   Server   `mapstructure:"server"`
}

// App holds general application configuration.
type App struct {
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
}

// Gemini holds Google Gemini configuration.
type Gemini struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
}

// Fetch holds HTTP fetching configuration.
type Fetch struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// Pipeline holds worker-pool sizing for the phase pipeline.
type Pipeline struct {
	FetchWorkers int `mapstructure:"fetch_workers"`
	LLMWorkers   int `mapstructure:"llm_workers"`
}

// Server holds the admin HTTP API configuration.
type Server struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	AdminToken   string        `mapstructure:"admin_token"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Load reads configuration from (in order of increasing precedence)
// defaults, an optional config file, .env, and NEWSROOM_* environment
// variables. GEMINI_API_KEY and ADMIN_API_KEY are honored directly for
// compatibility with the usual deployment environment.
func Load(cfgFile string) (*Config, error) {
	// .env is optional; missing files are fine.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("newsroom")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix("NEWSROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Gemini.APIKey = key
	}
	if token := os.Getenv("ADMIN_API_KEY"); token != "" {
		cfg.Server.AdminToken = token
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.data_dir", ".newsroom")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.temperature", 0.3)

	v.SetDefault("fetch.timeout", 8*time.Second)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; NewsroomBot/1.0; +https://github.com/newsroom)")

	v.SetDefault("pipeline.fetch_workers", 5)
	v.SetDefault("pipeline.llm_workers", 3)

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
}
