package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Memory     MemoryConfig     `yaml:"memory" mapstructure:"memory"`
	Hosts      HostsConfig      `yaml:"hosts" mapstructure:"hosts"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// MemoryConfig configures the reliability-memory ledger backend.
type MemoryConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// HostsConfig configures the failing-host denylist.
type HostsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SearchConfig configures the web search layer.
type SearchConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"`
	MaxAttempts int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryBaseMS int    `yaml:"retry_base_ms" mapstructure:"retry_base_ms"`
}

// FetchConfig configures page fetching.
type FetchConfig struct {
	QPS float64 `yaml:"qps" mapstructure:"qps"`
}

// BatchConfig configures concurrent multi-topic runs.
type BatchConfig struct {
	MaxConcurrentTopics int `yaml:"max_concurrent_topics" mapstructure:"max_concurrent_topics"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("memory.driver", "file")
	v.SetDefault("memory.path", "memory.json")
	v.SetDefault("hosts.path", "failed_hosts.txt")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent_topics", 3)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("search.provider", "jina")
	v.SetDefault("search.max_attempts", 3)
	v.SetDefault("search.retry_base_ms", 500)
	v.SetDefault("fetch.qps", 2.0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields the given mode actually needs. Modes map
// to command entry points so a misconfigured credential fails at
// startup, not mid-run.
func (c *Config) Validate(mode string) error {
	var problems []string

	common := func() {
		switch c.Memory.Driver {
		case "file", "sqlite":
			if c.Memory.Path == "" {
				problems = append(problems, "memory.path is required for driver "+c.Memory.Driver)
			}
		case "postgres":
			if c.Memory.DatabaseURL == "" {
				problems = append(problems, "memory.database_url is required for driver postgres")
			}
		default:
			problems = append(problems, "memory.driver must be file, sqlite, or postgres")
		}

		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		switch c.Search.Provider {
		case "jina":
			if c.Jina.Key == "" {
				problems = append(problems, "jina.key is required for search provider jina")
			}
		case "perplexity":
			if c.Perplexity.Key == "" {
				problems = append(problems, "perplexity.key is required for search provider perplexity")
			}
		default:
			problems = append(problems, "search.provider must be jina or perplexity")
		}
	}

	switch mode {
	case "research":
		common()
	case "batch":
		common()
		if c.Batch.MaxConcurrentTopics < 1 || c.Batch.MaxConcurrentTopics > 20 {
			problems = append(problems, "batch.max_concurrent_topics must be between 1 and 20")
		}
	case "serve":
		common()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "stats":
		// Stats only read the ledger; no API credentials needed.
		if c.Memory.Driver == "postgres" && c.Memory.DatabaseURL == "" {
			problems = append(problems, "memory.database_url is required for driver postgres")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
