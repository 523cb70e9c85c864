// Package config loads the tripweaver configuration from a YAML file, a
// .env file and TRIPWEAVER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/gate"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "TRIPWEAVER"

// Config is the full application configuration.
type Config struct {
	Planner    PlannerConfig
	LLM        LLMConfig
	Embedding  EmbeddingConfig
	Index      IndexConfig
	Collectors CollectorsConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Approval   ApprovalConfig
}

type PlannerConfig struct {
	KnowledgeTopK       int
	BaseCurrency        string
	EventBusBufferSize  int
	EventBusWorkerCount int
	DisableEventBus     bool
	RunRetention        time.Duration
}

type LLMConfig struct {
	Provider    string // ollama, openai, gemini, genkit or none
	BaseURL     string
	Model       string
	APIKey      string
	Timeout     time.Duration
	Temperature float64
	CacheTTL    time.Duration // genkit completions only; 0 disables
}

type EmbeddingConfig struct {
	Provider  string // hash, openai or gemini
	Model     string
	APIKey    string
	BaseURL   string
	Dimension int
}

type IndexConfig struct {
	Path            string
	SimilarityFloor float64
	MaxResults      int
}

type CollectorsConfig struct {
	OpenWeatherKey  string
	ExchangeRateKey string
	CacheTTL        time.Duration
	HTTPTimeout     time.Duration
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	// DSN of the Postgres result store; empty disables it
	DSN string
}

type ApprovalConfig struct {
	WeatherGates  bool
	RulesFile     string
	Timeout       time.Duration
	CheckpointDir string
	// Interactive runs suspend on a token instead of auto-approving
	Interactive bool
}

// Default returns the configuration used when no file or variable overrides it.
func Default() Config {
	return Config{
		Planner: PlannerConfig{
			KnowledgeTopK:       5,
			BaseCurrency:        "USD",
			EventBusBufferSize:  100,
			EventBusWorkerCount: 5,
			RunRetention:        time.Hour,
		},
		LLM: LLMConfig{
			Provider:    "ollama",
			BaseURL:     "http://localhost:11434/v1",
			Model:       "llama3",
			Timeout:     120 * time.Second,
			Temperature: 0.7,
		},
		Embedding: EmbeddingConfig{
			Provider:  "hash",
			Dimension: 384,
		},
		Index: IndexConfig{
			Path:            "./data/knowledge_index",
			SimilarityFloor: 0.7,
			MaxResults:      3,
		},
		Collectors: CollectorsConfig{
			CacheTTL:    30 * time.Minute,
			HTTPTimeout: 10 * time.Second,
		},
		Server: ServerConfig{Address: ":8080"},
		Approval: ApprovalConfig{
			CheckpointDir: "./data/checkpoints",
		},
	}
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("planner.knowledge_top_k", d.Planner.KnowledgeTopK)
	v.SetDefault("planner.base_currency", d.Planner.BaseCurrency)
	v.SetDefault("planner.event_bus_buffer_size", d.Planner.EventBusBufferSize)
	v.SetDefault("planner.event_bus_worker_count", d.Planner.EventBusWorkerCount)
	v.SetDefault("planner.disable_event_bus", d.Planner.DisableEventBus)
	v.SetDefault("planner.run_retention", d.Planner.RunRetention)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.cache_ttl", d.LLM.CacheTTL)

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)
	v.SetDefault("embedding.base_url", d.Embedding.BaseURL)
	v.SetDefault("embedding.dimension", d.Embedding.Dimension)

	v.SetDefault("index.path", d.Index.Path)
	v.SetDefault("index.similarity_floor", d.Index.SimilarityFloor)
	v.SetDefault("index.max_results", d.Index.MaxResults)

	v.SetDefault("collectors.openweather_key", d.Collectors.OpenWeatherKey)
	v.SetDefault("collectors.exchange_rate_key", d.Collectors.ExchangeRateKey)
	v.SetDefault("collectors.cache_ttl", d.Collectors.CacheTTL)
	v.SetDefault("collectors.http_timeout", d.Collectors.HTTPTimeout)

	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("database.dsn", d.Database.DSN)

	v.SetDefault("approval.weather_gates", d.Approval.WeatherGates)
	v.SetDefault("approval.rules_file", d.Approval.RulesFile)
	v.SetDefault("approval.timeout", d.Approval.Timeout)
	v.SetDefault("approval.checkpoint_dir", d.Approval.CheckpointDir)
	v.SetDefault("approval.interactive", d.Approval.Interactive)
}

// Load reads the configuration. path names an explicit file; when empty,
// tripweaver.yaml is searched in the working directory and
// $HOME/.tripweaver, and a missing file means defaults. A .env file in the
// working directory is loaded into the environment first.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Ignoring unreadable .env file (error: %v)", err)
	}

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tripweaver")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".tripweaver"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	} else {
		log.Printf("Loaded configuration (file: %s)", v.ConfigFileUsed())
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Planner: PlannerConfig{
			KnowledgeTopK:       v.GetInt("planner.knowledge_top_k"),
			BaseCurrency:        strings.ToUpper(v.GetString("planner.base_currency")),
			EventBusBufferSize:  v.GetInt("planner.event_bus_buffer_size"),
			EventBusWorkerCount: v.GetInt("planner.event_bus_worker_count"),
			DisableEventBus:     v.GetBool("planner.disable_event_bus"),
			RunRetention:        v.GetDuration("planner.run_retention"),
		},
		LLM: LLMConfig{
			Provider:    strings.ToLower(v.GetString("llm.provider")),
			BaseURL:     v.GetString("llm.base_url"),
			Model:       v.GetString("llm.model"),
			APIKey:      v.GetString("llm.api_key"),
			Timeout:     v.GetDuration("llm.timeout"),
			Temperature: v.GetFloat64("llm.temperature"),
			CacheTTL:    v.GetDuration("llm.cache_ttl"),
		},
		Embedding: EmbeddingConfig{
			Provider:  strings.ToLower(v.GetString("embedding.provider")),
			Model:     v.GetString("embedding.model"),
			APIKey:    v.GetString("embedding.api_key"),
			BaseURL:   v.GetString("embedding.base_url"),
			Dimension: v.GetInt("embedding.dimension"),
		},
		Index: IndexConfig{
			Path:            v.GetString("index.path"),
			SimilarityFloor: v.GetFloat64("index.similarity_floor"),
			MaxResults:      v.GetInt("index.max_results"),
		},
		Collectors: CollectorsConfig{
			OpenWeatherKey:  v.GetString("collectors.openweather_key"),
			ExchangeRateKey: v.GetString("collectors.exchange_rate_key"),
			CacheTTL:        v.GetDuration("collectors.cache_ttl"),
			HTTPTimeout:     v.GetDuration("collectors.http_timeout"),
		},
		Server:   ServerConfig{Address: v.GetString("server.address")},
		Database: DatabaseConfig{DSN: v.GetString("database.dsn")},
		Approval: ApprovalConfig{
			WeatherGates:  v.GetBool("approval.weather_gates"),
			RulesFile:     v.GetString("approval.rules_file"),
			Timeout:       v.GetDuration("approval.timeout"),
			CheckpointDir: v.GetString("approval.checkpoint_dir"),
			Interactive:   v.GetBool("approval.interactive"),
		},
	}
}

var (
	llmProviders       = []string{"ollama", "openai", "gemini", "genkit", "none"}
	embeddingProviders = []string{"hash", "openai", "gemini"}
)

// Validate checks values viper cannot type-check.
func (c Config) Validate() error {
	var errs []error
	if !lo.Contains(llmProviders, c.LLM.Provider) {
		errs = append(errs, fmt.Errorf("llm.provider must be one of %v, got %q", llmProviders, c.LLM.Provider))
	}
	if !lo.Contains(embeddingProviders, c.Embedding.Provider) {
		errs = append(errs, fmt.Errorf("embedding.provider must be one of %v, got %q", embeddingProviders, c.Embedding.Provider))
	}
	if c.Embedding.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension))
	}
	if c.Index.SimilarityFloor < 0 || c.Index.SimilarityFloor > 1 {
		errs = append(errs, fmt.Errorf("index.similarity_floor must be within [0, 1], got %v", c.Index.SimilarityFloor))
	}
	if c.Planner.RunRetention < 0 {
		errs = append(errs, fmt.Errorf("planner.run_retention must not be negative, got %s", c.Planner.RunRetention))
	}
	if len(c.Planner.BaseCurrency) != 3 {
		errs = append(errs, fmt.Errorf("planner.base_currency must be a 3-letter code, got %q", c.Planner.BaseCurrency))
	}
	return errors.Join(errs...)
}

// ApprovalRules returns the rules from the configured rules file, or nil
// for the built-in rules.
func (c Config) ApprovalRules() ([]gate.Rule, error) {
	if c.Approval.RulesFile == "" {
		return nil, nil
	}
	return gate.LoadRules(c.Approval.RulesFile)
}
