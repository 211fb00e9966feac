package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"
)

// EnvPrefix marks environment overrides. Nested keys are separated by a
// double underscore: REPLYTRAINER_AI__API_KEY sets ai.api_key.
const EnvPrefix = "REPLYTRAINER_"

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
	AI         AIConfig         `koanf:"ai"`
	Vision     VisionConfig     `koanf:"vision"`
	Generation GenerationConfig `koanf:"generation"`
	Candidates CandidatesConfig `koanf:"candidates"`
	Store      StoreConfig      `koanf:"store"`
	Jobs       JobsConfig       `koanf:"jobs"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

// AIConfig selects the model provider shared by the vision and generation stages
type AIConfig struct {
	Provider        string  `koanf:"provider"`
	APIKey          string  `koanf:"api_key"`
	BaseURL         string  `koanf:"base_url"`
	VisionModel     string  `koanf:"vision_model"`
	GenerationModel string  `koanf:"generation_model"`
	MaxTokens       int     `koanf:"max_tokens"`
	RateLimit       float64 `koanf:"rate_limit"`
	Burst           int     `koanf:"burst"`
}

type VisionConfig struct {
	CaptionTemperature    float64 `koanf:"caption_temperature"`
	TranscriptTemperature float64 `koanf:"transcript_temperature"`
	FailurePolicy         string  `koanf:"failure_policy"`
	MaxConcurrency        int     `koanf:"max_concurrency"`
}

type GenerationConfig struct {
	Temperature float64 `koanf:"temperature"`
}

type CandidatesConfig struct {
	RepairJSON  bool   `koanf:"repair_json"`
	CountPolicy string `koanf:"count_policy"`
}

// StoreConfig selects the persistence backend: "memory" or "postgres"
type StoreConfig struct {
	Driver      string `koanf:"driver"`
	DatabaseURL string `koanf:"database_url"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

// JobsConfig controls the background status worker (postgres only)
type JobsConfig struct {
	Enabled    bool `koanf:"enabled"`
	MaxWorkers int  `koanf:"max_workers"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.port":                   8888,
		"log.level":                     "info",
		"log.pretty":                    false,
		"ai.provider":                   "openai",
		"ai.vision_model":               "gpt-4o-mini",
		"ai.generation_model":           "gpt-4o-mini",
		"ai.max_tokens":                 0,
		"ai.rate_limit":                 0.0,
		"ai.burst":                      1,
		"vision.caption_temperature":    0.4,
		"vision.transcript_temperature": 0.0,
		"vision.failure_policy":         "fail_fast",
		"vision.max_concurrency":        0,
		"generation.temperature":        0.9,
		"candidates.repair_json":        false,
		"candidates.count_policy":       "permissive",
		"store.driver":                  "memory",
		"store.auto_migrate":            true,
		"jobs.enabled":                  false,
		"jobs.max_workers":              5,
	}
}

// LoadConfig loads defaults, then the TOML file, then environment overrides.
// A missing file at configPath is not an error.
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
				return nil, fmt.Errorf("error loading config: %w", err)
			}
		} else if errors.Is(err, os.ErrNotExist) {
			log.Debug().Str("path", configPath).Msg("Config file not found, using defaults")
		} else {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	} else {
		for _, path := range []string{"./replytrainer.toml", "$HOME/.replytrainer.toml"} {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	normalize(&config)

	return &config, nil
}

// normalize lowercases and trims the enumerated settings so that
// "Best_Effort" and "best_effort" select the same behaviour everywhere.
func normalize(config *Config) {
	for _, v := range []*string{
		&config.AI.Provider,
		&config.Vision.FailurePolicy,
		&config.Candidates.CountPolicy,
		&config.Store.Driver,
	} {
		*v = strings.ToLower(strings.TrimSpace(*v))
	}
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// InitConfig writes a sample configuration file
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# replytrainer configuration

[server]
port = 8888

[log]
level = "info"
pretty = false

[ai]
provider = "openai"           # openai, gemini, claude, ollama
api_key = "your-api-key"
vision_model = "gpt-4o-mini"
generation_model = "gpt-4o-mini"
rate_limit = 0                # calls per second, 0 disables limiting

[vision]
caption_temperature = 0.4
transcript_temperature = 0.0
failure_policy = "fail_fast"  # fail_fast or best_effort
max_concurrency = 0

[generation]
temperature = 0.9

[candidates]
repair_json = false
count_policy = "permissive"   # permissive or exact

[store]
driver = "memory"             # memory or postgres
database_url = ""
auto_migrate = true

[jobs]
enabled = false
max_workers = 5
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	normalize(config)

	switch config.AI.Provider {
	case "openai", "gemini", "claude":
		if config.AI.APIKey == "" {
			return fmt.Errorf("%s api_key is required", config.AI.Provider)
		}
	case "ollama":
	case "":
		return fmt.Errorf("AI provider is required")
	default:
		return fmt.Errorf("unsupported AI provider %q", config.AI.Provider)
	}

	if config.AI.VisionModel == "" || config.AI.GenerationModel == "" {
		return fmt.Errorf("vision_model and generation_model are required")
	}

	switch config.Vision.FailurePolicy {
	case "fail_fast", "best_effort":
	default:
		return fmt.Errorf("unknown vision failure_policy %q", config.Vision.FailurePolicy)
	}

	switch config.Candidates.CountPolicy {
	case "permissive", "exact":
	default:
		return fmt.Errorf("unknown candidates count_policy %q", config.Candidates.CountPolicy)
	}

	switch config.Store.Driver {
	case "memory":
		if config.Jobs.Enabled {
			return fmt.Errorf("jobs require the postgres store driver")
		}
	case "postgres":
	default:
		return fmt.Errorf("unsupported store driver %q", config.Store.Driver)
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", config.Server.Port)
	}

	return nil
}
