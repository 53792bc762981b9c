package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources    Sources    `yaml:"sources"`
	Classifier Classifier `yaml:"classifier"`
	Generation Generation `yaml:"generation"`
	Scheduler  Scheduler  `yaml:"scheduler"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

type Sources struct {
	IndexURL       string `yaml:"index_url"`
	Timezone       string `yaml:"timezone"`
	FetchTimeoutMS int    `yaml:"fetch_timeout_ms"`
	Feeds          []Feed `yaml:"feeds"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Classifier struct {
	// Threshold is the minimum argmax probability required before a
	// headline keeps its predicted disaster category. Anything below
	// falls back to "non-disaster".
	Threshold float64 `yaml:"threshold"`
}

type Generation struct {
	Provider     string `yaml:"provider"`
	GeminiModel  string `yaml:"gemini_model"`
	GeminiKeyEnv string `yaml:"gemini_key_env"`
	OllamaModel  string `yaml:"ollama_model"`
	OllamaURL    string `yaml:"ollama_url"`
	OpenAIModel  string `yaml:"openai_model"`
	OpenAIKeyEnv string `yaml:"openai_key_env"`
	MaxTokens    int    `yaml:"max_tokens"`
	BatchSize    int    `yaml:"batch_size"`
	ItemDelaySec int    `yaml:"item_delay_seconds"`
}

type Scheduler struct {
	IngestEverySec   int `yaml:"ingest_every_seconds"`
	GenerateEverySec int `yaml:"generate_every_seconds"`
	MaxInstances     int `yaml:"max_instances"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for reliefwatch.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "reliefwatch")
}

// DataDir returns the XDG data directory for reliefwatch.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "reliefwatch")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/reliefwatch/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'reliefwatch init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Sources: Sources{
			IndexURL:       "https://www.philstar.com/",
			Timezone:       "Asia/Manila",
			FetchTimeoutMS: 15000,
		},
		Classifier: Classifier{Threshold: 0.95},
		Generation: Generation{
			Provider:     "gemini",
			GeminiModel:  "gemini-1.0-pro",
			GeminiKeyEnv: "GOOGLE_API_KEY",
			OllamaModel:  "qwen2.5:7b",
			OllamaURL:    "http://localhost:11434",
			OpenAIModel:  "gpt-4o-mini",
			OpenAIKeyEnv: "OPENAI_API_KEY",
			MaxTokens:    2048,
			BatchSize:    10,
			ItemDelaySec: 120,
		},
		Scheduler: Scheduler{
			IngestEverySec:   3600,
			GenerateEverySec: 1200,
			MaxInstances:     3,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// FetchTimeout returns the scrape HTTP timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	if c.Sources.FetchTimeoutMS <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Sources.FetchTimeoutMS) * time.Millisecond
}

// ItemDelay returns the pause between successful template generations.
func (c *Config) ItemDelay() time.Duration {
	if c.Generation.ItemDelaySec < 0 {
		return 0
	}
	return time.Duration(c.Generation.ItemDelaySec) * time.Second
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
