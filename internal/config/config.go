package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider selects the completion backend.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// Driver selects where the conversation history is persisted.
type Driver string

const (
	DriverSQLite Driver = "sqlite"
	DriverMemory Driver = "memory"
)

// Config holds the application configuration
type Config struct {
	LLM     LLMConfig
	History HistoryConfig
	Chat    ChatConfig
	Export  ExportConfig
	Speech  SpeechConfig
	Log     LogConfig
}

// LLMConfig holds the LLM configuration
type LLMConfig struct {
	Provider          Provider      `mapstructure:"provider"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	SystemPrompt      string        `mapstructure:"system_prompt"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// HistoryConfig holds the persistence configuration
type HistoryConfig struct {
	Driver Driver `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// ChatConfig holds the initial session settings
type ChatConfig struct {
	AssistantName string `mapstructure:"assistant_name"`
	UserName      string `mapstructure:"user_name"`
	DarkMode      bool   `mapstructure:"dark_mode"`
	VoiceEnabled  bool   `mapstructure:"voice_enabled"`
}

// ExportConfig holds where exports and downloads are written
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// SpeechConfig holds the external commands used for dictation and read-aloud.
// An empty command means the capability is unavailable.
type SpeechConfig struct {
	ListenCommand string `mapstructure:"listen_command"`
	SpeakCommand  string `mapstructure:"speak_command"`
	Language      string `mapstructure:"language"`
}

// LogConfig holds the logger configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", string(ProviderGemini))
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gemini-pro")
	v.SetDefault("llm.system_prompt", "")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.requests_per_minute", 0)
	v.SetDefault("history.driver", string(DriverSQLite))
	v.SetDefault("history.path", "history.db")
	v.SetDefault("chat.assistant_name", "Gemini")
	v.SetDefault("chat.user_name", "You")
	v.SetDefault("chat.dark_mode", false)
	v.SetDefault("chat.voice_enabled", true)
	v.SetDefault("export.dir", ".")
	v.SetDefault("speech.listen_command", "")
	v.SetDefault("speech.speak_command", "")
	v.SetDefault("speech.language", "en-US")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// Load loads the configuration from config.yaml, or from the file named by
// CONFIG_PATH. A missing file leaves the defaults in place; environment
// variables prefixed with GEMINICHAT_ override any key.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GEMINICHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if config.LLM.APIKey == "" {
		config.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if config.LLM.APIKey == "" {
		config.LLM.APIKey = os.Getenv("GOOGLE_API_KEY")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}
	switch c.History.Driver {
	case DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unsupported history driver %q", c.History.Driver)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm timeout must be positive, got %s", c.LLM.Timeout)
	}
	if c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("llm requests_per_minute must not be negative")
	}
	return nil
}
