package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"

	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	AI       AIConfig       `mapstructure:"ai"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
}

type TelegramConfig struct {
	Token   string `mapstructure:"token"`
	Timeout int    `mapstructure:"timeout"`
	Debug   bool   `mapstructure:"debug"`
}

type AIConfig struct {
	Provider string       `mapstructure:"provider"`
	Gemini   GeminiConfig `mapstructure:"gemini"`
	OpenAI   OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	ChatModel      string  `mapstructure:"chat_model"`
	SentimentModel string  `mapstructure:"sentiment_model"`
	PlacesModel    string  `mapstructure:"places_model"`
	SpeechModel    string  `mapstructure:"speech_model"`
	Voice          string  `mapstructure:"voice"`
	Temperature    float64 `mapstructure:"temperature"`
	ThinkingBudget int     `mapstructure:"thinking_budget"`
}

type OpenAIConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	BaseURL         string  `mapstructure:"base_url"`
	ChatModel       string  `mapstructure:"chat_model"`
	ReasoningModel  string  `mapstructure:"reasoning_model"`
	SentimentModel  string  `mapstructure:"sentiment_model"`
	SpeechModel     string  `mapstructure:"speech_model"`
	Voice           string  `mapstructure:"voice"`
	Temperature     float64 `mapstructure:"temperature"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	ReasoningEffort string  `mapstructure:"reasoning_effort"`
}

type StorageConfig struct {
	Backend    string         `mapstructure:"backend"`
	SQLitePath string         `mapstructure:"sqlite_path"`
	Postgres   DatabaseConfig `mapstructure:"postgres"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		if _, err := fmt.Sscanf(u.Port(), "%d", &port); err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q", u.Port())
		}
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.timeout", 60)
	v.SetDefault("telegram.debug", false)

	v.SetDefault("ai.provider", "")
	v.SetDefault("ai.gemini.api_key", "")
	v.SetDefault("ai.gemini.chat_model", "gemini-3-pro-preview")
	v.SetDefault("ai.gemini.sentiment_model", "gemini-2.5-flash-lite")
	v.SetDefault("ai.gemini.places_model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.speech_model", "gemini-2.5-flash-preview-tts")
	v.SetDefault("ai.gemini.voice", "Kore")
	v.SetDefault("ai.gemini.temperature", 0.7)
	v.SetDefault("ai.gemini.thinking_budget", 32768)

	v.SetDefault("ai.openai.api_key", "")
	v.SetDefault("ai.openai.base_url", "")
	v.SetDefault("ai.openai.chat_model", "gpt-4o-mini")
	v.SetDefault("ai.openai.reasoning_model", "o3-mini")
	v.SetDefault("ai.openai.sentiment_model", "gpt-4o-mini")
	v.SetDefault("ai.openai.speech_model", "tts-1")
	v.SetDefault("ai.openai.voice", "nova")
	v.SetDefault("ai.openai.temperature", 0.7)
	v.SetDefault("ai.openai.max_tokens", 1024)
	v.SetDefault("ai.openai.reasoning_effort", "high")

	v.SetDefault("storage.backend", BackendSQLite)
	v.SetDefault("storage.sqlite_path", "hopeconnect.db")
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.user", "postgres")
	v.SetDefault("storage.postgres.password", "")
	v.SetDefault("storage.postgres.dbname", "hopeconnect")
	v.SetDefault("storage.postgres.sslmode", "disable")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// LoadConfig reads the YAML file at path, then applies environment
// overrides. A .env file in the working directory is loaded first. A missing
// config file is not an error.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// Enable environment variable support, e.g. AI_OPENAI_CHAT_MODEL for ai.openai.chat_model
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Storage.Postgres = dbConfig
		config.Storage.Backend = BackendPostgres
	}

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := v.GetString("GEMINI_API_KEY"); apiKey != "" {
		config.AI.Gemini.APIKey = apiKey
	} else if apiKey := v.GetString("API_KEY"); apiKey != "" {
		config.AI.Gemini.APIKey = apiKey
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.AI.OpenAI.APIKey = apiKey
	}

	if config.AI.Provider == "" {
		config.AI.Provider = pickProvider(config.AI)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func pickProvider(ai AIConfig) string {
	switch {
	case ai.Gemini.APIKey != "":
		return ProviderGemini
	case ai.OpenAI.APIKey != "":
		return ProviderOpenAI
	default:
		return ProviderMock
	}
}

// Validate checks the settings every command relies on. The Telegram token
// is checked by the bot command only.
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case ProviderGemini:
		if c.AI.Gemini.APIKey == "" {
			return errors.New("ai.gemini.api_key is required for the gemini provider")
		}
	case ProviderOpenAI:
		if c.AI.OpenAI.APIKey == "" {
			return errors.New("ai.openai.api_key is required for the openai provider")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("unknown ai provider %q", c.AI.Provider)
	}

	switch c.Storage.Backend {
	case BackendMemory, BackendPostgres:
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}
