package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xaenox/hopeconnect/internal/gateway"
	"github.com/xaenox/hopeconnect/internal/storage"
	"github.com/xaenox/hopeconnect/pkg/config"
	"go.uber.org/zap"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "hopeconnect",
	Short: "HopeConnect mental health companion",
	Long: `HopeConnect is a supportive companion that listens, checks in on your mood,
finds counselors nearby and keeps crisis lines one command away.

Run "hopeconnect bot" to serve it on Telegram or "hopeconnect chat" to talk
to it from the terminal.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the config file")

	rootCmd.AddCommand(botCmd, chatCmd, profileCmd, moodCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds what every command needs.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	storage storage.Storage
	gateway gateway.Gateway
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", configPath, err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	store, err := openStorage(cfg.Storage, logger)
	if err != nil {
		logger.Sync()
		return nil, err
	}

	gw, err := openGateway(ctx, cfg.AI, logger)
	if err != nil {
		store.Close()
		logger.Sync()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		storage: store,
		gateway: gw,
	}, nil
}

func (a *app) Close() {
	if err := a.storage.Close(); err != nil {
		a.logger.Error("Failed to close storage", zap.Error(err))
	}
	a.logger.Sync()
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zcfg.Level = level

	return zcfg.Build()
}

func openStorage(cfg config.StorageConfig, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	case config.BackendPostgres:
		logger.Info("Using PostgreSQL storage", zap.String("host", cfg.Postgres.Host))
		return storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			DBName:   cfg.Postgres.DBName,
			SSLMode:  cfg.Postgres.SSLMode,
		}, logger)
	default:
		logger.Info("Using SQLite storage", zap.String("path", cfg.SQLitePath))
		return storage.NewSQLiteStorage(cfg.SQLitePath, logger)
	}
}

func openGateway(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (gateway.Gateway, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		logger.Info("Using Gemini backend", zap.String("model", cfg.Gemini.ChatModel))
		return gateway.NewGeminiGateway(ctx, gateway.GeminiConfig{
			APIKey:         cfg.Gemini.APIKey,
			ChatModel:      cfg.Gemini.ChatModel,
			SentimentModel: cfg.Gemini.SentimentModel,
			PlacesModel:    cfg.Gemini.PlacesModel,
			SpeechModel:    cfg.Gemini.SpeechModel,
			Voice:          cfg.Gemini.Voice,
			Temperature:    float32(cfg.Gemini.Temperature),
			ThinkingBudget: int32(cfg.Gemini.ThinkingBudget),
		}, logger)
	case config.ProviderOpenAI:
		logger.Info("Using OpenAI backend", zap.String("model", cfg.OpenAI.ChatModel))
		return gateway.NewOpenAIGateway(gateway.OpenAIConfig{
			APIKey:          cfg.OpenAI.APIKey,
			BaseURL:         cfg.OpenAI.BaseURL,
			ChatModel:       cfg.OpenAI.ChatModel,
			ReasoningModel:  cfg.OpenAI.ReasoningModel,
			SentimentModel:  cfg.OpenAI.SentimentModel,
			SpeechModel:     cfg.OpenAI.SpeechModel,
			Voice:           cfg.OpenAI.Voice,
			Temperature:     float32(cfg.OpenAI.Temperature),
			MaxTokens:       cfg.OpenAI.MaxTokens,
			ReasoningEffort: cfg.OpenAI.ReasoningEffort,
		}, logger)
	default:
		logger.Warn("No AI credentials configured, using the offline backend")
		return gateway.NewMockGateway(), nil
	}
}
