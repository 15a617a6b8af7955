package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/tnanh/mira/internal/assistant"
	"github.com/tnanh/mira/internal/config"
	"github.com/tnanh/mira/internal/memory"
	"github.com/tnanh/mira/internal/observe"
	"github.com/tnanh/mira/internal/provider"
)

func rootContext() context.Context {
	return context.Background()
}

func newObserver() *observe.Observer {
	if ciMode {
		return observe.NewJSON(os.Stdout, verbose)
	}
	return observe.New(os.Stderr, verbose)
}

// loadConfig merges the config file with command-line overrides.
func loadConfig() config.Config {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		fmt.Printf("Warning: %v, using defaults\n", err)
		cfg = config.Default()
	}
	if providerType != "" {
		cfg.Provider = providerType
	}
	if modelName != "" {
		cfg.Model = modelName
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg
}

func newProvider(cfg config.Config) (provider.Provider, error) {
	switch cfg.Provider {
	case "ollama", "":
		return provider.NewOllamaProvider(cfg.Model)
	case "openai":
		return provider.NewOpenAIProvider(os.Getenv("OPENAI_API_KEY"), os.Getenv("OPENAI_BASE_URL"), cfg.Model)
	case "gemini":
		return provider.NewGeminiProvider(os.Getenv("GEMINI_API_KEY"), cfg.Model)
	case "stub":
		return provider.NewStubProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// openMemory builds the memory orchestrator with the configured embedder.
func openMemory(obs *observe.Observer) (*memory.Orchestrator, error) {
	cfg := loadConfig()
	p, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	return memory.New(cfg.DataDir, p, obs), nil
}

func newAssistant(obs *observe.Observer) (*assistant.Assistant, *memory.Orchestrator, error) {
	cfg := loadConfig()
	p, err := newProvider(cfg)
	if err != nil {
		return nil, nil, err
	}
	mem := memory.New(cfg.DataDir, p, obs)
	return assistant.New(mem, p, obs), mem, nil
}
