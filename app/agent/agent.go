// Package agent holds the generation service clients.
package agent

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"mwanga/chatbot"
	"mwanga/logger"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.2"
	defaultOpenAIURL   = "https://api.openai.com/v1"
	defaultOpenAIModel = "gpt-4o-mini"
	defaultGeminiURL   = "https://generativelanguage.googleapis.com/v1beta/openai/"
	defaultGeminiModel = "gemini-1.5-flash"
)

// maxBodyInError caps how much of an upstream error body ends up in an error message.
const maxBodyInError = 300

// Config selects and configures a generation client. Empty URL and Model pick provider defaults.
type Config struct {
	Provider   string
	URL        string
	Model      string
	APIKey     string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// New returns the chatbot.Generator for cfg.Provider.
func New(cfg Config) (chatbot.Generator, error) {
	cfg.Logger = logger.OrNop(cfg.Logger)
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOllama:
		return NewOllama(withDefaults(cfg, defaultOllamaURL, defaultOllamaModel)), nil
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("provider %s: api key is required", ProviderOpenAI)
		}
		return NewOpenAI(ProviderOpenAI, withDefaults(cfg, defaultOpenAIURL, defaultOpenAIModel)), nil
	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("provider %s: api key is required", ProviderGemini)
		}
		return NewOpenAI(ProviderGemini, withDefaults(cfg, defaultGeminiURL, defaultGeminiModel)), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func withDefaults(cfg Config, url, model string) Config {
	if cfg.URL == "" {
		cfg.URL = url
	}
	if cfg.Model == "" {
		cfg.Model = model
	}
	return cfg
}

func shorten(b []byte) string {
	s := strings.TrimSpace(string(b))
	r := []rune(s)
	if len(r) > maxBodyInError {
		return string(r[:maxBodyInError]) + "..."
	}
	return s
}

func since(start time.Time) float64 {
	return time.Since(start).Seconds()
}
