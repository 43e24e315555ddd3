// Package config loads service settings from .env, the environment and an optional tone file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"mwanga/chatbot"
)

type Config struct {
	Env        string `validate:"oneof=local dev docker prod"`
	LogLevel   string `validate:"omitempty,oneof=debug info warn error"`
	ServerAddr string `validate:"required"`

	UploadDir   string `validate:"required"`
	MaxUploadMB int    `validate:"gt=0"`
	CatalogPath string

	SessionStore string `validate:"oneof=memory postgres redis"`
	Postgres     Postgres
	Redis        Redis

	LLM LLM

	GenerationTimeout time.Duration `validate:"gte=0"`
	ContextWindow     int           `validate:"gt=0"`
	MinAnswerLength   int           `validate:"gt=0"`
	ExtraMarkers      []string

	ToneFile string
	Tone     Tone
}

type Postgres struct {
	Host     string `validate:"required_if=Enabled true"`
	Port     int
	User     string
	Password string
	DBName   string
	Enabled  bool
}

type Redis struct {
	Addr     string `validate:"required_if=Enabled true"`
	Password string
	DB       int           `validate:"gte=0"`
	TTL      time.Duration `validate:"gte=0"`
	Enabled  bool
}

type LLM struct {
	Provider string `validate:"oneof=ollama openai gemini"`
	URL      string `validate:"omitempty,url"`
	Model    string
	APIKey   string
}

// Tone customizes the bot's wording. Empty fields keep the built-in defaults.
type Tone struct {
	Persona              string   `yaml:"persona"`
	FallbackPersona      string   `yaml:"fallback_persona"`
	IntroPhrases         []string `yaml:"intro_phrases"`
	Symbols              []string `yaml:"symbols"`
	LowConfidenceMarkers []string `yaml:"low_confidence_markers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "local")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("SERVER_ADDR", ":3000")
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("MAX_UPLOAD_MB", 20)
	v.SetDefault("CATALOG_PATH", "")
	v.SetDefault("SESSION_STORE", "memory")
	v.SetDefault("PG_HOST", "")
	v.SetDefault("PG_PORT", 5432)
	v.SetDefault("PG_USER", "")
	v.SetDefault("PG_PASS", "")
	v.SetDefault("PG_DB_NAME", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("LLM_PROVIDER", "ollama")
	v.SetDefault("LLM_URL", "")
	v.SetDefault("LLM_MODEL", "")
	v.SetDefault("LLM_API_KEY", "")
	v.SetDefault("GOOGLE_API_KEY", "")
	v.SetDefault("GENERATION_TIMEOUT", "2m")
	v.SetDefault("CONTEXT_WINDOW", chatbot.DefaultContextWindow)
	v.SetDefault("MIN_ANSWER_LENGTH", chatbot.DefaultMinLength)
	v.SetDefault("LOW_CONFIDENCE_MARKERS", "")
	v.SetDefault("TONE_FILE", "")
}

// Load reads .env files (missing files are ignored), then the environment.
// With no arguments it reads ./.env.
func Load(envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	provider := strings.ToLower(strings.TrimSpace(v.GetString("LLM_PROVIDER")))
	apiKey := v.GetString("LLM_API_KEY")
	if apiKey == "" && provider == "gemini" {
		apiKey = v.GetString("GOOGLE_API_KEY")
	}
	sessionStore := strings.ToLower(strings.TrimSpace(v.GetString("SESSION_STORE")))

	cfg := &Config{
		Env:          v.GetString("ENV"),
		LogLevel:     strings.ToLower(v.GetString("LOG_LEVEL")),
		ServerAddr:   v.GetString("SERVER_ADDR"),
		UploadDir:    v.GetString("UPLOAD_DIR"),
		MaxUploadMB:  v.GetInt("MAX_UPLOAD_MB"),
		CatalogPath:  v.GetString("CATALOG_PATH"),
		SessionStore: sessionStore,
		Postgres: Postgres{
			Host:     v.GetString("PG_HOST"),
			Port:     v.GetInt("PG_PORT"),
			User:     v.GetString("PG_USER"),
			Password: v.GetString("PG_PASS"),
			DBName:   v.GetString("PG_DB_NAME"),
			Enabled:  sessionStore == "postgres",
		},
		Redis: Redis{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			TTL:      v.GetDuration("SESSION_TTL"),
			Enabled:  sessionStore == "redis",
		},
		LLM: LLM{
			Provider: provider,
			URL:      v.GetString("LLM_URL"),
			Model:    v.GetString("LLM_MODEL"),
			APIKey:   apiKey,
		},
		GenerationTimeout: v.GetDuration("GENERATION_TIMEOUT"),
		ContextWindow:     v.GetInt("CONTEXT_WINDOW"),
		MinAnswerLength:   v.GetInt("MIN_ANSWER_LENGTH"),
		ExtraMarkers:      splitList(v.GetString("LOW_CONFIDENCE_MARKERS")),
		ToneFile:          v.GetString("TONE_FILE"),
	}

	if cfg.ToneFile != "" {
		tone, err := LoadTone(cfg.ToneFile)
		if err != nil {
			return nil, err
		}
		cfg.Tone = tone
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadTone reads a YAML tone file.
func LoadTone(path string) (Tone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tone{}, fmt.Errorf("read tone file: %w", err)
	}
	var t Tone
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tone{}, fmt.Errorf("parse tone file %s: %w", path, err)
	}
	return t, nil
}

func (c *Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s' tag", e.Namespace(), e.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// LowConfidenceMarkers are the tone file markers (or the defaults) plus LOW_CONFIDENCE_MARKERS.
func (c *Config) LowConfidenceMarkers() []string {
	base := c.Tone.LowConfidenceMarkers
	if len(base) == 0 {
		base = chatbot.DefaultLowConfidenceMarkers
	}
	return append(append([]string(nil), base...), c.ExtraMarkers...)
}

func (c *Config) IntroPhrases() []string {
	if len(c.Tone.IntroPhrases) == 0 {
		return chatbot.DefaultIntroPhrases
	}
	return c.Tone.IntroPhrases
}

func (c *Config) Symbols() []string {
	if len(c.Tone.Symbols) == 0 {
		return chatbot.DefaultSymbols
	}
	return c.Tone.Symbols
}

// MaxUploadBytes is the request body limit.
func (c *Config) MaxUploadBytes() int {
	return c.MaxUploadMB * 1024 * 1024
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
