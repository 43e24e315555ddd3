package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mwanga/app/agent"
	"mwanga/app/api"
	"mwanga/app/chat"
	"mwanga/chatbot"
	"mwanga/config"
	"mwanga/loader"
	"mwanga/logger"
	"mwanga/metrics"
	"mwanga/store"
	"mwanga/types"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	listenAddr string
	app        *fiber.App
	store      store.SessionStorer
	cancel     context.CancelFunc
	logger     *zap.Logger
}

// NewServer wires the session store, generation client, catalog watcher and routes.
func NewServer(ctx context.Context, cfg *config.Config, l *zap.Logger) (*Server, error) {
	l = logger.OrNop(l)
	ctx, cancel := context.WithCancel(ctx)

	sessions, err := NewSessionStore(ctx, cfg, l)
	if err != nil {
		cancel()
		return nil, err
	}

	resolver, err := NewResolver(cfg, l)
	if err != nil {
		cancel()
		_ = sessions.Close()
		return nil, err
	}

	ingestor := loader.NewIngestor(l)
	svcCfg := chat.Config{
		Store:     sessions,
		Ingestor:  ingestor,
		Resolver:  resolver,
		UploadDir: cfg.UploadDir,
		TTL:       cfg.Redis.TTL,
		Logger:    l,
	}
	if cfg.CatalogPath != "" {
		catalog := loader.NewCatalog(ctx, cfg.CatalogPath, ingestor, loader.DefaultSettle, l)
		if err := catalog.Watch(ctx); err != nil {
			l.Warn("catalog changes will not be picked up", zap.String("path", cfg.CatalogPath), zap.Error(err))
		}
		svcCfg.Catalog = catalog
	}

	svc := chat.NewService(svcCfg)
	go svc.Run(ctx, SweepInterval(cfg.Redis.TTL))

	metrics.Register()
	app := api.NewApp(api.Deps{
		Service:   svc,
		Settings:  Settings(cfg),
		CookieTTL: cfg.Redis.TTL,
		Logger:    l,
	}, cfg.MaxUploadBytes())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return &Server{
		listenAddr: cfg.ServerAddr,
		app:        app,
		store:      sessions,
		cancel:     cancel,
		logger:     l,
	}, nil
}

// Run blocks serving HTTP until Stop is called.
func (s *Server) Run() error {
	s.logger.Info("server starting", zap.String("addr", s.listenAddr))
	if err := s.app.Listen(s.listenAddr); err != nil {
		return fmt.Errorf("listen %s: %w", s.listenAddr, err)
	}
	return nil
}

func (s *Server) Stop() {
	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		s.logger.Error("server shutdown", zap.Error(err))
	}
	s.cancel()
	if err := s.store.Close(); err != nil {
		s.logger.Error("close session store", zap.Error(err))
	}
	s.logger.Info("server stopped")
}

// NewSessionStore opens the configured session store.
func NewSessionStore(ctx context.Context, cfg *config.Config, l *zap.Logger) (store.SessionStorer, error) {
	switch cfg.SessionStore {
	case "postgres":
		pg := store.PGConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			DBName:   cfg.Postgres.DBName,
		}
		pool, err := store.NewPostgresStore(ctx, pg.ConnString(), cfg.Redis.TTL, l)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := pool.Init(ctx); err != nil {
			_ = pool.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
		return pool, nil
	case "redis":
		return store.NewRedisStore(ctx, store.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		}, l)
	default:
		return store.NewMemoryStore(cfg.Redis.TTL), nil
	}
}

// SweepInterval is how often expired sessions are looked for: a quarter of the session
// lifetime, kept between a minute and an hour.
func SweepInterval(ttl time.Duration) time.Duration {
	return min(max(ttl/4, time.Minute), time.Hour)
}

// NewResolver builds the answer resolver and its generation client from cfg.
func NewResolver(cfg *config.Config, l *zap.Logger) (*chatbot.Resolver, error) {
	gen, err := agent.New(agent.Config{
		Provider: cfg.LLM.Provider,
		URL:      cfg.LLM.URL,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		Logger:   l,
	})
	if err != nil {
		return nil, err
	}

	formatter, err := chatbot.NewFormatter(cfg.IntroPhrases(), cfg.Symbols(), chatbot.GlobalRand)
	if err != nil {
		return nil, err
	}

	return chatbot.NewResolver(gen, chatbot.Config{
		Prompter:  chatbot.NewPrompter(cfg.Tone.Persona, cfg.Tone.FallbackPersona, cfg.ContextWindow),
		Gate:      chatbot.NewHeuristicGate(cfg.MinAnswerLength, cfg.LowConfidenceMarkers()),
		Formatter: formatter,
		Timeout:   cfg.GenerationTimeout,
		Logger:    l,
	}), nil
}

// Settings are the non-secret resolver settings served by GET /api/v1/config.
func Settings(cfg *config.Config) types.ResolverSettings {
	return types.ResolverSettings{
		Provider:             cfg.LLM.Provider,
		Model:                cfg.LLM.Model,
		ContextWindow:        cfg.ContextWindow,
		MinAnswerLength:      cfg.MinAnswerLength,
		LowConfidenceMarkers: cfg.LowConfidenceMarkers(),
		GenerationTimeout:    cfg.GenerationTimeout.String(),
		Catalog:              cfg.CatalogPath != "",
	}
}
