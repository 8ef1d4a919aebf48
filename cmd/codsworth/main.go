package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/codsworth/internal/api"
	"github.com/nidhogg/codsworth/internal/assistant"
	"github.com/nidhogg/codsworth/internal/briefing"
	"github.com/nidhogg/codsworth/internal/command"
	"github.com/nidhogg/codsworth/internal/config"
	"github.com/nidhogg/codsworth/internal/embedding"
	"github.com/nidhogg/codsworth/internal/gateway"
	"github.com/nidhogg/codsworth/internal/provider"
	"github.com/nidhogg/codsworth/internal/recall"
	"github.com/nidhogg/codsworth/internal/reminder"
	msgrouter "github.com/nidhogg/codsworth/internal/router"
	"github.com/nidhogg/codsworth/internal/session"
	"github.com/nidhogg/codsworth/internal/store"
	"github.com/nidhogg/codsworth/internal/vectorstore"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting Codsworth...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/codsworth.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Initialize provider router
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.ProviderConfig{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			Models: pc.Models, Extra: pc.Extra,
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}
	if cfg.Assistant.Provider != "" {
		router.SetDefault(cfg.Assistant.Provider)
	}

	// Initialize PostgreSQL store
	repo, err := store.New(cfg.Database.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("PostgreSQL unavailable", zap.Error(err))
	}
	if err := repo.Migrate(context.Background(), "migrations"); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	// Initialize Redis session cache
	var sess *session.Cache
	if cfg.Database.Redis.URL != "" {
		ttl := time.Duration(cfg.Database.Redis.TTLMinutes) * time.Minute
		if ttl <= 0 {
			ttl = 30 * time.Minute
		}
		sc, serr := session.New(cfg.Database.Redis.URL, ttl, logger)
		if serr != nil {
			logger.Warn("Redis unavailable, running without session cache", zap.Error(serr))
		} else {
			sess = sc
		}
	}

	// Briefing builder feeds the model its entity context. A nil session
	// cache degrades to persisted state only.
	var sessSource briefing.SessionSource
	var sessWriter assistant.SessionWriter
	if sess != nil {
		sessSource = sess
		sessWriter = sess
	}
	builder := briefing.NewBuilder(repo, sessSource, logger)

	assist := assistant.New(router, cfg.Assistant.Model, repo, builder, sessWriter, logger)
	assist.SetHistory(repo)

	// Semantic recall over Qdrant; optional.
	var recallIndex *recall.Index
	if cfg.Database.Qdrant.Host != "" {
		qc, qerr := vectorstore.NewClient(vectorstore.QdrantConfig{
			Host: cfg.Database.Qdrant.Host,
			Port: cfg.Database.Qdrant.Port,
		})
		if qerr != nil {
			logger.Warn("Qdrant unavailable, running without semantic recall", zap.Error(qerr))
		} else {
			var embedder embedding.Provider
			embCfg := embedding.Config{
				Provider:  cfg.Embedding.Provider,
				Endpoint:  cfg.Embedding.Endpoint,
				Model:     cfg.Embedding.Model,
				APIKey:    cfg.Embedding.APIKey,
				Dimension: cfg.Embedding.Dimension,
			}
			if embCfg.Provider == "local" {
				embedder = embedding.NewLocalProvider(embCfg)
			} else {
				embedder = embedding.NewAPIProvider(embCfg)
			}
			idx := recall.NewIndex(embedder, qc, logger)
			if ierr := idx.Init(context.Background()); ierr != nil {
				logger.Warn("recall index init failed", zap.Error(ierr))
			} else {
				recallIndex = idx
				assist.SetIndexer(idx)
			}
		}
	}

	// Initialize gateway
	gw := gateway.NewGateway(logger)

	// Slash commands bypass the model
	commands := command.NewRegistry()
	var recaller command.Recaller
	if recallIndex != nil {
		recaller = recallIndex
	}
	command.RegisterBuiltins(commands, assist, recaller, gw)

	// Wire message router BEFORE registering adapters (Register captures handler)
	msgRouter := msgrouter.New(assist, gw, commands, logger)
	gw.SetHandler(msgRouter.Handle)

	restAdapter := gateway.NewRESTAdapter(logger)
	gw.Register(restAdapter)

	if cfg.Gateway.Slack.Enabled && cfg.Gateway.Slack.BotToken != "" {
		slackAdapter := gateway.NewSlackAdapter(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.AppToken, logger)
		gw.Register(slackAdapter)
	}

	if cfg.Gateway.Discord.Enabled && cfg.Gateway.Discord.BotToken != "" {
		discordAdapter := gateway.NewDiscordAdapter(cfg.Gateway.Discord.BotToken, logger)
		gw.Register(discordAdapter)
	}

	broadcaster := gateway.NewBroadcaster(gw, logger)

	if err := gw.ConnectAll(context.Background()); err != nil {
		logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}

	// Event reminder scheduler
	reminderCtx, stopReminders := context.WithCancel(context.Background())
	if cfg.Reminder.Enabled {
		interval := time.Duration(cfg.Reminder.IntervalSeconds) * time.Second
		if interval <= 0 {
			interval = time.Minute
		}
		sched := reminder.New(repo, broadcaster, interval, logger)
		go sched.Run(reminderCtx)
		logger.Info("Reminder scheduler started", zap.Duration("interval", interval))
	}

	// Build HTTP handler
	var apiRecaller api.Recaller
	if recallIndex != nil {
		apiRecaller = recallIndex
	}
	handler := api.NewHandler(assist, apiRecaller, broadcaster, restAdapter, gw, logger)

	// Start server
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Codsworth listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Codsworth...")
	stopReminders()
	srv.Shutdown(context.Background())
	gw.Close()
	if sess != nil {
		sess.Close()
	}
	repo.Close()
}
