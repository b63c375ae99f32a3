package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	"gatebot/internal/auth"
	"gatebot/internal/bot"
	"gatebot/internal/config"
	"gatebot/internal/content"
	"gatebot/internal/directory"
	"gatebot/internal/dispatch"
	"gatebot/internal/httpapi"
	"gatebot/internal/session"
	"gatebot/internal/telephony"
	"gatebot/pkg/logger"
	"gatebot/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Admin)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	dirService, closeDir, err := buildDirectory(rootCtx, cfg, log)
	if err != nil {
		log.Error("directory init failed", "err", err)
		os.Exit(1)
	}
	defer closeDir()
	log.Info("directory ready", "backend", cfg.Directory.Backend, "members", dirService.Count())

	store, closeStore, err := buildSessionStore(rootCtx, cfg)
	if err != nil {
		log.Error("session store init failed", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	providers, err := buildProviders(rootCtx, cfg, log)
	if err != nil {
		log.Error("provider init failed", "err", err)
		os.Exit(1)
	}

	dispatcher := dispatch.New(providers, telephony.CallRequest{
		CallerID:           cfg.Gate.CallerID,
		CalleeNumber:       cfg.Gate.Number,
		MaxDurationSeconds: cfg.Gate.MaxDurationSeconds,
		AutoAnswer:         cfg.Gate.AutoAnswer,
	}, log)
	log.Info("gate dispatcher ready", "providers", dispatcher.Providers())

	contentSvc := content.NewService(cfg.Content, log)
	menu := bot.NewMenu(contentSvc, dispatcher, log)

	tg, err := bot.New(cfg.Telegram.BotToken, log)
	if err != nil {
		log.Error("telegram init failed", "err", err)
		os.Exit(1)
	}
	tg.Handler = session.NewMachine(store, dirService, menu, tg, session.DefaultTexts(), log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	handlers := httpapi.Handlers{
		Auth:          authManager,
		AdminPassword: cfg.Admin.Password,
		Sessions:      store,
		Directory:     dirService,
		Gate:          dispatcher,
	}
	registerRoutes(r, handlers, auth.RequireAccessToken(authManager))

	if cfg.Telegram.WebhookURL != "" {
		path, err := webhookPath(cfg.Telegram.WebhookURL)
		if err != nil {
			log.Error("webhook url invalid", "err", err)
			os.Exit(1)
		}
		if err := tg.RegisterWebhook(cfg.Telegram.WebhookURL); err != nil {
			log.Error("webhook registration failed", "err", err)
			os.Exit(1)
		}
		r.POST(path, tg.WebhookHandler(rootCtx))
		log.Info("webhook mode", "path", path)
	} else {
		go func() {
			if err := tg.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("telegram polling failed", "err", err)
				stop()
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("admin api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

func buildDirectory(ctx context.Context, cfg config.Config, log *slog.Logger) (*directory.Service, func(), error) {
	noop := func() {}
	switch cfg.Directory.Backend {
	case config.DirectoryBackendPostgres:
		db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			return nil, noop, err
		}
		svc, err := directory.NewService(ctx, &directory.PostgresRepository{DB: db}, log)
		if err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return svc, func() { _ = db.Close() }, nil
	default:
		svc, err := directory.NewService(ctx, &directory.FileRepository{Path: cfg.Directory.FilePath}, log)
		return svc, noop, err
	}
}

func buildSessionStore(ctx context.Context, cfg config.Config) (session.Store, func(), error) {
	noop := func() {}
	if cfg.Sessions.Backend == config.SessionsBackendRedis {
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			return nil, noop, err
		}
		return session.NewRedisStore(rdb, cfg.Sessions.TTL), func() { _ = rdb.Close() }, nil
	}
	return session.NewMemoryStore(), noop, nil
}

func buildProviders(ctx context.Context, cfg config.Config, log *slog.Logger) ([]telephony.Provider, error) {
	providers := make([]telephony.Provider, 0, len(cfg.Providers.Order))
	for _, name := range cfg.Providers.Order {
		switch name {
		case config.ProviderBearer:
			providers = append(providers, telephony.NewBearerProvider(cfg.Providers.Bearer))
		case config.ProviderSigned:
			providers = append(providers, telephony.NewSignedProvider(cfg.Providers.Signed))
		case config.ProviderTrunk:
			providers = append(providers, telephony.NewTrunkProvider(ctx, cfg.Providers.Trunk, log))
		default:
			return nil, errors.New("unknown provider in PROVIDERS_ORDER: " + name)
		}
	}
	return providers, nil
}

func webhookPath(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Path == "" || u.Path == "/" {
		return "", errors.New("webhook url must carry a non-root path")
	}
	return u.Path, nil
}
