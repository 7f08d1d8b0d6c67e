package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/hakimhealth/hakim/internal/channel/adapters/ultramsg"
	"github.com/hakimhealth/hakim/internal/chat"
	"github.com/hakimhealth/hakim/internal/config"
	"github.com/hakimhealth/hakim/internal/conversation"
	"github.com/hakimhealth/hakim/internal/db"
	"github.com/hakimhealth/hakim/internal/handlers"
	"github.com/hakimhealth/hakim/internal/inbound"
	"github.com/hakimhealth/hakim/internal/logger"
	"github.com/hakimhealth/hakim/internal/media"
	"github.com/hakimhealth/hakim/internal/server"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			conversation.NewStore,
			provideCompleter,
			chat.NewRouter,
			provideUltraMsgClient,
			provideTranscriber,
			provideSynthesizer,
			provideAudioStore,
			provideInboundService,
			handlers.NewPingHandler,
			provideAuthHandler,
			provideTwilioHandler,
			provideUltraMsgHandler,
			provideWebChatHandler,
			provideConversationsHandler,
			provideServer,
		),
		fx.Invoke(startServer),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideCompleter(log *slog.Logger, cfg config.Config) chat.Completer {
	return chat.NewClient(log, cfg.Completion)
}

func provideUltraMsgClient(log *slog.Logger, cfg config.Config) *ultramsg.Client {
	return ultramsg.NewClient(log, cfg.UltraMsg)
}

func provideTranscriber(log *slog.Logger, cfg config.Config) *media.Transcriber {
	return media.NewTranscriber(log, cfg.Speech)
}

func provideSynthesizer(log *slog.Logger, cfg config.Config) *media.Synthesizer {
	return media.NewSynthesizer(log, cfg.Speech)
}

// provideAudioStore returns nil when no object store is configured; voice
// replies then fall back to text.
func provideAudioStore(log *slog.Logger, cfg config.Config) (*media.AudioStore, error) {
	if cfg.Storage.Endpoint == "" {
		log.Info("object storage not configured, voice replies disabled")
		return nil, nil
	}
	store, err := media.NewAudioStore(context.Background(), log, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("audio store init: %w", err)
	}
	return store, nil
}

func provideInboundService(log *slog.Logger, store *conversation.Store, router *chat.Router, transcriber *media.Transcriber) *inbound.Service {
	return inbound.NewService(log, store, router, transcriber)
}

func provideAuthHandler(log *slog.Logger, cfg config.Config) (*handlers.AuthHandler, error) {
	return handlers.NewAuthHandler(log, cfg)
}

func provideTwilioHandler(log *slog.Logger, svc *inbound.Service, cfg config.Config) *handlers.TwilioWebhookHandler {
	return handlers.NewTwilioWebhookHandler(log, svc, cfg.Twilio)
}

func provideUltraMsgHandler(log *slog.Logger, svc *inbound.Service, sender *ultramsg.Client, synthesizer *media.Synthesizer, audio *media.AudioStore) *handlers.UltraMsgWebhookHandler {
	var publisher handlers.AudioPublisher
	if audio != nil {
		publisher = audio
	}
	return handlers.NewUltraMsgWebhookHandler(log, svc, sender, synthesizer, publisher)
}

func provideWebChatHandler(log *slog.Logger, svc *inbound.Service) *handlers.WebChatHandler {
	return handlers.NewWebChatHandler(log, svc)
}

func provideConversationsHandler(log *slog.Logger, store *conversation.Store) *handlers.ConversationsHandler {
	return handlers.NewConversationsHandler(log, store)
}

func provideServer(cfg config.Config,
	pingHandler *handlers.PingHandler,
	authHandler *handlers.AuthHandler,
	twilioHandler *handlers.TwilioWebhookHandler,
	ultraMsgHandler *handlers.UltraMsgWebhookHandler,
	webChatHandler *handlers.WebChatHandler,
	conversationsHandler *handlers.ConversationsHandler,
) *server.Server {
	return server.NewServer(cfg.Server.Addr, cfg.Auth.JWTSecret,
		pingHandler, authHandler, twilioHandler, ultraMsgHandler, webChatHandler, conversationsHandler)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting server", slog.String("addr", cfg.Server.Addr))
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
