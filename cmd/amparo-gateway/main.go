package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/amparo-ai/amparo/internal/dotenv"
	"github.com/amparo-ai/amparo/pkg/backend/realtime"
	"github.com/amparo-ai/amparo/pkg/gateway/config"
	gatewayserver "github.com/amparo-ai/amparo/pkg/gateway/server"
	"github.com/amparo-ai/amparo/pkg/gateway/session"
	"github.com/amparo-ai/amparo/pkg/gateway/tools"
	"github.com/amparo-ai/amparo/pkg/music"
	"github.com/amparo-ai/amparo/pkg/store"
	"github.com/amparo-ai/amparo/pkg/store/postgres"
	"github.com/amparo-ai/amparo/pkg/store/redisx"
)

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}
}

func runGateway(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := postgres.Migrate(ctx, cfg.PostgresDSN); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	pg, err := postgres.New(ctx, cfg.PostgresDSN, logger)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer pg.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	turnCache := redisx.NewTurnCache(redisClient, cfg.TurnWindowSize, cfg.TurnWindowTTL)
	cooldowns := redisx.NewCooldowns(redisClient, cfg.MediaCooldown)
	memory := store.NewMemoryGateway(pg.Memory(), turnCache, pg.Turns(), logger)
	media := store.NewMediaGateway(pg.Media(), cooldowns)

	registry := tools.NewDefaultRegistry(tools.Deps{
		Memory:  memory,
		Alerts:  pg.Alerts(cfg.AlertWebhookURL),
		Media:   media,
		Music:   music.NewClient(cfg.MusicBaseURL, cfg.MusicAPIKey),
		Logger:  logger,
		Timeout: cfg.ToolTimeout,
	})

	manager := session.NewManager(logger, session.ManagerConfig{
		Session: session.Config{
			OutboundQueueSize:   cfg.OutboundQueueSize,
			WriteTimeout:        cfg.WSWriteTimeout,
			ReadTimeout:         cfg.WSReadTimeout,
			PingInterval:        cfg.WSPingInterval,
			MaxJSONMessageBytes: cfg.WSMaxJSONMessageBytes,
			MaxSessionDuration:  cfg.MaxSessionDuration,
		},
		Voice:              cfg.Voice,
		InputAudioFormat:   cfg.InputAudioFormat,
		OutputAudioFormat:  cfg.OutputAudioFormat,
		TranscriptionModel: cfg.TranscriptionModel,
	}, realtime.WSDialer{}, realtime.Config{
		URL:            cfg.BackendURL,
		APIKey:         cfg.BackendAPIKey,
		Model:          cfg.BackendModel,
		ConnectTimeout: cfg.BackendConnectTimeout,
		Logger:         logger,
	}, pg.Profiles(), memory, registry)

	gw := gatewayserver.New(cfg, logger, manager, memory, pg, redisPinger{client: redisClient})
	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting gateway",
		"addr", cfg.Addr,
		"auth_mode", cfg.AuthMode,
		"backend_model", cfg.BackendModel,
	)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer drainCancel()
	if !manager.Shutdown(drainCtx) {
		logger.Warn("sessions did not drain within grace period")
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "amparo-gateway: %v\n", err)
		return 1
	}

	if err := runGateway(ctx, logger); err != nil {
		fmt.Fprintf(stderr, "amparo-gateway: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr))
}
