package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wabridge/wabridge/internal/api"
	"github.com/wabridge/wabridge/internal/biz/domain"
	"github.com/wabridge/wabridge/internal/biz/usecase"
	"github.com/wabridge/wabridge/internal/conf"
	"github.com/wabridge/wabridge/internal/data"
	"github.com/wabridge/wabridge/internal/events"
	"github.com/wabridge/wabridge/internal/server"
)

func main() {
	// A missing .env file is fine, plain environment variables still apply.
	_ = godotenv.Load()

	cfg := conf.LoadFromEnv()
	if err := cfg.ApplyFile(os.Getenv("CONFIG_FILE")); err != nil {
		fallback := fallbackLogger()
		fallback.Fatal().Err(err).Msg("failed to load config file")
	}
	if err := cfg.Validate(); err != nil {
		fallback := fallbackLogger()
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}

	log := newLogger(cfg.Debug)

	repos, err := data.NewRepositories(cfg.Gateway.URL, cfg.Archive.DBPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create repositories")
	}
	defer repos.Close()

	session := domain.NewSession()
	hub := events.NewHub(log)
	sessions := usecase.NewSessionUsecase(session, hub, log)
	normalizer := usecase.NewNormalizer(repos.Client, log)
	pager := usecase.NewHistoryPager(repos.Client, normalizer, repos.Archive, log)
	sender := usecase.NewSendPipeline(repos.Client, session, log)
	pins := usecase.NewPinBoard()

	mux := http.NewServeMux()
	api.NewHandler(sessions, sender, pager, pins, repos.Client, repos.Archive, log).Register(mux)
	mux.Handle("/ws", server.NewWSHandler(hub, log))

	bridge := server.NewBridge(repos.Client, sessions, normalizer, repos.Archive, hub, log)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return bridge.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("bridge exited with error")
	}
	log.Info().Msg("bye")
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func fallbackLogger() zerolog.Logger {
	return newLogger(false)
}
