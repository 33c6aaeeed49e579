package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/talkrooms/talkrooms/internal/adapters/http"
	wssignal "github.com/talkrooms/talkrooms/internal/adapters/signal"
	"github.com/talkrooms/talkrooms/internal/app"
	"github.com/talkrooms/talkrooms/internal/auth"
	"github.com/talkrooms/talkrooms/internal/config"
	"github.com/talkrooms/talkrooms/internal/core"
	"github.com/talkrooms/talkrooms/internal/presence"
	"github.com/talkrooms/talkrooms/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	tokens := auth.NewTokens(cfg.AccessSecret, cfg.AccessTTL)
	registry := presence.NewRegistry()
	rooms := core.NewRoomSet()

	coord := app.NewCoordinator(registry, rooms, st)
	coord.MaxVoiceUsers = cfg.MaxVoiceUsers

	ws := wssignal.NewController(coord, st, tokens, wssignal.Options{
		ReadLimit:      cfg.ReadLimit,
		PingPeriod:     cfg.PingPeriod,
		SendBuffer:     cfg.SendBuffer,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	janitor := &store.Janitor{Store: st, TTL: cfg.RoomTTL, Interval: 24 * time.Hour}
	go janitor.Run(ctx)

	r := router.SetupRouter(ctx, cfg, st, tokens, ws)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("talkrooms server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
