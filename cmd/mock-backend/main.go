package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blockedby/loyalty-miniapp/internal/config"
	"github.com/blockedby/loyalty-miniapp/internal/logger"
	"github.com/blockedby/loyalty-miniapp/internal/mockbackend"
)

func main() {
	alwaysLinked := flag.Bool("always-linked", false, "treat every mini app identity as linked")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()

	seed, err := mockbackend.LoadSeed(cfg.MockSeedFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.MockSeedFile).Msg("failed to load seed")
	}
	if *alwaysLinked {
		seed.AlwaysLinked = true
	}
	if cfg.BotSystemEmail != "" {
		seed.SystemUser = mockbackend.SystemUser{Email: cfg.BotSystemEmail, Password: cfg.BotSystemPassword}
	}

	srv := mockbackend.NewServer(&mockbackend.Config{
		Port:        cfg.MockPort,
		Description: "Development stand-in for the loyalty backend",
		Version:     "dev",
		LinkDelay:   cfg.MockLinkDelay,
	}, seed)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().
			Int("port", cfg.MockPort).
			Int("products", len(seed.Products)).
			Dur("link_delay", cfg.MockLinkDelay).
			Msg("starting mock backend")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("mock backend stopped")
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down mock backend")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("mock backend shutdown failed", err)
	}
}
