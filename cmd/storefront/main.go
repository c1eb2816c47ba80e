package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/redis/go-redis/v9"

	"github.com/blockedby/loyalty-miniapp/internal/backend"
	"github.com/blockedby/loyalty-miniapp/internal/cart"
	"github.com/blockedby/loyalty-miniapp/internal/catalog"
	"github.com/blockedby/loyalty-miniapp/internal/config"
	"github.com/blockedby/loyalty-miniapp/internal/database"
	"github.com/blockedby/loyalty-miniapp/internal/linkstate"
	"github.com/blockedby/loyalty-miniapp/internal/logger"
	"github.com/blockedby/loyalty-miniapp/internal/mirror"
	"github.com/blockedby/loyalty-miniapp/internal/nats"
	"github.com/blockedby/loyalty-miniapp/internal/publisher"
	"github.com/blockedby/loyalty-miniapp/internal/storefront"
	"github.com/blockedby/loyalty-miniapp/internal/web"
	"github.com/blockedby/loyalty-miniapp/internal/web/handlers"
)

var version = "dev"

func main() {
	showQR := flag.Bool("qr", false, "print the Mini App link as a terminal QR code")
	relayPhone := flag.String("relay-phone", "", "link this phone on contact grant, acting as the bot (development only)")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// 2. Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log := logger.Get()
	log.Info().Str("version", version).Msg("starting loyalty mini app storefront")

	// 3. Setup context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	// 4. Open the persisted mirror
	telegramID, _ := backend.TelegramUserID(cfg.InitData)
	store, closeStore, err := openMirrorStore(ctx, cfg, telegramID)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.MirrorBackend).Msg("failed to open mirror store")
	}
	defer closeStore()
	mr := mirror.New(store)

	// 5. Connect to NATS
	var pub *publisher.NATSPublisher
	if cfg.NatsURL != "" {
		nc, err := nats.New(ctx, cfg.NatsURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to nats, publishing disabled")
		} else {
			defer nc.Close()
			if err := nc.EnsureStream(ctx, nats.SessionStream, []string{"session.>"}); err != nil {
				log.Warn().Err(err).Msg("failed to ensure session stream")
			}
			pub = publisher.NewNATSPublisher(nc.Conn)
		}
	}

	// 6. Backend client and domain services
	client := backend.NewClient(backend.Config{
		BaseURL:  cfg.APIURL,
		InitData: cfg.InitData,
		Timeout:  cfg.HTTPTimeout,
		RPS:      cfg.APIRPS,
	})

	hub := web.NewHub()
	go hub.Run()
	defer hub.Stop()

	bridge := web.NewContactBridge(hub)
	var contact linkstate.ContactRequester = bridge
	if *relayPhone != "" {
		log.Warn().Str("phone", *relayPhone).Msg("bot relay enabled, granted contacts are linked directly")
		contact = &linkstate.BotRelay{
			Inner:      bridge,
			Linker:     client,
			Email:      cfg.BotSystemEmail,
			Password:   cfg.BotSystemPassword,
			TelegramID: telegramID,
			Phone:      *relayPhone,
		}
	}

	session := linkstate.NewManager(client, contact, mr, linkstate.Options{
		PollTimeout:  cfg.LinkPollTimeout,
		PollInterval: cfg.LinkPollInterval,
	})

	cat := catalog.New(client)
	session.SetAuxLoader(cat)
	session.SetStateCallback(func(ctx context.Context, snap linkstate.Snapshot) {
		hub.Broadcast(web.SessionStateEvent(snap))
		if pub != nil {
			if err := pub.PublishSessionState(ctx, snap); err != nil {
				log.Warn().Err(err).Msg("failed to publish session state")
			}
		}
	})

	shop := storefront.New(session, client, cat, cart.New(mr))

	// 7. Initialize web handlers and server
	sessionHandler := handlers.NewSessionHandler(session, shop, bridge, hub)
	if pub != nil {
		sessionHandler.SetLinkResultHook(func(ctx context.Context, err error) {
			if perr := pub.PublishLinkResult(ctx, err); perr != nil {
				log.Warn().Err(perr).Msg("failed to publish link result")
			}
		})
	}
	shopHandler := handlers.NewShopHandler(shop)

	server := web.NewServer(&web.Config{Port: cfg.HTTPPort, Version: version}, hub)
	server.RegisterSessionHandler(sessionHandler)
	server.RegisterShopHandler(shopHandler)

	// 8. Start server, then revalidate the mirrored session
	log.Info().Int("port", cfg.HTTPPort).Msg("starting web server")
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	if shop.Start(ctx) {
		log.Info().Msg("session restored")
	}

	if *showQR {
		printQR(cfg.MiniAppURL, server.BaseURL())
	}

	// 9. Wait for shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down services...")

	session.CancelLink()
	sessionHandler.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", err)
	}

	logger.Info("shutdown complete")
}

// openMirrorStore selects the mirror backend. The returned func releases it.
func openMirrorStore(ctx context.Context, cfg *config.Config, telegramID string) (mirror.Store, func(), error) {
	switch cfg.MirrorBackend {
	case "memory":
		return mirror.NewMemoryStore(), func() {}, nil

	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		prefix := "miniapp:mirror:"
		if telegramID != "" {
			prefix += telegramID + ":"
		}
		return mirror.NewRedisStore(rdb, prefix, cfg.MirrorTTL), func() { _ = rdb.Close() }, nil

	case "sqlite", "postgres", "":
		db, err := database.New(ctx, cfg.MirrorDSN)
		if err != nil {
			return nil, nil, err
		}
		store, err := mirror.NewGORMStore(db.GORM)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown mirror backend %q", cfg.MirrorBackend)
	}
}

func printQR(miniAppURL, fallback string) {
	url := miniAppURL
	if url == "" {
		url = fallback
	}
	fmt.Println("Open the Mini App:", url)
	qrterminal.GenerateHalfBlock(url, qrterminal.L, os.Stdout)
}
