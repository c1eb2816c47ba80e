// Package mockbackend is a development stand-in for the loyalty REST backend: the mini app
// endpoints under /api/telegram and the bot endpoints used to link accounts.
package mockbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-fuego/fuego"
	"github.com/go-fuego/fuego/option"

	"github.com/blockedby/loyalty-miniapp/internal/backend"
	"github.com/blockedby/loyalty-miniapp/internal/logger"
)

// Server represents the Fuego mock backend.
type Server struct {
	fuego *fuego.Server
	store *store
	log   *logger.Logger

	version string

	tokensMu sync.RWMutex
	tokens   map[string]bool
}

// Config holds mock backend configuration.
type Config struct {
	Port        int
	Title       string
	Description string
	Version     string
	// LinkDelay is how long a link-telegram call takes to become visible to check-link.
	LinkDelay time.Duration
}

type identityKey struct{}

// NewServer creates a new mock backend serving seed.
func NewServer(cfg *Config, seed *Seed) *Server {
	if seed == nil {
		seed = DefaultSeed()
	}
	if cfg.Title == "" {
		cfg.Title = "Loyalty Mock Backend"
	}

	s := fuego.NewServer(
		fuego.WithAddr(fmt.Sprintf(":%d", cfg.Port)),
		fuego.WithEngineOptions(
			fuego.WithOpenAPIConfig(fuego.OpenAPIConfig{
				PrettyFormatJSON: true,
				JSONFilePath:     "openapi.json",
				SwaggerURL:       "/docs",
				SpecURL:          "/openapi.json",
				UIHandler: func(specURL string) http.Handler {
					return ScalarHandler(specURL, cfg.Title, cfg.Description)
				},
			}),
		),
	)

	// Set OpenAPI info
	s.OpenAPI.Description().Info.Title = cfg.Title
	s.OpenAPI.Description().Info.Description = cfg.Description
	s.OpenAPI.Description().Info.Version = cfg.Version

	// Add Chi middleware (Fuego is net/http compatible)
	fuego.Use(s, middleware.RequestID)
	fuego.Use(s, middleware.RealIP)
	fuego.Use(s, middleware.Logger)
	fuego.Use(s, middleware.Recoverer)

	srv := &Server{
		fuego:  s,
		store:  newStore(seed, cfg.LinkDelay),
		log:    logger.Get(),
		tokens: make(map[string]bool),

		version: cfg.Version,
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) registerRoutes() {
	// Health check
	fuego.Get(s.fuego, "/health", s.healthCheck,
		option.Summary("Health Check"),
		option.Tags("System"),
	)

	// Bot API
	fuego.Post(s.fuego, backend.PathToken, s.issueToken,
		option.Summary("Obtain Token"),
		option.Description("Returns a bearer token for the bot system user"),
		option.Tags("Bot"),
	)

	fuego.Post(s.fuego, backend.PathLinkTelegram, s.linkTelegram,
		option.Summary("Link Telegram Account"),
		option.Description("Links a telegram account to a participant by phone number. The link becomes visible to check-telegram-link after the configured delay."),
		option.Tags("Bot"),
		option.Middleware(s.bearerAuth),
	)

	// Mini app API
	tma := option.Middleware(s.tmaAuth)

	fuego.Post(s.fuego, backend.PathCheckTelegramLink, s.checkTelegramLink,
		option.Summary("Check Telegram Link"),
		option.Description("Reports whether the caller's telegram account is linked to a participant"),
		option.Tags("Mini App"),
		tma,
	)

	fuego.Get(s.fuego, backend.PathProducts, s.listProducts,
		option.Summary("List Products"),
		option.Query("category", "Filter by category guid"),
		option.Tags("Mini App"),
		tma,
	)

	fuego.Get(s.fuego, backend.PathProductCategories, s.listCategories,
		option.Summary("List Product Categories"),
		option.Tags("Mini App"),
		tma,
	)

	fuego.Post(s.fuego, backend.PathCreateOrder, s.createOrder,
		option.Summary("Create Order"),
		option.Description("Pays for the items with bonus points. Responds 400 with a detail when the order cannot be placed."),
		option.Tags("Mini App"),
		option.DefaultStatusCode(http.StatusCreated),
		tma,
	)

	fuego.Get(s.fuego, backend.PathOrders, s.listOrders,
		option.Summary("List Orders"),
		option.Tags("Mini App"),
		tma,
	)
}

// tmaAuth requires "Authorization: tma <initData>" and stores the caller identity.
func (s *Server) tmaAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		initData, ok := strings.CutPrefix(r.Header.Get("Authorization"), "tma ")
		if !ok {
			writeAuthError(w, "Ошибка Telegram-аутентификации")
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, identityFromInitData(initData))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerAuth requires a token issued by /api/token/.
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || !s.validToken(token) {
			writeAuthError(w, "Учетные данные не были предоставлены")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(AuthErrorResponse{Success: false, Message: message}); err != nil {
		_ = err // Client disconnected
	}
}

func (s *Server) validToken(token string) bool {
	s.tokensMu.RLock()
	defer s.tokensMu.RUnlock()
	return s.tokens[token]
}

// Start starts the mock backend.
func (s *Server) Start() error {
	return s.fuego.Run()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.fuego.Server.Shutdown(ctx)
}

// Handler returns the routed handler, for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.fuego.Mux
}
