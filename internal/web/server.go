package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Config holds server configuration
type Config struct {
	Port           int
	AllowedOrigins []string
	Version        string
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	config     *Config
	listener   net.Listener
	mu         sync.Mutex
	hub        *Hub // WebSocket Hub
}

// NewServer creates a new HTTP server. hub may be nil.
func NewServer(cfg *Config, hub *Hub) *Server {
	srv := &Server{
		router: chi.NewRouter(),
		config: cfg,
		hub:    hub,
	}

	srv.setupMiddleware()
	srv.setupRoutes()

	return srv
}

func (s *Server) setupMiddleware() {
	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	// WebSocket
	if s.hub != nil {
		s.router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			ServeWs(s.hub, w, r)
		})
	}

	version := s.config.Version
	if version == "" {
		version = "dev"
	}

	// Health endpoint
	s.router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprintf(w, `{"status":"ok","version":%q}`, version); err != nil {
			_ = err // Client disconnected
		}
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = httpServer
	s.mu.Unlock()

	return httpServer.Serve(listener)
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()

	if httpServer != nil {
		return httpServer.Shutdown(ctx)
	}
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the server's base URL
func (s *Server) BaseURL() string {
	if addr := s.Addr(); addr != "" {
		return fmt.Sprintf("http://%s", addr)
	}
	return fmt.Sprintf("http://localhost:%d", s.config.Port)
}

// SessionRoutes serves /api/v1/session.
type SessionRoutes interface {
	GetStatus(w http.ResponseWriter, r *http.Request)
	Check(w http.ResponseWriter, r *http.Request)
	StartContact(w http.ResponseWriter, r *http.Request)
	ContactResult(w http.ResponseWriter, r *http.Request)
	CancelLink(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
}

// RegisterSessionHandler registers session API handlers
func (s *Server) RegisterSessionHandler(h SessionRoutes) {
	s.router.Route("/api/v1/session", func(r chi.Router) {
		r.Get("/", h.GetStatus)
		r.Post("/check", h.Check)
		r.Post("/contact", h.StartContact)
		r.Post("/contact/result", h.ContactResult)
		r.Delete("/link", h.CancelLink)
		r.Post("/logout", h.Logout)
	})
}

// ShopRoutes serves the catalog, cart, checkout, orders and profile endpoints.
type ShopRoutes interface {
	Catalog(w http.ResponseWriter, r *http.Request)
	Categories(w http.ResponseWriter, r *http.Request)
	GetCart(w http.ResponseWriter, r *http.Request)
	AddToCart(w http.ResponseWriter, r *http.Request)
	UpdateCartItem(w http.ResponseWriter, r *http.Request)
	RemoveFromCart(w http.ResponseWriter, r *http.Request)
	CheckoutSummary(w http.ResponseWriter, r *http.Request)
	Checkout(w http.ResponseWriter, r *http.Request)
	Orders(w http.ResponseWriter, r *http.Request)
	Profile(w http.ResponseWriter, r *http.Request)
}

// RegisterShopHandler registers storefront API handlers
func (s *Server) RegisterShopHandler(h ShopRoutes) {
	s.router.Get("/api/v1/catalog", h.Catalog)
	s.router.Get("/api/v1/catalog/categories", h.Categories)

	s.router.Get("/api/v1/cart", h.GetCart)
	s.router.Post("/api/v1/cart", h.AddToCart)
	s.router.Patch("/api/v1/cart/{guid}", h.UpdateCartItem)
	s.router.Delete("/api/v1/cart/{guid}", h.RemoveFromCart)

	s.router.Get("/api/v1/checkout", h.CheckoutSummary)
	s.router.Post("/api/v1/checkout", h.Checkout)

	s.router.Get("/api/v1/orders", h.Orders)
	s.router.Get("/api/v1/profile", h.Profile)
}

// Router returns the underlying Chi router for external route mounting.
func (s *Server) Router() *chi.Mux {
	return s.router
}
