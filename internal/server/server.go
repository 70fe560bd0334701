package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ghost-db/flowpay/internal/domain"
	"github.com/ghost-db/flowpay/internal/payment"
	"github.com/ghost-db/flowpay/internal/server/handler"
	"github.com/ghost-db/flowpay/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string

	// Rate limiting is disabled when RateLimiter is nil or RateLimit <= 0.
	RateLimiter     domain.RateLimiter
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Settlements is nil when no settlement ledger is configured; its route is
// then not registered.
type Handlers struct {
	Meta        *handler.MetaHandler
	Health      *handler.HealthHandler
	Markets     *handler.MarketHandler
	Balances    *handler.BalanceHandler
	Orders      *handler.OrderHandler
	Trades      *handler.TradeHandler
	Settlements *handler.SettlementHandler
}

// Server is the metered HTTP gateway in front of the Polymarket trading
// client.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (CORS, logging, rate limiting, payment gate) wired up.
func NewServer(cfg Config, handlers Handlers, gate *payment.Gate, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// --- Register routes ---

	// Metadata and health (always free).
	mux.HandleFunc("GET /{$}", handlers.Meta.Index)
	mux.HandleFunc("GET /health", handlers.Health.Health)

	// Market data endpoints.
	mux.HandleFunc("GET /markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /markets/{marketId}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /markets/{tokenId}/orderbook", handlers.Markets.GetOrderBook)
	mux.HandleFunc("GET /markets/{tokenId}/quote", handlers.Markets.GetQuote)

	// Balance endpoints.
	mux.HandleFunc("GET /balance", handlers.Balances.GetBalance)
	mux.HandleFunc("GET /balance/{tokenId}", handlers.Balances.GetTokenBalance)

	// Order endpoints.
	mux.HandleFunc("POST /orders", handlers.Orders.CreateOrder)
	mux.HandleFunc("GET /orders", handlers.Orders.ListOrders)
	mux.HandleFunc("DELETE /orders/{orderId}", handlers.Orders.CancelOrder)
	mux.HandleFunc("DELETE /orders", handlers.Orders.CancelAllOrders)

	// Trade history.
	mux.HandleFunc("GET /trades", handlers.Trades.ListTrades)

	// Settlement audit trail, only when a ledger is configured.
	if handlers.Settlements != nil {
		mux.HandleFunc("GET /settlements", handlers.Settlements.ListSettlements)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	// Payment gate sits closest to the handlers so only priced, verified
	// requests reach them.
	h = middleware.Payment(gate, logger)(h)

	if cfg.RateLimiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(cfg.RateLimiter, cfg.RateLimit, cfg.RateLimitWindow)(h)
	}

	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware returns middleware that sets CORS headers for the allowed
// origins. If no origins are specified, it defaults to allowing all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0 // allow all if none specified
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Payment")
					w.Header().Set("Access-Control-Expose-Headers", "X-Payment-Response")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
