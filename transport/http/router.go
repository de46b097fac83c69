package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/internal/logger"
	"github.com/layer-3/walletauth/service"
)

// RouterOption configures the router.
type RouterOption func(*routerOptions)

type routerOptions struct {
	log     *slog.Logger
	metrics http.Handler
}

// WithLogger sets the request and error logger.
func WithLogger(log *slog.Logger) RouterOption {
	return func(o *routerOptions) {
		o.log = log
	}
}

// WithMetricsHandler exposes handler on GET /metrics.
func WithMetricsHandler(handler http.Handler) RouterOption {
	return func(o *routerOptions) {
		o.metrics = handler
	}
}

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, balanceService *service.BalanceService, opts ...RouterOption) *gin.Engine {
	o := &routerOptions{log: logger.Discard()}
	for _, opt := range opts {
		opt(o)
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(o.log))

	handlers := NewHandlers(authService, balanceService, o.log)

	router.GET("/healthz", handlers.Health)
	if o.metrics != nil {
		router.GET("/metrics", gin.WrapH(o.metrics))
	}

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.GET("/nonce", handlers.Nonce)
		auth.POST("/verify", handlers.Verify)
		auth.POST("/logout", BearerAuth(), handlers.Logout)
	}

	// Protected routes
	protected := router.Group("/")
	protected.Use(BearerAuth())
	{
		protected.GET("/balances", handlers.Balances)
		protected.GET("/me", handlers.Me)
	}

	return router
}
