// Package httpapi exposes the game server over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/game"
	"github.com/20XMAS24/RAGEMP-NewServer/pkg/ledger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	claimsContextKey    = "auth_claims"
	requestIDContextKey = "request_id"
	requestIDHeader     = "X-Request-ID"

	defaultShutdownTimeout = 5 * time.Second
	defaultRequestTimeout  = 10 * time.Second
)

var ErrInvalidServerConfig = errors.New("invalid http server config")

// Config holds the HTTP listener settings.
type Config struct {
	ListenAddr      string
	AllowedOrigins  []string
	RateLimitRPS    float64
	RateLimitBurst  int
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// Services are the domain services the HTTP handlers delegate to.
type Services struct {
	Ledger     *ledger.Service
	Players    *game.PlayerService
	Jobs       *game.JobService
	Vehicles   *game.VehicleService
	Properties *game.PropertyService
	Tokens     *game.TokenIssuer
	Teller     *game.Teller
}

func (services Services) validate() error {
	switch {
	case services.Ledger == nil:
		return fmt.Errorf("%w: ledger service is nil", ErrInvalidServerConfig)
	case services.Players == nil:
		return fmt.Errorf("%w: player service is nil", ErrInvalidServerConfig)
	case services.Jobs == nil:
		return fmt.Errorf("%w: job service is nil", ErrInvalidServerConfig)
	case services.Vehicles == nil:
		return fmt.Errorf("%w: vehicle service is nil", ErrInvalidServerConfig)
	case services.Properties == nil:
		return fmt.Errorf("%w: property service is nil", ErrInvalidServerConfig)
	case services.Tokens == nil:
		return fmt.Errorf("%w: token issuer is nil", ErrInvalidServerConfig)
	case services.Teller == nil:
		return fmt.Errorf("%w: teller is nil", ErrInvalidServerConfig)
	}
	return nil
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg Config, services Services, logger *zap.Logger, gatherer prometheus.Gatherer) error {
	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(cfg, services, logger, gatherer)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gameserver listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		timeout := cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// NewRouter wires middleware and routes.
func NewRouter(cfg Config, services Services, logger *zap.Logger, gatherer prometheus.Gatherer) (*gin.Engine, error) {
	if err := services.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	limiter, err := newClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, time.Now)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(accessLog(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Origin", "Accept", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(limiter.middleware(logger))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	handler := &httpHandler{logger: logger, services: services, cfg: cfg}

	api := router.Group("/api")
	api.POST("/players/register", handler.handleRegister)
	api.POST("/players/login", handler.handleLogin)

	authenticated := api.Group("")
	authenticated.Use(authenticate(services.Tokens))
	authenticated.GET("/players/me", handler.handleMe)
	authenticated.GET("/bank/accounts", handler.handleListAccounts)
	authenticated.POST("/bank/accounts", handler.handleCreateAccount)
	authenticated.GET("/bank/accounts/:id", handler.handleGetAccount)
	authenticated.GET("/bank/accounts/:id/transactions", handler.handleHistory)
	authenticated.POST("/bank/accounts/:id/deposit", handler.handleDeposit)
	authenticated.POST("/bank/accounts/:id/withdraw", handler.handleWithdraw)
	authenticated.POST("/bank/transfers", handler.handleTransfer)
	authenticated.GET("/jobs", handler.handleJobs)
	authenticated.GET("/vehicles", handler.handleVehicles)
	authenticated.GET("/properties/available", handler.handleAvailableProperties)
	authenticated.POST("/properties/:id/buy", handler.handleBuyProperty)

	admin := authenticated.Group("")
	admin.Use(requireAdmin())
	admin.POST("/bank/accounts/:id/grant", handler.handleGrant)
	admin.POST("/bank/accounts/:id/lock", handler.handleLockAccount)
	admin.POST("/bank/accounts/:id/unlock", handler.handleUnlockAccount)

	return router, nil
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
