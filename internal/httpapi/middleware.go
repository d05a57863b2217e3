package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/20XMAS24/RAGEMP-NewServer/internal/game"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	bearerPrefix     = "Bearer "
	maxTrackedClient = 10000
	clientIdleTTL    = 10 * time.Minute
)

func requestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := strings.TrimSpace(ctx.GetHeader(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		ctx.Set(requestIDContextKey, id)
		ctx.Header(requestIDHeader, id)
		ctx.Next()
	}
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		started := time.Now()
		ctx.Next()
		logger.Info("http request",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("duration", time.Since(started)),
			zap.String("client_ip", ctx.ClientIP()),
			zap.String("request_id", ctx.GetString(requestIDContextKey)),
		)
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	mutex    sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

func newClientLimiter(requestsPerSecond float64, burst int, now func() time.Time) (*clientLimiter, error) {
	if requestsPerSecond <= 0 || burst < 1 {
		return nil, fmt.Errorf("%w: rate limit must be positive", ErrInvalidServerConfig)
	}
	return &clientLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(requestsPerSecond),
		burst:    burst,
		now:      now,
	}, nil
}

func (limiter *clientLimiter) allow(key string) bool {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()
	now := limiter.now()
	entry, exists := limiter.limiters[key]
	if !exists {
		if len(limiter.limiters) >= maxTrackedClient {
			limiter.pruneLocked(now)
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(limiter.limit, limiter.burst)}
		limiter.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (limiter *clientLimiter) pruneLocked(now time.Time) {
	for key, entry := range limiter.limiters {
		if now.Sub(entry.lastSeen) > clientIdleTTL {
			delete(limiter.limiters, key)
		}
	}
}

func (limiter *clientLimiter) middleware(logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		key := ctx.ClientIP()
		if !limiter.allow(key) {
			logger.Warn("rate limit exceeded",
				zap.String("client_ip", key),
				zap.String("path", ctx.Request.URL.Path),
				zap.String("request_id", ctx.GetString(requestIDContextKey)),
			)
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse("rate_limited", "too many requests"))
			return
		}
		ctx.Next()
	}
}

func authenticate(tokens *game.TokenIssuer) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing bearer token"))
			return
		}
		claims, err := tokens.Parse(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)))
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid token"))
			return
		}
		ctx.Set(claimsContextKey, &claims)
		ctx.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims := getClaims(ctx)
		if claims == nil || claims.AdminLevel < 1 {
			ctx.AbortWithStatusJSON(http.StatusForbidden, errorResponse("forbidden", "admin privileges required"))
			return
		}
		ctx.Next()
	}
}

func getClaims(ctx *gin.Context) *game.Claims {
	claimsValue, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*game.Claims)
	return claims
}
