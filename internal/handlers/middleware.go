package handlers

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	constants "github.com/CodeAndHammer/wordly/internal/constants"
	util "github.com/CodeAndHammer/wordly/internal/util"
)

const apiCSP = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"

func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Security-Policy", apiCSP)
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
		}
		c.Next()
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.Request.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(c.Request.Context(), constants.RequestIDKey, reqID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-Id", reqID)
		c.Next()
	}
}

func requestLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		util.Logger().Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", util.RequestID(c.Request.Context())),
		)
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", constants.CSRFHeaderName, "X-Request-Id"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// csrfMiddleware hands every client a readable token cookie; mutating
// requests must echo it back in the X-CSRF-Token header.
func (app *App) csrfMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(constants.CSRFCookieName)
		if err != nil || len(token) < 8 {
			b := make([]byte, 32)
			if _, err := rand.Read(b); err == nil {
				token = fmt.Sprintf("%x", b)
				c.SetSameSite(http.SameSiteLaxMode)
				c.SetCookie(constants.CSRFCookieName, token, int(app.Config.CookieMaxAge.Seconds()), "/", "", app.Config.IsProduction, false)
			}
		}
		c.Set(constants.CSRFCookieName, token)
		c.Next()
	}
}

func validateCSRFMiddleware() gin.HandlerFunc {
	mutating := []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch}
	return func(c *gin.Context) {
		if slices.Contains(mutating, c.Request.Method) {
			cookie, _ := c.Cookie(constants.CSRFCookieName)
			header := c.GetHeader(constants.CSRFHeaderName)
			if header == "" || cookie == "" || header != cookie {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": constants.ErrorCodeInvalidCSRFToken})
				return
			}
		}
		c.Next()
	}
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// LimiterPool holds one token bucket per client IP.
type LimiterPool struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	ttl     time.Duration
}

func NewLimiterPool(rps, burst int, ttl time.Duration) *LimiterPool {
	if rps <= 0 {
		rps = 1
	}
	return &LimiterPool{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Every(time.Second / time.Duration(rps)),
		burst:   burst,
		ttl:     ttl,
	}
}

func (p *LimiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[key]; ok {
		e.lastAccess = time.Now()
		return e.limiter
	}
	e := &limiterEntry{limiter: rate.NewLimiter(p.limit, p.burst), lastAccess: time.Now()}
	p.entries[key] = e
	return e.limiter
}

func (p *LimiterPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Cleanup drops limiters idle for longer than the TTL. When the pool is
// still oversized, the oldest half is evicted.
func (p *LimiterPool) Cleanup() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := time.Now().Add(-p.ttl)
	removed := 0
	for key, e := range p.entries {
		if e.lastAccess.Before(cutoff) {
			delete(p.entries, key)
			removed++
		}
	}

	if len(p.entries) > 50000 {
		keys := lo.Keys(p.entries)
		slices.SortFunc(keys, func(a, b string) int {
			return p.entries[a].lastAccess.Compare(p.entries[b].lastAccess)
		})
		for _, key := range keys[:len(keys)/2] {
			delete(p.entries, key)
			removed++
		}
		util.LogWarn("Rate limiter pool oversized, evicted %d oldest entries", len(keys)/2)
	}

	if removed > 0 {
		util.LogInfo("Cleaned up %d stale rate limiters", removed)
	}
	return removed
}

func (p *LimiterPool) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !p.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": constants.ErrorCodeTooManyRequests})
			return
		}
		c.Next()
	}
}
