package web

import (
	"net/http"
	"sync"

	"github.com/deemkeen/formgate/middleware"
	"github.com/deemkeen/formgate/response"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const maxTrackedLimiters = 10000

// RateLimiter keeps one token bucket per client address
type RateLimiter struct {
	rate     rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

func NewRateLimiter(r rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{
		rate:     r,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (rl *RateLimiter) getLimiter(addr string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[addr]
	if !ok {
		// Crude memory bound: forget everyone once the table gets large
		if len(rl.limiters) >= maxTrackedLimiters {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[addr] = limiter
	}
	return limiter
}

// RateLimitMiddleware answers 429 once an address runs out of tokens
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := middleware.ClientAddress(c.Request.RemoteAddr)
		if !rl.getLimiter(addr).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response.Body{
				Status:  http.StatusTooManyRequests,
				Message: "Rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// MaxBytesMiddleware rejects bodies larger than maxBytes. A declared length is
// checked up front, anything else is cut off while reading.
func MaxBytesMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, response.Body{
				Status:  http.StatusRequestEntityTooLarge,
				Message: "Request body too large",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
