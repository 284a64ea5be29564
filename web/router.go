package web

import (
	"github.com/deemkeen/formgate/middleware"
	"github.com/deemkeen/formgate/response"
	"github.com/deemkeen/formgate/util"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// NewRouter wires the middleware chain and the routes. The authentication
// gate runs before routing, so unknown paths are challenged like known ones.
func NewRouter(conf *util.AppConfig, gate middleware.Gate, render *response.Renderer, h *Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Secure(conf.Conf.Development))

	if conf.Conf.RateLimit > 0 {
		rl := NewRateLimiter(rate.Limit(conf.Conf.RateLimit), conf.Conf.RateBurst)
		r.Use(RateLimitMiddleware(rl))
	}

	r.Use(middleware.AuthGate(gate, render, !conf.Conf.DisableAuth))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/*path", h.HandleGet)

	form := r.Group("/", MaxBytesMiddleware(conf.Conf.MaxBodyBytes))
	form.POST("/submit", h.HandleSubmit)
	form.POST("/analyze", h.HandleAnalyze)

	r.NoRoute(h.HandleNotFound)
	return r
}
