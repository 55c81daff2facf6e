package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/xiaoyuanzhu-com/filehistory/log"
)

// NewRouter builds the gin engine with logging, recovery, gzip and the API
// routes
func NewRouter(h *Handlers, development bool) *gin.Engine {
	if !development {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(log.GinLogger())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	if !development {
		r.Use(securityHeaders())
	}
	r.SetTrustedProxies(nil)

	SetupRoutes(r, h)
	return r
}

// securityHeaders adds response hardening headers for production
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// Server serves the API until shut down
type Server struct {
	http *http.Server
}

// NewServer wraps handler in an http.Server bound to addr
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{http: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          log.StdErrorLogger(),
	}}
}

// Start serves in the background. Listen errors other than a clean
// shutdown are fatal.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.http.Addr).Msg("api server starting")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("api server error")
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
