// Package health serves the deployment liveness probe and the Prometheus
// scrape endpoint on a small HTTP listener, separate from the bot's
// long-polling loop.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/vidfetch/vidfetch-bot/internal/metrics"
)

// ServiceName reported by the health payload
const ServiceName = "vidfetch-bot"

const shutdownGrace = 5 * time.Second

// NewRouter builds the gin engine with the health and metrics routes
func NewRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", handleHealth)
	r.GET("/", handleHealth)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	return r
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": ServiceName,
	})
}

// Serve runs the listener until ctx is canceled, then shuts down gracefully.
// Listener errors are logged, not fatal; the bot can run without the probe.
func Serve(ctx context.Context, addr string) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("health server shutdown")
		}
	}()

	log.Info().Str("addr", addr).Msg("health server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("health server failed")
	}
}
